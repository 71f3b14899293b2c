// Command sendtx signs a value transfer with one of the network's derived
// accounts and submits it to a running devnet.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/Siasom1/devnet/config"
	"github.com/Siasom1/devnet/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

type options struct {
	rpcURL  string
	cfgFile string
	network string
	account int
	to      string
	value   string
	legacy  bool
	wait    time.Duration
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "sendtx",
		Short:         "Send a value transfer from a derived devnet account",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.rpcURL, "rpc", "http://127.0.0.1:8545", "JSON-RPC endpoint")
	f.StringVar(&opts.cfgFile, "config", "", "network config file holding the mnemonic")
	f.StringVar(&opts.network, "network", "", "network to take accounts from")
	f.IntVar(&opts.account, "account", 0, "index of the sending account")
	f.StringVar(&opts.to, "to", "", "recipient address")
	f.StringVar(&opts.value, "value", "1000000000000000000", "amount in wei")
	f.BoolVar(&opts.legacy, "legacy", false, "send a legacy gas-price transaction (pre-london networks)")
	f.DurationVar(&opts.wait, "wait", 30*time.Second, "how long to wait for the receipt (0 skips)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !common.IsHexAddress(opts.to) {
		return fmt.Errorf("invalid recipient %q", opts.to)
	}
	to := common.HexToAddress(opts.to)

	value, ok := new(big.Int).SetString(opts.value, 10)
	if !ok || value.Sign() < 0 {
		return fmt.Errorf("invalid value %q", opts.value)
	}

	// the key comes from the mnemonic, never from a flag
	acc, err := deriveAccount(opts)
	if err != nil {
		return err
	}

	client, err := ethclient.DialContext(ctx, opts.rpcURL)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	nonce, err := client.PendingNonceAt(ctx, acc.Address)
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}

	var inner types.TxData
	if opts.legacy {
		inner = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      21000,
			To:       &to,
			Value:    value,
		}
	} else {
		tip, err := client.SuggestGasTipCap(ctx)
		if err != nil {
			return fmt.Errorf("tip: %w", err)
		}
		inner = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: new(big.Int).Add(gasPrice, gasPrice),
			Gas:       21000,
			To:        &to,
			Value:     value,
		}
	}

	signedTx, err := types.SignNewTx(acc.PrivateKey, types.LatestSignerForChainID(chainID), inner)
	if err != nil {
		return err
	}
	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return err
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✅ TX SENT")
	fmt.Fprintln(out, "From:  ", acc.Address.Hex())
	fmt.Fprintln(out, "To:    ", to.Hex())
	fmt.Fprintln(out, "TxHash:", signedTx.Hash().Hex())
	fmt.Fprintln(out, "Raw:   ", hexutil.Encode(raw))

	if opts.wait <= 0 {
		return nil
	}
	receipt, err := waitReceipt(ctx, client, signedTx.Hash(), opts.wait)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Mined in block %d (status %d, gas used %d)\n", receipt.BlockNumber.Uint64(), receipt.Status, receipt.GasUsed)
	return nil
}

func deriveAccount(opts *options) (wallet.Account, error) {
	cfg, err := config.Load(config.GetConfigPath(opts.cfgFile))
	if err != nil {
		return wallet.Account{}, err
	}
	name := opts.network
	if name == "" {
		name = cfg.DefaultNetwork
	}
	network, err := cfg.Network(name)
	if err != nil {
		return wallet.Account{}, err
	}
	if opts.account < 0 {
		return wallet.Account{}, fmt.Errorf("invalid account index %d", opts.account)
	}

	accounts := network.Accounts
	accounts.InitialIndex += opts.account
	accounts.Count = 1
	accs, err := wallet.DeriveAccounts(accounts)
	if err != nil {
		return wallet.Account{}, err
	}
	return accs[0], nil
}

// waitReceipt polls until the transaction is mined or timeout elapses.
func waitReceipt(ctx context.Context, client *ethclient.Client, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
