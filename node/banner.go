package node

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/Siasom1/devnet/params"
	"github.com/Siasom1/devnet/wallet"
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// formatEther renders wei as a decimal ether amount without trailing zeros.
func formatEther(wei *big.Int) string {
	s := new(big.Rat).SetFrac(wei, weiPerEther).FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// printBanner writes the endpoint and the funded accounts with their keys.
func printBanner(w io.Writer, rpcURL string, n *params.NetworkConfig, accs []wallet.Account, balance *big.Int) {
	fmt.Fprintf(w, "Started HTTP and WebSocket JSON-RPC server at %s\n\n", rpcURL)
	fmt.Fprintln(w, "Accounts")
	fmt.Fprintln(w, "========")

	if wallet.NormalizeMnemonic(n.Accounts.Mnemonic) == params.DefaultMnemonic && n.Accounts.Passphrase == "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: These accounts, and their private keys, are publicly known.")
		fmt.Fprintln(w, "Any funds sent to them on Mainnet or any other live network WILL BE LOST.")
	}
	fmt.Fprintln(w)

	for _, a := range accs {
		fmt.Fprintf(w, "Account #%d: %s (%s ETH)\n", a.Index, a.Address.Hex(), formatEther(balance))
		fmt.Fprintf(w, "Private Key: %s\n\n", a.PrivateKeyHex())
	}
}
