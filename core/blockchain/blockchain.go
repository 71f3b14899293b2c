package blockchain

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Siasom1/devnet/core/txpool"
	"github.com/Siasom1/devnet/core/types"
	"github.com/Siasom1/devnet/log"
	"github.com/Siasom1/devnet/params"
	"github.com/Siasom1/devnet/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Transaction validation errors.
var (
	ErrTxTypeNotSupported = errors.New("transaction type not supported")
	ErrNonceTooLow        = errors.New("nonce too low")
	ErrGasLimit           = errors.New("exceeds block gas limit")
	ErrIntrinsicGas       = errors.New("intrinsic gas too low")
	ErrFeeCapTooLow       = errors.New("max fee per gas less than block base fee")
	ErrTipAboveFeeCap     = errors.New("max priority fee per gas higher than max fee per gas")
	ErrInsufficientFunds  = errors.New("insufficient funds for gas * price + value")
)

// --------------------------------------------------------
// Blockchain struct
// --------------------------------------------------------

type Blockchain struct {
	mu sync.RWMutex

	db       *leveldb.DB
	network  *params.NetworkConfig
	chainCfg *gethparams.ChainConfig
	log      log.Logger

	head   *types.Block
	State  *state.State
	TxPool *txpool.TxPool
}

// --------------------------------------------------------
// Constructor
// --------------------------------------------------------

// NewBlockchain opens (or creates) the chain described by cfg. On first start
// the genesis block is written and every Alloc account receives
// accountsBalance.
func NewBlockchain(cfg Config) (*Blockchain, error) {
	if cfg.Network == nil {
		return nil, errors.New("blockchain: network config is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	chainCfg, err := cfg.Network.ChainConfig()
	if err != nil {
		return nil, err
	}

	bc := &Blockchain{
		network:  cfg.Network.Clone(),
		chainCfg: chainCfg,
		log:      cfg.Logger,
		TxPool:   txpool.NewTxPool(),
	}

	statePath := ""
	if cfg.DataDir != "" {
		chainPath := filepath.Join(cfg.DataDir, "chaindata")
		if err := os.MkdirAll(chainPath, 0o755); err != nil {
			return nil, err
		}
		statePath = filepath.Join(cfg.DataDir, "state")
		bc.db, err = leveldb.OpenFile(chainPath, nil)
	} else {
		bc.db, err = leveldb.Open(storage.NewMemStorage(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open chain db: %w", err)
	}

	st, err := state.NewState(statePath)
	if err != nil {
		bc.db.Close()
		return nil, fmt.Errorf("open state db: %w", err)
	}
	bc.State = st

	head, err := bc.loadHead()
	if err != nil {
		bc.Close()
		return nil, err
	}
	if head != nil {
		bc.head = head
		bc.log.Info("Loaded existing chain",
			log.Uint64("head", head.Number()),
			log.Stringer("hash", head.Hash()),
		)
		return bc, nil
	}

	if err := bc.writeGenesis(cfg.Alloc); err != nil {
		bc.Close()
		return nil, err
	}
	return bc, nil
}

func (bc *Blockchain) writeGenesis(alloc []common.Address) error {
	balance, err := bc.network.AccountsBalanceWei()
	if err != nil {
		return err
	}

	cs := bc.State.NewChangeset()
	for _, addr := range alloc {
		if err := cs.AddBalance(addr, balance); err != nil {
			return fmt.Errorf("fund %s: %w", addr.Hex(), err)
		}
	}
	if err := cs.Commit(); err != nil {
		return fmt.Errorf("commit genesis alloc: %w", err)
	}

	genesis := types.NewGenesisBlock(bc.network, uint64(time.Now().Unix()))
	if err := bc.writeBlock(genesis, nil); err != nil {
		return err
	}
	bc.head = genesis

	bc.log.Info("Created genesis block",
		log.Stringer("hash", genesis.Hash()),
		log.Int("funded_accounts", len(alloc)),
		log.String("hardfork", bc.network.Hardfork),
	)
	return nil
}

func (bc *Blockchain) Close() error {
	var errs []error
	if bc.State != nil {
		errs = append(errs, bc.State.Close())
	}
	if bc.db != nil {
		errs = append(errs, bc.db.Close())
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------
// Network
// --------------------------------------------------------

// NetworkID is the chain id, which net_version reports as well.
func (bc *Blockchain) NetworkID() uint64 { return bc.network.ChainID }

func (bc *Blockchain) Network() *params.NetworkConfig { return bc.network.Clone() }

func (bc *Blockchain) ChainConfig() *gethparams.ChainConfig { return bc.chainCfg }

// --------------------------------------------------------
// Head helpers
// --------------------------------------------------------

func (bc *Blockchain) Head() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.head
}

// SetHead persists block with its receipts and makes it the new head. The
// block must extend the current head.
func (bc *Blockchain) SetHead(block *types.Block, receipts []*types.Receipt) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.head != nil {
		if block.Number() != bc.head.Number()+1 {
			return fmt.Errorf("block %d does not extend head %d", block.Number(), bc.head.Number())
		}
		if block.Header.ParentHash != bc.head.Hash() {
			return fmt.Errorf("block %d parent %s is not head %s",
				block.Number(), block.Header.ParentHash.Hex(), bc.head.Hash().Hex())
		}
	}
	if err := bc.writeBlock(block, receipts); err != nil {
		return err
	}
	bc.head = block
	return nil
}

// --------------------------------------------------------
// Fork rules for the pending block
// --------------------------------------------------------

func (bc *Blockchain) pendingNumber() *big.Int {
	return new(big.Int).SetUint64(bc.Head().Number() + 1)
}

// Signer returns the transaction signer for a block at number/time.
func (bc *Blockchain) Signer(number, timestamp uint64) gethtypes.Signer {
	return gethtypes.MakeSigner(bc.chainCfg, new(big.Int).SetUint64(number), timestamp)
}

// PendingSigner is the signer the next block is validated with.
func (bc *Blockchain) PendingSigner() gethtypes.Signer {
	return bc.Signer(bc.pendingNumber().Uint64(), uint64(time.Now().Unix()))
}

func (bc *Blockchain) Rules(number, timestamp uint64) gethparams.Rules {
	return bc.chainCfg.Rules(new(big.Int).SetUint64(number), bc.network.IsMerge(), timestamp)
}

// NextBaseFee returns the base fee of the next block, or nil before london.
func (bc *Blockchain) NextBaseFee() *big.Int {
	if !bc.network.IsLondon() {
		return nil
	}
	return BaseFeeAfter(bc.chainCfg, bc.Head().Header)
}

// BaseFeeAfter computes the EIP-1559 base fee of the child of parent.
func BaseFeeAfter(cfg *gethparams.ChainConfig, parent *types.Header) *big.Int {
	if parent.BaseFee == nil {
		return new(big.Int).SetUint64(gethparams.InitialBaseFee)
	}
	return eip1559.CalcBaseFee(cfg, parent.Eth())
}

// --------------------------------------------------------
// Transaction validation
// --------------------------------------------------------

// ValidateTx checks tx against the pending block's rules and the current
// state, and returns its sender.
func (bc *Blockchain) ValidateTx(tx *gethtypes.Transaction) (common.Address, error) {
	number := bc.pendingNumber().Uint64()
	now := uint64(time.Now().Unix())
	rules := bc.Rules(number, now)

	switch tx.Type() {
	case gethtypes.LegacyTxType:
	case gethtypes.AccessListTxType:
		if !rules.IsBerlin {
			return common.Address{}, fmt.Errorf("%w: access list transactions require berlin", ErrTxTypeNotSupported)
		}
	case gethtypes.DynamicFeeTxType:
		if !rules.IsLondon {
			return common.Address{}, fmt.Errorf("%w: dynamic fee transactions require london", ErrTxTypeNotSupported)
		}
	default:
		return common.Address{}, fmt.Errorf("%w: type %d", ErrTxTypeNotSupported, tx.Type())
	}

	if tx.To() == nil {
		return common.Address{}, types.ErrContractCode
	}

	from, err := types.Sender(bc.Signer(number, now), tx)
	if err != nil {
		return common.Address{}, err
	}

	if tx.Gas() > bc.network.BlockGasLimit {
		return from, fmt.Errorf("%w: gas %d, limit %d", ErrGasLimit, tx.Gas(), bc.network.BlockGasLimit)
	}
	intrinsic, err := types.IntrinsicGas(tx, rules)
	if err != nil {
		return from, err
	}
	if tx.Gas() < intrinsic {
		return from, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, tx.Gas(), intrinsic)
	}

	if tx.GasTipCapIntCmp(tx.GasFeeCap()) > 0 {
		return from, fmt.Errorf("%w: tip %s, cap %s", ErrTipAboveFeeCap, tx.GasTipCap(), tx.GasFeeCap())
	}
	if baseFee := bc.NextBaseFee(); baseFee != nil && tx.GasFeeCapIntCmp(baseFee) < 0 {
		return from, fmt.Errorf("%w: maxFeePerGas %s, baseFee %s", ErrFeeCapTooLow, tx.GasFeeCap(), baseFee)
	}

	acc, err := bc.State.GetAccount(from)
	if err != nil {
		return from, err
	}
	if tx.Nonce() < acc.Nonce {
		return from, fmt.Errorf("%w: address %s, tx %d, state %d", ErrNonceTooLow, from.Hex(), tx.Nonce(), acc.Nonce)
	}
	if acc.Balance.Cmp(tx.Cost()) < 0 {
		return from, fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, from.Hex(), acc.Balance, tx.Cost())
	}
	return from, nil
}
