package producer

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Siasom1/devnet/core/blockchain"
	"github.com/Siasom1/devnet/core/types"
	"github.com/Siasom1/devnet/events"
	"github.com/Siasom1/devnet/log"
	"github.com/Siasom1/devnet/metrics"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ErrNonceTooHigh rejects nonce gaps while automining, since such a
// transaction could never be mined right away.
var ErrNonceTooHigh = errors.New("nonce too high")

// ErrTimestampTooLow rejects an explicit block timestamp that does not move
// time forward.
var ErrTimestampTooLow = errors.New("timestamp must be greater than the previous block's")

// Config selects the mining mode. Both modes may be on at once.
type Config struct {
	Automine bool
	Interval time.Duration
	// Verbose logs every mined block and transaction.
	Verbose bool
}

type BlockProducer struct {
	mu sync.Mutex // serializes block building

	chain   *blockchain.Blockchain
	events  *events.EventBus
	logger  log.Logger
	metrics *metrics.Metrics

	automine atomic.Bool
	interval time.Duration
	verbose  bool

	started  atomic.Bool
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

func NewBlockProducer(chain *blockchain.Blockchain, bus *events.EventBus, logger log.Logger, m *metrics.Metrics, cfg Config) *BlockProducer {
	if logger == nil {
		logger = log.NewNop()
	}
	bp := &BlockProducer{
		chain:    chain,
		events:   bus,
		logger:   logger,
		metrics:  m,
		interval: cfg.Interval,
		verbose:  cfg.Verbose,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	bp.automine.Store(cfg.Automine)
	return bp
}

// Start launches interval mining when an interval is configured.
func (bp *BlockProducer) Start() {
	if !bp.started.CompareAndSwap(false, true) {
		return
	}
	bp.logger.Info("Starting block producer",
		log.Bool("automine", bp.Automine()),
		log.Duration("interval", bp.interval),
	)

	if bp.interval <= 0 {
		close(bp.done)
		return
	}

	go func() {
		defer close(bp.done)
		ticker := time.NewTicker(bp.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := bp.Mine(); err != nil {
					bp.logger.Error("Interval mining failed", log.Err(err))
				}
			case <-bp.quit:
				return
			}
		}
	}()
}

// Stop ends interval mining and waits for the loop to exit.
func (bp *BlockProducer) Stop() {
	bp.stopOnce.Do(func() {
		bp.logger.Info("Stopping block producer")
		close(bp.quit)
	})
	if bp.started.Load() {
		<-bp.done
	}
}

func (bp *BlockProducer) Automine() bool { return bp.automine.Load() }

func (bp *BlockProducer) SetAutomine(enabled bool) {
	bp.automine.Store(enabled)
	bp.logger.Info("Automine changed", log.Bool("automine", enabled))
}

// ---------------------------------------------------------
// Submitting transactions
// ---------------------------------------------------------

// SubmitTx validates tx, queues it and, with automine on, mines it into a new
// block before returning.
func (bp *BlockProducer) SubmitTx(tx *gethtypes.Transaction) (common.Hash, error) {
	from, err := bp.chain.ValidateTx(tx)
	if err != nil {
		return common.Hash{}, err
	}

	if bp.Automine() {
		stateNonce, err := bp.chain.State.GetNonce(from)
		if err != nil {
			return common.Hash{}, err
		}
		expected := bp.chain.TxPool.PendingNonce(from, stateNonce)
		if tx.Nonce() > expected {
			return common.Hash{}, fmt.Errorf("%w: expected nonce to be %d but got %d; transactions can't be queued when automining",
				ErrNonceTooHigh, expected, tx.Nonce())
		}
	}

	if err := bp.chain.TxPool.Add(tx, from); err != nil {
		return common.Hash{}, err
	}
	bp.metrics.SetPoolSize(bp.chain.TxPool.Len())
	if bp.events != nil {
		bp.events.PublishTx(events.TxEvent{Tx: tx, From: from})
	}

	if bp.Automine() {
		if _, err := bp.Mine(); err != nil {
			return tx.Hash(), fmt.Errorf("automine: %w", err)
		}
	}
	return tx.Hash(), nil
}

// ---------------------------------------------------------
// Produce a new block
// ---------------------------------------------------------

// Mine builds, stores and publishes the next block from the pending
// transactions. With nothing pending an empty block is mined.
func (bp *BlockProducer) Mine() (*types.Block, error) {
	return bp.mine(0)
}

// MineAt is Mine with an explicit block timestamp.
func (bp *BlockProducer) MineAt(timestamp uint64) (*types.Block, error) {
	if timestamp == 0 {
		return nil, ErrTimestampTooLow
	}
	return bp.mine(timestamp)
}

// WithStateLock runs fn while no block is being built, so direct state
// writes cannot interleave with a block's read-modify-commit.
func (bp *BlockProducer) WithStateLock(fn func() error) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return fn()
}

func (bp *BlockProducer) mine(timestamp uint64) (*types.Block, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	chain := bp.chain
	network := chain.Network()
	head := chain.Head()

	number := head.Number() + 1
	switch {
	case timestamp == 0:
		timestamp = uint64(bp.now().Unix())
		if timestamp <= head.Header.Time {
			timestamp = head.Header.Time + 1
		}
	case timestamp <= head.Header.Time:
		return nil, fmt.Errorf("%w: %d <= %d", ErrTimestampTooLow, timestamp, head.Header.Time)
	}

	header := &types.Header{
		ParentHash: head.Hash(),
		Coinbase:   network.Coinbase,
		Difficulty: big.NewInt(1),
		Number:     number,
		GasLimit:   network.BlockGasLimit,
		Time:       timestamp,
		BaseFee:    chain.NextBaseFee(),
	}
	if network.IsMerge() {
		header.Difficulty = new(big.Int)
	}

	signer := chain.Signer(number, timestamp)
	rules := chain.Rules(number, timestamp)
	cs := chain.State.NewChangeset()

	var (
		included []*gethtypes.Transaction
		receipts []*types.Receipt
		dropped  []common.Hash
	)

	// ---------------------------------------------------------
	// 1. PROCESS PENDING TRANSACTIONS
	// ---------------------------------------------------------
	for _, tx := range chain.TxPool.Pending() {
		from, err := types.Sender(signer, tx)
		if err != nil {
			bp.logger.Warn("Dropping tx with invalid signature", log.Stringer("tx", tx.Hash()), log.Err(err))
			dropped = append(dropped, tx.Hash())
			continue
		}

		acc, err := cs.Account(from)
		if err != nil {
			return nil, err
		}
		switch {
		case tx.Nonce() < acc.Nonce:
			dropped = append(dropped, tx.Hash())
			continue
		case tx.Nonce() > acc.Nonce:
			// gap: wait for the missing nonce
			continue
		}

		if tx.Gas() > header.GasLimit-header.GasUsed {
			continue
		}

		tip, err := tx.EffectiveGasTip(header.BaseFee)
		if err != nil {
			// fee cap below the current base fee, may fit a later block
			continue
		}
		price := new(big.Int).Set(tip)
		if header.BaseFee != nil {
			price.Add(price, header.BaseFee)
		}

		gasUsed, err := types.IntrinsicGas(tx, rules)
		if err != nil || gasUsed > tx.Gas() {
			dropped = append(dropped, tx.Hash())
			continue
		}

		if acc.Balance.Cmp(tx.Cost()) < 0 {
			bp.logger.Warn("Dropping tx: insufficient funds",
				log.Stringer("tx", tx.Hash()),
				log.Stringer("from", from),
			)
			dropped = append(dropped, tx.Hash())
			continue
		}

		fee := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), price)
		if err := cs.SubBalance(from, new(big.Int).Add(fee, tx.Value())); err != nil {
			return nil, err
		}
		if err := cs.AddBalance(*tx.To(), tx.Value()); err != nil {
			return nil, err
		}
		// base fee is burned, the tip goes to the coinbase
		if reward := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), tip); reward.Sign() > 0 {
			if err := cs.AddBalance(header.Coinbase, reward); err != nil {
				return nil, err
			}
		}
		if err := cs.IncreaseNonce(from); err != nil {
			return nil, err
		}

		header.GasUsed += gasUsed
		receipts = append(receipts, &types.Receipt{
			TxHash:            tx.Hash(),
			BlockNumber:       number,
			TransactionIndex:  uint64(len(included)),
			From:              from,
			To:                tx.To(),
			Type:              tx.Type(),
			GasUsed:           gasUsed,
			CumulativeGasUsed: header.GasUsed,
			EffectiveGasPrice: price,
			Status:            types.ReceiptStatusSuccessful,
		})
		included = append(included, tx)
	}

	header.TxRoot = types.TxRoot(included)
	header.ReceiptRoot = types.ReceiptRoot(receipts)
	block := &types.Block{Header: header, Transactions: included}
	if block.Transactions == nil {
		block.Transactions = []*gethtypes.Transaction{}
	}

	hash := block.Hash()
	for _, r := range receipts {
		r.BlockHash = hash
	}

	// ---------------------------------------------------------
	// 2. COMMIT STATE AND SAVE NEW BLOCK
	// ---------------------------------------------------------
	if err := cs.Commit(); err != nil {
		return nil, fmt.Errorf("commit state for block %d: %w", number, err)
	}
	if err := chain.SetHead(block, receipts); err != nil {
		return nil, fmt.Errorf("save block %d: %w", number, err)
	}

	for _, tx := range included {
		chain.TxPool.Remove(tx.Hash())
	}
	for _, h := range dropped {
		chain.TxPool.Remove(h)
	}

	// ---------------------------------------------------------
	// 3. PUBLISH BLOCK EVENT
	// ---------------------------------------------------------
	if bp.events != nil {
		bp.events.PublishBlock(block)
	}
	bp.metrics.BlockMined(number, len(included), header.GasUsed)
	bp.metrics.SetPoolSize(chain.TxPool.Len())

	if bp.verbose {
		bp.logger.Info("Mined block",
			log.Uint64("number", number),
			log.Stringer("hash", hash),
			log.Int("txs", len(included)),
			log.Uint64("gas_used", header.GasUsed),
		)
		for _, r := range receipts {
			bp.logger.Info("Transaction mined",
				log.Stringer("tx", r.TxHash),
				log.Stringer("from", r.From),
				log.Stringer("to", r.To),
				log.Uint64("gas_used", r.GasUsed),
			)
		}
	}
	return block, nil
}
