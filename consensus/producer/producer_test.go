package producer

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/Siasom1/devnet/core/blockchain"
	"github.com/Siasom1/devnet/core/types"
	"github.com/Siasom1/devnet/events"
	"github.com/Siasom1/devnet/log"
	"github.com/Siasom1/devnet/params"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gwei = 1_000_000_000

var recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fixture struct {
	chain *blockchain.Blockchain
	bus   *events.EventBus
	bp    *BlockProducer
	key   *ecdsa.PrivateKey
	from  common.Address
}

func newFixture(t *testing.T, network *params.NetworkConfig, cfg Config) *fixture {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	chain, err := blockchain.NewBlockchain(blockchain.DefaultConfig(network, []common.Address{from}))
	require.NoError(t, err)
	t.Cleanup(func() { chain.Close() })

	bus := events.NewEventBus()
	return &fixture{
		chain: chain,
		bus:   bus,
		bp:    NewBlockProducer(chain, bus, log.NewNop(), nil, cfg),
		key:   key,
		from:  from,
	}
}

func (f *fixture) transfer(t *testing.T, nonce uint64, feeCap, tip, value int64) *gethtypes.Transaction {
	t.Helper()
	tx, err := gethtypes.SignNewTx(f.key, f.chain.PendingSigner(), &gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(feeCap),
		Gas:       21000,
		To:        &recipient,
		Value:     big.NewInt(value),
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) balance(t *testing.T, addr common.Address) *big.Int {
	t.Helper()
	bal, err := f.chain.State.GetBalance(addr)
	require.NoError(t, err)
	return bal
}

func TestSubmitTx_Automine(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{Automine: true})
	before := f.balance(t, f.from)

	blocks, unsub := f.bus.SubscribeBlocks()
	defer unsub()

	tx := f.transfer(t, 0, 0, 0, 1000)
	hash, err := f.bp.SubmitTx(tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), hash)

	head := f.chain.Head()
	require.Equal(t, uint64(1), head.Number())
	require.Len(t, head.Transactions, 1)
	assert.Equal(t, 0, f.chain.TxPool.Len())

	select {
	case b := <-blocks:
		assert.Equal(t, head.Hash(), b.Hash())
	case <-time.After(time.Second):
		t.Fatal("no block event")
	}

	receipt, err := f.chain.Receipt(tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	assert.Equal(t, head.Hash(), receipt.BlockHash)
	assert.Equal(t, f.from, receipt.From)
	assert.Equal(t, int64(0), receipt.EffectiveGasPrice.Int64())

	// zero base fee and zero tip: only the value moves
	assert.Equal(t, new(big.Int).Sub(before, big.NewInt(1000)), f.balance(t, f.from))
	assert.Equal(t, big.NewInt(1000), f.balance(t, recipient))

	nonce, err := f.chain.State.GetNonce(f.from)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
	assert.Equal(t, types.TxRoot(head.Transactions), head.Header.TxRoot)
}

func TestSubmitTx_FeesBurnedAndTipPaid(t *testing.T) {
	network := params.DefaultNetworkConfig()
	network.InitialBaseFeePerGas = gwei
	f := newFixture(t, network, Config{Automine: true})
	before := f.balance(t, f.from)

	tx := f.transfer(t, 0, 10*gwei, 2*gwei, 5)
	_, err := f.bp.SubmitTx(tx)
	require.NoError(t, err)

	head := f.chain.Head()
	baseFee := head.Header.BaseFee
	require.NotNil(t, baseFee)
	assert.Equal(t, int64(875_000_000), baseFee.Int64())

	price := new(big.Int).Add(baseFee, big.NewInt(2*gwei))
	paid := new(big.Int).Mul(price, big.NewInt(21000))
	paid.Add(paid, big.NewInt(5))
	assert.Equal(t, new(big.Int).Sub(before, paid), f.balance(t, f.from))

	tip := new(big.Int).Mul(big.NewInt(2*gwei), big.NewInt(21000))
	assert.Equal(t, tip, f.balance(t, network.Coinbase))

	receipt, err := f.chain.Receipt(tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, price, receipt.EffectiveGasPrice)
}

func TestSubmitTx_AutomineRejectsNonceGap(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{Automine: true})

	_, err := f.bp.SubmitTx(f.transfer(t, 1, 0, 0, 1))
	require.ErrorIs(t, err, ErrNonceTooHigh)
	assert.Equal(t, uint64(0), f.chain.Head().Number())
}

func TestMine_ManualMode(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{})
	require.False(t, f.bp.Automine())

	txs, unsub := f.bus.SubscribeTxs()
	defer unsub()

	tx0 := f.transfer(t, 0, 0, 0, 1)
	tx1 := f.transfer(t, 1, 0, 0, 2)
	gap := f.transfer(t, 3, 0, 0, 3)
	for _, tx := range []*gethtypes.Transaction{tx1, tx0, gap} {
		_, err := f.bp.SubmitTx(tx)
		require.NoError(t, err)
	}
	assert.Len(t, txs, 3)
	assert.Equal(t, 3, f.chain.TxPool.Len())
	assert.Equal(t, uint64(0), f.chain.Head().Number())

	block, err := f.bp.Mine()
	require.NoError(t, err)
	require.Len(t, block.Transactions, 2)
	assert.Equal(t, tx0.Hash(), block.Transactions[0].Hash())
	assert.Equal(t, tx1.Hash(), block.Transactions[1].Hash())
	assert.Equal(t, uint64(42000), block.Header.GasUsed)

	// the transaction behind the nonce gap waits in the pool
	assert.Equal(t, 1, f.chain.TxPool.Len())
	_, _, ok := f.chain.TxPool.Get(gap.Hash())
	assert.True(t, ok)

	receipts, err := f.chain.Receipts(block.Number())
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, uint64(21000), receipts[0].CumulativeGasUsed)
	assert.Equal(t, uint64(42000), receipts[1].CumulativeGasUsed)
	assert.Equal(t, uint64(1), receipts[1].TransactionIndex)
}

func TestMine_EmptyBlocksAdvanceTime(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{})
	fixed := time.Unix(1_000, 0)
	f.bp.now = func() time.Time { return fixed }

	first, err := f.bp.Mine()
	require.NoError(t, err)
	second, err := f.bp.Mine()
	require.NoError(t, err)

	assert.Equal(t, uint64(2), second.Number())
	assert.Equal(t, first.Hash(), second.Header.ParentHash)
	assert.Greater(t, second.Header.Time, first.Header.Time)
	assert.Empty(t, second.Transactions)
	assert.Equal(t, gethtypes.EmptyTxsHash, second.Header.TxRoot)
}

func TestSetAutomine(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{Automine: true})
	f.bp.SetAutomine(false)
	assert.False(t, f.bp.Automine())

	_, err := f.bp.SubmitTx(f.transfer(t, 0, 0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.chain.Head().Number())

	f.bp.SetAutomine(true)
	_, err = f.bp.SubmitTx(f.transfer(t, 1, 0, 0, 1))
	require.NoError(t, err)
	head := f.chain.Head()
	assert.Equal(t, uint64(1), head.Number())
	assert.Len(t, head.Transactions, 2)
}

func TestIntervalMining(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{Interval: 10 * time.Millisecond})
	f.bp.Start()
	require.Eventually(t, func() bool {
		return f.chain.Head().Number() >= 2
	}, 5*time.Second, 5*time.Millisecond)
	f.bp.Stop()
	f.bp.Stop()

	stopped := f.chain.Head().Number()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, f.chain.Head().Number())
}

func TestStop_WithoutStart(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{})
	done := make(chan struct{})
	go func() {
		f.bp.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}

func TestMineAt(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{})
	genesisTime := f.chain.Head().Header.Time

	block, err := f.bp.MineAt(genesisTime + 100)
	require.NoError(t, err)
	assert.Equal(t, genesisTime+100, block.Header.Time)

	_, err = f.bp.MineAt(genesisTime + 100)
	require.ErrorIs(t, err, ErrTimestampTooLow)
	_, err = f.bp.MineAt(0)
	require.ErrorIs(t, err, ErrTimestampTooLow)
}

func TestWithStateLock_ExcludesMining(t *testing.T) {
	f := newFixture(t, params.DefaultNetworkConfig(), Config{})
	_, err := f.bp.SubmitTx(f.transfer(t, 0, 10*gwei, gwei, 1))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	lockDone := make(chan error, 1)
	go func() {
		lockDone <- f.bp.WithStateLock(func() error {
			close(entered)
			<-release
			return f.chain.State.SetBalance(recipient, big.NewInt(500))
		})
	}()
	<-entered

	mined := make(chan error, 1)
	go func() {
		_, err := f.bp.Mine()
		mined <- err
	}()

	select {
	case <-mined:
		t.Fatal("block mined while the state lock was held")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-lockDone)
	require.NoError(t, <-mined)

	// the transfer builds on the balance set under the lock
	assert.Equal(t, big.NewInt(501), f.balance(t, recipient))
}
