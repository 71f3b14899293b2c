package blockchain

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/Siasom1/devnet/core/types"
	"github.com/Siasom1/devnet/params"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestChain(t *testing.T, dataDir string, network *params.NetworkConfig) (*Blockchain, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	cfg := DefaultConfig(network, []common.Address{crypto.PubkeyToAddress(key.PublicKey)})
	cfg.DataDir = dataDir
	bc, err := NewBlockchain(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })
	return bc, key
}

func signTx(t *testing.T, bc *Blockchain, key *ecdsa.PrivateKey, inner gethtypes.TxData) *gethtypes.Transaction {
	t.Helper()
	tx, err := gethtypes.SignNewTx(key, bc.PendingSigner(), inner)
	require.NoError(t, err)
	return tx
}

func transfer(nonce uint64, gas uint64, feeCap, tip, value int64) *gethtypes.DynamicFeeTx {
	return &gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(feeCap),
		Gas:       gas,
		To:        &recipient,
		Value:     big.NewInt(value),
	}
}

func TestNewBlockchain_Genesis(t *testing.T) {
	network := params.DefaultNetworkConfig()
	bc, key := newTestChain(t, "", network)

	head := bc.Head()
	require.NotNil(t, head)
	assert.Equal(t, uint64(0), head.Number())
	assert.Equal(t, uint64(1), bc.NetworkID())

	bal, err := bc.State.GetBalance(crypto.PubkeyToAddress(key.PublicKey))
	require.NoError(t, err)
	want, err := network.AccountsBalanceWei()
	require.NoError(t, err)
	assert.Equal(t, want, bal)

	byHash, err := bc.BlockByHash(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), byHash.Hash())

	receipts, err := bc.Receipts(0)
	require.NoError(t, err)
	assert.Empty(t, receipts)

	_, err = bc.BlockByNumber(1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewBlockchain_Reopen(t *testing.T) {
	dir := t.TempDir()
	network := params.DefaultNetworkConfig()

	cfg := DefaultConfig(network, []common.Address{recipient})
	cfg.DataDir = dir
	bc, err := NewBlockchain(cfg)
	require.NoError(t, err)
	genesis := bc.Head().Hash()
	require.NoError(t, bc.State.SetBalance(recipient, big.NewInt(5)))
	require.NoError(t, bc.Close())

	bc, err = NewBlockchain(cfg)
	require.NoError(t, err)
	defer bc.Close()
	assert.Equal(t, genesis, bc.Head().Hash())

	// the existing state is kept, genesis funding is not applied twice
	bal, err := bc.State.GetBalance(recipient)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), bal)
}

func TestNewBlockchain_RequiresNetwork(t *testing.T) {
	_, err := NewBlockchain(Config{})
	require.Error(t, err)
}

func TestSetHead(t *testing.T) {
	bc, key := newTestChain(t, "", params.DefaultNetworkConfig())
	genesis := bc.Head()
	tx := signTx(t, bc, key, transfer(0, 21000, 10, 1, 1))

	block := &types.Block{
		Header: &types.Header{
			ParentHash: genesis.Hash(),
			Number:     1,
			Difficulty: big.NewInt(1),
			GasLimit:   genesis.Header.GasLimit,
			GasUsed:    21000,
			Time:       genesis.Header.Time + 1,
			BaseFee:    big.NewInt(0),
		},
		Transactions: []*gethtypes.Transaction{tx},
	}
	receipt := &types.Receipt{TxHash: tx.Hash(), BlockNumber: 1, GasUsed: 21000, Status: types.ReceiptStatusSuccessful}
	require.NoError(t, bc.SetHead(block, []*types.Receipt{receipt}))
	assert.Equal(t, block.Hash(), bc.Head().Hash())

	lookup, err := bc.FindTx(tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lookup.BlockNumber)
	assert.Equal(t, block.Hash(), lookup.BlockHash)
	assert.Equal(t, uint64(0), lookup.Index)

	got, err := bc.Receipt(tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), got.GasUsed)

	// a block that does not extend the head is refused
	require.Error(t, bc.SetHead(block, nil))
	orphan := &types.Block{Header: &types.Header{Number: 2, Difficulty: big.NewInt(1)}}
	require.Error(t, bc.SetHead(orphan, nil))

	_, err = bc.FindTx(common.Hash{1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNextBaseFee(t *testing.T) {
	bc, _ := newTestChain(t, "", params.DefaultNetworkConfig())
	assert.Equal(t, int64(0), bc.NextBaseFee().Int64(), "zero base fee stays zero")

	network := params.DefaultNetworkConfig()
	network.InitialBaseFeePerGas = 1_000_000_000
	bc, _ = newTestChain(t, "", network)
	// an empty genesis block lowers the base fee by 1/8
	assert.Equal(t, int64(875_000_000), bc.NextBaseFee().Int64())

	network.Hardfork = params.Berlin
	network.InitialBaseFeePerGas = 0
	bc, _ = newTestChain(t, "", network)
	assert.Nil(t, bc.NextBaseFee())
}

func TestValidateTx(t *testing.T) {
	bc, key := newTestChain(t, "", params.DefaultNetworkConfig())
	sender := crypto.PubkeyToAddress(key.PublicKey)

	from, err := bc.ValidateTx(signTx(t, bc, key, transfer(0, 21000, 0, 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, sender, from)

	_, err = bc.ValidateTx(signTx(t, bc, key, transfer(0, 20000, 0, 0, 1)))
	require.ErrorIs(t, err, ErrIntrinsicGas)

	_, err = bc.ValidateTx(signTx(t, bc, key, transfer(0, 40_000_000, 0, 0, 1)))
	require.ErrorIs(t, err, ErrGasLimit)

	_, err = bc.ValidateTx(signTx(t, bc, key, transfer(0, 21000, 1, 2, 1)))
	require.ErrorIs(t, err, ErrTipAboveFeeCap)

	huge := new(big.Int).Mul(big.NewInt(1e18), big.NewInt(1_000_000))
	inner := transfer(0, 21000, 0, 0, 0)
	inner.Value = huge
	_, err = bc.ValidateTx(signTx(t, bc, key, inner))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, bc.State.SetNonce(sender, 2))
	_, err = bc.ValidateTx(signTx(t, bc, key, transfer(1, 21000, 0, 0, 1)))
	require.ErrorIs(t, err, ErrNonceTooLow)

	create := transfer(2, 100000, 0, 0, 0)
	create.To = nil
	_, err = bc.ValidateTx(signTx(t, bc, key, create))
	require.ErrorIs(t, err, types.ErrContractCode)

	wrongChain := transfer(2, 21000, 0, 0, 1)
	wrongChain.ChainID = big.NewInt(5)
	other, err := gethtypes.SignNewTx(key, gethtypes.LatestSignerForChainID(big.NewInt(5)), wrongChain)
	require.NoError(t, err)
	_, err = bc.ValidateTx(other)
	require.ErrorIs(t, err, types.ErrInvalidSig)
}

func TestValidateTx_FeeCapBelowBaseFee(t *testing.T) {
	network := params.DefaultNetworkConfig()
	network.InitialBaseFeePerGas = 1_000_000_000
	bc, key := newTestChain(t, "", network)

	_, err := bc.ValidateTx(signTx(t, bc, key, transfer(0, 21000, 1, 0, 1)))
	require.ErrorIs(t, err, ErrFeeCapTooLow)

	_, err = bc.ValidateTx(signTx(t, bc, key, transfer(0, 21000, 2_000_000_000, 1, 1)))
	require.NoError(t, err)
}

func TestValidateTx_TypeGatedByHardfork(t *testing.T) {
	network := params.DefaultNetworkConfig()
	network.Hardfork = params.Berlin
	bc, key := newTestChain(t, "", network)

	tx, err := gethtypes.SignNewTx(key, gethtypes.LatestSignerForChainID(big.NewInt(1)), transfer(0, 21000, 1, 1, 1))
	require.NoError(t, err)
	_, err = bc.ValidateTx(tx)
	require.ErrorIs(t, err, ErrTxTypeNotSupported)

	legacy := signTx(t, bc, key, &gethtypes.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &recipient,
		Value:    big.NewInt(1),
	})
	_, err = bc.ValidateTx(legacy)
	require.NoError(t, err)
}
