package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/Siasom1/devnet/params"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTransfer(t *testing.T, nonce uint64, data []byte) (*gethtypes.Transaction, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x1234")
	signer := gethtypes.LatestSignerForChainID(big.NewInt(1))
	tx, err := gethtypes.SignNewTx(key, signer, &gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     nonce,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		Gas:       50_000,
		To:        &to,
		Value:     big.NewInt(1000),
		Data:      data,
	})
	require.NoError(t, err)
	return tx, crypto.PubkeyToAddress(key.PublicKey)
}

func TestGenesisBlock(t *testing.T) {
	n := params.DefaultNetworkConfig()
	g := NewGenesisBlock(n, 1700000000)

	assert.Equal(t, uint64(0), g.Number())
	assert.Equal(t, common.Hash{}, g.Header.ParentHash)
	assert.Equal(t, n.BlockGasLimit, g.Header.GasLimit)
	require.NotNil(t, g.Header.BaseFee, "london genesis carries a base fee")
	assert.Equal(t, int64(0), g.Header.BaseFee.Int64())
	assert.Equal(t, gethtypes.EmptyTxsHash, g.Header.TxRoot)
	assert.Empty(t, g.Transactions)

	// deterministic for a fixed timestamp
	assert.Equal(t, g.Hash(), NewGenesisBlock(n, 1700000000).Hash())
	assert.NotEqual(t, g.Hash(), NewGenesisBlock(n, 1700000001).Hash())

	n.Hardfork = params.Berlin
	assert.Nil(t, NewGenesisBlock(n, 0).Header.BaseFee)
}

func TestHeaderHash_PreLondonEncoding(t *testing.T) {
	h := &Header{Number: 5, Difficulty: big.NewInt(1)}
	withFee := &Header{Number: 5, Difficulty: big.NewInt(1), BaseFee: big.NewInt(0)}
	assert.NotEqual(t, h.Hash(), withFee.Hash())

	eth := withFee.Eth()
	assert.Equal(t, uint64(5), eth.Number.Uint64())
	assert.Equal(t, int64(0), eth.BaseFee.Int64())
}

func TestBlockJSONRoundTrip(t *testing.T) {
	tx, _ := signedTransfer(t, 0, nil)
	b := &Block{
		Header: &Header{
			Number:     1,
			Difficulty: big.NewInt(0),
			GasLimit:   30_000_000,
			GasUsed:    21_000,
			BaseFee:    big.NewInt(7),
			TxRoot:     TxRoot([]*gethtypes.Transaction{tx}),
		},
		Transactions: []*gethtypes.Transaction{tx},
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded Block
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b.Hash(), decoded.Hash())
	require.Len(t, decoded.Transactions, 1)
	assert.Equal(t, tx.Hash(), decoded.Transactions[0].Hash())

	found, idx := decoded.Transaction(tx.Hash())
	require.NotNil(t, found)
	assert.Equal(t, 0, idx)
	_, idx = decoded.Transaction(common.Hash{1})
	assert.Equal(t, -1, idx)
}

func TestTxRoot_Empty(t *testing.T) {
	assert.Equal(t, gethtypes.EmptyTxsHash, TxRoot(nil))
	assert.Equal(t, gethtypes.EmptyReceiptsHash, ReceiptRoot(nil))
}

func TestDecodeRawTx(t *testing.T) {
	tx, from := signedTransfer(t, 3, nil)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodeRawTx(hexutil.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), decoded.Hash())
	assert.Equal(t, uint64(3), decoded.Nonce())

	sender, err := Sender(gethtypes.LatestSignerForChainID(big.NewInt(1)), decoded)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	_, err = DecodeRawTx("0x")
	require.ErrorIs(t, err, ErrEmptyRawTx)
	_, err = DecodeRawTx("0xzz")
	require.Error(t, err)
	_, err = DecodeRawTx("0x02c0")
	require.Error(t, err)
}

func TestSender_WrongChain(t *testing.T) {
	tx, _ := signedTransfer(t, 0, nil)
	_, err := Sender(gethtypes.LatestSignerForChainID(big.NewInt(5)), tx)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestIntrinsicGas(t *testing.T) {
	cfg, err := params.DefaultNetworkConfig().ChainConfig()
	require.NoError(t, err)
	rules := cfg.Rules(big.NewInt(1), false, 0)

	plain, _ := signedTransfer(t, 0, nil)
	gas, err := IntrinsicGas(plain, rules)
	require.NoError(t, err)
	assert.Equal(t, uint64(21_000), gas)

	withData, _ := signedTransfer(t, 0, []byte{0, 1, 0, 2})
	gas, err = IntrinsicGas(withData, rules)
	require.NoError(t, err)
	assert.Equal(t, uint64(21_000+2*16+2*4), gas)

	frontier := params.DefaultNetworkConfig()
	frontier.Hardfork = params.Byzantium
	fcfg, err := frontier.ChainConfig()
	require.NoError(t, err)
	gas, err = IntrinsicGas(withData, fcfg.Rules(big.NewInt(1), false, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(21_000+2*68+2*4), gas)

	to := common.HexToAddress("0xbb")
	withList := gethtypes.NewTx(&gethtypes.AccessListTx{
		ChainID: big.NewInt(1),
		Gas:     30_000,
		To:      &to,
		AccessList: gethtypes.AccessList{
			{Address: to, StorageKeys: []common.Hash{{}}},
		},
	})
	gas, err = IntrinsicGas(withList, rules)
	require.NoError(t, err)
	assert.Equal(t, uint64(21_000+2400+1900), gas)
}
