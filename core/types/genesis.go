package types

import (
	"math/big"

	"github.com/Siasom1/devnet/params"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// NewGenesisBlock builds block #0 for a network. Account funding lives in the
// state store, not in the block itself.
func NewGenesisBlock(n *params.NetworkConfig, timestamp uint64) *Block {
	difficulty := big.NewInt(1)
	if n.IsMerge() {
		difficulty = new(big.Int)
	}

	header := &Header{
		Coinbase:    n.Coinbase,
		TxRoot:      gethtypes.EmptyTxsHash,
		ReceiptRoot: gethtypes.EmptyReceiptsHash,
		Difficulty:  difficulty,
		Number:      0,
		GasLimit:    n.BlockGasLimit,
		Time:        timestamp,
		BaseFee:     n.InitialBaseFee(),
	}

	return &Block{
		Header:       header,
		Transactions: []*gethtypes.Transaction{},
	}
}
