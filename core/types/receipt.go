package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
)

const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

type Receipt struct {
	TxHash           common.Hash `json:"transactionHash"`
	BlockHash        common.Hash `json:"blockHash"`
	BlockNumber      uint64      `json:"blockNumber"`
	TransactionIndex uint64      `json:"transactionIndex"`

	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`

	Type              uint8    `json:"type"`
	GasUsed           uint64   `json:"gasUsed"`
	CumulativeGasUsed uint64   `json:"cumulativeGasUsed"`
	EffectiveGasPrice *big.Int `json:"effectiveGasPrice"`
	Status            uint64   `json:"status"`
}

// ReceiptRoot computes the receipts trie root. Value transfers emit no logs.
func ReceiptRoot(receipts []*Receipt) common.Hash {
	list := make(gethtypes.Receipts, 0, len(receipts))
	for _, r := range receipts {
		list = append(list, &gethtypes.Receipt{
			Type:              r.Type,
			Status:            r.Status,
			CumulativeGasUsed: r.CumulativeGasUsed,
			Logs:              []*gethtypes.Log{},
		})
	}
	return gethtypes.DeriveSha(list, trie.NewStackTrie(nil))
}
