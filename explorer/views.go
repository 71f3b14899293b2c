package explorer

import (
	"math/big"

	"github.com/Siasom1/devnet/core/types"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Explorer payloads use decimal numbers and wei strings rather than the
// hex quantities of JSON-RPC.

type blockView struct {
	Number       uint64         `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    uint64         `json:"timestamp"`
	Miner        common.Address `json:"miner"`
	GasLimit     uint64         `json:"gasLimit"`
	GasUsed      uint64         `json:"gasUsed"`
	BaseFee      string         `json:"baseFeePerGas,omitempty"`
	TxCount      int            `json:"txCount"`
	Transactions []common.Hash  `json:"transactions"`
}

type txView struct {
	Hash        common.Hash     `json:"hash"`
	BlockNumber *uint64         `json:"blockNumber,omitempty"`
	BlockHash   *common.Hash    `json:"blockHash,omitempty"`
	Index       *int            `json:"index,omitempty"`
	Type        uint8           `json:"type"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Nonce       uint64          `json:"nonce"`
	Value       string          `json:"value"`
	Gas         uint64          `json:"gas"`
	GasPrice    string          `json:"gasPrice"`
	Receipt     *receiptView    `json:"receipt,omitempty"`
}

type receiptView struct {
	Status            uint64 `json:"status"`
	GasUsed           uint64 `json:"gasUsed"`
	CumulativeGasUsed uint64 `json:"cumulativeGasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
}

type accountView struct {
	Address common.Address `json:"address"`
	Balance string         `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

func newBlockView(b *types.Block) blockView {
	out := blockView{
		Number:       b.Number(),
		Hash:         b.Hash(),
		ParentHash:   b.Header.ParentHash,
		Timestamp:    b.Header.Time,
		Miner:        b.Header.Coinbase,
		GasLimit:     b.Header.GasLimit,
		GasUsed:      b.Header.GasUsed,
		TxCount:      len(b.Transactions),
		Transactions: make([]common.Hash, 0, len(b.Transactions)),
	}
	if b.Header.BaseFee != nil {
		out.BaseFee = b.Header.BaseFee.String()
	}
	for _, tx := range b.Transactions {
		out.Transactions = append(out.Transactions, tx.Hash())
	}
	return out
}

func newTxView(tx *gethtypes.Transaction, from common.Address) txView {
	return txView{
		Hash:     tx.Hash(),
		Type:     tx.Type(),
		From:     from,
		To:       tx.To(),
		Nonce:    tx.Nonce(),
		Value:    tx.Value().String(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice().String(),
	}
}

// withBlock places v at index idx of block b.
func (v txView) withBlock(b *types.Block, idx int) txView {
	number, hash := b.Number(), b.Hash()
	v.BlockNumber = &number
	v.BlockHash = &hash
	v.Index = &idx
	return v
}

func newReceiptView(r *types.Receipt) *receiptView {
	price := r.EffectiveGasPrice
	if price == nil {
		price = new(big.Int)
	}
	return &receiptView{
		Status:            r.Status,
		GasUsed:           r.GasUsed,
		CumulativeGasUsed: r.CumulativeGasUsed,
		EffectiveGasPrice: price.String(),
	}
}
