package rpc

import (
	"math/big"

	"github.com/Siasom1/devnet/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// ------------------------------------------------------------
// Wire objects
// ------------------------------------------------------------

type RPCHeader struct {
	Number           hexutil.Uint64       `json:"number"`
	Hash             common.Hash          `json:"hash"`
	ParentHash       common.Hash          `json:"parentHash"`
	Nonce            gethtypes.BlockNonce `json:"nonce"`
	MixHash          common.Hash          `json:"mixHash"`
	Sha3Uncles       common.Hash          `json:"sha3Uncles"`
	LogsBloom        gethtypes.Bloom      `json:"logsBloom"`
	TransactionsRoot common.Hash          `json:"transactionsRoot"`
	StateRoot        common.Hash          `json:"stateRoot"`
	ReceiptsRoot     common.Hash          `json:"receiptsRoot"`
	Miner            common.Address       `json:"miner"`
	Difficulty       *hexutil.Big         `json:"difficulty"`
	ExtraData        hexutil.Bytes        `json:"extraData"`
	GasLimit         hexutil.Uint64       `json:"gasLimit"`
	GasUsed          hexutil.Uint64       `json:"gasUsed"`
	Timestamp        hexutil.Uint64       `json:"timestamp"`
	BaseFeePerGas    *hexutil.Big         `json:"baseFeePerGas,omitempty"`
}

type RPCBlock struct {
	RPCHeader
	TotalDifficulty *hexutil.Big   `json:"totalDifficulty"`
	Size            hexutil.Uint64 `json:"size"`
	Transactions    []any          `json:"transactions"`
	Uncles          []common.Hash  `json:"uncles"`
}

type RPCTransaction struct {
	BlockHash            *common.Hash          `json:"blockHash"`
	BlockNumber          *hexutil.Big          `json:"blockNumber"`
	TransactionIndex     *hexutil.Uint64       `json:"transactionIndex"`
	Hash                 common.Hash           `json:"hash"`
	Type                 hexutil.Uint64        `json:"type"`
	From                 common.Address        `json:"from"`
	To                   *common.Address       `json:"to"`
	Nonce                hexutil.Uint64        `json:"nonce"`
	Gas                  hexutil.Uint64        `json:"gas"`
	GasPrice             *hexutil.Big          `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big          `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big          `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big          `json:"value"`
	Input                hexutil.Bytes         `json:"input"`
	AccessList           *gethtypes.AccessList `json:"accessList,omitempty"`
	ChainID              *hexutil.Big          `json:"chainId,omitempty"`
	V                    *hexutil.Big          `json:"v"`
	R                    *hexutil.Big          `json:"r"`
	S                    *hexutil.Big          `json:"s"`
	YParity              *hexutil.Uint64       `json:"yParity,omitempty"`
}

type RPCReceipt struct {
	TransactionHash   common.Hash      `json:"transactionHash"`
	TransactionIndex  hexutil.Uint64   `json:"transactionIndex"`
	BlockHash         common.Hash      `json:"blockHash"`
	BlockNumber       hexutil.Uint64   `json:"blockNumber"`
	From              common.Address   `json:"from"`
	To                *common.Address  `json:"to"`
	CumulativeGasUsed hexutil.Uint64   `json:"cumulativeGasUsed"`
	GasUsed           hexutil.Uint64   `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big     `json:"effectiveGasPrice"`
	ContractAddress   *common.Address  `json:"contractAddress"`
	Logs              []*gethtypes.Log `json:"logs"`
	LogsBloom         gethtypes.Bloom  `json:"logsBloom"`
	Type              hexutil.Uint64   `json:"type"`
	Status            hexutil.Uint64   `json:"status"`
}

// ------------------------------------------------------------
// Conversions
// ------------------------------------------------------------

func newRPCHeader(h *types.Header) RPCHeader {
	out := RPCHeader{
		Number:           hexutil.Uint64(h.Number),
		Hash:             h.Hash(),
		ParentHash:       h.ParentHash,
		Sha3Uncles:       gethtypes.EmptyUncleHash,
		TransactionsRoot: h.TxRoot,
		StateRoot:        h.StateRoot,
		ReceiptsRoot:     h.ReceiptRoot,
		Miner:            h.Coinbase,
		Difficulty:       (*hexutil.Big)(bigOrZero(h.Difficulty)),
		ExtraData:        hexutil.Bytes{},
		GasLimit:         hexutil.Uint64(h.GasLimit),
		GasUsed:          hexutil.Uint64(h.GasUsed),
		Timestamp:        hexutil.Uint64(h.Time),
	}
	if h.BaseFee != nil {
		out.BaseFeePerGas = (*hexutil.Big)(new(big.Int).Set(h.BaseFee))
	}
	return out
}

// newRPCBlock renders b with transaction hashes, or full transaction objects
// when fullTx is set.
func newRPCBlock(b *types.Block, fullTx bool, signer gethtypes.Signer) *RPCBlock {
	out := &RPCBlock{
		RPCHeader:    newRPCHeader(b.Header),
		Size:         hexutil.Uint64(blockSize(b)),
		Transactions: make([]any, 0, len(b.Transactions)),
		Uncles:       []common.Hash{},
	}
	// every pre-merge block carries the same difficulty
	td := new(big.Int).Mul(bigOrZero(b.Header.Difficulty), new(big.Int).SetUint64(b.Number()+1))
	out.TotalDifficulty = (*hexutil.Big)(td)

	hash := b.Hash()
	for i, tx := range b.Transactions {
		if !fullTx {
			out.Transactions = append(out.Transactions, tx.Hash())
			continue
		}
		out.Transactions = append(out.Transactions,
			newRPCTransaction(tx, signer, hash, b.Number(), uint64(i), b.Header.BaseFee))
	}
	return out
}

func blockSize(b *types.Block) uint64 {
	enc, err := rlp.EncodeToBytes(b.Header)
	if err != nil {
		return 0
	}
	size := uint64(len(enc))
	for _, tx := range b.Transactions {
		size += tx.Size()
	}
	return size
}

// newRPCTransaction renders tx. A zero blockHash marks a pending transaction.
func newRPCTransaction(tx *gethtypes.Transaction, signer gethtypes.Signer, blockHash common.Hash, number, index uint64, baseFee *big.Int) *RPCTransaction {
	from, _ := gethtypes.Sender(signer, tx)
	v, r, s := tx.RawSignatureValues()

	out := &RPCTransaction{
		Hash:     tx.Hash(),
		Type:     hexutil.Uint64(tx.Type()),
		From:     from,
		To:       tx.To(),
		Nonce:    hexutil.Uint64(tx.Nonce()),
		Gas:      hexutil.Uint64(tx.Gas()),
		GasPrice: (*hexutil.Big)(tx.GasPrice()),
		Value:    (*hexutil.Big)(tx.Value()),
		Input:    hexutil.Bytes(tx.Data()),
		V:        (*hexutil.Big)(v),
		R:        (*hexutil.Big)(r),
		S:        (*hexutil.Big)(s),
	}
	if blockHash != (common.Hash{}) {
		out.BlockHash = &blockHash
		out.BlockNumber = (*hexutil.Big)(new(big.Int).SetUint64(number))
		idx := hexutil.Uint64(index)
		out.TransactionIndex = &idx
	}

	if tx.Type() != gethtypes.LegacyTxType {
		al := tx.AccessList()
		out.AccessList = &al
		out.ChainID = (*hexutil.Big)(tx.ChainId())
		yparity := hexutil.Uint64(v.Sign())
		out.YParity = &yparity
	} else if tx.Protected() {
		out.ChainID = (*hexutil.Big)(tx.ChainId())
	}

	if tx.Type() == gethtypes.DynamicFeeTxType {
		out.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
		out.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
		// mined: the price actually paid; pending: the cap
		if out.BlockHash != nil && baseFee != nil {
			tip, err := tx.EffectiveGasTip(baseFee)
			if err == nil {
				out.GasPrice = (*hexutil.Big)(tip.Add(tip, baseFee))
			}
		}
	}
	return out
}

func newRPCReceipt(r *types.Receipt) *RPCReceipt {
	return &RPCReceipt{
		TransactionHash:   r.TxHash,
		TransactionIndex:  hexutil.Uint64(r.TransactionIndex),
		BlockHash:         r.BlockHash,
		BlockNumber:       hexutil.Uint64(r.BlockNumber),
		From:              r.From,
		To:                r.To,
		CumulativeGasUsed: hexutil.Uint64(r.CumulativeGasUsed),
		GasUsed:           hexutil.Uint64(r.GasUsed),
		EffectiveGasPrice: (*hexutil.Big)(bigOrZero(r.EffectiveGasPrice)),
		Logs:              []*gethtypes.Log{},
		Type:              hexutil.Uint64(r.Type),
		Status:            hexutil.Uint64(r.Status),
	}
}

func bigOrZero(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}
