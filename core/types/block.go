package types

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

// ------------------------------------------------------------
// Block Header
// ------------------------------------------------------------

// Header is the devnet block header. BaseFee stays nil before london.
type Header struct {
	ParentHash  common.Hash    `json:"parentHash"`
	Coinbase    common.Address `json:"miner"`
	StateRoot   common.Hash    `json:"stateRoot"`
	TxRoot      common.Hash    `json:"transactionsRoot"`
	ReceiptRoot common.Hash    `json:"receiptsRoot"`
	Difficulty  *big.Int       `json:"difficulty"`
	Number      uint64         `json:"number"`
	GasLimit    uint64         `json:"gasLimit"`
	GasUsed     uint64         `json:"gasUsed"`
	Time        uint64         `json:"timestamp"`
	BaseFee     *big.Int       `json:"baseFeePerGas,omitempty" rlp:"optional"`
}

// Hash is keccak256 over the RLP encoding of the header.
func (h *Header) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic("header rlp: " + err.Error())
	}
	return crypto.Keccak256Hash(data)
}

// Eth converts the header into a go-ethereum header carrying the fields the
// fee market needs.
func (h *Header) Eth() *gethtypes.Header {
	out := &gethtypes.Header{
		ParentHash:  h.ParentHash,
		UncleHash:   gethtypes.EmptyUncleHash,
		Coinbase:    h.Coinbase,
		Root:        h.StateRoot,
		TxHash:      h.TxRoot,
		ReceiptHash: h.ReceiptRoot,
		Difficulty:  new(big.Int),
		Number:      new(big.Int).SetUint64(h.Number),
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
	}
	if h.Difficulty != nil {
		out.Difficulty.Set(h.Difficulty)
	}
	if h.BaseFee != nil {
		out.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	return out
}

// ------------------------------------------------------------
// Block
// ------------------------------------------------------------

type Block struct {
	Header       *Header                  `json:"header"`
	Transactions []*gethtypes.Transaction `json:"transactions"`
}

func (b *Block) Hash() common.Hash { return b.Header.Hash() }
func (b *Block) Number() uint64    { return b.Header.Number }

// Transaction returns the transaction with the given hash and its index.
func (b *Block) Transaction(hash common.Hash) (*gethtypes.Transaction, int) {
	for i, tx := range b.Transactions {
		if tx.Hash() == hash {
			return tx, i
		}
	}
	return nil, -1
}

// storedBlock keeps transactions in their canonical binary encoding.
type storedBlock struct {
	Header       *Header         `json:"header"`
	Transactions []hexutil.Bytes `json:"transactions"`
}

func (b *Block) MarshalJSON() ([]byte, error) {
	sb := storedBlock{
		Header:       b.Header,
		Transactions: make([]hexutil.Bytes, 0, len(b.Transactions)),
	}
	for _, tx := range b.Transactions {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, err
		}
		sb.Transactions = append(sb.Transactions, raw)
	}
	return json.Marshal(sb)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var sb storedBlock
	if err := json.Unmarshal(data, &sb); err != nil {
		return err
	}
	b.Header = sb.Header
	b.Transactions = make([]*gethtypes.Transaction, 0, len(sb.Transactions))
	for _, raw := range sb.Transactions {
		tx := new(gethtypes.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return err
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return nil
}

// TxRoot computes the transactions trie root.
func TxRoot(txs []*gethtypes.Transaction) common.Hash {
	return gethtypes.DeriveSha(gethtypes.Transactions(txs), trie.NewStackTrie(nil))
}
