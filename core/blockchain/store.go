package blockchain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Siasom1/devnet/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned for unknown blocks, receipts and transactions.
var ErrNotFound = errors.New("not found")

var (
	headKey         = []byte("head")
	blockPrefix     = []byte("b-") // b-<num> -> block json
	blockHashPrefix = []byte("H-") // H-<hash> -> num
	receiptsPrefix  = []byte("r-") // r-<num> -> receipts json
	txLookupPrefix  = []byte("t-") // t-<hash> -> TxLookup json
)

// TxLookup locates a mined transaction.
type TxLookup struct {
	BlockNumber uint64      `json:"blockNumber"`
	BlockHash   common.Hash `json:"blockHash"`
	Index       uint64      `json:"index"`
}

func encodeNumber(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func prefixed(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// --------------------------------------------------------
// Writes
// --------------------------------------------------------

// writeBlock stores block, its receipts and tx lookups and moves the head
// pointer, all in one batch.
func (bc *Blockchain) writeBlock(block *types.Block, receipts []*types.Receipt) error {
	num := block.Number()
	hash := block.Hash()

	blockData, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("encode block %d: %w", num, err)
	}
	if receipts == nil {
		receipts = []*types.Receipt{}
	}
	receiptData, err := json.Marshal(receipts)
	if err != nil {
		return fmt.Errorf("encode receipts %d: %w", num, err)
	}

	batch := new(leveldb.Batch)
	batch.Put(prefixed(blockPrefix, encodeNumber(num)), blockData)
	batch.Put(prefixed(blockHashPrefix, hash.Bytes()), encodeNumber(num))
	batch.Put(prefixed(receiptsPrefix, encodeNumber(num)), receiptData)
	for i, tx := range block.Transactions {
		lookup, err := json.Marshal(TxLookup{BlockNumber: num, BlockHash: hash, Index: uint64(i)})
		if err != nil {
			return err
		}
		batch.Put(prefixed(txLookupPrefix, tx.Hash().Bytes()), lookup)
	}
	batch.Put(headKey, encodeNumber(num))

	return bc.db.Write(batch, nil)
}

// --------------------------------------------------------
// Reads
// --------------------------------------------------------

func (bc *Blockchain) get(key []byte) ([]byte, error) {
	data, err := bc.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// loadHead returns the stored head block, or nil for a fresh store.
func (bc *Blockchain) loadHead() (*types.Block, error) {
	data, err := bc.get(headKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) != 8 {
		return nil, fmt.Errorf("corrupt head pointer (%d bytes)", len(data))
	}
	return bc.BlockByNumber(binary.BigEndian.Uint64(data))
}

func (bc *Blockchain) BlockByNumber(number uint64) (*types.Block, error) {
	data, err := bc.get(prefixed(blockPrefix, encodeNumber(number)))
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}
	var b types.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode block %d: %w", number, err)
	}
	return &b, nil
}

func (bc *Blockchain) BlockByHash(hash common.Hash) (*types.Block, error) {
	data, err := bc.get(prefixed(blockHashPrefix, hash.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", hash.Hex(), err)
	}
	return bc.BlockByNumber(binary.BigEndian.Uint64(data))
}

func (bc *Blockchain) Receipts(number uint64) ([]*types.Receipt, error) {
	data, err := bc.get(prefixed(receiptsPrefix, encodeNumber(number)))
	if err != nil {
		return nil, fmt.Errorf("receipts %d: %w", number, err)
	}
	var receipts []*types.Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("decode receipts %d: %w", number, err)
	}
	return receipts, nil
}

// FindTx returns where a mined transaction lives.
func (bc *Blockchain) FindTx(hash common.Hash) (*TxLookup, error) {
	data, err := bc.get(prefixed(txLookupPrefix, hash.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", hash.Hex(), err)
	}
	var l TxLookup
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Receipt returns the receipt of a mined transaction.
func (bc *Blockchain) Receipt(hash common.Hash) (*types.Receipt, error) {
	l, err := bc.FindTx(hash)
	if err != nil {
		return nil, err
	}
	receipts, err := bc.Receipts(l.BlockNumber)
	if err != nil {
		return nil, err
	}
	if l.Index >= uint64(len(receipts)) {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), ErrNotFound)
	}
	return receipts[l.Index], nil
}
