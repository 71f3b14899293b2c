package state

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var accountPrefix = []byte("acct-")

// StateDB is the low-level LevelDB wrapper.
type StateDB struct {
	db *leveldb.DB
}

// NewStateDB opens the LevelDB at path. An empty path keeps the state in
// memory only.
func NewStateDB(path string) (*StateDB, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &StateDB{db: db}, nil
}

func (s *StateDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr.Bytes()...)
}

// SaveAccount stores acc under its address.
func (s *StateDB) SaveAccount(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	return s.db.Put(accountKey(acc.Address), data, nil)
}

// SaveAccounts stores accs in one atomic batch.
func (s *StateDB) SaveAccounts(accs ...*Account) error {
	batch := new(leveldb.Batch)
	for _, acc := range accs {
		data, err := json.Marshal(acc)
		if err != nil {
			return err
		}
		batch.Put(accountKey(acc.Address), data)
	}
	return s.db.Write(batch, nil)
}

// GetAccount loads an account, or returns a fresh empty one if it does not exist.
func (s *StateDB) GetAccount(addr common.Address) (*Account, error) {
	data, err := s.db.Get(accountKey(addr), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return NewAccount(addr), nil
	}
	if err != nil {
		return nil, err
	}

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return &acc, nil
}

// ForEach calls fn for every stored account in address order.
func (s *StateDB) ForEach(fn func(*Account) error) error {
	it := s.db.NewIterator(util.BytesPrefix(accountPrefix), nil)
	defer it.Release()

	for it.Next() {
		var acc Account
		if err := json.Unmarshal(it.Value(), &acc); err != nil {
			return err
		}
		if acc.Balance == nil {
			acc.Balance = big.NewInt(0)
		}
		if err := fn(&acc); err != nil {
			return err
		}
	}
	return it.Error()
}
