// Package state keeps account balances and nonces.
package state

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// State is a higher level wrapper around StateDB. Reads and writes are
// serialized so the RPC layer and the block producer can share it.
type State struct {
	mu sync.RWMutex
	db *StateDB
}

// NewState opens the StateDB at path (memory when empty) and wraps it.
func NewState(path string) (*State, error) {
	db, err := NewStateDB(path)
	if err != nil {
		return nil, err
	}
	return &State{db: db}, nil
}

func (s *State) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ------------------- READ ---------------------

// GetAccount returns a copy of the account at addr.
func (s *State) GetAccount(addr common.Address) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.GetAccount(addr)
}

func (s *State) GetBalance(addr common.Address) (*big.Int, error) {
	acc, err := s.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

func (s *State) GetNonce(addr common.Address) (uint64, error) {
	acc, err := s.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// Accounts returns every account that was ever written.
func (s *State) Accounts() ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Account
	err := s.db.ForEach(func(acc *Account) error {
		out = append(out, acc)
		return nil
	})
	return out, err
}

// ------------------- WRITE ---------------------

func (s *State) SetBalance(addr common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.db.GetAccount(addr)
	if err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	// copy so callers cannot mutate stored state through their pointer
	acc.Balance = new(big.Int).Set(amount)
	return s.db.SaveAccount(acc)
}

func (s *State) SetNonce(addr common.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.db.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Nonce = nonce
	return s.db.SaveAccount(acc)
}
