package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Changeset buffers account modifications so a whole block is written in one
// batch. It is not safe for concurrent use.
type Changeset struct {
	s     *State
	dirty map[common.Address]*Account
	order []common.Address
}

// NewChangeset starts an empty set of modifications on s.
func (s *State) NewChangeset() *Changeset {
	return &Changeset{
		s:     s,
		dirty: make(map[common.Address]*Account),
	}
}

// Account returns the buffered account, loading it on first access.
func (c *Changeset) Account(addr common.Address) (*Account, error) {
	if acc, ok := c.dirty[addr]; ok {
		return acc, nil
	}
	acc, err := c.s.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	c.dirty[addr] = acc
	c.order = append(c.order, addr)
	return acc, nil
}

func (c *Changeset) AddBalance(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	acc, err := c.Account(addr)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return nil
}

func (c *Changeset) SubBalance(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	acc, err := c.Account(addr)
	if err != nil {
		return err
	}
	if acc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	return nil
}

func (c *Changeset) IncreaseNonce(addr common.Address) error {
	acc, err := c.Account(addr)
	if err != nil {
		return err
	}
	acc.Nonce++
	return nil
}

// Len reports the number of touched accounts.
func (c *Changeset) Len() int { return len(c.order) }

// Commit writes all buffered accounts atomically.
func (c *Changeset) Commit() error {
	if len(c.order) == 0 {
		return nil
	}
	accs := make([]*Account, 0, len(c.order))
	for _, addr := range c.order {
		accs = append(accs, c.dirty[addr])
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.db.SaveAccounts(accs...)
}
