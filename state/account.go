package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account is the state kept per address.
type Account struct {
	Address common.Address `json:"address"`
	Balance *big.Int       `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

// NewAccount returns an empty account.
func NewAccount(addr common.Address) *Account {
	return &Account{
		Address: addr,
		Balance: big.NewInt(0),
		Nonce:   0,
	}
}

// Copy returns an independent copy of the account.
func (a *Account) Copy() *Account {
	return &Account{
		Address: a.Address,
		Balance: new(big.Int).Set(a.Balance),
		Nonce:   a.Nonce,
	}
}
