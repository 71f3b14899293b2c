package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethparams "github.com/ethereum/go-ethereum/params"
)

var (
	ErrEmptyRawTx   = errors.New("empty raw transaction")
	ErrInvalidSig   = errors.New("invalid transaction signature")
	ErrContractCode = errors.New("contract creation is not supported")
)

// DecodeRawTx decodes a 0x-prefixed signed transaction in its canonical
// binary encoding (legacy RLP or typed envelope).
func DecodeRawTx(raw string) (*gethtypes.Transaction, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0x" {
		return nil, ErrEmptyRawTx
	}
	data, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw tx hex: %w", err)
	}

	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode raw tx: %w", err)
	}
	return tx, nil
}

// IntrinsicGas is the gas charged before any execution: the base cost, the
// calldata cost and the access list cost under the given rules.
func IntrinsicGas(tx *gethtypes.Transaction, rules gethparams.Rules) (uint64, error) {
	return core.IntrinsicGas(
		tx.Data(),
		tx.AccessList(),
		tx.SetCodeAuthorizations(),
		tx.To() == nil,
		rules.IsHomestead,
		rules.IsIstanbul,
		rules.IsShanghai,
	)
}

// Sender recovers the signing address of tx.
func Sender(signer gethtypes.Signer, tx *gethtypes.Transaction) (common.Address, error) {
	from, err := gethtypes.Sender(signer, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}
	return from, nil
}
