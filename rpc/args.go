package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TransactionArgs is the transaction object of eth_call, eth_estimateGas and
// eth_sendTransaction.
type TransactionArgs struct {
	From                 *common.Address       `json:"from"`
	To                   *common.Address       `json:"to"`
	Gas                  *hexutil.Uint64       `json:"gas"`
	GasPrice             *hexutil.Big          `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big          `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big          `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big          `json:"value"`
	Nonce                *hexutil.Uint64       `json:"nonce"`
	Data                 *hexutil.Bytes        `json:"data"`
	Input                *hexutil.Bytes        `json:"input"`
	AccessList           *gethtypes.AccessList `json:"accessList"`
	ChainID              *hexutil.Big          `json:"chainId"`
}

func (a *TransactionArgs) data() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

func (a *TransactionArgs) value() *big.Int {
	if a.Value != nil {
		return a.Value.ToInt()
	}
	return new(big.Int)
}

func (a *TransactionArgs) validate() error {
	if a.Input != nil && a.Data != nil && !bytesEqual(*a.Input, *a.Data) {
		return invalidParams(`both "data" and "input" are set and not equal`)
	}
	if a.GasPrice != nil && (a.MaxFeePerGas != nil || a.MaxPriorityFeePerGas != nil) {
		return invalidParams("both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	if a.Value != nil && a.Value.ToInt().Sign() < 0 {
		return invalidParams("value must not be negative")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	return string(a) == string(b)
}

// fees holds the resolved pricing of a transaction.
type fees struct {
	gasPrice *big.Int // legacy and access list transactions
	feeCap   *big.Int
	tip      *big.Int
}

func (f fees) dynamic() bool { return f.gasPrice == nil }

// toTransaction builds the unsigned transaction described by the args. All
// defaults must already be filled in.
func (a *TransactionArgs) toTransaction(chainID *big.Int, nonce, gas uint64, f fees) *gethtypes.Transaction {
	data := a.data()
	switch {
	case f.dynamic():
		var al gethtypes.AccessList
		if a.AccessList != nil {
			al = *a.AccessList
		}
		return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasTipCap:  f.tip,
			GasFeeCap:  f.feeCap,
			Gas:        gas,
			To:         a.To,
			Value:      a.value(),
			Data:       data,
			AccessList: al,
		})
	case a.AccessList != nil:
		return gethtypes.NewTx(&gethtypes.AccessListTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasPrice:   f.gasPrice,
			Gas:        gas,
			To:         a.To,
			Value:      a.value(),
			Data:       data,
			AccessList: *a.AccessList,
		})
	default:
		return gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: f.gasPrice,
			Gas:      gas,
			To:       a.To,
			Value:    a.value(),
			Data:     data,
		})
	}
}
