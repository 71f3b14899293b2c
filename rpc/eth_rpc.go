package rpc

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/Siasom1/devnet/core/blockchain"
	"github.com/Siasom1/devnet/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// ---------------------------------------------------------------
// CHAIN INFO
// ---------------------------------------------------------------

func (h *RPCHandlers) ethChainId(_ []json.RawMessage) (any, error) {
	return hexutil.Uint64(h.chain.NetworkID()), nil
}

func (h *RPCHandlers) ethAccounts(_ []json.RawMessage) (any, error) {
	return h.keyring.Addresses(), nil
}

func (h *RPCHandlers) ethCoinbase(_ []json.RawMessage) (any, error) {
	return h.chain.Network().Coinbase, nil
}

func (h *RPCHandlers) ethMining(_ []json.RawMessage) (any, error) {
	return false, nil
}

func (h *RPCHandlers) ethSyncing(_ []json.RawMessage) (any, error) {
	return false, nil
}

func (h *RPCHandlers) ethBlockNumber(_ []json.RawMessage) (any, error) {
	return hexutil.Uint64(h.chain.Head().Number()), nil
}

func (h *RPCHandlers) ethGasPrice(_ []json.RawMessage) (any, error) {
	return (*hexutil.Big)(suggestGasPrice(h.chain.NextBaseFee())), nil
}

func (h *RPCHandlers) ethMaxPriorityFeePerGas(_ []json.RawMessage) (any, error) {
	return (*hexutil.Big)(new(big.Int).Set(DefaultPriorityFee)), nil
}

// ---------------------------------------------------------------
// STATE
// ---------------------------------------------------------------

func (h *RPCHandlers) ethGetBalance(args []json.RawMessage) (any, error) {
	var addr common.Address
	if err := param(args, 0, &addr); err != nil {
		return nil, err
	}
	if _, err := h.checkStateBlock(args, 1); err != nil {
		return nil, err
	}

	bal, err := h.chain.State.GetBalance(addr)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(bal), nil
}

func (h *RPCHandlers) ethGetTransactionCount(args []json.RawMessage) (any, error) {
	var addr common.Address
	if err := param(args, 0, &addr); err != nil {
		return nil, err
	}
	pending, err := h.checkStateBlock(args, 1)
	if err != nil {
		return nil, err
	}

	nonce, err := h.chain.State.GetNonce(addr)
	if err != nil {
		return nil, err
	}
	if pending {
		nonce = h.chain.TxPool.PendingNonce(addr, nonce)
	}
	return hexutil.Uint64(nonce), nil
}

// ethGetCode returns empty code: every account is externally owned.
func (h *RPCHandlers) ethGetCode(args []json.RawMessage) (any, error) {
	var addr common.Address
	if err := param(args, 0, &addr); err != nil {
		return nil, err
	}
	if _, err := h.checkStateBlock(args, 1); err != nil {
		return nil, err
	}
	return hexutil.Bytes{}, nil
}

func (h *RPCHandlers) ethGetStorageAt(args []json.RawMessage) (any, error) {
	var (
		addr common.Address
		slot hexutil.Big
	)
	if err := param(args, 0, &addr); err != nil {
		return nil, err
	}
	if err := param(args, 1, &slot); err != nil {
		return nil, err
	}
	if _, err := h.checkStateBlock(args, 2); err != nil {
		return nil, err
	}
	return common.Hash{}, nil
}

// ethCall runs no bytecode; calls to the externally owned accounts of this
// network return empty data.
func (h *RPCHandlers) ethCall(args []json.RawMessage) (any, error) {
	var call TransactionArgs
	if err := param(args, 0, &call); err != nil {
		return nil, err
	}
	if err := call.validate(); err != nil {
		return nil, err
	}
	if _, err := h.checkStateBlock(args, 1); err != nil {
		return nil, err
	}
	if call.To == nil {
		return nil, types.ErrContractCode
	}
	return hexutil.Bytes{}, nil
}

func (h *RPCHandlers) ethEstimateGas(args []json.RawMessage) (any, error) {
	var call TransactionArgs
	if err := param(args, 0, &call); err != nil {
		return nil, err
	}
	if err := call.validate(); err != nil {
		return nil, err
	}
	if _, err := h.checkStateBlock(args, 1); err != nil {
		return nil, err
	}
	if call.To == nil {
		return nil, types.ErrContractCode
	}

	gas, err := h.intrinsicGas(&call)
	if err != nil {
		return nil, err
	}
	if call.Gas != nil && uint64(*call.Gas) < gas {
		return nil, serverError("gas required exceeds allowance (%d)", uint64(*call.Gas))
	}

	if call.From != nil && call.value().Sign() > 0 {
		bal, err := h.chain.State.GetBalance(*call.From)
		if err != nil {
			return nil, err
		}
		if bal.Cmp(call.value()) < 0 {
			return nil, blockchain.ErrInsufficientFunds
		}
	}
	return hexutil.Uint64(gas), nil
}

// intrinsicGas prices call under the pending block's rules.
func (h *RPCHandlers) intrinsicGas(call *TransactionArgs) (uint64, error) {
	head := h.chain.Head()
	tx := call.toTransaction(new(big.Int).SetUint64(h.chain.NetworkID()), 0, 0,
		fees{feeCap: new(big.Int), tip: new(big.Int)})
	return types.IntrinsicGas(tx, h.chain.Rules(head.Number()+1, head.Header.Time+1))
}

// ---------------------------------------------------------------
// TRANSACTIONS
// ---------------------------------------------------------------

func (h *RPCHandlers) ethSendRawTransaction(args []json.RawMessage) (any, error) {
	var raw string
	if err := param(args, 0, &raw); err != nil {
		return nil, err
	}

	tx, err := types.DecodeRawTx(raw)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	return h.producer.SubmitTx(tx)
}

// ethSendTransaction fills in nonce, gas and fees, signs with a local account
// and submits the transaction.
func (h *RPCHandlers) ethSendTransaction(args []json.RawMessage) (any, error) {
	var call TransactionArgs
	if err := param(args, 0, &call); err != nil {
		return nil, err
	}
	if err := call.validate(); err != nil {
		return nil, err
	}
	if call.From == nil {
		return nil, invalidParams("missing \"from\" field")
	}
	if !h.keyring.Has(*call.From) {
		return nil, serverError("unknown account %s", call.From.Hex())
	}
	if call.To == nil {
		return nil, types.ErrContractCode
	}

	chainID := new(big.Int).SetUint64(h.chain.NetworkID())
	if call.ChainID != nil && call.ChainID.ToInt().Cmp(chainID) != 0 {
		return nil, invalidParams("chainId does not match node's (have=%v, want=%v)", call.ChainID.ToInt(), chainID)
	}

	var nonce uint64
	if call.Nonce != nil {
		nonce = uint64(*call.Nonce)
	} else {
		stateNonce, err := h.chain.State.GetNonce(*call.From)
		if err != nil {
			return nil, err
		}
		nonce = h.chain.TxPool.PendingNonce(*call.From, stateNonce)
	}

	var gas uint64
	if call.Gas != nil {
		gas = uint64(*call.Gas)
	} else {
		estimate, err := h.intrinsicGas(&call)
		if err != nil {
			return nil, err
		}
		gas = estimate
	}

	f, err := h.resolveFees(&call)
	if err != nil {
		return nil, err
	}

	tx := call.toTransaction(chainID, nonce, gas, f)
	signed, err := h.keyring.SignTx(*call.From, tx, h.chain.PendingSigner())
	if err != nil {
		return nil, err
	}
	return h.producer.SubmitTx(signed)
}

func (h *RPCHandlers) resolveFees(call *TransactionArgs) (fees, error) {
	baseFee := h.chain.NextBaseFee()
	london := baseFee != nil

	if call.GasPrice != nil {
		return fees{gasPrice: call.GasPrice.ToInt()}, nil
	}
	if !london {
		if call.MaxFeePerGas != nil || call.MaxPriorityFeePerGas != nil {
			return fees{}, invalidParams("maxFeePerGas and maxPriorityFeePerGas require london")
		}
		return fees{gasPrice: suggestGasPrice(nil)}, nil
	}

	tip := new(big.Int).Set(DefaultPriorityFee)
	if call.MaxPriorityFeePerGas != nil {
		tip = call.MaxPriorityFeePerGas.ToInt()
	}
	feeCap := defaultFeeCap(baseFee, tip)
	if call.MaxFeePerGas != nil {
		feeCap = call.MaxFeePerGas.ToInt()
		if call.MaxPriorityFeePerGas == nil && tip.Cmp(feeCap) > 0 {
			tip = new(big.Int).Set(feeCap)
		}
	}
	return fees{feeCap: feeCap, tip: tip}, nil
}

// ethSign signs with the eth_sign prefix: params are [address, data].
func (h *RPCHandlers) ethSign(args []json.RawMessage) (any, error) {
	var (
		addr common.Address
		data hexutil.Bytes
	)
	if err := param(args, 0, &addr); err != nil {
		return nil, err
	}
	if err := param(args, 1, &data); err != nil {
		return nil, err
	}
	return h.signText(addr, data)
}

// personalSign takes the same arguments as eth_sign in reverse order.
func (h *RPCHandlers) personalSign(args []json.RawMessage) (any, error) {
	var (
		data hexutil.Bytes
		addr common.Address
	)
	if err := param(args, 0, &data); err != nil {
		return nil, err
	}
	if err := param(args, 1, &addr); err != nil {
		return nil, err
	}
	return h.signText(addr, data)
}

func (h *RPCHandlers) signText(addr common.Address, data []byte) (any, error) {
	sig, err := h.keyring.SignText(addr, data)
	if err != nil {
		return nil, serverError("%v", err)
	}
	return hexutil.Bytes(sig), nil
}

func (h *RPCHandlers) ethGetTransactionByHash(args []json.RawMessage) (any, error) {
	var hash common.Hash
	if err := param(args, 0, &hash); err != nil {
		return nil, err
	}

	lookup, err := h.chain.FindTx(hash)
	switch {
	case err == nil:
		block, err := h.chain.BlockByNumber(lookup.BlockNumber)
		if err != nil {
			return nil, err
		}
		tx, idx := block.Transaction(hash)
		if tx == nil {
			return nil, nil
		}
		signer := h.chain.Signer(block.Number(), block.Header.Time)
		return newRPCTransaction(tx, signer, block.Hash(), block.Number(), uint64(idx), block.Header.BaseFee), nil
	case !errors.Is(err, blockchain.ErrNotFound):
		return nil, err
	}

	if tx, _, ok := h.chain.TxPool.Get(hash); ok {
		return newRPCTransaction(tx, h.chain.PendingSigner(), common.Hash{}, 0, 0, nil), nil
	}
	// unknown transactions are null, not an error
	return nil, nil
}

func (h *RPCHandlers) ethGetTransactionReceipt(args []json.RawMessage) (any, error) {
	var hash common.Hash
	if err := param(args, 0, &hash); err != nil {
		return nil, err
	}

	r, err := h.chain.Receipt(hash)
	if errors.Is(err, blockchain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return newRPCReceipt(r), nil
}

// ---------------------------------------------------------------
// BLOCKS
// ---------------------------------------------------------------

func (h *RPCHandlers) ethGetBlockByNumber(args []json.RawMessage) (any, error) {
	var (
		n      gethrpc.BlockNumber
		fullTx bool
	)
	if err := param(args, 0, &n); err != nil {
		return nil, err
	}
	if _, err := optionalParam(args, 1, &fullTx); err != nil {
		return nil, err
	}

	block, err := h.blockByNumber(n)
	if err != nil || block == nil {
		return nil, err
	}
	return newRPCBlock(block, fullTx, h.chain.Signer(block.Number(), block.Header.Time)), nil
}

func (h *RPCHandlers) ethGetBlockByHash(args []json.RawMessage) (any, error) {
	var (
		hash   common.Hash
		fullTx bool
	)
	if err := param(args, 0, &hash); err != nil {
		return nil, err
	}
	if _, err := optionalParam(args, 1, &fullTx); err != nil {
		return nil, err
	}

	block, err := h.chain.BlockByHash(hash)
	if errors.Is(err, blockchain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return newRPCBlock(block, fullTx, h.chain.Signer(block.Number(), block.Header.Time)), nil
}
