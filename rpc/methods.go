package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ---------------------------------------------------------------
// web3 / net
// ---------------------------------------------------------------

func (h *RPCHandlers) web3ClientVersion(_ []json.RawMessage) (any, error) {
	return clientVersion(), nil
}

func (h *RPCHandlers) web3Sha3(args []json.RawMessage) (any, error) {
	var data hexutil.Bytes
	if err := param(args, 0, &data); err != nil {
		return nil, err
	}
	return crypto.Keccak256Hash(data), nil
}

// netVersion is the decimal network id, equal to the chain id.
func (h *RPCHandlers) netVersion(_ []json.RawMessage) (any, error) {
	return fmt.Sprintf("%d", h.chain.NetworkID()), nil
}

func (h *RPCHandlers) netListening(_ []json.RawMessage) (any, error) {
	return true, nil
}

func (h *RPCHandlers) netPeerCount(_ []json.RawMessage) (any, error) {
	return hexutil.Uint(0), nil
}

// ---------------------------------------------------------------
// Dev node control
// ---------------------------------------------------------------

// evmMine mines one block, optionally at the given timestamp.
func (h *RPCHandlers) evmMine(args []json.RawMessage) (any, error) {
	var ts hexutil.Uint64
	ok, err := optionalParam(args, 0, &ts)
	if err != nil {
		return nil, err
	}

	if ok {
		_, err = h.producer.MineAt(uint64(ts))
	} else {
		_, err = h.producer.Mine()
	}
	if err != nil {
		return nil, err
	}
	return "0x0", nil
}

func (h *RPCHandlers) evmSetAutomine(args []json.RawMessage) (any, error) {
	var enabled bool
	if err := param(args, 0, &enabled); err != nil {
		return nil, err
	}
	h.producer.SetAutomine(enabled)
	return true, nil
}

func (h *RPCHandlers) hardhatGetAutomine(_ []json.RawMessage) (any, error) {
	return h.producer.Automine(), nil
}

type metadata struct {
	ClientVersion     string         `json:"clientVersion"`
	ChainID           uint64         `json:"chainId"`
	InstanceID        common.Hash    `json:"instanceId"`
	LatestBlockNumber uint64         `json:"latestBlockNumber"`
	LatestBlockHash   common.Hash    `json:"latestBlockHash"`
	Hardfork          string         `json:"hardfork"`
	Coinbase          common.Address `json:"coinbase"`
}

func (h *RPCHandlers) hardhatMetadata(_ []json.RawMessage) (any, error) {
	head := h.chain.Head()
	network := h.chain.Network()
	return metadata{
		ClientVersion:     clientVersion(),
		ChainID:           network.ChainID,
		InstanceID:        h.instanceID,
		LatestBlockNumber: head.Number(),
		LatestBlockHash:   head.Hash(),
		Hardfork:          network.Hardfork,
		Coinbase:          network.Coinbase,
	}, nil
}

func (h *RPCHandlers) hardhatSetBalance(args []json.RawMessage) (any, error) {
	var (
		addr    common.Address
		balance hexutil.Big
	)
	if err := param(args, 0, &addr); err != nil {
		return nil, err
	}
	if err := param(args, 1, &balance); err != nil {
		return nil, err
	}
	if balance.ToInt().Sign() < 0 {
		return nil, invalidParams("balance must not be negative")
	}
	err := h.producer.WithStateLock(func() error {
		return h.chain.State.SetBalance(addr, balance.ToInt())
	})
	if err != nil {
		return nil, err
	}
	return true, nil
}

func (h *RPCHandlers) hardhatSetNonce(args []json.RawMessage) (any, error) {
	var (
		addr  common.Address
		nonce hexutil.Uint64
	)
	if err := param(args, 0, &addr); err != nil {
		return nil, err
	}
	if err := param(args, 1, &nonce); err != nil {
		return nil, err
	}

	err := h.producer.WithStateLock(func() error {
		current, err := h.chain.State.GetNonce(addr)
		if err != nil {
			return err
		}
		if uint64(nonce) < current {
			return invalidParams("new nonce (%d) must not be smaller than the existing nonce (%d)", uint64(nonce), current)
		}
		return h.chain.State.SetNonce(addr, uint64(nonce))
	})
	if err != nil {
		return nil, err
	}
	return true, nil
}
