package rpc

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Siasom1/devnet/consensus/producer"
	"github.com/Siasom1/devnet/core/blockchain"
	"github.com/Siasom1/devnet/core/types"
	"github.com/Siasom1/devnet/params"
	"github.com/Siasom1/devnet/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// RPCHandler serves one method. args are the positional params.
type RPCHandler func(args []json.RawMessage) (any, error)

// Backend is what the handlers read from and act on.
type Backend struct {
	Chain    *blockchain.Blockchain
	Producer *producer.BlockProducer
	Keyring  *wallet.Keyring
}

type RPCHandlers struct {
	chain      *blockchain.Blockchain
	producer   *producer.BlockProducer
	keyring    *wallet.Keyring
	instanceID common.Hash
}

// ---------------------------------------------------------------
// REGISTER METHODS
// ---------------------------------------------------------------

func NewHandlers(b Backend) map[string]RPCHandler {
	h := &RPCHandlers{
		chain:      b.Chain,
		producer:   b.Producer,
		keyring:    b.Keyring,
		instanceID: newInstanceID(),
	}
	if h.keyring == nil {
		h.keyring = wallet.NewKeyring(nil)
	}

	return map[string]RPCHandler{
		// ---------------- web3 / net ----------------
		"web3_clientVersion": h.web3ClientVersion,
		"web3_sha3":          h.web3Sha3,
		"net_version":        h.netVersion,
		"net_listening":      h.netListening,
		"net_peerCount":      h.netPeerCount,

		// --------------- chain info ---------------
		"eth_chainId":              h.ethChainId,
		"eth_accounts":             h.ethAccounts,
		"eth_coinbase":             h.ethCoinbase,
		"eth_mining":               h.ethMining,
		"eth_syncing":              h.ethSyncing,
		"eth_blockNumber":          h.ethBlockNumber,
		"eth_gasPrice":             h.ethGasPrice,
		"eth_maxPriorityFeePerGas": h.ethMaxPriorityFeePerGas,

		// ------------------ state ------------------
		"eth_getBalance":          h.ethGetBalance,
		"eth_getTransactionCount": h.ethGetTransactionCount,
		"eth_getCode":             h.ethGetCode,
		"eth_getStorageAt":        h.ethGetStorageAt,
		"eth_call":                h.ethCall,
		"eth_estimateGas":         h.ethEstimateGas,

		// -------------- transactions --------------
		"eth_sendRawTransaction":    h.ethSendRawTransaction,
		"eth_sendTransaction":       h.ethSendTransaction,
		"eth_sign":                  h.ethSign,
		"personal_sign":             h.personalSign,
		"eth_getTransactionByHash":  h.ethGetTransactionByHash,
		"eth_getTransactionReceipt": h.ethGetTransactionReceipt,

		// ----------------- blocks -----------------
		"eth_getBlockByNumber": h.ethGetBlockByNumber,
		"eth_getBlockByHash":   h.ethGetBlockByHash,

		// ---------------- dev node ----------------
		"evm_mine":            h.evmMine,
		"evm_setAutomine":     h.evmSetAutomine,
		"hardhat_getAutomine": h.hardhatGetAutomine,
		"hardhat_metadata":    h.hardhatMetadata,
		"hardhat_setBalance":  h.hardhatSetBalance,
		"hardhat_setNonce":    h.hardhatSetNonce,
	}
}

func newInstanceID() common.Hash {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("read random instance id: " + err.Error())
	}
	return crypto.Keccak256Hash(buf)
}

func clientVersion() string {
	return fmt.Sprintf("%s/v%s/go", params.ClientName, params.Version)
}

// ---------------------------------------------------------------
// Block selection
// ---------------------------------------------------------------

// blockByNumber resolves a block tag. A number past the head yields nil.
func (h *RPCHandlers) blockByNumber(n gethrpc.BlockNumber) (*types.Block, error) {
	head := h.chain.Head()

	var number uint64
	switch {
	case n == gethrpc.EarliestBlockNumber:
		number = 0
	case n < 0:
		// latest, pending, safe and finalized all name the head
		return head, nil
	default:
		number = uint64(n.Int64())
	}
	if number > head.Number() {
		return nil, nil
	}

	b, err := h.chain.BlockByNumber(number)
	if errors.Is(err, blockchain.ErrNotFound) {
		return nil, nil
	}
	return b, err
}

// checkStateBlock accepts only block selectors that name the current state.
// It reports whether the selector was "pending".
func (h *RPCHandlers) checkStateBlock(args []json.RawMessage, i int) (bool, error) {
	var sel gethrpc.BlockNumberOrHash
	ok, err := optionalParam(args, i, &sel)
	if err != nil || !ok {
		return false, err
	}

	head := h.chain.Head()
	if hash, isHash := sel.Hash(); isHash {
		if hash == head.Hash() {
			return false, nil
		}
		if _, err := h.chain.BlockByHash(hash); err != nil {
			return false, serverError("header for hash not found")
		}
		return false, serverError("historical state queries are not supported")
	}

	n, _ := sel.Number()
	switch {
	case n == gethrpc.PendingBlockNumber:
		return true, nil
	case n == gethrpc.EarliestBlockNumber:
		if head.Number() == 0 {
			return false, nil
		}
	case n < 0:
		return false, nil
	case uint64(n.Int64()) == head.Number():
		return false, nil
	case uint64(n.Int64()) > head.Number():
		return false, serverError("block number %d is greater than the latest block %d", n.Int64(), head.Number())
	}
	return false, serverError("historical state queries are not supported")
}
