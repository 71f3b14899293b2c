package explorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Siasom1/devnet/core/blockchain"
	"github.com/Siasom1/devnet/log"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/go-chi/chi/v5"
)

// Utility responses
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ------------------------------------------------------------
// 1. /explorer/latest-blocks
// ------------------------------------------------------------
func (api *ExplorerAPI) handleLatestBlocks(w http.ResponseWriter, r *http.Request) {
	head := api.Chain.Head()

	out := make([]blockView, 0, latestBlocksCount)
	for i := uint64(0); i < latestBlocksCount && i <= head.Number(); i++ {
		block, err := api.Chain.BlockByNumber(head.Number() - i)
		if err != nil {
			api.logger.Error("Load block failed", log.Uint64("number", head.Number()-i), log.Err(err))
			writeError(w, http.StatusInternalServerError, "failed to load blocks")
			return
		}
		out = append(out, newBlockView(block))
	}

	writeJSON(w, http.StatusOK, out)
}

// ------------------------------------------------------------
// 2. /explorer/block/{number}
// ------------------------------------------------------------
func (api *ExplorerAPI) handleBlockByNumber(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block number")
		return
	}

	block, err := api.Chain.BlockByNumber(number)
	if errors.Is(err, blockchain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newBlockView(block))
}

// ------------------------------------------------------------
// 3. /explorer/tx/{hash}
// ------------------------------------------------------------
func (api *ExplorerAPI) handleTransaction(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "hash")
	var txHash common.Hash
	if err := txHash.UnmarshalText([]byte(raw)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction hash")
		return
	}

	lookup, err := api.Chain.FindTx(txHash)
	if errors.Is(err, blockchain.ErrNotFound) {
		// not mined yet: maybe still waiting in the pool
		if tx, from, ok := api.Chain.TxPool.Get(txHash); ok {
			writeJSON(w, http.StatusOK, newTxView(tx, from))
			return
		}
		writeError(w, http.StatusNotFound, "tx not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	block, err := api.Chain.BlockByNumber(lookup.BlockNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tx, idx := block.Transaction(txHash)
	if tx == nil {
		writeError(w, http.StatusNotFound, "tx not found")
		return
	}

	from, err := gethtypes.Sender(api.Chain.Signer(block.Number(), block.Header.Time), tx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view := newTxView(tx, from).withBlock(block, idx)
	if receipt, err := api.Chain.Receipt(txHash); err == nil {
		view.Receipt = newReceiptView(receipt)
	}
	writeJSON(w, http.StatusOK, view)
}

// ------------------------------------------------------------
// 4. /explorer/address/{address}/txs
// ------------------------------------------------------------
func (api *ExplorerAPI) handleAddressTxs(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	addr := common.HexToAddress(raw)

	// iterate the most recent blocks, newest first
	head := api.Chain.Head()
	out := []txView{}

	for i := uint64(0); i < addressScanDepth && i <= head.Number(); i++ {
		block, err := api.Chain.BlockByNumber(head.Number() - i)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		signer := api.Chain.Signer(block.Number(), block.Header.Time)

		for idx, tx := range block.Transactions {
			from, err := gethtypes.Sender(signer, tx)
			if err != nil {
				continue
			}
			if from == addr || (tx.To() != nil && *tx.To() == addr) {
				out = append(out, newTxView(tx, from).withBlock(block, idx))
			}
		}
	}

	writeJSON(w, http.StatusOK, out)
}

// ------------------------------------------------------------
// 5. /explorer/accounts
// ------------------------------------------------------------
// By default only the node's own accounts are listed; ?all=true lists every
// account present in state.
func (api *ExplorerAPI) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		accs, err := api.Chain.State.Accounts()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]accountView, 0, len(accs))
		for _, acc := range accs {
			out = append(out, accountView{Address: acc.Address, Balance: acc.Balance.String(), Nonce: acc.Nonce})
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	addrs := api.Keyring.Addresses()
	out := make([]accountView, 0, len(addrs))

	for _, addr := range addrs {
		acc, err := api.Chain.State.GetAccount(addr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, accountView{
			Address: addr,
			Balance: acc.Balance.String(),
			Nonce:   acc.Nonce,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// ------------------------------------------------------------
// 6. /explorer/stream/blocks  (SSE)
// ------------------------------------------------------------
func (api *ExplorerAPI) handleStreamBlocks(w http.ResponseWriter, r *http.Request) {
	flusher, ok := startStream(w)
	if !ok {
		return
	}

	ch, unsubscribe := api.Events.SubscribeBlocks()
	defer unsubscribe()
	openStream(w, flusher)
	ctx := r.Context()

	for {
		select {
		case block, ok := <-ch:
			if !ok {
				return
			}
			if err := sendEvent(w, flusher, "block", newBlockView(block)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ------------------------------------------------------------
// 7. /explorer/stream/txs  (SSE)
// ------------------------------------------------------------
func (api *ExplorerAPI) handleStreamTxs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := startStream(w)
	if !ok {
		return
	}

	ch, unsubscribe := api.Events.SubscribeTxs()
	defer unsubscribe()
	openStream(w, flusher)
	ctx := r.Context()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := sendEvent(w, flusher, "tx", newTxView(ev.Tx, ev.From)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

// openStream sends the headers so clients see the stream before the first
// event arrives.
func openStream(w http.ResponseWriter, flusher http.Flusher) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
