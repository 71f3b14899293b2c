// Package explorer serves a small REST block explorer next to the JSON-RPC
// endpoint, with server-sent event streams for new blocks and transactions.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Siasom1/devnet/core/blockchain"
	"github.com/Siasom1/devnet/events"
	"github.com/Siasom1/devnet/log"
	"github.com/Siasom1/devnet/wallet"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// latestBlocksCount is the page size of /explorer/latest-blocks.
	latestBlocksCount = 10
	// addressScanDepth bounds how many recent blocks an address lookup walks.
	addressScanDepth = 1000
)

type ExplorerAPI struct {
	Chain   *blockchain.Blockchain
	Events  *events.EventBus
	Keyring *wallet.Keyring

	logger     log.Logger
	router     chi.Router
	httpServer *http.Server
	listener   net.Listener
	// cancel ends the base context every request context derives from.
	cancel context.CancelFunc
}

func NewExplorerAPI(chain *blockchain.Blockchain, bus *events.EventBus, keyring *wallet.Keyring, logger log.Logger) *ExplorerAPI {
	if logger == nil {
		logger = log.NewNop()
	}
	if keyring == nil {
		keyring = wallet.NewKeyring(nil)
	}
	api := &ExplorerAPI{
		Chain:   chain,
		Events:  bus,
		Keyring: keyring,
		logger:  logger.With(log.String("component", "explorer")),
	}
	api.router = api.routes()
	return api
}

func (api *ExplorerAPI) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/explorer", func(r chi.Router) {
		r.Get("/latest-blocks", api.handleLatestBlocks)
		r.Get("/block/{number}", api.handleBlockByNumber)
		r.Get("/tx/{hash}", api.handleTransaction)
		r.Get("/address/{address}/txs", api.handleAddressTxs)
		r.Get("/accounts", api.handleAccounts)

		// Live streams (SSE)
		r.Get("/stream/blocks", api.handleStreamBlocks)
		r.Get("/stream/txs", api.handleStreamTxs)
	})
	return r
}

// Handler exposes the router, for embedding and tests.
func (api *ExplorerAPI) Handler() http.Handler { return api.router }

// Start binds host:port and serves in the background.
func (api *ExplorerAPI) Start(host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen explorer on %s: %w", addr, err)
	}
	api.listener = ln

	baseCtx, cancel := context.WithCancel(context.Background())
	api.cancel = cancel
	api.httpServer = &http.Server{
		Handler:           api.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	api.logger.Info("Explorer API running", log.String("url", "http://"+ln.Addr().String()+"/explorer"))

	go func() {
		if err := api.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			api.logger.Error("Explorer API error", log.Err(err))
		}
	}()
	return nil
}

// Addr is the bound address, valid after Start.
func (api *ExplorerAPI) Addr() string {
	if api.listener == nil {
		return ""
	}
	return api.listener.Addr().String()
}

// Shutdown stops the server. http.Server.Shutdown waits for active handlers,
// so the base context is cancelled first to end open SSE streams.
func (api *ExplorerAPI) Shutdown(ctx context.Context) error {
	if api.httpServer == nil {
		return nil
	}
	api.cancel()
	return api.httpServer.Shutdown(ctx)
}
