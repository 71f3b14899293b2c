package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Siasom1/devnet/events"
	"github.com/Siasom1/devnet/log"
	"github.com/Siasom1/devnet/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBody = 5 * 1024 * 1024

// Config configures the JSON-RPC endpoint.
type Config struct {
	Host string
	Port int
	// Verbose logs every call (the network's loggingEnabled flag).
	Verbose bool
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Server struct {
	handlers map[string]RPCHandler
	backend  Backend
	bus      *events.EventBus
	logger   log.Logger
	metrics  *metrics.Metrics
	verbose  bool
	cfg      Config

	router     chi.Router
	hub        *WebSocketHub
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(b Backend, bus *events.EventBus, logger log.Logger, m *metrics.Metrics, cfg Config) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Server{
		handlers: NewHandlers(b),
		backend:  b,
		bus:      bus,
		logger:   logger.With(log.String("component", "rpc")),
		metrics:  m,
		verbose:  cfg.Verbose,
		cfg:      cfg,
		hub:      NewWebSocketHub(),
	}
	s.router = s.routes()
	return s
}

//
// ------------------------------------------------------------
// ROUTES
// ------------------------------------------------------------
//

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Post("/", s.HandleJSONRPC)
	r.Get("/", s.HandleWS)
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler exposes the router, for embedding and tests.
func (s *Server) Handler() http.Handler { return s.router }

// cors lets browser dapps reach the node from any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

//
// ------------------------------------------------------------
// JSON-RPC HANDLER
// ------------------------------------------------------------
//

func (s *Server) HandleJSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			errorResponse(nil, &RPCError{Code: CodeInvalidRequest, Message: err.Error()}))
		return
	}

	resp := s.handleMessage(body, s.Dispatch)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

//
// ------------------------------------------------------------
// RPC SERVER STARTUP
// ------------------------------------------------------------
//

// Start binds the listener and serves in the background. Bind errors are
// returned directly.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen rpc on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("JSON-RPC server started",
		log.String("http", "http://"+ln.Addr().String()),
		log.String("ws", "ws://"+ln.Addr().String()),
	)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("JSON-RPC server error", log.Err(err))
		}
	}()
	return nil
}

// Addr is the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and closes WebSocket connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}
