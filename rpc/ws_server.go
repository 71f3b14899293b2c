package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Siasom1/devnet/log"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
)

// Subscription kinds accepted by eth_subscribe.
const (
	SubNewHeads               = "newHeads"
	SubNewPendingTransactions = "newPendingTransactions"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketHub tracks live connections so shutdown can close them.
type WebSocketHub struct {
	mu      sync.Mutex
	clients map[*wsConn]struct{}
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{clients: make(map[*wsConn]struct{})}
}

func (h *WebSocketHub) register(c *wsConn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *WebSocketHub) unregister(c *wsConn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Len returns the number of open connections.
func (h *WebSocketHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll closes every connection; their read loops then clean up.
func (h *WebSocketHub) CloseAll() {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
}

// subscriptionNotification is the eth_subscription push message.
type subscriptionNotification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  subscriptionResult `json:"params"`
}

type subscriptionResult struct {
	Subscription gethrpc.ID `json:"subscription"`
	Result       any        `json:"result"`
}

// wsConn is one WebSocket client. Writes are serialized; each subscription
// runs its own forwarding goroutine.
type wsConn struct {
	srv  *Server
	conn *websocket.Conn

	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   map[gethrpc.ID]wsSub

	// forwarders of new subscriptions, started once the reply carrying
	// their id is written. Only touched by readLoop.
	starting []func()
}

type wsSub struct {
	kind        string
	unsubscribe func()
}

// HandleWS upgrades the request and serves JSON-RPC over the connection.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "JSON-RPC requests must be POSTed", http.StatusMethodNotAllowed)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WS upgrade failed", log.Err(err))
		return
	}

	c := &wsConn{srv: s, conn: conn, subs: make(map[gethrpc.ID]wsSub)}
	s.hub.register(c)
	s.metrics.WSConnected(1)
	s.logger.Debug("WS client connected", log.String("remote", r.RemoteAddr))

	go c.readLoop()
}

func (c *wsConn) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(maxRequestBody)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.srv.logger.Debug("WS read error", log.Err(err))
			}
			return
		}
		if resp := c.srv.handleMessage(msg, c.route); resp != nil {
			if err := c.write(resp); err != nil {
				return
			}
		}
		c.startForwarders()
	}
}

func (c *wsConn) startForwarders() {
	for _, forward := range c.starting {
		go forward()
	}
	c.starting = c.starting[:0]
}

func (c *wsConn) close() {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = make(map[gethrpc.ID]wsSub)
	c.subsMu.Unlock()

	for _, sub := range subs {
		sub.unsubscribe()
		c.srv.metrics.Subscribed(sub.kind, -1)
	}

	c.srv.hub.unregister(c)
	c.srv.metrics.WSConnected(-1)
	_ = c.conn.Close()
}

func (c *wsConn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

// route handles the subscription methods locally and sends everything else
// through the shared method table.
func (c *wsConn) route(req *RPCRequest) *RPCResponse {
	if req == nil {
		return c.srv.Dispatch(req)
	}
	switch req.Method {
	case "eth_subscribe":
		return c.respond(req, c.subscribe)
	case "eth_unsubscribe":
		return c.respond(req, c.unsubscribe)
	default:
		return c.srv.Dispatch(req)
	}
}

func (c *wsConn) respond(req *RPCRequest, fn RPCHandler) *RPCResponse {
	if rerr := req.validate(); rerr != nil {
		return errorResponse(req.ID, rerr)
	}
	start := time.Now()
	args, err := splitParams(req.Params)
	var result any
	if err == nil {
		result, err = fn(args)
	}
	c.srv.metrics.ObserveRPC(req.Method, err != nil, time.Since(start))
	c.srv.logCall(req.Method, time.Since(start), err)

	if req.isNotification() {
		return nil
	}
	if err != nil {
		return errorResponse(req.ID, toRPCError(err))
	}
	return &RPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (c *wsConn) subscribe(args []json.RawMessage) (any, error) {
	var kind string
	if err := param(args, 0, &kind); err != nil {
		return nil, err
	}

	id := gethrpc.NewID()
	var (
		forward     func()
		unsubscribe func()
	)

	switch kind {
	case SubNewHeads:
		ch, unsub := c.srv.bus.SubscribeBlocks()
		unsubscribe = unsub
		forward = func() {
			for b := range ch {
				c.notify(id, newRPCHeader(b.Header))
			}
		}
	case SubNewPendingTransactions:
		ch, unsub := c.srv.bus.SubscribeTxs()
		unsubscribe = unsub
		forward = func() {
			for ev := range ch {
				c.notify(id, ev.Tx.Hash())
			}
		}
	default:
		return nil, invalidParams("unsupported subscription type %q", kind)
	}

	c.subsMu.Lock()
	c.subs[id] = wsSub{kind: kind, unsubscribe: unsubscribe}
	c.subsMu.Unlock()
	c.srv.metrics.Subscribed(kind, 1)

	c.starting = append(c.starting, forward)
	return id, nil
}

func (c *wsConn) unsubscribe(args []json.RawMessage) (any, error) {
	var id gethrpc.ID
	if err := param(args, 0, &id); err != nil {
		return nil, err
	}

	c.subsMu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.subsMu.Unlock()

	if !ok {
		return false, nil
	}
	sub.unsubscribe()
	c.srv.metrics.Subscribed(sub.kind, -1)
	return true, nil
}

func (c *wsConn) notify(id gethrpc.ID, result any) {
	err := c.write(subscriptionNotification{
		JSONRPC: "2.0",
		Method:  "eth_subscription",
		Params:  subscriptionResult{Subscription: id, Result: result},
	})
	if err != nil {
		c.srv.logger.Debug("WS notify failed", log.String("subscription", string(id)), log.Err(err))
	}
}
