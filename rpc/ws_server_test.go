package rpc

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   int
}

func (n *testNode) dialWS(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(n.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(method string, args ...any) int {
	c.t.Helper()
	if args == nil {
		args = []any{}
	}
	c.id++
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.id,
		"method":  method,
		"params":  args,
	}))
	return c.id
}

type wsMessage struct {
	reply
	Method string `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

func (c *wsClient) read() wsMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// readN collects n messages, split into replies and notifications.
func (c *wsClient) readN(n int) (replies, notes []wsMessage) {
	c.t.Helper()
	for range n {
		msg := c.read()
		if msg.Method == "eth_subscription" {
			notes = append(notes, msg)
		} else {
			replies = append(replies, msg)
		}
	}
	return replies, notes
}

func (c *wsClient) subscribe(kind string) string {
	c.t.Helper()
	c.send("eth_subscribe", kind)
	msg := c.read()
	require.Nil(c.t, msg.Error, "%+v", msg.Error)
	var id string
	require.NoError(c.t, json.Unmarshal(msg.Result, &id))
	require.NotEmpty(c.t, id)
	return id
}

func TestWS_PlainCall(t *testing.T) {
	n := newTestNode(t, nil)
	c := n.dialWS(t)

	c.send("eth_chainId")
	msg := c.read()
	require.Nil(t, msg.Error)
	assert.JSONEq(t, `"0x1"`, string(msg.Result))
}

func TestWS_NewHeads(t *testing.T) {
	n := newTestNode(t, nil)
	c := n.dialWS(t)
	sub := c.subscribe(SubNewHeads)

	c.send("evm_mine")
	replies, notes := c.readN(2)
	require.Len(t, replies, 1)
	require.Len(t, notes, 1)

	assert.Equal(t, sub, notes[0].Params.Subscription)
	var head map[string]any
	require.NoError(t, json.Unmarshal(notes[0].Params.Result, &head))
	assert.Equal(t, "0x1", head["number"])
	assert.Equal(t, n.chain.Head().Hash().Hex(), head["hash"])
}

func TestWS_NewPendingTransactions(t *testing.T) {
	n := newTestNode(t, nil)
	c := n.dialWS(t)
	sub := c.subscribe(SubNewPendingTransactions)

	tx := n.signedTransfer(t, 0, 0, 1)
	c.send("eth_sendRawTransaction", rawTx(t, tx))
	replies, notes := c.readN(2)
	require.Len(t, replies, 1)
	require.Len(t, notes, 1)

	assert.Equal(t, sub, notes[0].Params.Subscription)
	assert.JSONEq(t, `"`+tx.Hash().Hex()+`"`, strings.ToLower(string(notes[0].Params.Result)))
}

func TestWS_Unsubscribe(t *testing.T) {
	n := newTestNode(t, nil)
	c := n.dialWS(t)
	sub := c.subscribe(SubNewHeads)

	require.Eventually(t, func() bool {
		blocks, _ := n.bus.Subscribers()
		return blocks == 1
	}, time.Second, 10*time.Millisecond)

	c.send("eth_unsubscribe", sub)
	msg := c.read()
	assert.JSONEq(t, "true", string(msg.Result))

	c.send("eth_unsubscribe", sub)
	msg = c.read()
	assert.JSONEq(t, "false", string(msg.Result))

	blocks, _ := n.bus.Subscribers()
	assert.Equal(t, 0, blocks)
}

func TestWS_UnsupportedSubscription(t *testing.T) {
	n := newTestNode(t, nil)
	c := n.dialWS(t)

	c.send("eth_subscribe", "logs")
	msg := c.read()
	require.NotNil(t, msg.Error)
	assert.Equal(t, CodeInvalidParams, msg.Error.Code)
}

func TestWS_CloseReleasesSubscriptions(t *testing.T) {
	n := newTestNode(t, nil)
	c := n.dialWS(t)
	c.subscribe(SubNewHeads)
	c.subscribe(SubNewPendingTransactions)
	require.Equal(t, 1, n.srv.hub.Len())

	require.NoError(t, c.conn.Close())

	require.Eventually(t, func() bool {
		blocks, txs := n.bus.Subscribers()
		return blocks == 0 && txs == 0 && n.srv.hub.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWS_SubscribeReplyPrecedesNotifications(t *testing.T) {
	n := newTestNode(t, nil)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = n.bp.Mine()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	for range 20 {
		c := n.dialWS(t)
		id := c.send("eth_subscribe", SubNewHeads)
		msg := c.read()
		require.Empty(t, msg.Method, "notification arrived before the subscription id")
		assert.JSONEq(t, strconv.Itoa(id), string(msg.ID))
		c.conn.Close()
	}
}
