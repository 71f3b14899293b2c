// Package events fans out chain events to RPC subscriptions and the explorer.
package events

import (
	"sync"

	"github.com/Siasom1/devnet/core/types"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

const (
	blockBuffer = 16
	txBuffer    = 64
)

// TxEvent is a transaction accepted into the pool.
type TxEvent struct {
	Tx   *gethtypes.Transaction
	From common.Address
}

type EventBus struct {
	mu        sync.RWMutex
	nextID    uint64
	blockSubs map[uint64]chan *types.Block
	txSubs    map[uint64]chan TxEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		blockSubs: make(map[uint64]chan *types.Block),
		txSubs:    make(map[uint64]chan TxEvent),
	}
}

// -------------------- Blocks --------------------

// SubscribeBlocks returns a channel of new head blocks and a func that ends
// the subscription and closes the channel.
func (b *EventBus) SubscribeBlocks() (<-chan *types.Block, func()) {
	ch := make(chan *types.Block, blockBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.blockSubs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.blockSubs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *EventBus) PublishBlock(block *types.Block) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.blockSubs {
		// slow subscribers miss events instead of stalling the producer
		select {
		case ch <- block:
		default:
		}
	}
}

// -------------------- Transactions --------------------

func (b *EventBus) SubscribeTxs() (<-chan TxEvent, func()) {
	ch := make(chan TxEvent, txBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.txSubs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.txSubs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *EventBus) PublishTx(ev TxEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.txSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports the number of live block and tx subscriptions.
func (b *EventBus) Subscribers() (blocks, txs int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blockSubs), len(b.txSubs)
}
