package txpool

import (
	"errors"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrNilTx        = errors.New("nil tx")
	ErrAlreadyKnown = errors.New("already known")
	ErrNonceTaken   = errors.New("replacement transaction with the same nonce is pending")
)

type entry struct {
	tx   *gethtypes.Transaction
	from common.Address
	seq  uint64
}

// TxPool holds signed transactions waiting to be mined, keyed by hash.
type TxPool struct {
	mu       sync.RWMutex
	all      map[common.Hash]*entry
	bySender map[common.Address]map[uint64]*entry
	seq      uint64
}

func NewTxPool() *TxPool {
	return &TxPool{
		all:      make(map[common.Hash]*entry),
		bySender: make(map[common.Address]map[uint64]*entry),
	}
}

// Add queues tx sent by from. A second transaction for the same sender and
// nonce is rejected.
func (p *TxPool) Add(tx *gethtypes.Transaction, from common.Address) error {
	if tx == nil {
		return ErrNilTx
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.all[tx.Hash()]; ok {
		return ErrAlreadyKnown
	}
	nonces := p.bySender[from]
	if nonces == nil {
		nonces = make(map[uint64]*entry)
		p.bySender[from] = nonces
	}
	if _, ok := nonces[tx.Nonce()]; ok {
		return ErrNonceTaken
	}

	p.seq++
	e := &entry{tx: tx, from: from, seq: p.seq}
	p.all[tx.Hash()] = e
	nonces[tx.Nonce()] = e
	return nil
}

// Get returns a pending transaction and its sender.
func (p *TxPool) Get(hash common.Hash) (*gethtypes.Transaction, common.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.all[hash]
	if !ok {
		return nil, common.Address{}, false
	}
	return e.tx, e.from, true
}

func (p *TxPool) Remove(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.all[hash]
	if !ok {
		return
	}
	delete(p.all, hash)
	nonces := p.bySender[e.from]
	delete(nonces, e.tx.Nonce())
	if len(nonces) == 0 {
		delete(p.bySender, e.from)
	}
}

// Pending returns the queued transactions in mining order: each sender's
// transactions by ascending nonce, senders interleaved by arrival.
func (p *TxPool) Pending() []*gethtypes.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	queues := make([][]*entry, 0, len(p.bySender))
	for _, nonces := range p.bySender {
		q := make([]*entry, 0, len(nonces))
		for _, e := range nonces {
			q = append(q, e)
		}
		sort.Slice(q, func(i, j int) bool { return q[i].tx.Nonce() < q[j].tx.Nonce() })
		queues = append(queues, q)
	}

	list := make([]*gethtypes.Transaction, 0, len(p.all))
	for len(queues) > 0 {
		// next head: earliest arrival among the senders' lowest nonces
		best := 0
		for i := 1; i < len(queues); i++ {
			if queues[i][0].seq < queues[best][0].seq {
				best = i
			}
		}
		list = append(list, queues[best][0].tx)
		queues[best] = queues[best][1:]
		if len(queues[best]) == 0 {
			queues = append(queues[:best], queues[best+1:]...)
		}
	}
	return list
}

// PendingNonce returns the next nonce for addr given its state nonce,
// skipping over the contiguous run already queued.
func (p *TxPool) PendingNonce(addr common.Address, stateNonce uint64) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	nonce := stateNonce
	nonces := p.bySender[addr]
	for {
		if _, ok := nonces[nonce]; !ok {
			return nonce
		}
		nonce++
	}
}

func (p *TxPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.all)
}
