// Package txpool holds signed transfers waiting to be mined.
//
// The pool keeps insertion order and nets the pending debits of each sender
// against its confirmed balance: a transfer is only admitted while the sum
// of that sender's pooled amounts stays within what the chain says it owns.
// Pending credits are not counted, so any prefix of the pool in insertion
// order is a valid block body on top of the confirmed state.
package txpool

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/logger"
)

var (
	// ErrTxPoolOverflow is returned when the pool holds GlobalSlots transfers.
	ErrTxPoolOverflow = errors.New("txpool is full")

	// ErrAccountOverflow is returned when the sender holds AccountSlots
	// transfers in the pool.
	ErrAccountOverflow = errors.New("account exceeds txpool slot limit")
)

// View is the confirmed chain as the pool sees it.
type View interface {
	Balance(pk accountpk.PubKey) int64
	// Confirmed reports whether a transaction with id is on the chain.
	Confirmed(id hash.Hash) bool
}

// Config are the configuration parameters of the transaction pool.
type Config struct {
	GlobalSlots  int           // Maximum number of pooled transfers
	AccountSlots int           // Maximum number of pooled transfers per sender
	Lifetime     time.Duration // Maximum time a transfer may stay pooled, zero keeps forever
}

// DefaultConfig contains the default configurations for the transaction pool.
func DefaultConfig() Config {
	return Config{
		GlobalSlots:  4096,
		AccountSlots: 64,
		Lifetime:     3 * time.Hour,
	}
}

// sanitize checks the provided user configurations and changes anything
// that's unreasonable or unworkable.
func (config *Config) sanitize(log logger.Instance) Config {
	conf := *config
	if conf.GlobalSlots < 1 {
		log.Log.WithField("provided", conf.GlobalSlots).WithField("updated", DefaultConfig().GlobalSlots).Warn("Sanitizing invalid txpool global slots")
		conf.GlobalSlots = DefaultConfig().GlobalSlots
	}
	if conf.AccountSlots < 1 {
		log.Log.WithField("provided", conf.AccountSlots).WithField("updated", DefaultConfig().AccountSlots).Warn("Sanitizing invalid txpool account slots")
		conf.AccountSlots = DefaultConfig().AccountSlots
	}
	if conf.Lifetime < 0 {
		conf.Lifetime = 0
	}
	return conf
}

type entry struct {
	tx    *inter.Transfer
	id    hash.Hash
	added time.Time
}

// Pool is safe for concurrent use.
type Pool struct {
	logger.Instance

	config Config
	scheme crypto.Scheme
	clock  clock.Clock

	mu      sync.RWMutex
	order   []*entry
	all     map[hash.Hash]*entry
	debits  map[accountpk.PubKey]int64
	senders map[accountpk.PubKey]int
}

// New creates a pool verifying signatures with scheme and ageing entries on
// clk. A nil clk uses the wall clock.
func New(config Config, scheme crypto.Scheme, clk clock.Clock, log logger.Instance) *Pool {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	p := &Pool{
		Instance: log,
		config:   config.sanitize(log),
		scheme:   scheme,
		clock:    clk,
	}
	p.reset()
	return p
}

func (p *Pool) reset() {
	p.order = nil
	p.all = make(map[hash.Hash]*entry)
	p.debits = make(map[accountpk.PubKey]int64)
	p.senders = make(map[accountpk.PubKey]int)
}

// Add validates tx against view and appends it. On error the pool is
// unchanged.
func (p *Pool) Add(tx inter.Transaction, view View) error {
	var transfer *inter.Transfer
	switch tx := tx.(type) {
	case *inter.Coinbase:
		return fmt.Errorf("%w: coinbase cannot be pooled", inter.ErrInvalidCoinbase)
	case *inter.Transfer:
		transfer = tx
	default:
		return fmt.Errorf("%w: unknown transaction", inter.ErrInvalidSignature)
	}
	if err := inter.CheckTransfer(p.scheme, transfer); err != nil {
		return err
	}
	id := transfer.ID()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.all[id]; ok {
		return fmt.Errorf("%w: %s is already pooled", inter.ErrDuplicateTransaction, inter.HashHex(id))
	}
	if view.Confirmed(id) {
		return fmt.Errorf("%w: %s is already confirmed", inter.ErrDuplicateTransaction, inter.HashHex(id))
	}
	if p.senders[transfer.From] >= p.config.AccountSlots {
		return fmt.Errorf("%w: %s has %d pooled", ErrAccountOverflow, transfer.From.Short(), p.senders[transfer.From])
	}
	if len(p.order) >= p.config.GlobalSlots {
		return ErrTxPoolOverflow
	}
	spendable := view.Balance(transfer.From) - p.debits[transfer.From]
	if spendable < transfer.Amount {
		return fmt.Errorf("%w: %s can spend %d, needs %d", inter.ErrInsufficientFunds, transfer.From.Short(), spendable, transfer.Amount)
	}

	p.insert(&entry{tx: transfer, id: id, added: p.clock.Now()})
	return nil
}

func (p *Pool) insert(e *entry) {
	p.order = append(p.order, e)
	p.all[e.id] = e
	p.debits[e.tx.From] += e.tx.Amount
	p.senders[e.tx.From]++
}

// RemoveIncluded drops every transaction of b from the pool.
func (p *Pool) RemoveIncluded(b *inter.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	included := make(map[hash.Hash]struct{}, len(b.Txs))
	for _, tx := range b.Txs {
		if _, ok := p.all[tx.ID()]; ok {
			included[tx.ID()] = struct{}{}
		}
	}
	if len(included) == 0 {
		return
	}
	old := p.order
	p.reset()
	for _, e := range old {
		if _, ok := included[e.id]; !ok {
			p.insert(e)
		}
	}
}

// Revalidate rebuilds the pool against view in insertion order. Members
// that are confirmed, expired or no longer funded are dropped; the rest keep
// their order. It returns the number of dropped members.
func (p *Pool) Revalidate(view View) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	old := p.order
	p.reset()
	dropped := 0
	for _, e := range old {
		switch {
		case view.Confirmed(e.id):
		case p.config.Lifetime > 0 && now.Sub(e.added) > p.config.Lifetime:
			p.Log.WithField("tx", inter.HashHex(e.id)).Debug("Pooled transfer expired")
		case view.Balance(e.tx.From)-p.debits[e.tx.From] < e.tx.Amount:
			p.Log.WithField("tx", inter.HashHex(e.id)).Debug("Pooled transfer no longer funded")
		default:
			p.insert(e)
			continue
		}
		dropped++
	}
	return dropped
}

// Reinject offers transfers from discarded blocks back to the pool. Invalid
// or already present ones are skipped silently. It returns how many were
// admitted.
func (p *Pool) Reinject(txs []*inter.Transfer, view View) int {
	n := 0
	for _, tx := range txs {
		if p.Add(tx, view) == nil {
			n++
		}
	}
	return n
}

// Has reports whether a transfer with id is pooled.
func (p *Pool) Has(id hash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.all[id]
	return ok
}

// Len returns the number of pooled transfers.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// PendingDebit returns the sum of pooled amounts sent by pk.
func (p *Pool) PendingDebit(pk accountpk.PubKey) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.debits[pk]
}

// Snapshot iterates over a copy of the pool taken at call time, in
// insertion order. The sequence may be ranged over more than once.
func (p *Pool) Snapshot() iter.Seq[*inter.Transfer] {
	p.mu.RLock()
	txs := make([]*inter.Transfer, len(p.order))
	for i, e := range p.order {
		txs[i] = e.tx
	}
	p.mu.RUnlock()

	return func(yield func(*inter.Transfer) bool) {
		for _, tx := range txs {
			if !yield(tx) {
				return
			}
		}
	}
}

// Pending returns up to max pooled transfers in insertion order, all of them
// when max is negative.
func (p *Pool) Pending(max int) []*inter.Transfer {
	var out []*inter.Transfer
	for tx := range p.Snapshot() {
		if max >= 0 && len(out) >= max {
			break
		}
		out = append(out, tx)
	}
	return out
}
