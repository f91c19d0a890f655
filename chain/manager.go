// Package chain owns the canonical chain, its ledger state and the mempool.
//
// The Manager linearizes every change of the canonical chain behind one
// mutex. Checks that need only the block itself (shape, proof of work,
// signatures) run before the lock is taken; linkage and balance replay run
// under it. Observers learn about new tips through SubscribeChainEvents and
// are called outside the lock.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/event"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/queue"

	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/ledger"
	"github.com/rony4d/go-powchain/logger"
	"github.com/rony4d/go-powchain/powchain"
	"github.com/rony4d/go-powchain/powchain/genesis"
	"github.com/rony4d/go-powchain/txpool"
)

// ErrCorruptChain is returned by New when stored history does not validate.
var ErrCorruptChain = errors.New("corrupt chain")

// Config tunes the manager. Consensus parameters live in powchain.Rules.
type Config struct {
	TxPool txpool.Config
	// EventBuffer is the initial capacity of the event queue.
	EventBuffer int
	// MergeRetries bounds how often MergeChain revalidates a candidate
	// after the canonical chain moved under it.
	MergeRetries int
}

// DefaultConfig returns the default pool, event queue and merge retry settings.
func DefaultConfig() Config {
	return Config{
		TxPool:       txpool.DefaultConfig(),
		EventBuffer:  16,
		MergeRetries: 3,
	}
}

// TxLocation is where a confirmed transaction sits.
type TxLocation struct {
	Height idx.Block
	Index  int
}

// RelevantTx is a transaction touching an account, confirmed or pooled.
type RelevantTx struct {
	Tx inter.Transaction
	// Height of the including block. Zero when Pending.
	Height  idx.Block
	Pending bool
}

// Template is what a miner needs to build a candidate on the current tip.
type Template struct {
	Parent *inter.Block
	Height idx.Block
	Txs    []*inter.Transfer
}

// Manager is safe for concurrent use.
type Manager struct {
	logger.Instance

	config  Config
	rules   powchain.Rules
	scheme  crypto.Scheme
	genesis *inter.Block

	mu         sync.RWMutex
	blocks     []*inter.Block
	byHash     map[hash.Hash]idx.Block
	txIndex    map[hash.Hash]TxLocation
	state      *ledger.State
	pool       *txpool.Pool
	generation uint64

	events *queue.ConcurrentQueue
	feed   event.Feed
	scope  event.SubscriptionScope

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds the genesis of rules and replays history on top of it.
// history is the stored chain including genesis, or empty for a fresh
// node. Any history that fails validation yields ErrCorruptChain.
func New(config Config, rules powchain.Rules, scheme crypto.Scheme, history []*inter.Block, clk clock.Clock, log logger.Instance) (*Manager, error) {
	g, err := genesis.Build(rules)
	if err != nil {
		return nil, err
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}
	if config.MergeRetries < 0 {
		config.MergeRetries = 0
	}

	m := &Manager{
		Instance: log,
		config:   config,
		rules:    rules,
		scheme:   scheme,
		genesis:  g,
		pool:     txpool.New(config.TxPool, scheme, clk, log.Named("txpool")),
		events:   queue.NewConcurrentQueue(config.EventBuffer),
		quit:     make(chan struct{}),
	}
	if err := m.verifyStateless(g); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	if len(history) == 0 {
		history = []*inter.Block{g}
	}
	if history[0].Hash != g.Hash {
		return nil, fmt.Errorf("%w: stored genesis %s, rules give %s", ErrCorruptChain, inter.HashHex(history[0].Hash), inter.HashHex(g.Hash))
	}
	if err := m.load(history); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptChain, err)
	}

	m.events.Start()
	m.wg.Add(1)
	go m.dispatch()

	m.Log.WithField("height", m.tip().Height).WithField("genesis", inter.HashHex(g.Hash)).Info("Chain loaded")
	return m, nil
}

func (m *Manager) load(history []*inter.Block) error {
	state := ledger.New()
	confirmed := make(map[hash.Hash]struct{})
	isConfirmed := func(id hash.Hash) bool {
		_, ok := confirmed[id]
		return ok
	}
	for i, b := range history {
		if err := m.verifyStateless(b); err != nil {
			return err
		}
		if i == 0 {
			if !b.IsGenesis() || b.PrevHash != (hash.Hash{}) {
				return fmt.Errorf("%w: stored genesis sits at height %d on %s", inter.ErrInvalidLinkage, b.Height, inter.HashHex(b.PrevHash))
			}
		} else if err := verifyLinkage(b, history[i-1]); err != nil {
			return err
		}
		overlay, err := verifyTransactions(b, state, isConfirmed)
		if err != nil {
			return err
		}
		overlay.Commit()
		for _, tx := range b.Txs {
			confirmed[tx.ID()] = struct{}{}
		}
	}
	m.install(append([]*inter.Block(nil), history...), state.Flatten())
	return nil
}

// install replaces the canonical chain and rebuilds the indexes. Caller
// holds the write lock or owns m exclusively.
func (m *Manager) install(blocks []*inter.Block, state *ledger.State) {
	m.blocks = blocks
	m.state = state
	m.byHash = make(map[hash.Hash]idx.Block, len(blocks))
	m.txIndex = make(map[hash.Hash]TxLocation)
	for _, b := range blocks {
		m.index(b)
	}
	m.generation++
}

func (m *Manager) index(b *inter.Block) {
	m.byHash[b.Hash] = b.Height
	for i, tx := range b.Txs {
		m.txIndex[tx.ID()] = TxLocation{Height: b.Height, Index: i}
	}
}

// Stop terminates event delivery and closes all subscriptions.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		m.scope.Close()
		m.events.Stop()
		m.wg.Wait()
	})
}

func (m *Manager) tip() *inter.Block {
	return m.blocks[len(m.blocks)-1]
}

// confirmedBelow reports transactions confirmed at or below height.
func (m *Manager) confirmedBelow(height idx.Block) func(hash.Hash) bool {
	return func(id hash.Hash) bool {
		loc, ok := m.txIndex[id]
		return ok && loc.Height <= height
	}
}

// view exposes the confirmed state to the pool. Use under the lock.
type view struct {
	m *Manager
}

func (v view) Balance(pk accountpk.PubKey) int64 {
	return v.m.state.Balance(pk)
}

func (v view) Confirmed(id hash.Hash) bool {
	_, ok := v.m.txIndex[id]
	return ok
}

// SubmitBlock appends b if it extends the current tip. A block that
// correctly extends a canonical block below the tip (it lost a race)
// yields ErrStaleTip; a block on an unknown parent or at the wrong height
// for its parent yields ErrInvalidLinkage.
// On error nothing changes.
func (m *Manager) SubmitBlock(b *inter.Block) error {
	if err := m.verifyStateless(b); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tip := m.tip()
	if b.PrevHash != tip.Hash {
		return m.classifyDetached(b, tip)
	}
	if err := verifyLinkage(b, tip); err != nil {
		return err
	}
	overlay, err := verifyTransactions(b, m.state, m.confirmedBelow(tip.Height))
	if err != nil {
		return err
	}
	overlay.Commit()

	m.blocks = append(m.blocks, b)
	m.index(b)
	m.generation++
	m.pool.RemoveIncluded(b)
	m.pool.Revalidate(view{m})

	m.Log.WithField("height", b.Height).WithField("hash", inter.HashHex(b.Hash)).WithField("txs", len(b.Txs)).Info("New tip")
	m.emit(ChainEvent{Tip: b, ForkHeight: b.Height, Added: []*inter.Block{b}})
	return nil
}

func (m *Manager) classifyDetached(b *inter.Block, tip *inter.Block) error {
	h, ok := m.byHash[b.PrevHash]
	if !ok {
		return fmt.Errorf("%w: parent %s of block %d is unknown", inter.ErrInvalidLinkage, inter.HashHex(b.PrevHash), b.Height)
	}
	if b.Height != h+1 {
		return fmt.Errorf("%w: block at height %d on canonical block %d", inter.ErrInvalidLinkage, b.Height, h)
	}
	return fmt.Errorf("%w: block %d extends canonical block %d, tip is %d", inter.ErrStaleTip, b.Height, h, tip.Height)
}

// AddTransaction admits tx to the pool against the current tip.
func (m *Manager) AddTransaction(tx inter.Transaction) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool.Add(tx, view{m})
}

// SubscribeChainEvents registers ch for every new tip. The subscriber must
// keep reading ch; delivery blocks on slow subscribers.
func (m *Manager) SubscribeChainEvents(ch chan<- ChainEvent) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

// MiningTemplate returns the tip and up to max pooled transfers, capped by
// the rules.
func (m *Manager) MiningTemplate(max int) Template {
	if max < 0 || max > m.rules.Blocks.MaxTxs {
		max = m.rules.Blocks.MaxTxs
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tip := m.tip()
	return Template{
		Parent: tip,
		Height: tip.Height + 1,
		Txs:    m.pool.Pending(max),
	}
}

// Rules returns the consensus rules the chain validates with.
func (m *Manager) Rules() powchain.Rules {
	return m.rules
}

// Genesis returns the first block of the canonical chain.
func (m *Manager) Genesis() *inter.Block {
	return m.genesis
}

// CurrentTip returns the block at the tip of the canonical chain.
func (m *Manager) CurrentTip() *inter.Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tip()
}

// Height returns the height of the canonical tip.
func (m *Manager) Height() idx.Block {
	return m.CurrentTip().Height
}

// BlockAt returns the canonical block at height h.
func (m *Manager) BlockAt(h idx.Block) (*inter.Block, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(h) >= uint64(len(m.blocks)) {
		return nil, false
	}
	return m.blocks[h], true
}

// BlockByHash returns the canonical block with hash h.
func (m *Manager) BlockByHash(h hash.Hash) (*inter.Block, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	height, ok := m.byHash[h]
	if !ok {
		return nil, false
	}
	return m.blocks[height], true
}

// Blocks returns a copy of the canonical chain, genesis first.
func (m *Manager) Blocks() []*inter.Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*inter.Block(nil), m.blocks...)
}

// Balance returns the confirmed balance of pk.
func (m *Manager) Balance(pk accountpk.PubKey) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Balance(pk)
}

// Balances returns every confirmed balance.
func (m *Manager) Balances() map[accountpk.PubKey]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Accounts()
}

// Transaction looks up a confirmed transaction by id.
func (m *Manager) Transaction(id hash.Hash) (inter.Transaction, TxLocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.txIndex[id]
	if !ok {
		return nil, TxLocation{}, false
	}
	return m.blocks[loc.Height].Txs[loc.Index], loc, true
}

// RelevantTransactions lists every confirmed then pooled transaction that
// pk sends or receives, oldest first.
func (m *Manager) RelevantTransactions(pk accountpk.PubKey) []RelevantTx {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RelevantTx
	for _, b := range m.blocks {
		for _, tx := range b.Txs {
			if inter.Touches(tx, pk) {
				out = append(out, RelevantTx{Tx: tx, Height: b.Height})
			}
		}
	}
	for tx := range m.pool.Snapshot() {
		if inter.Touches(tx, pk) {
			out = append(out, RelevantTx{Tx: tx, Pending: true})
		}
	}
	return out
}

// PendingCount returns the number of pooled transfers.
func (m *Manager) PendingCount() int {
	return m.pool.Len()
}

// Pending returns the pooled transfers in insertion order.
func (m *Manager) Pending() []*inter.Transfer {
	return m.pool.Pending(-1)
}
