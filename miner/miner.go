// Package miner searches proof of work for new blocks on top of the chain.
//
// Each worker repeatedly takes a template from the backend, builds a
// candidate paying the configured coinbase and scans its own slice of the
// nonce space. Whenever the canonical tip changes every running round is
// cancelled and the workers start over on the new tip. Found blocks are
// submitted as is; a rejected block is never retried.
package miner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/errgroup"

	"github.com/rony4d/go-powchain/chain"
	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/logger"
	"github.com/rony4d/go-powchain/pow"
	"github.com/rony4d/go-powchain/powchain"
)

var (
	// ErrNoCoinbase is returned by New without a reward recipient.
	ErrNoCoinbase = errors.New("miner coinbase is not set")

	errDetached = errors.New("chain event subscription closed")
)

// Backend is the chain as the miner uses it. *chain.Manager implements it.
type Backend interface {
	Rules() powchain.Rules
	MiningTemplate(max int) chain.Template
	SubmitBlock(b *inter.Block) error
	SubscribeChainEvents(ch chan<- chain.ChainEvent) event.Subscription
}

// Config of the miner.
type Config struct {
	// Workers is the number of concurrent search goroutines.
	Workers int
	// Coinbase receives the reward of every mined block.
	Coinbase accountpk.PubKey
	Strategy pow.Strategy
	// MaxTxs caps the transfers per candidate below the rules limit.
	// Negative uses the rules limit.
	MaxTxs int
}

// DefaultConfig returns the miner config used when none is set.
func DefaultConfig() Config {
	return Config{
		Workers: 1,
		MaxTxs:  -1,
	}
}

// Miner is safe for concurrent use.
type Miner struct {
	logger.Instance

	config  Config
	backend Backend
	clock   clock.Clock
	metrics *Metrics

	mu     sync.Mutex
	rounds map[int]context.CancelFunc
	run    *run
}

// run is one Start..Stop cycle. done is closed once every goroutine of the
// cycle has returned and err holds what ended it.
type run struct {
	cancel context.CancelFunc
	sub    event.Subscription
	done   chan struct{}
	err    error
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// New creates an idle miner. A nil clk uses the wall clock, nil metrics
// are created internally.
func New(config Config, backend Backend, clk clock.Clock, metrics *Metrics, log logger.Instance) (*Miner, error) {
	if config.Coinbase.IsCoinbase() {
		return nil, ErrNoCoinbase
	}
	if config.Workers < 1 {
		return nil, fmt.Errorf("miner needs at least one worker, got %d", config.Workers)
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Miner{
		Instance: log,
		config:   config,
		backend:  backend,
		clock:    clk,
		metrics:  metrics,
		rounds:   make(map[int]context.CancelFunc),
	}, nil
}

// Metrics returns the counters of m.
func (m *Miner) Metrics() *Metrics {
	return m.metrics
}

// Start launches the workers. It is a no-op when already running. A miner
// that detached from the chain on its own can be started again.
func (m *Miner) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run != nil && !m.run.finished() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan chain.ChainEvent, 16)
	sub := m.backend.SubscribeChainEvents(events)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.watch(gctx, events, sub)
	})
	for i := 0; i < m.config.Workers; i++ {
		worker := i
		g.Go(func() error {
			m.work(gctx, worker)
			return nil
		})
	}

	r := &run{cancel: cancel, sub: sub, done: make(chan struct{})}
	go func() {
		r.err = g.Wait()
		close(r.done)
	}()
	m.run = r
	m.Log.WithField("workers", m.config.Workers).
		WithField("coinbase", m.config.Coinbase.Short()).
		WithField("strategy", m.config.Strategy).
		Info("Miner started")
}

// Stop cancels every round and waits for the workers. It returns the error
// that ended mining early, if any.
func (m *Miner) Stop() error {
	m.mu.Lock()
	r := m.run
	m.run = nil
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	r.cancel()
	r.sub.Unsubscribe()
	<-r.done
	m.Log.Info("Miner stopped")
	return r.err
}

// Running reports whether workers are active. It turns false as soon as
// the miner detaches from the chain, before Stop is called.
func (m *Miner) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run != nil && !m.run.finished()
}

func (m *Miner) watch(ctx context.Context, events <-chan chain.ChainEvent, sub event.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Tip != nil {
				m.Log.WithField("height", ev.Tip.Height).Debug("Tip changed, restarting rounds")
			}
			m.cancelRounds()
		case err := <-sub.Err():
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errDetached
			}
			m.Log.WithError(err).Error("Miner lost the chain")
			return err
		}
	}
}

func (m *Miner) register(worker int, cancel context.CancelFunc) {
	m.mu.Lock()
	m.rounds[worker] = cancel
	m.mu.Unlock()
}

func (m *Miner) unregister(worker int) {
	m.mu.Lock()
	delete(m.rounds, worker)
	m.mu.Unlock()
}

func (m *Miner) cancelRounds() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cancel := range m.rounds {
		cancel()
	}
}

func (m *Miner) work(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		// the round is registered before the template is read so a tip
		// change in between still cancels it
		roundCtx, cancel := context.WithCancel(ctx)
		m.register(worker, cancel)
		m.round(roundCtx, worker)
		m.unregister(worker)
		cancel()
	}
}

func (m *Miner) round(ctx context.Context, worker int) {
	rules := m.backend.Rules()
	tmpl := m.backend.MiningTemplate(m.config.MaxTxs)
	coinbase := inter.NewCoinbase(m.config.Coinbase, rules.Mining.Reward, tmpl.Height)
	candidate := inter.Assemble(tmpl.Parent.Hash, tmpl.Height, coinbase, tmpl.Txs, inter.FromTime(m.clock.Now()))

	stride := uint64(m.config.Workers)
	start := m.config.Strategy.FirstNonce(uint64(worker), stride)
	b, tried, err := pow.Mine(ctx, candidate, rules.Mining.MinZeros, start, stride)
	m.metrics.HashesTried.Add(float64(tried))
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		m.Log.WithError(err).WithField("worker", worker).Warn("Nonce search failed")
		return
	}
	m.metrics.BlocksFound.Inc()

	log := m.Log.WithField("worker", worker).WithField("height", b.Height).WithField("hash", inter.HashHex(b.Hash))
	if err := m.backend.SubmitBlock(b); err != nil {
		m.metrics.BlocksRejected.Inc()
		if errors.Is(err, inter.ErrStaleTip) {
			log.WithError(err).Debug("Mined block is stale")
		} else {
			log.WithError(err).Warn("Mined block rejected")
		}
		return
	}
	log.WithField("txs", len(b.Txs)-1).Info("Mined block")
}
