// Package node wires the chain manager, miner, store and a transport into
// one running participant of a powchain network.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rony4d/go-powchain/chain"
	"github.com/rony4d/go-powchain/chainstore"
	"github.com/rony4d/go-powchain/crypto"
	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/inter/accountpk"
	"github.com/rony4d/go-powchain/logger"
	"github.com/rony4d/go-powchain/metrics"
	"github.com/rony4d/go-powchain/miner"
	"github.com/rony4d/go-powchain/powchain"
)

// Transport carries messages to the other nodes of the network.
type Transport interface {
	BroadcastBlock(b *inter.Block)
	BroadcastTransaction(tx inter.Transaction)
	// RequestChainFrom asks peer for its whole chain. The answer arrives
	// through HandleIncomingChain.
	RequestChainFrom(peer string)
}

// Node is safe for concurrent use.
type Node struct {
	logger.Instance

	config Config
	chain  *chain.Manager
	store  *chainstore.Store
	miner  *miner.Miner

	stats    *metrics.Node
	registry *prometheus.Registry

	mu        sync.RWMutex
	transport Transport

	events chan chain.ChainEvent
	sub    event.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the store, replays it into a chain manager and prepares the
// miner. Nothing runs until Start.
func New(config Config, rules powchain.Rules, scheme crypto.Scheme, log logger.Instance) (*Node, error) {
	log = log.Named(config.Name)

	var store *chainstore.Store
	if config.DataDir == "" {
		store = chainstore.NewMemory(log.Named("store"))
	} else {
		var err error
		store, err = chainstore.OpenLevelDB(config.DataDir, config.DBCache, config.DBHandles, log.Named("store"))
		if err != nil {
			return nil, err
		}
	}

	history, err := store.Load()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", chain.ErrCorruptChain, err)
	}
	c, err := chain.New(config.Chain, rules, scheme, history, nil, log.Named("chain"))
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(history) == 0 {
		if err := store.Append(c.Genesis()); err != nil {
			c.Stop()
			store.Close()
			return nil, err
		}
	}

	n := &Node{
		Instance: log,
		config:   config,
		chain:    c,
		store:    store,
		stats:    metrics.NewNode(),
		events:   make(chan chain.ChainEvent, 64),
	}
	// subscribe before any handler can change the chain so that the
	// store sees every event
	n.sub = c.SubscribeChainEvents(n.events)
	var extra []prometheus.Collector
	if config.Mine {
		n.miner, err = miner.New(config.Miner, c, nil, nil, log.Named("miner"))
		if err != nil {
			c.Stop()
			store.Close()
			return nil, err
		}
		extra = n.miner.Metrics().Collectors()
	}
	n.registry = metrics.NewRegistry(c, n.stats, extra...)
	return n, nil
}

// SetTransport connects the node to a network. It may be called before or
// after Start.
func (n *Node) SetTransport(t Transport) {
	n.mu.Lock()
	n.transport = t
	n.mu.Unlock()
}

func (n *Node) net() Transport {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.transport
}

// Start runs the event loop, the miner and the metrics server.
func (n *Node) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer n.sub.Unsubscribe()
		for {
			select {
			case ev := <-n.events:
				n.onChainEvent(ev)
			case <-n.sub.Err():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if n.config.MetricsAddr != "" {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := metrics.Serve(ctx, n.config.MetricsAddr, n.registry, n.Named("metrics")); err != nil {
				n.Log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	n.StartMining(ctx)
	n.Log.WithField("height", n.chain.Height()).Info("Node started")
}

// StartMining resumes the miner. It does nothing on a node built without
// Config.Mine.
func (n *Node) StartMining(ctx context.Context) {
	if n.miner != nil {
		n.miner.Start(ctx)
	}
}

// StopMining pauses the miner.
func (n *Node) StopMining() error {
	if n.miner == nil {
		return nil
	}
	return n.miner.Stop()
}

// Stop shuts everything down and closes the store.
func (n *Node) Stop() error {
	var errs []error
	errs = append(errs, n.StopMining())
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	n.chain.Stop()
	// events still queued at shutdown never reached the store
	errs = append(errs, n.store.Sync(n.chain.Blocks()))
	errs = append(errs, n.store.Close())
	n.Log.Info("Node stopped")
	return errors.Join(errs...)
}

func (n *Node) onChainEvent(ev chain.ChainEvent) {
	var err error
	if ev.Reorg {
		n.stats.Reorgs.Inc()
		err = n.store.Rewind(ev.ForkHeight, ev.Added)
	} else {
		err = n.store.Append(ev.Added...)
	}
	if err != nil {
		n.Log.WithError(err).WithField("height", ev.Tip.Height).Error("Failed to persist chain")
	}
	n.stats.BlocksAccepted.Add(float64(len(ev.Added)))

	if t := n.net(); t != nil {
		t.BroadcastBlock(ev.Tip)
	}
}

// HandleIncomingTransaction admits a transaction relayed by peer and
// relays it further when new.
func (n *Node) HandleIncomingTransaction(from string, tx inter.Transaction) error {
	if err := n.chain.AddTransaction(tx); err != nil {
		n.reject("tx", from, err)
		return err
	}
	if t := n.net(); t != nil {
		t.BroadcastTransaction(tx)
	}
	return nil
}

// HandleIncomingBlock submits a block relayed by peer. A block that does
// not fit the local tip makes the node ask peer for its chain.
func (n *Node) HandleIncomingBlock(from string, b *inter.Block) error {
	err := n.chain.SubmitBlock(b)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inter.ErrStaleTip):
		n.Log.WithField("peer", from).WithField("height", b.Height).Trace("Ignoring stale block")
		return err
	case errors.Is(err, inter.ErrInvalidLinkage) && b.Height > n.chain.Height():
		n.Log.WithField("peer", from).WithField("height", b.Height).Debug("Block on unknown parent, requesting chain")
		if t := n.net(); t != nil {
			t.RequestChainFrom(from)
		}
		return err
	}
	n.reject("block", from, err)
	return err
}

// HandleIncomingChain merges a full chain received from peer.
func (n *Node) HandleIncomingChain(from string, blocks []*inter.Block) error {
	replaced, err := n.chain.MergeChain(blocks)
	if err != nil {
		n.reject("chain", from, err)
		return err
	}
	if replaced {
		n.Log.WithField("peer", from).WithField("height", n.chain.Height()).Info("Adopted peer chain")
	}
	return nil
}

// ChainSnapshot answers chain requests of peers.
func (n *Node) ChainSnapshot() []*inter.Block {
	return n.chain.Blocks()
}

func (n *Node) reject(kind, from string, err error) {
	n.stats.PeerRejects.WithLabelValues(kind).Inc()
	n.Log.WithField("peer", from).WithField("kind", kind).WithError(err).Debug("Rejected peer input")
}

// GetBalance returns the confirmed balance of pk.
func (n *Node) GetBalance(pk accountpk.PubKey) int64 {
	return n.chain.Balance(pk)
}

// GetRelevantTransactions lists confirmed and pooled transactions sending
// to or from pk.
func (n *Node) GetRelevantTransactions(pk accountpk.PubKey) []chain.RelevantTx {
	return n.chain.RelevantTransactions(pk)
}

// GetPending returns the pooled transfers.
func (n *Node) GetPending() []*inter.Transfer {
	return n.chain.Pending()
}

// SubmitTransaction pools a locally created transaction and broadcasts it.
// Validation errors are returned verbatim.
func (n *Node) SubmitTransaction(tx inter.Transaction) error {
	if err := n.chain.AddTransaction(tx); err != nil {
		return err
	}
	if t := n.net(); t != nil {
		t.BroadcastTransaction(tx)
	}
	return nil
}

// Chain exposes the chain manager for queries.
func (n *Node) Chain() *chain.Manager {
	return n.chain
}

// Registry returns the prometheus registry of the node.
func (n *Node) Registry() *prometheus.Registry {
	return n.registry
}

// Name returns the node's network name.
func (n *Node) Name() string {
	return n.config.Name
}
