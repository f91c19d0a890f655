package node

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/lightningnetwork/lnd/queue"

	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/logger"
)

// Peer is what a LocalNetwork delivers messages to. *Node implements it.
type Peer interface {
	HandleIncomingTransaction(from string, tx inter.Transaction) error
	HandleIncomingBlock(from string, b *inter.Block) error
	HandleIncomingChain(from string, blocks []*inter.Block) error
	ChainSnapshot() []*inter.Block
}

type msgKind uint8

const (
	txMsg msgKind = iota
	blockMsg
	chainRequestMsg
	chainMsg
)

// message is encoded as on a wire so that nodes never share pointers.
type message struct {
	from    string
	kind    msgKind
	payload []byte
}

type member struct {
	id    string
	peer  Peer
	inbox *queue.ConcurrentQueue
	quit  chan struct{}
	wg    sync.WaitGroup
}

// LocalNetwork connects peers in one process. Every peer has its own
// unbounded inbox drained by one goroutine, so a slow peer never blocks
// senders and messages from one sender arrive in order.
type LocalNetwork struct {
	logger.Instance

	mu      sync.RWMutex
	members map[string]*member
}

// NewLocalNetwork creates an empty in-process network.
func NewLocalNetwork(log logger.Instance) *LocalNetwork {
	return &LocalNetwork{
		Instance: log,
		members:  make(map[string]*member),
	}
}

// Join attaches peer under id and returns the transport it sends with.
func (n *LocalNetwork) Join(id string, peer Peer) (Transport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.members[id]; ok {
		return nil, fmt.Errorf("peer %s already joined", id)
	}
	m := &member{
		id:    id,
		peer:  peer,
		inbox: queue.NewConcurrentQueue(64),
		quit:  make(chan struct{}),
	}
	m.inbox.Start()
	m.wg.Add(1)
	go n.serve(m)
	n.members[id] = m
	return &localTransport{net: n, id: id}, nil
}

// Leave detaches id and drops its undelivered messages.
func (n *LocalNetwork) Leave(id string) {
	n.mu.Lock()
	m, ok := n.members[id]
	delete(n.members, id)
	n.mu.Unlock()
	if ok {
		m.stop()
	}
}

// Close detaches every peer.
func (n *LocalNetwork) Close() {
	for _, id := range n.Peers() {
		n.Leave(id)
	}
}

// Peers lists the joined ids in order.
func (n *LocalNetwork) Peers() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]string, 0, len(n.members))
	for id := range n.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *member) stop() {
	close(m.quit)
	m.wg.Wait()
	m.inbox.Stop()
}

func (n *LocalNetwork) send(to string, msg message) {
	n.mu.RLock()
	m, ok := n.members[to]
	n.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case m.inbox.ChanIn() <- msg:
	case <-m.quit:
	}
}

func (n *LocalNetwork) broadcast(msg message) {
	for _, id := range n.Peers() {
		if id != msg.from {
			n.send(id, msg)
		}
	}
}

// serve drains the inbox of m.
//
// NOTE: MUST be run as a goroutine.
func (n *LocalNetwork) serve(m *member) {
	defer m.wg.Done()
	for {
		select {
		case item, ok := <-m.inbox.ChanOut():
			if !ok {
				return
			}
			if err := n.deliver(m, item.(message)); err != nil {
				n.Log.WithField("to", m.id).WithError(err).Warn("Dropping undecodable message")
			}
		case <-m.quit:
			return
		}
	}
}

func (n *LocalNetwork) deliver(m *member, msg message) error {
	switch msg.kind {
	case txMsg:
		tx, err := inter.UnmarshalTransaction(msg.payload)
		if err != nil {
			return err
		}
		_ = m.peer.HandleIncomingTransaction(msg.from, tx)
	case blockMsg:
		b := new(inter.Block)
		if err := b.UnmarshalBinary(msg.payload); err != nil {
			return err
		}
		_ = m.peer.HandleIncomingBlock(msg.from, b)
	case chainRequestMsg:
		payload, err := encodeChain(m.peer.ChainSnapshot())
		if err != nil {
			return err
		}
		n.send(msg.from, message{from: m.id, kind: chainMsg, payload: payload})
	case chainMsg:
		blocks, err := decodeChain(msg.payload)
		if err != nil {
			return err
		}
		_ = m.peer.HandleIncomingChain(msg.from, blocks)
	default:
		return fmt.Errorf("unknown message kind %d", msg.kind)
	}
	return nil
}

func encodeChain(blocks []*inter.Block) ([]byte, error) {
	raws := make([][]byte, len(blocks))
	for i, b := range blocks {
		raw, err := b.MarshalBinary()
		if err != nil {
			return nil, err
		}
		raws[i] = raw
	}
	return rlp.EncodeToBytes(raws)
}

func decodeChain(payload []byte) ([]*inter.Block, error) {
	var raws [][]byte
	if err := rlp.DecodeBytes(payload, &raws); err != nil {
		return nil, err
	}
	blocks := make([]*inter.Block, len(raws))
	for i, raw := range raws {
		blocks[i] = new(inter.Block)
		if err := blocks[i].UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	return blocks, nil
}

type localTransport struct {
	net *LocalNetwork
	id  string
}

// BroadcastBlock delivers b to every other connected node.
func (t *localTransport) BroadcastBlock(b *inter.Block) {
	raw, err := b.MarshalBinary()
	if err != nil {
		t.net.Log.WithError(err).Error("Failed to encode block")
		return
	}
	t.net.broadcast(message{from: t.id, kind: blockMsg, payload: raw})
}

// BroadcastTransaction delivers tx to every other connected node.
func (t *localTransport) BroadcastTransaction(tx inter.Transaction) {
	raw, err := inter.MarshalTransaction(tx)
	if err != nil {
		t.net.Log.WithError(err).Error("Failed to encode transaction")
		return
	}
	t.net.broadcast(message{from: t.id, kind: txMsg, payload: raw})
}

// RequestChainFrom asks peer to push its full chain back to this node.
func (t *localTransport) RequestChainFrom(peer string) {
	t.net.send(peer, message{from: t.id, kind: chainRequestMsg})
}
