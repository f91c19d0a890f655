package chain

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-powchain/inter"
)

// ChainEvent announces a new canonical tip.
type ChainEvent struct {
	// Tip is the new head of the chain.
	Tip *inter.Block
	// Reorg is set when canonical blocks were replaced.
	Reorg bool
	// ForkHeight is the height of the first block in Added.
	ForkHeight idx.Block
	// Added are the new canonical blocks in height order.
	Added []*inter.Block
	// Removed are the replaced blocks in height order.
	Removed []*inter.Block
}

func (m *Manager) emit(ev ChainEvent) {
	select {
	case m.events.ChanIn() <- ev:
	case <-m.quit:
	}
}

// dispatch forwards queued events to the feed outside the chain lock.
//
// NOTE: MUST be run as a goroutine.
func (m *Manager) dispatch() {
	defer m.wg.Done()

	for {
		select {
		case item, ok := <-m.events.ChanOut():
			if !ok {
				return
			}
			m.feed.Send(item.(ChainEvent))
		case <-m.quit:
			return
		}
	}
}
