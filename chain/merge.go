package chain

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/ledger"
)

// MergeChain adopts candidate if it is strictly taller than the canonical
// chain and valid from its fork point. candidate is a contiguous run of
// blocks starting at genesis or at a height whose parent is canonical.
//
// The suffix above the fork point is validated against a snapshot without
// holding the lock. The swap happens only if the chain did not move in the
// meantime; otherwise validation is repeated up to Config.MergeRetries
// times before giving up with ErrStaleTip.
//
// It reports whether the canonical chain was replaced. A candidate that is
// not taller is ignored without error.
func (m *Manager) MergeChain(candidate []*inter.Block) (bool, error) {
	if len(candidate) == 0 {
		return false, nil
	}
	if err := checkContiguous(candidate); err != nil {
		return false, err
	}

	for attempt := 0; attempt <= m.config.MergeRetries; attempt++ {
		snap, generation := m.snapshot()
		tip := snap[len(snap)-1]
		if candidate[len(candidate)-1].Height <= tip.Height {
			return false, nil
		}

		fork, err := m.forkPoint(candidate, snap)
		if err != nil {
			return false, err
		}
		if depth := m.rules.Blocks.MaxReorgDepth; depth > 0 && tip.Height+1-fork > depth {
			return false, fmt.Errorf("%w: fork at %d is %d blocks below tip %d", inter.ErrStaleTip, fork, tip.Height+1-fork, tip.Height)
		}

		suffix := candidate[fork-candidate[0].Height:]
		state, err := m.validateSuffix(snap[:fork], suffix)
		if err != nil {
			return false, err
		}

		m.mu.Lock()
		if m.generation != generation {
			m.mu.Unlock()
			m.Log.WithField("attempt", attempt).Debug("Chain moved during merge, revalidating")
			continue
		}
		m.adopt(snap, fork, suffix, state)
		m.mu.Unlock()
		return true, nil
	}
	return false, fmt.Errorf("%w: chain kept moving during merge", inter.ErrStaleTip)
}

func (m *Manager) snapshot() ([]*inter.Block, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*inter.Block(nil), m.blocks...), m.generation
}

func checkContiguous(blocks []*inter.Block) error {
	for i := 1; i < len(blocks); i++ {
		if blocks[i] == nil || blocks[i-1] == nil {
			return fmt.Errorf("%w: nil block in chain", inter.ErrInvalidBlock)
		}
		if err := verifyLinkage(blocks[i], blocks[i-1]); err != nil {
			return err
		}
	}
	if blocks[0] == nil {
		return fmt.Errorf("%w: nil block in chain", inter.ErrInvalidBlock)
	}
	return nil
}

// forkPoint returns the height of the first candidate block that is not
// already canonical in snap.
func (m *Manager) forkPoint(candidate, snap []*inter.Block) (idx.Block, error) {
	first := candidate[0]
	if first.Height == 0 {
		if first.Hash != m.genesis.Hash {
			return 0, fmt.Errorf("%w: candidate genesis %s differs", inter.ErrInvalidLinkage, inter.HashHex(first.Hash))
		}
	} else {
		if uint64(first.Height) > uint64(len(snap)) {
			return 0, fmt.Errorf("%w: candidate starts at %d above tip %d", inter.ErrInvalidLinkage, first.Height, len(snap)-1)
		}
		if err := verifyLinkage(first, snap[first.Height-1]); err != nil {
			return 0, err
		}
	}

	fork := first.Height
	for _, b := range candidate {
		if uint64(b.Height) >= uint64(len(snap)) || snap[b.Height].Hash != b.Hash {
			break
		}
		fork++
	}
	return fork, nil
}

// validateSuffix replays prefix then validates every block of suffix on top
// of it. It returns the folded state of the new chain.
func (m *Manager) validateSuffix(prefix, suffix []*inter.Block) (*ledger.State, error) {
	state, err := ledger.Replay(prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: canonical prefix: %v", ErrCorruptChain, err)
	}
	confirmed := make(map[hash.Hash]struct{})
	for _, b := range prefix {
		for _, tx := range b.Txs {
			confirmed[tx.ID()] = struct{}{}
		}
	}
	isConfirmed := func(id hash.Hash) bool {
		_, ok := confirmed[id]
		return ok
	}

	for _, b := range suffix {
		if err := m.verifyStateless(b); err != nil {
			return nil, err
		}
		overlay, err := verifyTransactions(b, state, isConfirmed)
		if err != nil {
			return nil, err
		}
		overlay.Commit()
		for _, tx := range b.Txs {
			confirmed[tx.ID()] = struct{}{}
		}
	}
	return state, nil
}

// adopt swaps in the new chain. Caller holds the write lock and has checked
// that snap is still canonical.
func (m *Manager) adopt(snap []*inter.Block, fork idx.Block, suffix []*inter.Block, state *ledger.State) {
	removed := snap[fork:]
	blocks := make([]*inter.Block, 0, int(fork)+len(suffix))
	blocks = append(blocks, snap[:fork]...)
	blocks = append(blocks, suffix...)
	m.install(blocks, state)

	for _, b := range suffix {
		m.pool.RemoveIncluded(b)
	}
	m.pool.Revalidate(view{m})
	var orphaned []*inter.Transfer
	for _, b := range removed {
		orphaned = append(orphaned, b.Transfers()...)
	}
	reinjected := m.pool.Reinject(orphaned, view{m})

	tip := blocks[len(blocks)-1]
	m.Log.WithField("height", tip.Height).
		WithField("fork", fork).
		WithField("removed", len(removed)).
		WithField("reinjected", reinjected).
		Info("Chain replaced")
	m.emit(ChainEvent{
		Tip:        tip,
		Reorg:      len(removed) > 0,
		ForkHeight: fork,
		Added:      suffix,
		Removed:    removed,
	})
}
