// Package ledger folds transactions into account balances.
//
// A State is a cache derived from the canonical chain and is rebuilt from
// it whenever the chain changes shape. Validation never writes to the live
// state directly: it forks an overlay, applies a block or a whole chain
// suffix to the overlay, and commits only when everything applied.
package ledger

import (
	"fmt"
	"math"

	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/inter/accountpk"
)

// Balances is the read side of a State.
type Balances interface {
	Balance(pk accountpk.PubKey) int64
}

// State maps accounts to balances, optionally on top of a parent State.
// It is not safe for concurrent use; the chain manager serializes access.
type State struct {
	parent   *State
	balances map[accountpk.PubKey]int64
}

// New returns an empty state.
func New() *State {
	return &State{balances: make(map[accountpk.PubKey]int64)}
}

// Balance returns the balance of pk, zero for unknown accounts.
func (s *State) Balance(pk accountpk.PubKey) int64 {
	for st := s; st != nil; st = st.parent {
		if v, ok := st.balances[pk]; ok {
			return v
		}
	}
	return 0
}

// Fork returns an overlay whose writes stay invisible to s until Commit.
// s must not be written while the overlay is alive.
func (s *State) Fork() *State {
	return &State{parent: s, balances: make(map[accountpk.PubKey]int64)}
}

// Commit writes the overlay into its parent.
func (s *State) Commit() {
	if s.parent == nil {
		panic("ledger: commit of a root state")
	}
	for pk, v := range s.balances {
		s.parent.balances[pk] = v
	}
	s.balances = make(map[accountpk.PubKey]int64)
}

// Apply folds one transaction. On error nothing is changed.
func (s *State) Apply(tx inter.Transaction) error {
	amount := tx.Value()
	if amount <= 0 {
		return fmt.Errorf("%w: %d", inter.ErrInvalidAmount, amount)
	}
	from, to := tx.Sender(), tx.Recipient()

	var fromBal int64
	if !from.IsCoinbase() {
		fromBal = s.Balance(from)
		if fromBal < amount {
			return fmt.Errorf("%w: %s has %d, needs %d", inter.ErrInsufficientFunds, from.Short(), fromBal, amount)
		}
	}
	toBal := s.Balance(to)
	if to == from {
		toBal -= amount
	}
	if toBal > math.MaxInt64-amount {
		return fmt.Errorf("%w: balance of %s overflows", inter.ErrInvalidAmount, to.Short())
	}

	if !from.IsCoinbase() {
		s.balances[from] = fromBal - amount
	}
	s.balances[to] = toBal + amount
	return nil
}

// ApplyBlock folds every transaction of b in order. On error s holds a
// partial fold and must be discarded; apply to a Fork to keep the parent.
func (s *State) ApplyBlock(b *inter.Block) error {
	for i, tx := range b.Txs {
		if err := s.Apply(tx); err != nil {
			return fmt.Errorf("block %d tx %d: %w", b.Height, i, err)
		}
	}
	return nil
}

// Replay folds blocks from an empty state.
func Replay(blocks []*inter.Block) (*State, error) {
	st := New()
	for _, b := range blocks {
		if err := st.ApplyBlock(b); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Flatten returns an independent root State with the same balances.
func (s *State) Flatten() *State {
	out := New()
	for pk, v := range s.Accounts() {
		out.balances[pk] = v
	}
	return out
}

// Accounts returns a snapshot of every known balance.
func (s *State) Accounts() map[accountpk.PubKey]int64 {
	chain := []*State{}
	for st := s; st != nil; st = st.parent {
		chain = append(chain, st)
	}
	out := make(map[accountpk.PubKey]int64)
	for i := len(chain) - 1; i >= 0; i-- {
		for pk, v := range chain[i].balances {
			out[pk] = v
		}
	}
	return out
}
