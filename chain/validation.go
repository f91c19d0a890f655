package chain

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/ledger"
	"github.com/rony4d/go-powchain/pow"
)

// verifyStateless runs the checks that need nothing but the block: shape,
// proof of work and the body checks of checkBody.
func (m *Manager) verifyStateless(b *inter.Block) error {
	if b == nil {
		return fmt.Errorf("%w: nil block", inter.ErrInvalidBlock)
	}
	if err := m.checkShape(b); err != nil {
		return err
	}
	if err := pow.Verify(b, m.rules.Mining.MinZeros); err != nil {
		return err
	}
	return m.checkBody(b)
}

func (m *Manager) checkShape(b *inter.Block) error {
	if len(b.Txs) == 0 {
		return fmt.Errorf("%w: block %d has no coinbase", inter.ErrInvalidCoinbase, b.Height)
	}
	for i, tx := range b.Txs {
		if isNilTx(tx) {
			return fmt.Errorf("%w: block %d tx %d is nil", inter.ErrInvalidBlock, b.Height, i)
		}
	}
	if transfers := len(b.Txs) - 1; transfers > m.rules.Blocks.MaxTxs {
		return fmt.Errorf("%w: block %d carries %d transfers, limit is %d", inter.ErrInvalidBlock, b.Height, transfers, m.rules.Blocks.MaxTxs)
	}
	for i, tx := range b.Txs[1:] {
		if _, ok := tx.(*inter.Transfer); !ok {
			return fmt.Errorf("%w: block %d tx %d is a %s", inter.ErrInvalidCoinbase, b.Height, i+1, tx.Kind())
		}
	}
	return nil
}

func isNilTx(tx inter.Transaction) bool {
	switch t := tx.(type) {
	case nil:
		return true
	case *inter.Coinbase:
		return t == nil
	case *inter.Transfer:
		return t == nil
	}
	return false
}

// checkBody verifies the coinbase, every transfer and the absence of
// duplicates inside b.
func (m *Manager) checkBody(b *inter.Block) error {
	cb := b.Coinbase()
	switch {
	case cb == nil:
		return fmt.Errorf("%w: block %d does not start with a coinbase", inter.ErrInvalidCoinbase, b.Height)
	case cb.Amount != m.rules.Mining.Reward:
		return fmt.Errorf("%w: block %d rewards %d, expected %d", inter.ErrInvalidCoinbase, b.Height, cb.Amount, m.rules.Mining.Reward)
	case cb.Height != b.Height:
		return fmt.Errorf("%w: coinbase of block %d is for height %d", inter.ErrInvalidCoinbase, b.Height, cb.Height)
	case cb.To.IsCoinbase():
		return fmt.Errorf("%w: block %d rewards the coinbase sentinel", inter.ErrInvalidCoinbase, b.Height)
	}

	seen := make(map[hash.Hash]struct{}, len(b.Txs))
	for i, tx := range b.Txs {
		if t, ok := tx.(*inter.Transfer); ok {
			if err := inter.CheckTransfer(m.scheme, t); err != nil {
				return fmt.Errorf("block %d tx %d: %w", b.Height, i, err)
			}
		}
		id := tx.ID()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: block %d repeats %s", inter.ErrDuplicateTransaction, b.Height, inter.HashHex(id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// verifyLinkage checks that b directly extends parent.
func verifyLinkage(b, parent *inter.Block) error {
	if b.PrevHash != parent.Hash {
		return fmt.Errorf("%w: block %d points to %s, parent is %s", inter.ErrInvalidLinkage, b.Height, inter.HashHex(b.PrevHash), inter.HashHex(parent.Hash))
	}
	if b.Height != parent.Height+1 {
		return fmt.Errorf("%w: block at height %d on parent at height %d", inter.ErrInvalidLinkage, b.Height, parent.Height)
	}
	return nil
}

// verifyTransactions folds b into an overlay of before, which must be the
// state right after b's parent. It rejects transactions confirmed below b
// and any transfer that overdraws its sender. The body checks of
// verifyStateless must have passed. The caller commits the overlay.
func verifyTransactions(b *inter.Block, before *ledger.State, confirmed func(hash.Hash) bool) (*ledger.State, error) {
	for _, tx := range b.Txs {
		if id := tx.ID(); confirmed(id) {
			return nil, fmt.Errorf("%w: block %d includes confirmed %s", inter.ErrDuplicateTransaction, b.Height, inter.HashHex(id))
		}
	}
	overlay := before.Fork()
	if err := overlay.ApplyBlock(b); err != nil {
		return nil, err
	}
	return overlay, nil
}
