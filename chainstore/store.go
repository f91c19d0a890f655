// Package chainstore persists the canonical chain in a key-value database.
//
// Layout:
//
//	'b' ++ bigendian(height) -> block, cser encoded
//	'h'                      -> bigendian(tip height)
//
// The head key is written last in every batch, so a crash never leaves it
// pointing past the stored blocks.
package chainstore

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"

	"github.com/rony4d/go-powchain/inter"
	"github.com/rony4d/go-powchain/logger"
)

var (
	blockPrefix = []byte("b")
	headKey     = []byte("h")
)

// ErrGap is returned when a write does not continue the stored chain.
var ErrGap = errors.New("chainstore: non contiguous write")

// Store is safe for concurrent use as long as writes come from one
// goroutine.
type Store struct {
	logger.Instance

	db ethdb.KeyValueStore
}

// New wraps db.
func New(db ethdb.KeyValueStore, log logger.Instance) *Store {
	return &Store{Instance: log, db: db}
}

// NewMemory returns a store that lives only in memory.
func NewMemory(log logger.Instance) *Store {
	return New(memorydb.New(), log)
}

// OpenLevelDB opens or creates the on-disk database in dir.
func OpenLevelDB(dir string, cacheMB, handles int, log logger.Instance) (*Store, error) {
	db, err := leveldb.New(dir, cacheMB, handles, "powchain/db/", false)
	if err != nil {
		return nil, fmt.Errorf("open chain database %s: %w", dir, err)
	}
	return New(db, log), nil
}

func blockKey(height idx.Block) []byte {
	return append(append([]byte{}, blockPrefix...), bigendian.Uint64ToBytes(uint64(height))...)
}

// Head returns the stored tip height. ok is false for an empty store.
func (s *Store) Head() (idx.Block, bool, error) {
	has, err := s.db.Has(headKey)
	if err != nil || !has {
		return 0, false, err
	}
	raw, err := s.db.Get(headKey)
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("chainstore: malformed head %x", raw)
	}
	return idx.Block(bigendian.BytesToUint64(raw)), true, nil
}

// Block reads the block at height.
func (s *Store) Block(height idx.Block) (*inter.Block, error) {
	raw, err := s.db.Get(blockKey(height))
	if err != nil {
		return nil, fmt.Errorf("chainstore: block %d: %w", height, err)
	}
	b := new(inter.Block)
	if err := b.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("chainstore: block %d: %w", height, err)
	}
	if b.Height != height {
		return nil, fmt.Errorf("chainstore: block under key %d claims height %d", height, b.Height)
	}
	return b, nil
}

// Load reads the whole stored chain, genesis first. An empty store gives
// an empty slice.
func (s *Store) Load() ([]*inter.Block, error) {
	head, ok, err := s.Head()
	if err != nil || !ok {
		return nil, err
	}
	blocks := make([]*inter.Block, 0, int(head)+1)
	for h := idx.Block(0); h <= head; h++ {
		b, err := s.Block(h)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Append stores blocks on top of the stored tip.
func (s *Store) Append(blocks ...*inter.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	head, ok, err := s.Head()
	if err != nil {
		return err
	}
	next := idx.Block(0)
	if ok {
		next = head + 1
	}
	if blocks[0].Height != next {
		return fmt.Errorf("%w: expected height %d, got %d", ErrGap, next, blocks[0].Height)
	}
	return s.write(nil, blocks)
}

// Rewind replaces everything from height fork up with added, in one batch.
func (s *Store) Rewind(fork idx.Block, added []*inter.Block) error {
	head, ok, err := s.Head()
	if err != nil {
		return err
	}
	if !ok || fork == 0 || fork > head+1 {
		return fmt.Errorf("%w: fork %d on stored head %d", ErrGap, fork, head)
	}
	if len(added) == 0 || added[0].Height != fork {
		return fmt.Errorf("%w: replacement does not start at fork %d", ErrGap, fork)
	}
	var removed []idx.Block
	for h := fork; h <= head; h++ {
		removed = append(removed, h)
	}
	return s.write(removed, added)
}

func (s *Store) write(removed []idx.Block, added []*inter.Block) error {
	batch := s.db.NewBatch()
	for _, h := range removed {
		if err := batch.Delete(blockKey(h)); err != nil {
			return err
		}
	}
	for i, b := range added {
		if i > 0 && b.Height != added[i-1].Height+1 {
			return fmt.Errorf("%w: height %d after %d", ErrGap, b.Height, added[i-1].Height)
		}
		raw, err := b.MarshalBinary()
		if err != nil {
			return err
		}
		if err := batch.Put(blockKey(b.Height), raw); err != nil {
			return err
		}
	}
	tip := added[len(added)-1].Height
	if err := batch.Put(headKey, bigendian.Uint64ToBytes(uint64(tip))); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.Log.WithField("head", tip).WithField("removed", len(removed)).WithField("added", len(added)).Debug("Chain persisted")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sync makes the stored chain equal to blocks, rewriting only the part
// above the highest block both agree on.
func (s *Store) Sync(blocks []*inter.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	head, ok, err := s.Head()
	if err != nil {
		return err
	}
	if !ok {
		return s.Append(blocks...)
	}
	tip := blocks[len(blocks)-1].Height
	match := head
	if tip < match {
		match = tip
	}
	for {
		stored, err := s.Block(match)
		if err != nil {
			return err
		}
		if stored.Hash == blocks[match].Hash {
			break
		}
		if match == 0 {
			return fmt.Errorf("chainstore: stored genesis %s differs", inter.HashHex(stored.Hash))
		}
		match--
	}
	switch {
	case match == head && match == tip:
		return nil
	case match == head:
		return s.Append(blocks[match+1:]...)
	case match == tip:
		// stored chain is longer; drop its tail
		return s.truncate(match, head)
	}
	return s.Rewind(match+1, blocks[match+1:])
}

func (s *Store) truncate(tip, head idx.Block) error {
	batch := s.db.NewBatch()
	for h := tip + 1; h <= head; h++ {
		if err := batch.Delete(blockKey(h)); err != nil {
			return err
		}
	}
	if err := batch.Put(headKey, bigendian.Uint64ToBytes(uint64(tip))); err != nil {
		return err
	}
	return batch.Write()
}
