package blockstore

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/journal"
	"github.com/strataledger/strata/util"
	"github.com/strataledger/strata/util/lines"
)

// BlockStore bundles one journaled object store per transaction family, all
// checkpointed at the same block. The bundle clones and seals as a unit: a
// block's stores are never partially sealed
type BlockStore struct {
	blockID    string
	prevID     string
	isRoot     bool
	everCloned bool
	stores     map[string]*journal.ObjectStore
}

// NewRootBlockStore creates the root bundle under the reserved root block id.
// It holds no family stores until they are registered
func NewRootBlockStore() *BlockStore {
	return &BlockStore{
		blockID: global.RootBlockID,
		isRoot:  true,
		stores:  make(map[string]*journal.ObjectStore),
	}
}

func (b *BlockStore) BlockID() string {
	return b.blockID
}

// PreviousBlockID is empty for the root bundle
func (b *BlockStore) PreviousBlockID() string {
	return b.prevID
}

func (b *BlockStore) IsRoot() bool {
	return b.isRoot
}

// RegisterFamily associates a family name with its initial store. Families are
// registered on the root bundle only, and only before the first clone:
// every descendant inherits the full family set by cloning
func (b *BlockStore) RegisterFamily(name string, store *journal.ObjectStore) error {
	if !b.isRoot {
		return fmt.Errorf("register family '%s': not a root block store", name)
	}
	if b.everCloned {
		return fmt.Errorf("register family '%s': root block store has already been cloned", name)
	}
	if _, already := b.stores[name]; already {
		return fmt.Errorf("register family '%s': already registered", name)
	}
	b.stores[name] = store
	return nil
}

// Clone creates the mutable bundle for the next block by cloning every family
// store. The caller-provided previous block id must match the id this bundle
// claims, preventing accidental cross-linking of chains
func (b *BlockStore) Clone(newBlockID, previousBlockID string) (*BlockStore, error) {
	if previousBlockID != b.blockID {
		return nil, fmt.Errorf("clone block store '%s': previous block id '%s' does not match parent '%s'",
			newBlockID, previousBlockID, b.blockID)
	}
	stores := make(map[string]*journal.ObjectStore, len(b.stores))
	for name, store := range b.stores {
		stores[name] = store.Clone()
	}
	b.everCloned = true
	return &BlockStore{
		blockID: newBlockID,
		prevID:  previousBlockID,
		stores:  stores,
	}, nil
}

// cloneWithRecord creates the sealed-to-be bundle for a block replayed from a
// persisted record. Family deltas apply beneath the index layer
func (b *BlockStore) cloneWithRecord(rec *Record) *BlockStore {
	stores := make(map[string]*journal.ObjectStore, len(b.stores))
	for name, store := range b.stores {
		delta := rec.Stores[name]
		if delta == nil {
			delta = &journal.Delta{Writes: map[string]journal.Value{}, Deleted: []string{}}
		}
		stores[name] = store.CloneWithDelta(delta)
	}
	b.everCloned = true
	return &BlockStore{
		blockID: rec.BlockID,
		prevID:  rec.PreviousBlockID,
		stores:  stores,
	}
}

// rootFromRecord reconstructs the root bundle from its persisted record.
// Declared index names are not part of the persisted layout; indexes register
// and build lazily on first lookup
func rootFromRecord(rec *Record) *BlockStore {
	stores := make(map[string]*journal.ObjectStore, len(rec.Stores))
	for name, delta := range rec.Stores {
		stores[name] = journal.MustNewObjectStore().CloneWithDelta(delta)
	}
	return &BlockStore{
		blockID: global.RootBlockID,
		isRoot:  true,
		stores:  stores,
	}
}

// FamilyStore returns the store registered under the family name
func (b *BlockStore) FamilyStore(name string) (*journal.ObjectStore, error) {
	ret, ok := b.stores[name]
	if !ok {
		return nil, fmt.Errorf("family '%s': %w", name, journal.ErrNotFound)
	}
	return ret, nil
}

func (b *BlockStore) MustFamilyStore(name string) *journal.ObjectStore {
	ret, err := b.FamilyStore(name)
	util.AssertNoError(err)
	return ret
}

// Families returns registered family names, sorted
func (b *BlockStore) Families() []string {
	ret := util.Keys(b.stores)
	slices.Sort(ret)
	return ret
}

// Seal seals every family store. Sealing never fails, so the bundle is always
// sealed as a unit
func (b *BlockStore) Seal() {
	for _, store := range b.stores {
		store.Seal()
	}
}

func (b *BlockStore) IsSealed() bool {
	for _, store := range b.stores {
		if !store.IsSealed() {
			return false
		}
	}
	return true
}

// Flatten collapses the checkpoint chain of every family store. Valid only on
// a sealed bundle
func (b *BlockStore) Flatten() error {
	if !b.IsSealed() {
		return fmt.Errorf("flatten block store '%s': %w", b.blockID, journal.ErrNotSealed)
	}
	for name, store := range b.stores {
		if err := store.Flatten(); err != nil {
			return fmt.Errorf("flatten block store '%s', family '%s': %w", b.blockID, name, err)
		}
	}
	return nil
}

// Flattened returns a sealed copy of the bundle with every family store
// flattened. b itself is not touched: the copy can replace a bundle other
// goroutines still read
func (b *BlockStore) Flattened() (*BlockStore, error) {
	if !b.IsSealed() {
		return nil, fmt.Errorf("flatten block store '%s': %w", b.blockID, journal.ErrNotSealed)
	}
	stores := make(map[string]*journal.ObjectStore, len(b.stores))
	for name, store := range b.stores {
		flattened, err := store.Flattened()
		if err != nil {
			return nil, fmt.Errorf("flatten block store '%s', family '%s': %w", b.blockID, name, err)
		}
		stores[name] = flattened
	}
	return &BlockStore{
		blockID:    b.blockID,
		prevID:     b.prevID,
		isRoot:     b.isRoot,
		everCloned: b.everCloned,
		stores:     stores,
	}, nil
}

// FamilyDelta returns the keys changed and deleted by this block in one
// family, against the previous block. Used by incremental sync feeds
func (b *BlockStore) FamilyDelta(name string) (*journal.Delta, error) {
	store, err := b.FamilyStore(name)
	if err != nil {
		return nil, err
	}
	return store.Delta(), nil
}

func (b *BlockStore) Lines(prefix ...string) *lines.Lines {
	pref := ""
	if len(prefix) > 0 {
		pref = prefix[0]
	}
	ret := lines.New(pref)
	ret.Add("block: %s, previous: %s", b.blockID, b.prevID)
	for _, name := range b.Families() {
		ret.Add("family '%s' (%d visible keys)", name, b.stores[name].NumVisible())
		ret.Append(b.stores[name].Lines(pref + "    "))
	}
	return ret
}
