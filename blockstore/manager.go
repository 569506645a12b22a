package blockstore

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/gammazero/deque"

	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/journal"
)

const TraceTag = "blockstore"

type (
	Environment interface {
		global.NodeGlobal
	}

	// GlobalStoreManager keeps the resident (in-memory) block stores and the
	// durable record per committed block id. Any historical block's store can
	// be requested; missing chains are rebuilt from persisted deltas.
	//
	// The mutex guards the resident map only. Resident bundles are sealed and
	// immutable, so any number of goroutines may read them concurrently; a
	// mutable bundle has exactly one owner until it is committed
	GlobalStoreManager struct {
		Environment
		mutex    sync.RWMutex
		resident map[string]*BlockStore
		db       *badger.DB
		metrics  managerMetrics
	}
)

// NewGlobalStoreManager creates a manager over an open badger DB. The manager
// does not own the DB handle; closing it is the caller's concern.
// CommitRoot must be called exactly once before any other operation
func NewGlobalStoreManager(db *badger.DB, env Environment) *GlobalStoreManager {
	ret := &GlobalStoreManager{
		Environment: env,
		resident:    make(map[string]*BlockStore),
		db:          db,
	}
	ret.registerMetrics()
	return ret
}

// CommitRoot seals the root bundle, makes it resident under the reserved root
// block id and persists it
func (m *GlobalStoreManager) CommitRoot(root *BlockStore) error {
	if !root.IsRoot() {
		return fmt.Errorf("commit root: not a root block store")
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, already := m.resident[global.RootBlockID]; already {
		return fmt.Errorf("commit root: root block store already committed")
	}
	root.Seal()
	m.resident[global.RootBlockID] = root
	if err := writeRecord(m.db, root.Record()); err != nil {
		return fmt.Errorf("commit root: %w", err)
	}
	m.metrics.residentGauge.Set(float64(len(m.resident)))
	m.Log().Infof("committed root block store, %d families: %+v", len(root.Families()), root.Families())
	return nil
}

// RegisterFamily adds a family to the already committed root bundle and
// re-persists the root record. Valid only while the root is the single
// resident block store
func (m *GlobalStoreManager) RegisterFamily(name string, store *journal.ObjectStore) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	root, ok := m.resident[global.RootBlockID]
	if !ok {
		return fmt.Errorf("register family '%s': root block store not committed", name)
	}
	if len(m.resident) != 1 {
		return fmt.Errorf("register family '%s': block stores already built on top of the root", name)
	}
	store.Seal()
	if err := root.RegisterFamily(name, store); err != nil {
		return err
	}
	if err := writeRecord(m.db, root.Record()); err != nil {
		return fmt.Errorf("register family '%s': %w", name, err)
	}
	m.Log().Infof("registered family '%s'", name)
	return nil
}

// Commit seals the bundle, makes it resident and persists its record. The
// previous block must already be known, resident or persisted: committing on
// top of an unknown ancestor would silently create a disconnected chain
func (m *GlobalStoreManager) Commit(blockID string, b *BlockStore) error {
	if blockID != b.BlockID() {
		return fmt.Errorf("commit: block id '%s' does not match block store id '%s'", blockID, b.BlockID())
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	prevID := b.PreviousBlockID()
	if _, isResident := m.resident[prevID]; !isResident && !hasRecord(m.db, prevID) {
		return fmt.Errorf("commit block '%s': previous block '%s': %w", blockID, prevID, ErrUnknownAncestor)
	}
	b.Seal()
	m.resident[blockID] = b
	if err := writeRecord(m.db, b.Record()); err != nil {
		return fmt.Errorf("commit block '%s': %w", blockID, err)
	}
	m.metrics.commitCounter.Inc()
	m.metrics.residentGauge.Set(float64(len(m.resident)))
	m.Tracef(TraceTag, "committed block '%s' on top of '%s'", blockID, prevID)
	return nil
}

// GetBlockStore returns the bundle for the block id, rebuilding it from
// persisted deltas when not resident.
//
// Reconstruction is deliberately iterative, in two passes: walk backward
// through persisted records until a resident ancestor is reached, then replay
// forward, cloning each ancestor and applying the next block's deltas.
// Chains can be arbitrarily long; recursion would risk the call stack
func (m *GlobalStoreManager) GetBlockStore(blockID string) (*BlockStore, error) {
	m.mutex.RLock()
	if ret, ok := m.resident[blockID]; ok {
		m.mutex.RUnlock()
		return ret, nil
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// pass 1: collect records back to the nearest resident ancestor
	toReplay := new(deque.Deque[*Record])
	id := blockID
	for {
		if _, ok := m.resident[id]; ok {
			break
		}
		rec, found := fetchRecord(m.db, id)
		if !found {
			return nil, fmt.Errorf("get block store: block '%s': %w", id, ErrUnknownBlock)
		}
		if id == global.RootBlockID {
			// nothing resident at all: anchor the replay at the persisted root
			root := rootFromRecord(rec)
			root.Seal()
			m.resident[global.RootBlockID] = root
			break
		}
		toReplay.PushFront(rec)
		id = rec.PreviousBlockID
	}

	// pass 2: replay forward from the oldest missing block
	for toReplay.Len() > 0 {
		rec := toReplay.PopFront()
		prev := m.resident[rec.PreviousBlockID]
		b := prev.cloneWithRecord(rec)
		b.Seal()
		m.resident[rec.BlockID] = b
		m.metrics.rebuildCounter.Inc()
		m.Tracef(TraceTag, "rebuilt block store '%s' from persisted deltas", rec.BlockID)
	}
	m.metrics.residentGauge.Set(float64(len(m.resident)))
	return m.resident[blockID], nil
}

// Evict drops the block's bundle and every resident ancestor from memory.
// Persisted records are never dropped; evicted chains remain reconstructible.
// The root bundle always stays resident
func (m *GlobalStoreManager) Evict(blockID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	evicted := m.evictChain(blockID)
	m.metrics.evictCounter.Add(float64(evicted))
	m.metrics.residentGauge.Set(float64(len(m.resident)))
	m.Tracef(TraceTag, "evicted %d block stores starting from '%s'", evicted, blockID)
}

// evictChain drops the block's bundle and every resident ancestor, stopping at
// the root or the first gap. Caller must hold the mutex
func (m *GlobalStoreManager) evictChain(blockID string) int {
	evicted := 0
	id := blockID
	for id != global.RootBlockID {
		b, ok := m.resident[id]
		if !ok {
			break
		}
		delete(m.resident, id)
		evicted++
		id = b.PreviousBlockID()
	}
	return evicted
}

// FlattenAndEvict collapses the chain history of the given block's bundle and
// evicts everything strictly older. This bounds both memory and chain-walk
// latency for long-running validators. The caller decides when a block is old
// enough to never be rolled back; this is mechanism only.
//
// Resident bundles are shared read-only, so the bundle is never flattened in
// place: a flattened copy replaces it in the resident map. References handed
// out earlier keep reading the untouched original
func (m *GlobalStoreManager) FlattenAndEvict(blockID string) error {
	b, err := m.GetBlockStore(blockID)
	if err != nil {
		return err
	}
	flattened, err := b.Flattened()
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.resident[blockID] = flattened
	evicted := m.evictChain(b.PreviousBlockID())
	m.metrics.evictCounter.Add(float64(evicted))
	m.metrics.residentGauge.Set(float64(len(m.resident)))
	m.Log().Infof("flattened block store '%s' and evicted its history", blockID)
	return nil
}

// DumpFamily returns everything visible in one family as of the given block,
// optionally filtered by object type. Serves "get all objects" style queries
func (m *GlobalStoreManager) DumpFamily(blockID, family string, objectType ...string) (map[string]journal.Value, error) {
	b, err := m.GetBlockStore(blockID)
	if err != nil {
		return nil, err
	}
	store, err := b.FamilyStore(family)
	if err != nil {
		return nil, err
	}
	if len(objectType) == 0 {
		return store.Compose(), nil
	}
	ret := make(map[string]journal.Value)
	store.IterateByType(objectType[0], func(key string, obj journal.Value) bool {
		ret[key] = obj
		return true
	})
	return ret, nil
}

// FamilyDelta returns the keys changed and deleted by the given block in one
// family. Serves incremental synchronization feeds
func (m *GlobalStoreManager) FamilyDelta(blockID, family string) (*journal.Delta, error) {
	b, err := m.GetBlockStore(blockID)
	if err != nil {
		return nil, err
	}
	return b.FamilyDelta(family)
}

// NumResident returns the number of resident block stores
func (m *GlobalStoreManager) NumResident() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.resident)
}

// IsResident returns whether the block's bundle is currently in memory
func (m *GlobalStoreManager) IsResident(blockID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.resident[blockID]
	return ok
}
