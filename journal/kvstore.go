package journal

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/strataledger/strata/util"
	"github.com/strataledger/strata/util/lines"
	"github.com/strataledger/strata/util/set"
)

type (
	// KVStore is one checkpoint in a journaled key/value chain.
	// It holds only the delta against its parent: local writes and tombstones.
	// Lookup cascades through the parent chain. A sealed checkpoint is immutable
	// and can safely be shared as the parent of any number of children
	KVStore struct {
		prev    *KVStore
		store   map[string]Value
		deleted set.Set[string]
		sealed  bool
	}

	// Delta is the persistable form of one checkpoint's local writes and tombstones.
	// Deleted is kept sorted so the serialized record is byte-stable
	Delta struct {
		Writes  map[string]Value `msgpack:"writes"`
		Deleted []string         `msgpack:"deleted"`
	}
)

// NewKVStore creates a root checkpoint with no parent
func NewKVStore() *KVStore {
	return &KVStore{
		store:   make(map[string]Value),
		deleted: set.New[string](),
	}
}

// Clone returns a new mutable checkpoint on top of s. s itself is not touched
func (s *KVStore) Clone() *KVStore {
	return &KVStore{
		prev:    s,
		store:   make(map[string]Value),
		deleted: set.New[string](),
	}
}

// cloneWithDelta returns a child checkpoint pre-loaded with a persisted delta.
// Used by the replay path when reconstructing a chain from durable records
func (s *KVStore) cloneWithDelta(d *Delta) *KVStore {
	ret := s.Clone()
	for k, v := range d.Writes {
		ret.store[k] = v.Clone()
	}
	ret.deleted.Insert(d.Deleted...)
	return ret
}

func (s *KVStore) IsSealed() bool {
	return s.sealed
}

// Seal makes the checkpoint immutable. Idempotent
func (s *KVStore) Seal() {
	s.sealed = true
}

// getVisible is the non-copying lookup used internally. The returned value
// aliases internal storage and must not be mutated or leaked to the caller
func (s *KVStore) getVisible(key string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.prev {
		if v, ok := cur.store[key]; ok {
			return v, true
		}
		if cur.deleted.Contains(key) {
			return nil, false
		}
	}
	return nil, false
}

// Get returns a deep copy of the value visible under the key
func (s *KVStore) Get(key string) (Value, error) {
	v, ok := s.getVisible(key)
	if !ok {
		return nil, fmt.Errorf("get: key '%s': %w", key, ErrNotFound)
	}
	return v.Clone(), nil
}

// Set stores a deep copy of the value in the current checkpoint.
// A fresh write un-deletes the key
func (s *KVStore) Set(key string, value Value) error {
	if s.sealed {
		return fmt.Errorf("set: key '%s': %w", key, ErrSealedStore)
	}
	if value == nil {
		return fmt.Errorf("set: key '%s': nil value", key)
	}
	s.store[key] = value.Clone()
	s.deleted.Remove(key)
	return nil
}

// Delete removes the key from the local writes and unconditionally records a
// tombstone, shadowing any value an ancestor may hold
func (s *KVStore) Delete(key string) error {
	if s.sealed {
		return fmt.Errorf("delete: key '%s': %w", key, ErrSealedStore)
	}
	delete(s.store, key)
	s.deleted.Insert(key)
	return nil
}

func (s *KVStore) Contains(key string) bool {
	_, ok := s.getVisible(key)
	return ok
}

// chain returns the checkpoint chain from s down to the root.
// Explicit loop, no recursion: chains can be arbitrarily long
func (s *KVStore) chain() []*KVStore {
	ret := make([]*KVStore, 0)
	for cur := s; cur != nil; cur = cur.prev {
		ret = append(ret, cur)
	}
	return ret
}

// Keys returns the full set of visible keys:
// (parent's visible keys minus local tombstones) plus local writes, up the chain
func (s *KVStore) Keys() set.Set[string] {
	ret := set.New[string]()
	util.RangeReverse(s.chain(), func(_ int, cur *KVStore) bool {
		cur.deleted.ForEach(func(k string) bool {
			ret.Remove(k)
			return true
		})
		for k := range cur.store {
			ret.Insert(k)
		}
		return true
	})
	return ret
}

// Compose materializes the full visible mapping by applying each checkpoint's
// writes and tombstones in chain order, root first. Values are deep copies
func (s *KVStore) Compose() map[string]Value {
	ret := make(map[string]Value)
	util.RangeReverse(s.chain(), func(_ int, cur *KVStore) bool {
		for k, v := range cur.store {
			ret[k] = v.Clone()
		}
		cur.deleted.ForEach(func(k string) bool {
			delete(ret, k)
			return true
		})
		return true
	})
	return ret
}

// Flatten collapses the ancestor chain into this checkpoint: local writes
// become the fully composed state, tombstones clear, the parent link drops.
// Only valid on a sealed checkpoint. Flattening a mutable one would lose the
// ancestor linkage other references may still read through.
// Observably transparent: Get/Contains/Keys results do not change
func (s *KVStore) Flatten() error {
	if !s.sealed {
		return fmt.Errorf("flatten: %w", ErrNotSealed)
	}
	s.store = s.Compose()
	s.deleted = set.New[string]()
	s.prev = nil
	return nil
}

// Flattened returns a sealed, parentless checkpoint holding the fully composed
// state. Unlike Flatten it leaves s untouched, so the copy can replace a
// checkpoint other readers still hold a reference to
func (s *KVStore) Flattened() (*KVStore, error) {
	if !s.sealed {
		return nil, fmt.Errorf("flattened: %w", ErrNotSealed)
	}
	return &KVStore{
		store:   s.Compose(),
		deleted: set.New[string](),
		sealed:  true,
	}, nil
}

// Delta returns a deep copy of this checkpoint's local writes and tombstones
func (s *KVStore) Delta() *Delta {
	writes := make(map[string]Value, len(s.store))
	for k, v := range s.store {
		writes[k] = v.Clone()
	}
	deleted := s.deleted.AsList()
	slices.Sort(deleted)
	if deleted == nil {
		deleted = []string{}
	}
	return &Delta{
		Writes:  writes,
		Deleted: deleted,
	}
}

func (d *Delta) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	keys := util.Keys(d.Writes)
	slices.Sort(keys)
	for _, k := range keys {
		ret.Add("SET %s -> %s", k, d.Writes[k].String())
	}
	for _, k := range d.Deleted {
		ret.Add("DEL %s", k)
	}
	return ret
}

func (s *KVStore) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	composed := s.Compose()
	keys := util.Keys(composed)
	slices.Sort(keys)
	for _, k := range keys {
		ret.Add("%s -> %s", k, composed[k].String())
	}
	return ret
}
