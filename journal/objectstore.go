package journal

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/strataledger/strata/util"
	"github.com/strataledger/strata/util/lines"
	"github.com/strataledger/strata/util/set"
)

// ObjectStore is a journaled store of typed objects with unique secondary
// indexes. Every stored value must carry the object type field. An index maps
// one attribute value to the full object, scoped by object type, and no two
// objects of the same type may claim the same value of an indexed attribute.
//
// All mutations follow a validate-then-apply discipline: every constraint is
// checked before the underlying store or any index is touched, so a failing
// call leaves the store exactly as it was
type ObjectStore struct {
	kv *KVStore
	// guards indexes. A lookup still registers and builds indexes on a sealed
	// store, and sealed stores are read by any number of goroutines at once
	mutex sync.Mutex
	// index name -> attribute value -> object. nil map: registered, not built yet.
	// Indexes build lazily on first use and are maintained incrementally afterwards
	indexes map[string]map[string]Value
}

// NewObjectStore creates a root object store. Index names are validated here;
// contents build lazily
func NewObjectStore(indexNames ...string) (*ObjectStore, error) {
	indexes := make(map[string]map[string]Value, len(indexNames))
	for _, name := range indexNames {
		if _, _, err := parseIndexName(name); err != nil {
			return nil, err
		}
		indexes[name] = nil
	}
	return &ObjectStore{
		kv:      NewKVStore(),
		indexes: indexes,
	}, nil
}

func MustNewObjectStore(indexNames ...string) *ObjectStore {
	ret, err := NewObjectStore(indexNames...)
	util.AssertNoError(err)
	return ret
}

// Clone returns a mutable child checkpoint. Index definitions and materialized
// index contents are both deep-copied: the clone snapshots the parent's caches
func (s *ObjectStore) Clone() *ObjectStore {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return &ObjectStore{
		kv:      s.kv.Clone(),
		indexes: s.cloneIndexes(),
	}
}

// cloneIndexes deep-copies built index contents, keeping unbuilt ones unbuilt.
// Caller must hold the mutex
func (s *ObjectStore) cloneIndexes() map[string]map[string]Value {
	ret := make(map[string]map[string]Value, len(s.indexes))
	for name, idx := range s.indexes {
		if idx == nil {
			ret[name] = nil
			continue
		}
		cp := make(map[string]Value, len(idx))
		for attrValue, obj := range idx {
			cp[attrValue] = obj.Clone()
		}
		ret[name] = cp
	}
	return ret
}

// CloneWithDelta returns a child checkpoint pre-loaded with a persisted delta.
// The delta bypasses index maintenance, so materialized contents are dropped
// and the indexes rebuild lazily against the new state
func (s *ObjectStore) CloneWithDelta(d *Delta) *ObjectStore {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	indexes := make(map[string]map[string]Value, len(s.indexes))
	for name := range s.indexes {
		indexes[name] = nil
	}
	return &ObjectStore{
		kv:      s.kv.cloneWithDelta(d),
		indexes: indexes,
	}
}

// Flattened returns a sealed copy with the checkpoint chain of the underlying
// store collapsed. s itself is not touched, so references shared with other
// readers stay valid. Built index contents carry over: flattening never
// changes what is visible
func (s *ObjectStore) Flattened() (*ObjectStore, error) {
	kv, err := s.kv.Flattened()
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return &ObjectStore{
		kv:      kv,
		indexes: s.cloneIndexes(),
	}, nil
}

func (s *ObjectStore) Seal() { s.kv.Seal() }

func (s *ObjectStore) IsSealed() bool { return s.kv.IsSealed() }

func (s *ObjectStore) Flatten() error { return s.kv.Flatten() }

func (s *ObjectStore) Delta() *Delta { return s.kv.Delta() }

func (s *ObjectStore) Contains(key string) bool { return s.kv.Contains(key) }

// IndexNames returns registered index names, sorted
func (s *ObjectStore) IndexNames() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ret := util.Keys(s.indexes)
	slices.Sort(ret)
	return ret
}

// Get returns a deep copy of the object stored under the key. With an expected
// type given, a stored object of any other type is a type mismatch error
func (s *ObjectStore) Get(key string, expectedType ...string) (Value, error) {
	obj, ok := s.kv.getVisible(key)
	if !ok {
		return nil, fmt.Errorf("get: key '%s': %w", key, ErrNotFound)
	}
	if len(expectedType) > 0 {
		if t, _ := obj.ObjectType(); t != expectedType[0] {
			return nil, fmt.Errorf("get: key '%s': expected type '%s', got '%s': %w",
				key, expectedType[0], t, ErrTypeMismatch)
		}
	}
	return obj.Clone(), nil
}

// Lookup returns a deep copy of the object whose indexed attribute equals the
// given value. A lookup against a not-yet-registered index registers and
// builds it on the fly
func (s *ObjectStore) Lookup(indexName, attrValue string) (Value, error) {
	objectType, _, err := parseIndexName(indexName)
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, registered := s.indexes[indexName]; !registered {
		s.indexes[indexName] = nil
	}
	idx := s.ensureIndex(indexName)
	obj, ok := idx[attrValue]
	if !ok {
		return nil, fmt.Errorf("lookup: index '%s' value '%s': %w", indexName, attrValue, ErrNotFound)
	}
	if t, _ := obj.ObjectType(); t != objectType {
		// the index may never hold an object of a foreign type
		return nil, fmt.Errorf("lookup: index '%s' value '%s' holds type '%s': %w",
			indexName, attrValue, t, ErrNotFound)
	}
	return obj.Clone(), nil
}

// Set writes the object under the key and maintains every matching index.
//
// Insert: every indexed attribute value of the new object must be unclaimed.
// Update: the object type may not change, and every indexed attribute value
// that changes must not be claimed by another object.
// All checks run before anything is written
func (s *ObjectStore) Set(key string, value Value) error {
	if s.kv.IsSealed() {
		return fmt.Errorf("set: key '%s': %w", key, ErrSealedStore)
	}
	newType, ok := value.ObjectType()
	if !ok {
		return fmt.Errorf("set: key '%s': value must contain a string '%s' field", key, FieldObjectType)
	}

	old, isUpdate := s.kv.getVisible(key)
	if isUpdate {
		if oldType := old.MustObjectType(); oldType != newType {
			return fmt.Errorf("set: key '%s': cannot change type '%s' to '%s': %w",
				key, oldType, newType, ErrTypeMismatch)
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	matching := s.indexesOfType(newType)

	// phase 1: validate against every matching index, no mutation of data
	for _, name := range matching {
		attribute := mustIndexAttribute(name)
		newVal, hasNew := value.StringField(attribute)
		if !hasNew {
			continue
		}
		if isUpdate {
			if oldVal, hadOld := old.StringField(attribute); hadOld && oldVal == newVal {
				continue // unchanged, stays claimed by this object
			}
		}
		if _, claimed := s.ensureIndex(name)[newVal]; claimed {
			return fmt.Errorf("set: key '%s': index '%s' value '%s' already claimed: %w",
				key, name, newVal, ErrUniqueConstraint)
		}
	}

	// phase 2: apply
	err := s.kv.Set(key, value)
	util.AssertNoError(err) // sealed was checked above

	for _, name := range matching {
		idx := s.indexes[name]
		if idx == nil {
			// not built, nothing to maintain: a later build scans the new state
			continue
		}
		attribute := mustIndexAttribute(name)
		if isUpdate {
			if oldVal, hadOld := old.StringField(attribute); hadOld {
				delete(idx, oldVal)
			}
		}
		if newVal, hasNew := value.StringField(attribute); hasNew {
			idx[newVal] = value.Clone()
		}
	}
	return nil
}

// Delete removes the object under the key and clears its attribute values from
// every matching built index
func (s *ObjectStore) Delete(key string, expectedType ...string) error {
	if s.kv.IsSealed() {
		return fmt.Errorf("delete: key '%s': %w", key, ErrSealedStore)
	}
	obj, ok := s.kv.getVisible(key)
	if !ok {
		return fmt.Errorf("delete: key '%s': %w", key, ErrNotFound)
	}
	objectType := obj.MustObjectType()
	if len(expectedType) > 0 && objectType != expectedType[0] {
		return fmt.Errorf("delete: key '%s': expected type '%s', got '%s': %w",
			key, expectedType[0], objectType, ErrTypeMismatch)
	}

	err := s.kv.Delete(key)
	util.AssertNoError(err)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, name := range s.indexesOfType(objectType) {
		idx := s.indexes[name]
		if idx == nil {
			continue
		}
		if attrValue, has := obj.StringField(mustIndexAttribute(name)); has {
			delete(idx, attrValue)
		}
	}
	return nil
}

// IterateByType walks all visible objects of the given type in ascending key
// order. Each call re-scans the composed state, so iteration is restartable
func (s *ObjectStore) IterateByType(objectType string, fun func(key string, obj Value) bool) {
	composed := s.kv.Compose()
	keys := util.Keys(composed)
	slices.Sort(keys)
	for _, k := range keys {
		if t, ok := composed[k].ObjectType(); !ok || t != objectType {
			continue
		}
		if !fun(k, composed[k]) {
			return
		}
	}
}

// Keys returns the set of visible keys, see KVStore.Keys
func (s *ObjectStore) Keys() set.Set[string] {
	return s.kv.Keys()
}

// NumVisible returns the number of visible keys
func (s *ObjectStore) NumVisible() int {
	return len(s.kv.Keys())
}

// Compose materializes the full visible mapping, see KVStore.Compose
func (s *ObjectStore) Compose() map[string]Value {
	return s.kv.Compose()
}

func (s *ObjectStore) Lines(prefix ...string) *lines.Lines {
	return s.kv.Lines(prefix...)
}
