package blockstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/journal"
)

func newTestManager(t *testing.T) *GlobalStoreManager {
	db := MustOpenDB(t.TempDir())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewGlobalStoreManager(db, global.NewDefault())
}

func commitRootWithFamily(t *testing.T, m *GlobalStoreManager, families ...string) *BlockStore {
	root := NewRootBlockStore()
	for _, f := range families {
		require.NoError(t, root.RegisterFamily(f, journal.MustNewObjectStore()))
	}
	require.NoError(t, m.CommitRoot(root))
	return root
}

func TestManagerCommit(t *testing.T) {
	t.Run("root exactly once", func(t *testing.T) {
		m := newTestManager(t)
		commitRootWithFamily(t, m, "xo")
		require.Error(t, m.CommitRoot(NewRootBlockStore()))
	})
	t.Run("commit seals and makes resident", func(t *testing.T) {
		m := newTestManager(t)
		root := commitRootWithFamily(t, m, "xo")

		b1, err := root.Clone("block-1", root.BlockID())
		require.NoError(t, err)
		require.NoError(t, b1.MustFamilyStore("xo").Set("k1", journal.Value{journal.FieldObjectType: "game", "f": "v1"}))
		require.NoError(t, m.Commit("block-1", b1))

		require.True(t, b1.IsSealed())
		require.True(t, m.IsResident("block-1"))
	})
	t.Run("unknown ancestor rejected", func(t *testing.T) {
		m := newTestManager(t)
		commitRootWithFamily(t, m, "xo")

		orphan := &BlockStore{
			blockID: "block-9",
			prevID:  "never-committed",
			stores:  map[string]*journal.ObjectStore{},
		}
		require.ErrorIs(t, m.Commit("block-9", orphan), ErrUnknownAncestor)
		require.False(t, m.IsResident("block-9"))
	})
	t.Run("block id must match", func(t *testing.T) {
		m := newTestManager(t)
		root := commitRootWithFamily(t, m, "xo")
		b1, err := root.Clone("block-1", root.BlockID())
		require.NoError(t, err)
		require.Error(t, m.Commit("block-2", b1))
	})
}

func TestManagerRegisterFamily(t *testing.T) {
	m := newTestManager(t)
	root := commitRootWithFamily(t, m, "xo")

	require.NoError(t, m.RegisterFamily("bond", journal.MustNewObjectStore("bond:cusip")))
	require.EqualValues(t, []string{"bond", "xo"}, root.Families())

	b1, err := root.Clone("block-1", root.BlockID())
	require.NoError(t, err)
	require.NoError(t, m.Commit("block-1", b1))

	// no longer the single resident root
	require.Error(t, m.RegisterFamily("late", journal.MustNewObjectStore()))
}

// build a chain, evict, rebuild from persisted deltas
func TestManagerRebuild(t *testing.T) {
	m := newTestManager(t)
	root := commitRootWithFamily(t, m, "xo")

	b1, err := root.Clone("block-1", root.BlockID())
	require.NoError(t, err)
	require.NoError(t, b1.MustFamilyStore("xo").Set("k1", journal.Value{journal.FieldObjectType: "game", "f": "v1"}))
	require.NoError(t, m.Commit("block-1", b1))

	b2, err := b1.Clone("block-2", "block-1")
	require.NoError(t, err)
	require.NoError(t, b2.MustFamilyStore("xo").Set("k2", journal.Value{journal.FieldObjectType: "game", "f": "v2"}))
	require.NoError(t, b2.MustFamilyStore("xo").Delete("k1"))
	require.NoError(t, m.Commit("block-2", b2))

	m.Evict("block-2")
	require.False(t, m.IsResident("block-1"))
	require.False(t, m.IsResident("block-2"))
	require.True(t, m.IsResident(global.RootBlockID))

	t.Run("tip rebuilds and matches", func(t *testing.T) {
		got, err := m.GetBlockStore("block-2")
		require.NoError(t, err)
		require.True(t, got.IsSealed())

		store := got.MustFamilyStore("xo")
		require.False(t, store.Contains("k1"))
		v, err := store.Get("k2")
		require.NoError(t, err)
		require.EqualValues(t, "v2", v["f"])
	})
	t.Run("intermediate block rebuilt on the way", func(t *testing.T) {
		got, err := m.GetBlockStore("block-1")
		require.NoError(t, err)
		store := got.MustFamilyStore("xo")
		v, err := store.Get("k1")
		require.NoError(t, err)
		require.EqualValues(t, "v1", v["f"])
		require.False(t, store.Contains("k2"))
	})
	t.Run("unknown block", func(t *testing.T) {
		_, err := m.GetBlockStore("no-such-block")
		require.ErrorIs(t, err, ErrUnknownBlock)
	})
}

func TestManagerLongChainRebuild(t *testing.T) {
	const chainLen = 200

	m := newTestManager(t)
	root := commitRootWithFamily(t, m, "xo")

	prev := root
	for i := 1; i <= chainLen; i++ {
		b, err := prev.Clone(fmt.Sprintf("block-%d", i), prev.BlockID())
		require.NoError(t, err)
		require.NoError(t, b.MustFamilyStore("xo").Set(fmt.Sprintf("k%d", i),
			journal.Value{journal.FieldObjectType: "game", "seq": fmt.Sprintf("%d", i)}))
		require.NoError(t, m.Commit(b.BlockID(), b))
		prev = b
	}

	m.Evict(fmt.Sprintf("block-%d", chainLen))
	require.EqualValues(t, 1, m.NumResident())

	got, err := m.GetBlockStore(fmt.Sprintf("block-%d", chainLen))
	require.NoError(t, err)
	store := got.MustFamilyStore("xo")
	require.EqualValues(t, chainLen, store.NumVisible())
	v, err := store.Get("k1")
	require.NoError(t, err)
	require.EqualValues(t, "1", v["seq"])
}

// a fresh manager over an existing database anchors the replay at the persisted root
func TestManagerColdStart(t *testing.T) {
	dir := t.TempDir()
	db := MustOpenDB(dir)

	m := NewGlobalStoreManager(db, global.NewDefault())
	root := commitRootWithFamily(t, m, "xo")
	b1, err := root.Clone("block-1", root.BlockID())
	require.NoError(t, err)
	require.NoError(t, b1.MustFamilyStore("xo").Set("k1", journal.Value{journal.FieldObjectType: "game", "f": "v1"}))
	require.NoError(t, m.Commit("block-1", b1))
	require.NoError(t, db.Close())

	db2 := MustOpenDB(dir)
	defer db2.Close()

	m2 := NewGlobalStoreManager(db2, global.NewDefault())
	require.EqualValues(t, 0, m2.NumResident())

	got, err := m2.GetBlockStore("block-1")
	require.NoError(t, err)
	v, err := got.MustFamilyStore("xo").Get("k1")
	require.NoError(t, err)
	require.EqualValues(t, "v1", v["f"])
	require.True(t, m2.IsResident(global.RootBlockID))
}

func TestManagerFlattenAndEvict(t *testing.T) {
	m := newTestManager(t)
	root := commitRootWithFamily(t, m, "xo")

	b1, err := root.Clone("block-1", root.BlockID())
	require.NoError(t, err)
	require.NoError(t, b1.MustFamilyStore("xo").Set("k1", journal.Value{journal.FieldObjectType: "game", "f": "v1"}))
	require.NoError(t, m.Commit("block-1", b1))

	b2, err := b1.Clone("block-2", "block-1")
	require.NoError(t, err)
	require.NoError(t, b2.MustFamilyStore("xo").Set("k2", journal.Value{journal.FieldObjectType: "game", "f": "v2"}))
	require.NoError(t, m.Commit("block-2", b2))

	require.NoError(t, m.FlattenAndEvict("block-2"))
	require.False(t, m.IsResident("block-1"))
	require.True(t, m.IsResident("block-2"))

	store := b2.MustFamilyStore("xo")
	require.True(t, store.Contains("k1"))
	require.True(t, store.Contains("k2"))

	// the shared bundle is never flattened in place: the reference handed out
	// before still holds only its own delta
	d, err := b2.FamilyDelta("xo")
	require.NoError(t, err)
	require.EqualValues(t, 1, len(d.Writes))
	require.Contains(t, d.Writes, "k2")

	// the resident copy holds the collapsed chain
	resident, err := m.GetBlockStore("block-2")
	require.NoError(t, err)
	dFlat, err := resident.FamilyDelta("xo")
	require.NoError(t, err)
	require.EqualValues(t, 2, len(dFlat.Writes))
	require.True(t, resident.MustFamilyStore("xo").Contains("k1"))
	require.True(t, resident.MustFamilyStore("xo").Contains("k2"))
}

func TestManagerConcurrentReads(t *testing.T) {
	const numObjects = 20

	m := newTestManager(t)
	root := commitRootWithFamily(t, m, "xo")

	b1, err := root.Clone("block-1", root.BlockID())
	require.NoError(t, err)
	store := b1.MustFamilyStore("xo")
	for i := 0; i < numObjects; i++ {
		require.NoError(t, store.Set(fmt.Sprintf("g%02d", i), journal.Value{
			journal.FieldObjectType: "game",
			"name":                  fmt.Sprintf("game-%02d", i),
		}))
	}
	require.NoError(t, m.Commit("block-1", b1))

	b2, err := b1.Clone("block-2", "block-1")
	require.NoError(t, err)
	require.NoError(t, b2.MustFamilyStore("xo").Set("extra", journal.Value{
		journal.FieldObjectType: "game",
		"name":                  "extra",
	}))
	require.NoError(t, m.Commit("block-2", b2))

	// force the replay path: rebuilt bundles start with unbuilt indexes
	m.Evict("block-2")
	require.False(t, m.IsResident("block-2"))

	const numReaders = 8
	errCh := make(chan error, numReaders+1)
	for i := 0; i < numReaders; i++ {
		go func() {
			for j := 0; j < numObjects; j++ {
				b, err := m.GetBlockStore("block-2")
				if err != nil {
					errCh <- err
					return
				}
				if _, err = b.MustFamilyStore("xo").Lookup("game:name", fmt.Sprintf("game-%02d", j)); err != nil {
					errCh <- err
					return
				}
				if _, err = m.DumpFamily("block-2", "xo"); err != nil {
					errCh <- err
					return
				}
			}
			errCh <- nil
		}()
	}
	go func() {
		errCh <- m.FlattenAndEvict("block-2")
	}()
	for i := 0; i < numReaders+1; i++ {
		require.NoError(t, <-errCh)
	}
	require.True(t, m.IsResident("block-2"))
	require.False(t, m.IsResident("block-1"))
}

func TestManagerBulkRead(t *testing.T) {
	m := newTestManager(t)
	root := commitRootWithFamily(t, m, "xo")

	b1, err := root.Clone("block-1", root.BlockID())
	require.NoError(t, err)
	store := b1.MustFamilyStore("xo")
	require.NoError(t, store.Set("g1", journal.Value{journal.FieldObjectType: "game", "f": "1"}))
	require.NoError(t, store.Set("g2", journal.Value{journal.FieldObjectType: "game", "f": "2"}))
	require.NoError(t, store.Set("p1", journal.Value{journal.FieldObjectType: "player", "f": "3"}))
	require.NoError(t, m.Commit("block-1", b1))

	t.Run("dump everything", func(t *testing.T) {
		all, err := m.DumpFamily("block-1", "xo")
		require.NoError(t, err)
		require.EqualValues(t, 3, len(all))
	})
	t.Run("dump by type", func(t *testing.T) {
		games, err := m.DumpFamily("block-1", "xo", "game")
		require.NoError(t, err)
		require.EqualValues(t, 2, len(games))
		require.Contains(t, games, "g1")
		require.Contains(t, games, "g2")
	})
	t.Run("family delta", func(t *testing.T) {
		d, err := m.FamilyDelta("block-1", "xo")
		require.NoError(t, err)
		require.EqualValues(t, 3, len(d.Writes))
		require.EqualValues(t, 0, len(d.Deleted))
	})
	t.Run("unknown family", func(t *testing.T) {
		_, err := m.DumpFamily("block-1", "nope")
		require.ErrorIs(t, err, journal.ErrNotFound)
	})
}
