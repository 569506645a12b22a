package journal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKVStoreBasic(t *testing.T) {
	t.Run("clone does not touch the parent", func(t *testing.T) {
		r := NewKVStore()
		require.True(t, r.Keys().IsEmpty())
		c1 := r.Clone()
		err := c1.Set("k1", Value{"f": "v1"})
		require.NoError(t, err)

		require.False(t, r.Contains("k1"))
		v, err := c1.Get("k1")
		require.NoError(t, err)
		require.EqualValues(t, "v1", v["f"])
	})
	t.Run("get returns a copy", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("k1", Value{"f": "v1", "nested": map[string]any{"a": "b"}}))

		v, err := r.Get("k1")
		require.NoError(t, err)
		v["f"] = "mutated"
		v["nested"].(map[string]any)["a"] = "mutated"

		again, err := r.Get("k1")
		require.NoError(t, err)
		require.EqualValues(t, "v1", again["f"])
		require.EqualValues(t, "b", again["nested"].(map[string]any)["a"])
	})
	t.Run("get missing", func(t *testing.T) {
		r := NewKVStore()
		_, err := r.Get("nope")
		require.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("set un-deletes", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("k1", Value{"f": "v1"}))
		require.NoError(t, r.Delete("k1"))
		require.False(t, r.Contains("k1"))
		require.NoError(t, r.Set("k1", Value{"f": "v2"}))
		v, err := r.Get("k1")
		require.NoError(t, err)
		require.EqualValues(t, "v2", v["f"])
	})
}

func TestChainVisibility(t *testing.T) {
	t.Run("most recent write wins", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("k", Value{"f": "v0"}))
		r.Seal()

		c1 := r.Clone()
		require.NoError(t, c1.Set("k", Value{"f": "v1"}))
		c1.Seal()

		c2 := c1.Clone()

		v, err := c2.Get("k")
		require.NoError(t, err)
		require.EqualValues(t, "v1", v["f"])

		v, err = r.Get("k")
		require.NoError(t, err)
		require.EqualValues(t, "v0", v["f"])
	})
	t.Run("delete shadows ancestor, set in descendant revives", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("k1", Value{"f": "v1"}))
		r.Seal()

		c1 := r.Clone()
		require.NoError(t, c1.Delete("k1"))
		require.False(t, c1.Contains("k1"))
		require.True(t, r.Contains("k1"))
		c1.Seal()

		c2 := c1.Clone()
		require.False(t, c2.Contains("k1"))
		require.NoError(t, c2.Set("k1", Value{"f": "v2"}))

		v, err := c2.Get("k1")
		require.NoError(t, err)
		require.EqualValues(t, "v2", v["f"])

		v, err = r.Get("k1")
		require.NoError(t, err)
		require.EqualValues(t, "v1", v["f"])
	})
	t.Run("keys composition", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("a", Value{"f": "1"}))
		require.NoError(t, r.Set("b", Value{"f": "2"}))
		r.Seal()

		c1 := r.Clone()
		require.NoError(t, c1.Delete("a"))
		require.NoError(t, c1.Set("c", Value{"f": "3"}))

		keys := c1.Keys()
		require.EqualValues(t, 2, len(keys))
		require.True(t, keys.Contains("b"))
		require.True(t, keys.Contains("c"))
		require.False(t, keys.Contains("a"))
	})
}

func TestSealImmutability(t *testing.T) {
	r := NewKVStore()
	require.NoError(t, r.Set("k", Value{"f": "v"}))
	r.Seal()
	r.Seal() // idempotent

	require.ErrorIs(t, r.Set("k", Value{"f": "other"}), ErrSealedStore)
	require.ErrorIs(t, r.Delete("k"), ErrSealedStore)

	v, err := r.Get("k")
	require.NoError(t, err)
	require.EqualValues(t, "v", v["f"])
	require.EqualValues(t, 1, len(r.Keys()))
}

func TestFlatten(t *testing.T) {
	t.Run("flatten requires sealed", func(t *testing.T) {
		r := NewKVStore()
		require.ErrorIs(t, r.Flatten(), ErrNotSealed)
	})
	t.Run("flatten transparency", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("a", Value{"f": "1"}))
		require.NoError(t, r.Set("b", Value{"f": "2"}))
		r.Seal()

		c1 := r.Clone()
		require.NoError(t, c1.Delete("a"))
		require.NoError(t, c1.Set("c", Value{"f": "3"}))
		require.NoError(t, c1.Set("b", Value{"f": "2a"}))
		c1.Seal()

		before := c1.Compose()
		keysBefore := c1.Keys()

		require.NoError(t, c1.Flatten())

		require.EqualValues(t, keysBefore, c1.Keys())
		after := c1.Compose()
		require.EqualValues(t, before, after)
		for k := range before {
			v, err := c1.Get(k)
			require.NoError(t, err)
			require.EqualValues(t, before[k], v)
		}
	})
	t.Run("flattened copy leaves the original untouched", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("a", Value{"f": "1"}))
		r.Seal()

		c1 := r.Clone()
		require.NoError(t, c1.Set("b", Value{"f": "2"}))

		_, err := c1.Flattened()
		require.ErrorIs(t, err, ErrNotSealed)

		c1.Seal()
		flat, err := c1.Flattened()
		require.NoError(t, err)

		require.True(t, flat.IsSealed())
		require.EqualValues(t, c1.Compose(), flat.Compose())
		require.EqualValues(t, c1.Keys(), flat.Keys())

		// the original still holds only its own delta
		d := c1.Delta()
		require.EqualValues(t, 1, len(d.Writes))
		require.Contains(t, d.Writes, "b")
		// the copy holds the full composed state as its own writes
		dFlat := flat.Delta()
		require.EqualValues(t, 2, len(dFlat.Writes))
	})
	t.Run("flatten does not invalidate children", func(t *testing.T) {
		r := NewKVStore()
		require.NoError(t, r.Set("a", Value{"f": "1"}))
		r.Seal()

		c1 := r.Clone()
		require.NoError(t, c1.Set("b", Value{"f": "2"}))
		c1.Seal()

		c2 := c1.Clone()
		require.NoError(t, c1.Flatten())

		// the child re-derives through whatever parent it holds
		require.True(t, c2.Contains("a"))
		require.True(t, c2.Contains("b"))
	})
}

func TestLongChain(t *testing.T) {
	const depth = 5000

	cur := NewKVStore()
	require.NoError(t, cur.Set("key-0", Value{"f": "0"}))
	for i := 1; i < depth; i++ {
		cur.Seal()
		cur = cur.Clone()
		require.NoError(t, cur.Set(fmt.Sprintf("key-%d", i), Value{"f": "x"}))
		require.NoError(t, cur.Set("latest", Value{"f": fmt.Sprintf("%d", i)}))
	}
	require.True(t, cur.Contains("key-0"))
	v, err := cur.Get("latest")
	require.NoError(t, err)
	require.EqualValues(t, fmt.Sprintf("%d", depth-1), v["f"])

	cur.Seal()
	require.NoError(t, cur.Flatten())
	require.True(t, cur.Contains("key-0"))
	require.EqualValues(t, depth+1, len(cur.Keys()))
}

func TestDelta(t *testing.T) {
	r := NewKVStore()
	require.NoError(t, r.Set("a", Value{"f": "1"}))
	r.Seal()

	c1 := r.Clone()
	require.NoError(t, c1.Set("b", Value{"f": "2"}))
	require.NoError(t, c1.Delete("a"))

	d := c1.Delta()
	require.EqualValues(t, 1, len(d.Writes))
	require.EqualValues(t, "2", d.Writes["b"]["f"])
	require.EqualValues(t, []string{"a"}, d.Deleted)

	// the delta applied on top of the same parent reproduces the view
	c2 := r.cloneWithDelta(d)
	require.False(t, c2.Contains("a"))
	v, err := c2.Get("b")
	require.NoError(t, err)
	require.EqualValues(t, "2", v["f"])
}
