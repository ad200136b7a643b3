package cmap_test

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rirc-go/rirc/internal/casemap"
	"github.com/rirc-go/rirc/internal/cmap"
)

func asciiFold(s string) string { return casemap.Ascii.FoldString(s) }

func TestInsertDuplicate(t *testing.T) {
	tr := cmap.New[int](asciiFold)
	require.Equal(t, cmap.OK, tr.Insert("ALICE", 1))
	require.Equal(t, cmap.Duplicate, tr.Insert("alice", 2))
	v, ok := tr.Get("Alice")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, tr.Len())
}

func TestDeleteNotFound(t *testing.T) {
	tr := cmap.New[int](asciiFold)
	tr.Insert("bob", 1)
	assert.Equal(t, cmap.NotFound, tr.Delete("carol"))
	assert.Equal(t, cmap.OK, tr.Delete("bob"))
	assert.Equal(t, cmap.NotFound, tr.Delete("bob"))
	assert.Equal(t, 0, tr.Len())
}

func TestGetPrefix(t *testing.T) {
	tr := cmap.New[int](asciiFold)
	tr.Insert("alice", 1)
	tr.Insert("bob", 2)
	key, v, ok := tr.GetPrefix("ali")
	require.True(t, ok)
	assert.Equal(t, "alice", key)
	assert.Equal(t, 1, v)

	_, _, ok = tr.GetPrefix("car")
	assert.False(t, ok)
}

func TestEntriesOrderedNoDuplicates(t *testing.T) {
	tr := cmap.New[int](asciiFold)
	names := []string{"zed", "ALICE", "bob", "Carol", "dan", "alice2"}
	for i, n := range names {
		require.Equal(t, cmap.OK, tr.Insert(n, i))
	}
	entries := tr.Entries()
	require.Len(t, entries, len(names))
	for i := 1; i < len(entries); i++ {
		assert.Less(t, asciiFold(entries[i-1].Key), asciiFold(entries[i].Key))
	}
}

// property: for any sequence of add/del operations, in-order traversal is
// sorted with no duplicates, and tree height <= 1.44*log2(n+2).
func TestAVLInvariantsFuzz(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tr := cmap.New[int](asciiFold)
	present := map[string]bool{}

	for i := 0; i < 2000; i++ {
		key := strconv.Itoa(r.Intn(500))
		if r.Intn(2) == 0 {
			res := tr.Insert(key, i)
			if present[key] {
				assert.Equal(t, cmap.Duplicate, res)
			} else {
				assert.Equal(t, cmap.OK, res)
				present[key] = true
			}
		} else {
			res := tr.Delete(key)
			if present[key] {
				assert.Equal(t, cmap.OK, res)
				delete(present, key)
			} else {
				assert.Equal(t, cmap.NotFound, res)
			}
		}

		entries := tr.Entries()
		assert.Len(t, entries, len(present))
		for j := 1; j < len(entries); j++ {
			assert.Less(t, entries[j-1].Key, entries[j].Key)
		}

		n := tr.Len()
		if n > 0 {
			maxHeight := 1.44 * math.Log2(float64(n+2))
			assert.LessOrEqualf(t, float64(tr.Height()), maxHeight,"height=%d n=%d", tr.Height(), n)
		}
	}
}
