package userlist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rirc-go/rirc/internal/casemap"
	"github.com/rirc-go/rirc/internal/cmap"
	"github.com/rirc-go/rirc/internal/mode"
	"github.com/rirc-go/rirc/internal/userlist"
)

func fold(s string) string { return casemap.Rfc1459.FoldString(s) }

func TestAddDuplicate(t *testing.T) {
	l := userlist.New(fold)
	require.Equal(t, cmap.OK, l.Add("alice", 0))
	assert.Equal(t, cmap.Duplicate, l.Add("ALICE", 0))
	assert.Equal(t, 1, l.Len())
}

func TestDelNotFound(t *testing.T) {
	l := userlist.New(fold)
	l.Add("bob", 0)
	assert.Equal(t, cmap.NotFound, l.Del("carol"))
	assert.Equal(t, cmap.OK, l.Del("bob"))
	assert.Equal(t, 0, l.Len())
}

func TestGetPrefix(t *testing.T) {
	l := userlist.New(fold)
	l.Add("alice", mode.Vector(0).Set('o'))
	l.Add("bob", 0)
	u := l.Get("ali")
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Nick)
	assert.True(t, u.PrefixModes.Has('o'))

	assert.Nil(t, l.Get("car"))
}

func TestReplacePreservesModes(t *testing.T) {
	l := userlist.New(fold)
	l.Add("alice", mode.Vector(0).Set('o'))
	require.Equal(t, cmap.OK, l.Replace("alice", "carol"))
	assert.Nil(t, l.Get("alice"))
	u := l.Get("carol")
	require.NotNil(t, u)
	assert.True(t, u.PrefixModes.Has('o'))
}

func TestReplaceReinsertsOldOnConflict(t *testing.T) {
	l := userlist.New(fold)
	l.Add("alice", mode.Vector(0).Set('o'))
	l.Add("bob", 0)
	assert.Equal(t, cmap.Duplicate, l.Replace("alice", "bob"))
	u := l.Get("alice")
	require.NotNil(t, u)
	assert.True(t, u.PrefixModes.Has('o'))
	assert.Equal(t, 2, l.Len())
}

func TestReplaceNotFound(t *testing.T) {
	l := userlist.New(fold)
	assert.Equal(t, cmap.NotFound, l.Replace("ghost", "new"))
}

func TestEntriesOrdered(t *testing.T) {
	l := userlist.New(fold)
	l.Add("zed", 0)
	l.Add("alice", 0)
	l.Add("bob", 0)
	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].Nick)
	assert.Equal(t, "bob", entries[1].Nick)
	assert.Equal(t, "zed", entries[2].Nick)
}
