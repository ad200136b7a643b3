package casemap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rirc-go/rirc/internal/casemap"
)

func TestFold(t *testing.T) {
	cases := []struct {
		mapping casemap.Mapping
		in, out byte
	}{
		{casemap.Ascii, 'A', 'a'},
		{casemap.Ascii, '[', '['},
		{casemap.Ascii, '^', '^'},
		{casemap.StrictRfc1459, '[', '{'},
		{casemap.StrictRfc1459, ']', '}'},
		{casemap.StrictRfc1459, '\\', '|'},
		{casemap.StrictRfc1459, '^', '^'},
		{casemap.Rfc1459, '^', '~'},
		{casemap.Rfc1459, '[', '{'},
	}
	for _, c := range cases {
		assert.Equalf(t, c.out, c.mapping.Fold(c.in), "%s fold %q", c.mapping, c.in)
	}
}

func TestCompare(t *testing.T) {
	assert.True(t, casemap.Ascii.Equal("ALICE", "alice"))
	assert.False(t, casemap.Ascii.Equal("ALICE", "alice2"))
	assert.True(t, casemap.Rfc1459.Equal("nick^", "nick~"))
	assert.False(t, casemap.Ascii.Equal("nick^", "nick~"))
	assert.True(t, casemap.StrictRfc1459.Equal("a[b]c", "a{b}c"))
}

func TestCompareNulShortCircuit(t *testing.T) {
	a := "abc\x00def"
	b := "abc\x00xyz"
	assert.Equal(t, 0, casemap.Ascii.Compare(a, b))
}

func TestParse(t *testing.T) {
	m, err := casemap.Parse("ascii")
	require.NoError(t, err)
	assert.Equal(t, casemap.Ascii, m)

	m, err = casemap.Parse("strict-rfc1459")
	require.NoError(t, err)
	assert.Equal(t, casemap.StrictRfc1459, m)

	_, err = casemap.Parse("utf-8")
	assert.Error(t, err)
}

// property: strcmp(fold(a), fold(b)) == 0 iff irc_strcmp(mapping, a, b) == 0
func TestFoldStringMatchesCompare(t *testing.T) {
	inputs := []string{"Alice", "alice", "ALICE^bob", "ALICE~bob", "[guest]", "{guest}"}
	for _, mapping := range []casemap.Mapping{casemap.Ascii, casemap.Rfc1459, casemap.StrictRfc1459} {
		for _, a := range inputs {
			for _, b := range inputs {
				want := mapping.FoldString(a) == mapping.FoldString(b)
				got := mapping.Equal(a, b)
				assert.Equalf(t, want, got, "%s: %q vs %q", mapping, a, b)
			}
		}
	}
}
