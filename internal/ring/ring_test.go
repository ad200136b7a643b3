package ring_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rirc-go/rirc/internal/ring"
)

func TestNewlineBasic(t *testing.T) {
	b := ring.New(4)
	b.Newline(ring.LineChat, "alice", "hello", 0)
	require.Equal(t, 1, b.Len())
	assert.Equal(t, "alice", b.Head().From)
	assert.Equal(t, "hello", b.Head().Text)
	assert.True(t, b.AtTailFollow())
}

func TestPushWraparoundDropsOldest(t *testing.T) {
	b := ring.New(4)
	for i := 0; i < 6; i++ {
		b.Newline(ring.LineOther, "s", fmt.Sprintf("line%d", i), 0)
	}
	require.Equal(t, 4, b.Len())
	assert.Equal(t, "line2", b.Tail().Text)
	assert.Equal(t, "line5", b.Head().Text)
}

func TestScrollbackPinnedToTailAdvancesWithPush(t *testing.T) {
	b := ring.New(4)
	for i := 0; i < 4; i++ {
		b.Newline(ring.LineOther, "s", fmt.Sprintf("line%d", i), 0)
	}
	// pin scrollback to the oldest line
	b.PageBack(80, 4)
	require.False(t, b.AtTailFollow())
	before := b.Scrollback()

	// pushing past capacity while scrollback sits at tail must advance
	// scrollback along with tail, per original_source's buffer_push.
	b.Newline(ring.LineOther, "s", "line4", 0)
	assert.Equal(t, before+1, b.Scrollback())
}

func TestScrollbackTailFollowRepins(t *testing.T) {
	b := ring.New(4)
	b.Newline(ring.LineOther, "s", "line0", 0)
	require.True(t, b.AtTailFollow())
	b.Newline(ring.LineOther, "s", "line1", 0)
	assert.True(t, b.AtTailFollow())
	assert.Equal(t, "line1", b.Head().Text)
}

func TestNewlineSplitsOverTextLengthMax(t *testing.T) {
	b := ring.New(8)
	long := make([]byte, ring.TextLengthMax+10)
	for i := range long {
		long[i] = 'x'
	}
	b.Newline(ring.LineChat, "alice", string(long), 0)
	require.Equal(t, 2, b.Len())
	assert.Equal(t, ring.TextLengthMax, b.Tail().TextLen())
	assert.Equal(t, 10, b.Head().TextLen())
}

func TestNewlineTruncatesFrom(t *testing.T) {
	b := ring.New(4)
	long := make([]byte, ring.FromLengthMax+20)
	for i := range long {
		long[i] = 'a'
	}
	b.Newline(ring.LineOther, string(long), "hi", 0)
	assert.Equal(t, ring.FromLengthMax, b.Head().FromLen())
}

func TestScrollbackStatusDividesByCurrentSize(t *testing.T) {
	b := ring.New(8)
	for i := 0; i < 4; i++ {
		b.Newline(ring.LineOther, "s", fmt.Sprintf("l%d", i), 0)
	}
	assert.Equal(t, float64(0), b.ScrollbackStatus())

	b.PageBack(80, 1)
	status := b.ScrollbackStatus()
	assert.InDelta(t, 1.0/4.0, status, 0.001)
}

func TestLineRowsWrapping(t *testing.T) {
	l := &ring.Line{Text: "hello world"}
	assert.Equal(t, 1, ring.LineRows(l, 80))
	assert.Equal(t, 2, ring.LineRows(l, 6))

	empty := &ring.Line{Text: ""}
	assert.Equal(t, 1, ring.LineRows(empty, 10))
}

func TestIndexOutOfRangePanics(t *testing.T) {
	b := ring.New(4)
	b.Newline(ring.LineOther, "s", "l0", 0)
	assert.Panics(t, func() { b.Line(99) })
}
