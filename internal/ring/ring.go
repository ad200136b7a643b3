// Package ring implements the fixed-capacity, scrollback-aware circular
// buffer of message lines that every display surface reads from. It is a
// direct port of original_source/src/components/buffer.c
// and src/buffer.h, generalized from a single compiled-in capacity to any
// caller-chosen power of two (LinesMax remains the default used by Channel).
package ring

import (
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/mattn/go-runewidth"
)

// LinesMax is the default buffer capacity: BUFFER_LINES_MAX = 2^10 in the
// original source. Must remain a power of two for the mask trick in index()
// to be valid.
const LinesMax = 1 << 10

// TextLengthMax and FromLengthMax mirror the original's TEXT_LENGTH_MAX and
// FROM_LENGTH_MAX: the wire-visible limits on a single buffer line.
const (
	TextLengthMax = 510
	FromLengthMax = 100
)

// LineKind classifies a buffer line for the renderer. The numeric values
// match original_source's BUFFER_LINE_OTHER=0, BUFFER_LINE_CHAT=1,
// BUFFER_LINE_PINGED=2 and should be treated as a stable wire/display ABI.
type LineKind int

const (
	LineOther  LineKind = 0
	LineChat   LineKind = 1
	LinePinged LineKind = 2
)

// Line is one immutable (after Push) buffer entry.
type Line struct {
	Kind LineKind
	From string
	Text string
	Time time.Time

	cachedWidth int
	cachedRows  int
}

// FromLen and TextLen report the byte lengths of From and Text, matching the
// original's cached from_len/text_len fields.
func (l *Line) FromLen() int { return len(l.From) }
func (l *Line) TextLen() int { return len(l.Text) }

// Buffer is a fixed-capacity ring of line slots with a live head/tail window
// and a scrollback cursor. The zero value is not usable; use New.
type Buffer struct {
	cap        uint32
	mask       uint32
	lines      []Line
	head       uint32
	tail       uint32
	scrollback uint32
	pad        int // widest From ever pushed, monotone non-decreasing
}

// New returns an empty Buffer with the given capacity, which must be a power
// of two. Panics if capacity is not a power of two: that can only come from
// a programmer error, never from user or network input.
func New(capacity uint32) *Buffer {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic(goerrors.Errorf("ring: capacity %d is not a power of two", capacity))
	}
	return &Buffer{
		cap:   capacity,
		mask:  capacity - 1,
		lines: make([]Line, capacity),
	}
}

func (b *Buffer) slot(i uint32) *Line {
	return &b.lines[i&b.mask]
}

func (b *Buffer) size() uint32 {
	return b.head - b.tail
}

func (b *Buffer) full() bool {
	return b.size() == b.cap
}

// Len returns the number of live lines currently retained.
func (b *Buffer) Len() int {
	return int(b.size())
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return int(b.cap)
}

// Pad returns the widest From field ever pushed, used by the renderer to
// align sender columns.
func (b *Buffer) Pad() int {
	return b.pad
}

// push implements original_source's buffer_push: if scrollback == head
// (tail-follow mode) it remains so by re-pinning to the post-increment
// head; otherwise it is held steady. Then, only when the buffer is full,
// tail advances by one and scrollback advances with it if scrollback was
// pinned to tail. Finally head advances and the newly exposed slot is
// returned for the caller to populate.
//
// scrollback == head is a genuine out-of-[tail,head) sentinel, not an
// alias for head-1: the two are distinguishable states (live tail-follow
// vs. parked one line back on the newest line), so this check must compare
// the raw cursors rather than dereferencing scrollback through index(),
// which would panic on the sentinel value and also could not tell the two
// states apart.
func (b *Buffer) push() *Line {
	tailFollow := b.scrollback == b.head

	if b.full() {
		if b.scrollback == b.tail {
			b.scrollback++
		}
		b.tail++
	}

	line := b.slot(b.head)
	b.head++
	if tailFollow {
		b.scrollback = b.head
	}
	return line
}

// index validates that i lies within [tail, head) under modular arithmetic
// and returns the slot it names. An out-of-range index is a programmer
// error: it indicates the caller is holding a stale cursor, which can only
// happen from a core bug, never from user or network input, so it panics.
func (b *Buffer) index(i uint32) *Line {
	if b.size() == 0 {
		panic(goerrors.Errorf("ring: index %d on empty buffer", i))
	}
	// head and tail are free-running uint32 counters (only slot() maps them
	// into the backing array via the mask) and may wrap past zero, so the
	// range is checked on the offset from tail rather than with plain
	// comparisons against tail and head.
	if i-b.tail >= b.size() {
		panic(goerrors.Errorf("ring: invalid index %d (head=%d tail=%d)", i, b.head, b.tail))
	}
	return b.slot(i)
}

// Head returns the most recently pushed line, or nil if the buffer is empty.
func (b *Buffer) Head() *Line {
	if b.size() == 0 {
		return nil
	}
	return b.slot(b.head - 1)
}

// Tail returns the oldest retained line, or nil if the buffer is empty.
func (b *Buffer) Tail() *Line {
	if b.size() == 0 {
		return nil
	}
	return b.slot(b.tail)
}

// Line returns the line at absolute index i. Panics if i does not lie in
// [tail, head).
func (b *Buffer) Line(i uint32) *Line {
	return b.index(i)
}

// Scrollback returns the current scrollback cursor.
func (b *Buffer) Scrollback() uint32 {
	return b.scrollback
}

// AtTailFollow reports whether the buffer is currently in tail-follow mode
// (scrollback == head, i.e. new lines scroll into view automatically). This
// is a distinct state from scrollback resting on the newest live line
// (head-1): the former follows future pushes, the latter does not.
func (b *Buffer) AtTailFollow() bool {
	return b.scrollback == b.head
}

// Newline writes a new line of the given kind, sender, and text. Text longer
// than TextLengthMax is split across multiple lines sharing the same kind
// and sender, as original_source's buffer_newline recurses to do. Sender is
// left-truncated to FromLengthMax bytes; prefix, if non-zero, is prepended
// to the sender before truncation (used for e.g. the "--" server-message
// sender or a status sigil).
func (b *Buffer) Newline(kind LineKind, from, text string, prefix byte) {
	if from == "" {
		panic(goerrors.New("ring: from string is empty"))
	}

	fromStr := from
	if prefix != 0 {
		fromStr = string(prefix) + from
	}
	if len(fromStr) > FromLengthMax {
		fromStr = fromStr[:FromLengthMax]
	}

	chunk := text
	rest := ""
	if len(chunk) > TextLengthMax {
		chunk, rest = text[:TextLengthMax], text[TextLengthMax:]
	}

	line := b.push()
	*line = Line{
		Kind: kind,
		From: fromStr,
		Text: chunk,
		Time: time.Now(),
	}

	if len(fromStr) > b.pad {
		b.pad = len(fromStr)
	}

	if rest != "" {
		b.Newline(kind, from, rest, prefix)
	}
}

// LineRows returns the number of terminal rows line occupies when wrapped at
// w display columns, memoising the result the way original_source's
// buffer_line_rows does. Column width (not byte count) is computed with
// go-runewidth so wide and zero-width runes wrap correctly.
func LineRows(line *Line, w int) int {
	if w <= 0 {
		panic(goerrors.Errorf("ring: width %d is not positive", w))
	}
	if line.Text == "" {
		line.cachedRows = 1
		return 1
	}
	if line.cachedWidth != w {
		line.cachedWidth = w
		line.cachedRows = wrapRows(line.Text, w)
	}
	return line.cachedRows
}

// wrapRows counts the number of rows text wraps into at width w: break on
// whitespace, hard-break mid-word when a single word exceeds w.
func wrapRows(text string, w int) int {
	rows := 0
	col := 0
	wordWidth := 0
	flushWord := func() {
		for wordWidth > 0 {
			if col == 0 && wordWidth > w {
				// hard-break: this word alone fills one or more rows
				rows++
				wordWidth -= w
				continue
			}
			if col+wordWidth > w {
				rows++
				col = 0
				continue
			}
			col += wordWidth
			wordWidth = 0
		}
	}
	rows = 1
	col = 0
	for _, r := range text {
		if r == ' ' || r == '\t' {
			flushWord()
			if col+1 > w {
				rows++
				col = 0
			} else {
				col++
			}
			continue
		}
		wordWidth += runewidth.RuneWidth(r)
	}
	flushWord()
	return rows
}

// PageBack moves the scrollback cursor backward (toward tail) by whole
// lines such that the cumulative row count at width cols does not exceed
// rows. Clamps at tail.
func (b *Buffer) PageBack(cols, rows int) {
	if b.size() == 0 {
		return
	}
	sb := b.scrollback
	used := 0
	for sb > b.tail {
		prev := sb - 1
		r := LineRows(b.index(prev), cols)
		if used+r > rows && used > 0 {
			break
		}
		used += r
		sb = prev
	}
	b.scrollback = sb
}

// PageForw moves the scrollback cursor forward (toward head) by whole lines
// such that the cumulative row count at width cols does not exceed rows.
// Moving forward past head re-enters tail-follow mode.
func (b *Buffer) PageForw(cols, rows int) {
	if b.size() == 0 {
		return
	}
	sb := b.scrollback
	used := 0
	for sb < b.head {
		r := LineRows(b.index(sb), cols)
		if used+r > rows && used > 0 {
			break
		}
		used += r
		sb++
	}
	b.scrollback = sb
}

// ScrollbackStatus returns 0 when the buffer is in tail-follow mode, or the
// fraction (head-scrollback)/size in (0,1] otherwise. Division is against
// the buffer's *current* size (not the fixed capacity), matching
// original_source's buffer_scrollback_status.
func (b *Buffer) ScrollbackStatus() float64 {
	if b.AtTailFollow() {
		return 0
	}
	return float64(b.head-b.scrollback) / float64(b.size())
}
