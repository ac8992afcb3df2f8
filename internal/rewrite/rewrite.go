// Package rewrite implements the textual rewrite buffer the planners emit
// into. Insertions are keyed on byte offsets of the original source; the
// buffer is materialized once, after planning succeeds, so a failed plan
// never produces a partial output file.
package rewrite

import (
	"bytes"
	"fmt"
	"sort"
)

// Buffer accumulates insertions against an immutable source.
//
// Two insertions at the same offset keep the order in which they were
// added. The planners rely on this: the memory planner inserts the
// recorders of a nested access such as a[b[i]], and then a return's
// analysis block, at the same statement start, and the emitted lines must
// appear in exactly that order.
type Buffer struct {
	src []byte
	ins []insertion
}

type insertion struct {
	off  int
	seq  int
	text string
}

// NewBuffer wraps src. The buffer never mutates src.
func NewBuffer(src []byte) *Buffer {
	return &Buffer{src: src}
}

// Len returns the length of the underlying source.
func (b *Buffer) Len() int { return len(b.src) }

// InsertBefore records text to be placed immediately before the byte at
// off. Offsets are clamped to the source range; out-of-range insertions
// land at the nearest end rather than failing, matching the engine's
// best-effort posture.
func (b *Buffer) InsertBefore(off int, text string) {
	if text == "" {
		return
	}
	if off < 0 {
		off = 0
	}
	if off > len(b.src) {
		off = len(b.src)
	}
	b.ins = append(b.ins, insertion{off: off, seq: len(b.ins), text: text})
}

// Append records text at the very end of the source.
func (b *Buffer) Append(text string) {
	b.InsertBefore(len(b.src), text)
}

// Count returns the number of recorded insertions.
func (b *Buffer) Count() int { return len(b.ins) }

// Apply materializes the rewritten source.
func (b *Buffer) Apply() []byte {
	ins := make([]insertion, len(b.ins))
	copy(ins, b.ins)
	sort.SliceStable(ins, func(i, j int) bool {
		if ins[i].off != ins[j].off {
			return ins[i].off < ins[j].off
		}
		return ins[i].seq < ins[j].seq
	})

	var out bytes.Buffer
	total := len(b.src)
	for _, in := range ins {
		total += len(in.text)
	}
	out.Grow(total)

	prev := 0
	for _, in := range ins {
		out.Write(b.src[prev:in.off])
		out.WriteString(in.text)
		prev = in.off
	}
	out.Write(b.src[prev:])
	return out.Bytes()
}

// String implements fmt.Stringer for debugging.
func (b *Buffer) String() string {
	return fmt.Sprintf("rewrite.Buffer{src=%dB insertions=%d}", len(b.src), len(b.ins))
}
