// Package strbuf provides a grow-on-demand byte buffer with formatted
// append, used for token accumulation during lexing and for composing
// diagnostic messages.
package strbuf

import "fmt"

// Buffer is a reusable byte accumulator. The zero value is ready to use.
type Buffer struct {
	b []byte
}

// Reset empties the buffer without releasing its backing array.
func (b *Buffer) Reset() {
	b.b = b.b[:0]
}

// Grow ensures the buffer can accept n more bytes without reallocating.
func (b *Buffer) Grow(n int) {
	if cap(b.b)-len(b.b) >= n {
		return
	}
	grown := make([]byte, len(b.b), len(b.b)+n)
	copy(grown, b.b)
	b.b = grown
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.b = append(b.b, c)
	return nil
}

// WriteRune appends a rune, UTF-8 encoded.
func (b *Buffer) WriteRune(r rune) {
	b.b = append(b.b, string(r)...)
}

// WriteString appends s verbatim.
func (b *Buffer) WriteString(s string) {
	b.b = append(b.b, s...)
}

// Printf appends a formatted string, in the style of fmt.Fprintf.
func (b *Buffer) Printf(format string, args ...any) {
	fmt.Fprintf(b, format, args...)
}

// Write implements io.Writer so Buffer can be used as a Printf target.
func (b *Buffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// Len returns the number of bytes currently buffered.
func (b *Buffer) Len() int { return len(b.b) }

// String returns the buffered content as a string.
func (b *Buffer) String() string { return string(b.b) }

// Bytes returns the buffered content without copying.
func (b *Buffer) Bytes() []byte { return b.b }
