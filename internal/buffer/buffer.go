// Package buffer implements the single read/write cursor the codec layers
// build frames into and decode frames out of.
package buffer

import (
	"encoding/binary"
	"fmt"
)

// Buffer is a []byte with a read cursor. Writes always append; reads
// always advance from the front. A single Buffer is reused for encoding
// one frame body (write-only) or decoding one frame body (read-only) —
// the two modes are never mixed within one call.
type Buffer struct {
	b []byte
	i int // read offset
}

// New wraps an existing byte slice for reading.
func New(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Reset discards any buffered content and read position, retaining the
// underlying array for reuse.
func (b *Buffer) Reset() {
	b.b = b.b[:0]
	b.i = 0
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.b) - b.i
}

// Size returns the total capacity of the underlying data, including
// already-read bytes.
func (b *Buffer) Size() int {
	return len(b.b)
}

// Bytes returns the unread portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.b[b.i:]
}

// Detach returns the full underlying slice, ignoring the read cursor.
// Used once encoding of a frame body is complete.
func (b *Buffer) Detach() []byte {
	return b.b
}

// Skip advances the read cursor by n bytes without returning them.
// It is an error to skip past the end of the buffer.
func (b *Buffer) Skip(n int) error {
	if b.Len() < n {
		return fmt.Errorf("buffer: cannot skip %d bytes, only %d remain", n, b.Len())
	}
	b.i += n
	return nil
}

// Next consumes up to n bytes and returns them. If fewer than n bytes
// remain, it returns what's left and false.
func (b *Buffer) Next(n int64) ([]byte, bool) {
	if int64(b.Len()) < n {
		out := b.b[b.i:]
		b.i = len(b.b)
		return out, false
	}
	out := b.b[b.i : b.i+int(n)]
	b.i += int(n)
	return out, true
}

// ReadByte consumes and returns a single byte.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() < 1 {
		return 0, fmt.Errorf("buffer: EOF reading byte")
	}
	c := b.b[b.i]
	b.i++
	return c, nil
}

// PeekByte returns the next byte without consuming it.
func (b *Buffer) PeekByte() (byte, error) {
	if b.Len() < 1 {
		return 0, fmt.Errorf("buffer: EOF peeking byte")
	}
	return b.b[b.i], nil
}

// ReadBytes consumes exactly n bytes, or returns an error.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if b.Len() < n {
		return nil, fmt.Errorf("buffer: EOF reading %d bytes, %d available", n, b.Len())
	}
	out := b.b[b.i : b.i+n]
	b.i += n
	return out, nil
}

// ReadUint16 consumes a big-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	buf, err := b.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// ReadUint32 consumes a big-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	buf, err := b.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// ReadUint64 consumes a big-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	buf, err := b.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) {
	b.b = append(b.b, p...)
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.b = append(b.b, c)
	return nil
}

// WriteString appends the bytes of s.
func (b *Buffer) WriteString(s string) {
	b.b = append(b.b, s...)
}

// Append is an alias for Write retained for readability at call sites
// that are conceptually "append the payload".
func (b *Buffer) Append(p []byte) {
	b.Write(p)
}

// WriteUint16 appends a big-endian uint16.
func (b *Buffer) WriteUint16(n uint16) {
	b.b = append(b.b, byte(n>>8), byte(n))
}

// WriteUint32 appends a big-endian uint32.
func (b *Buffer) WriteUint32(n uint32) {
	b.b = append(b.b, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

// WriteUint64 appends a big-endian uint64.
func (b *Buffer) WriteUint64(n uint64) {
	b.b = append(b.b,
		byte(n>>56), byte(n>>48), byte(n>>40), byte(n>>32),
		byte(n>>24), byte(n>>16), byte(n>>8), byte(n),
	)
}
