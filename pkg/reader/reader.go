// Package reader provides a bounds-checked cursor over a seekable byte source
// with a switchable byte order.
package reader

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Reader reads fixed-width integers from an io.ReadSeeker.
//
// None of the read methods return an error; instead they return ok=false when
// fewer bytes remain than requested. A failed read leaves the cursor where it
// was before the call.
type Reader struct {
	r     io.ReadSeeker
	order binary.ByteOrder
}

// New returns a little-endian Reader positioned at the start of r.
func New(r io.ReadSeeker) *Reader {
	rd := &Reader{r: r, order: binary.LittleEndian}
	rd.SeekTo(0)
	return rd
}

// NewBytes is a convenience wrapper around New for in-memory data.
func NewBytes(data []byte) *Reader {
	return New(bytes.NewReader(data))
}

// SetByteOrder changes how subsequent multi-byte reads are decoded.
func (r *Reader) SetByteOrder(order binary.ByteOrder) { r.order = order }

// ByteOrder returns the current byte order.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }

// Pos returns the absolute cursor position.
func (r *Reader) Pos() int64 {
	pos, err := r.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	return pos
}

// SeekTo moves the cursor to the absolute position pos.
func (r *Reader) SeekTo(pos int64) bool {
	if pos < 0 {
		return false
	}
	_, err := r.r.Seek(pos, io.SeekStart)
	return err == nil
}

// AtEnd reports whether no further bytes can be read.
func (r *Reader) AtEnd() bool {
	_, ok := r.PeekUChar()
	return !ok
}

func (r *Reader) fill(buf []byte) bool {
	start := r.Pos()
	if start < 0 {
		return false
	}
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.SeekTo(start)
		return false
	}
	return true
}

// Uint16 reads two bytes in the current byte order.
func (r *Reader) Uint16() (uint16, bool) {
	var buf [2]byte
	if !r.fill(buf[:]) {
		return 0, false
	}
	return r.order.Uint16(buf[:]), true
}

// Uint32 reads four bytes in the current byte order.
func (r *Reader) Uint32() (uint32, bool) {
	var buf [4]byte
	if !r.fill(buf[:]) {
		return 0, false
	}
	return r.order.Uint32(buf[:]), true
}

// Uint64 reads eight bytes in the current byte order.
func (r *Reader) Uint64() (uint64, bool) {
	var buf [8]byte
	if !r.fill(buf[:]) {
		return 0, false
	}
	return r.order.Uint64(buf[:]), true
}

// UChar reads one unsigned byte.
func (r *Reader) UChar() (byte, bool) {
	var buf [1]byte
	if !r.fill(buf[:]) {
		return 0, false
	}
	return buf[0], true
}

// Char reads one signed byte.
func (r *Reader) Char() (int8, bool) {
	b, ok := r.UChar()
	return int8(b), ok
}

// PeekUChar returns the next byte without consuming it.
func (r *Reader) PeekUChar() (byte, bool) {
	pos := r.Pos()
	b, ok := r.UChar()
	if ok {
		r.SeekTo(pos)
	}
	return b, ok
}

// PeekChar returns the next byte as a signed value without consuming it.
func (r *Reader) PeekChar() (int8, bool) {
	b, ok := r.PeekUChar()
	return int8(b), ok
}

// Read consumes and returns up to max bytes. Fewer bytes are returned at the
// end of the source.
func (r *Reader) Read(max int) []byte {
	if max <= 0 {
		return nil
	}
	buf := make([]byte, max)
	n, _ := io.ReadFull(r.r, buf)
	return buf[:n]
}

// Skip advances the cursor by n bytes, failing if that runs past the end.
func (r *Reader) Skip(n int64) bool {
	if n < 0 {
		return false
	}
	if n == 0 {
		return true
	}
	start := r.Pos()
	end, err := r.r.Seek(0, io.SeekEnd)
	if err != nil || start < 0 || start+n > end {
		r.SeekTo(start)
		return false
	}
	return r.SeekTo(start + n)
}

// PeekList reports whether the next bytes equal expected, without consuming
// anything.
func (r *Reader) PeekList(expected []byte) bool {
	pos := r.Pos()
	defer r.SeekTo(pos)
	got := r.Read(len(expected))
	return bytes.Equal(got, expected)
}
