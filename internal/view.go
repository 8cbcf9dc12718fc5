package internal

import (
	"bytes"
	"encoding/binary"
)

// View provides bounds-checked random access to an executable image.
// All offset arithmetic happens in uint64 space, so corrupt header fields
// near the 64-bit limit cannot overflow into a small signed offset.
// A failed read reports ok=false instead of panicking; the caller decides
// whether that means a malformed file or just a candidate to skip.
type View struct {
	data []byte
	bo   binary.ByteOrder
}

// NewView wraps data for reading in the given byte order.
func NewView(data []byte, bo binary.ByteOrder) View {
	return View{data: data, bo: bo}
}

// Len returns the image size.
func (v View) Len() uint64 {
	return uint64(len(v.data))
}

// In reports whether the range [off, off+n) lies inside the image.
func (v View) In(off, n uint64) bool {
	return off <= v.Len() && n <= v.Len()-off
}

// Bytes returns the n bytes at off without copying.
func (v View) Bytes(off, n uint64) ([]byte, bool) {
	if !v.In(off, n) {
		return nil, false
	}
	return v.data[off : off+n : off+n], true
}

// Sub returns a view of the range [off, off+n), keeping the byte order.
func (v View) Sub(off, n uint64) (View, bool) {
	b, ok := v.Bytes(off, n)
	if !ok {
		return View{}, false
	}
	return View{data: b, bo: v.bo}, true
}

func (v View) U16(off uint64) (uint16, bool) {
	b, ok := v.Bytes(off, 2)
	if !ok {
		return 0, false
	}
	return v.bo.Uint16(b), true
}

func (v View) U32(off uint64) (uint32, bool) {
	b, ok := v.Bytes(off, 4)
	if !ok {
		return 0, false
	}
	return v.bo.Uint32(b), true
}

func (v View) U64(off uint64) (uint64, bool) {
	b, ok := v.Bytes(off, 8)
	if !ok {
		return 0, false
	}
	return v.bo.Uint64(b), true
}

// CString interprets b as a fixed-width, NUL-padded name field and returns
// the text before the first NUL. Section, segment and note names in all
// three container formats use this convention.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
