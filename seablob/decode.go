package seablob

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrInvalidMagic indicates that the data does not start with the SEA magic number
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidEncoding indicates that a text field is not valid UTF-8
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrTruncatedBlob indicates that the data ends before a declared field
	ErrTruncatedBlob = errors.New("truncated blob")
)

// reader is a bounds-checked forward cursor over the blob bytes.
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

// need fails with ErrTruncatedBlob unless n more bytes are available.
// n is compared in uint64 space so that corrupt length prefixes close to
// the 64-bit limit cannot overflow into a small int.
func (r *reader) need(n uint64, what string) error {
	if n > uint64(r.remaining()) {
		return fmt.Errorf("%w: %s at offset %d: need %d bytes, have %d",
			ErrTruncatedBlob, what, r.off, n, r.remaining())
	}
	return nil
}

func (r *reader) uint32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	b := r.data[r.off:]
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	r.off += 4
	return v, nil
}

func (r *reader) uint64(what string) (uint64, error) {
	if err := r.need(8, what); err != nil {
		return 0, err
	}
	b := r.data[r.off:]
	v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
	r.off += 8
	return v, nil
}

// bytes returns the next n bytes without copying them.
func (r *reader) bytes(n uint64, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	b := r.data[r.off : r.off+int(n) : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

// lengthPrefixed reads a u64 length followed by that many bytes.
func (r *reader) lengthPrefixed(what string) ([]byte, error) {
	n, err := r.uint64(what + " length")
	if err != nil {
		return nil, err
	}
	return r.bytes(n, what)
}

// text reads a length-prefixed field and validates it as UTF-8.
func (r *reader) text(what string) (string, error) {
	start := r.off
	b, err := r.lengthPrefixed(what)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s at offset %d is not valid UTF-8",
			ErrInvalidEncoding, what, start)
	}
	return string(b), nil
}

// Decode parses a SEA blob.
//
// The data must start with the magic number; anything after the last declared
// section is ignored, since injection tools may pad the containing section.
// Returned byte slices alias data. Callers must not modify data afterwards.
func Decode(data []byte) (*Blob, error) {
	r := &reader{data: data}

	magic, err := r.uint32("magic")
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: found 0x%08x, want 0x%08x", ErrInvalidMagic, magic, Magic)
	}

	flags, err := r.uint32("flags")
	if err != nil {
		return nil, err
	}
	blob := &Blob{Flags: Flags(flags)}

	if blob.CodePath, err = r.text("code path"); err != nil {
		return nil, err
	}
	if blob.Source, err = r.text("source"); err != nil {
		return nil, err
	}

	if blob.Flags.Has(FlagUseCodeCache) {
		if blob.CodeCache, err = r.lengthPrefixed("code cache"); err != nil {
			return nil, err
		}
	}

	if blob.Flags.Has(FlagIncludeAssets) {
		count, err := r.uint64("asset count")
		if err != nil {
			return nil, err
		}
		// Every asset takes at least two length prefixes, so a count that
		// cannot fit in the remaining bytes is detected before allocating.
		if count > uint64(r.remaining())/16 {
			return nil, fmt.Errorf("%w: asset count %d at offset %d exceeds remaining %d bytes",
				ErrTruncatedBlob, count, r.off, r.remaining())
		}
		blob.Assets = make([]Asset, 0, count)
		for i := uint64(0); i < count; i++ {
			name, err := r.text(fmt.Sprintf("asset %d name", i))
			if err != nil {
				return nil, err
			}
			data, err := r.lengthPrefixed(fmt.Sprintf("asset %d data", i))
			if err != nil {
				return nil, err
			}
			blob.Assets = append(blob.Assets, Asset{Name: name, Data: data})
		}
	}

	return blob, nil
}
