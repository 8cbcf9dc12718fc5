package seablob

import "encoding/binary"

// Encode serializes a blob into the byte layout Decode expects.
//
// The code-cache and asset flags are derived from the populated fields rather
// than taken from b.Flags, so a blob can be modified without keeping the two
// in sync by hand. A nil CodeCache clears the code-cache flag, a nil Assets
// slice clears the asset flag; non-nil empty values keep the section present.
func Encode(b *Blob) []byte {
	flags := b.Flags &^ (FlagUseCodeCache | FlagIncludeAssets)
	if b.CodeCache != nil {
		flags |= FlagUseCodeCache
	}
	if b.Assets != nil {
		flags |= FlagIncludeAssets
	}

	size := 4 + 4 + 8 + len(b.CodePath) + 8 + len(b.Source)
	if b.CodeCache != nil {
		size += 8 + len(b.CodeCache)
	}
	if b.Assets != nil {
		size += 8
		for _, a := range b.Assets {
			size += 8 + len(a.Name) + 8 + len(a.Data)
		}
	}

	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, Magic)
	out = binary.LittleEndian.AppendUint32(out, uint32(flags))
	out = appendLengthPrefixed(out, []byte(b.CodePath))
	out = appendLengthPrefixed(out, []byte(b.Source))
	if b.CodeCache != nil {
		out = appendLengthPrefixed(out, b.CodeCache)
	}
	if b.Assets != nil {
		out = binary.LittleEndian.AppendUint64(out, uint64(len(b.Assets)))
		for _, a := range b.Assets {
			out = appendLengthPrefixed(out, []byte(a.Name))
			out = appendLengthPrefixed(out, a.Data)
		}
	}
	return out
}

func appendLengthPrefixed(out, data []byte) []byte {
	out = binary.LittleEndian.AppendUint64(out, uint64(len(data)))
	return append(out, data...)
}
