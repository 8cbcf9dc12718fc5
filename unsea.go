package unsea

import (
	"os"

	"github.com/unsea/unsea/internal"
	"github.com/unsea/unsea/seablob"
)

// Span identifies the byte range of the embedded resource inside an
// executable image. For fat Mach-O binaries the offset is absolute within
// the outer fat file, not relative to the matching slice.
type Span struct {
	Offset int64
	Length int64
}

// Blob is the decoded resource payload. Alias of seablob.Blob.
type Blob = seablob.Blob

// Asset is a single named resource bundled into a blob. Alias of seablob.Asset.
type Asset = seablob.Asset

// Locate sniffs the container format of an executable image and returns the
// span of its embedded resource. The input is not modified. When several
// candidates match, the first one in the format's native enumeration order
// wins (section table order for ELF and PE, load-command order for Mach-O).
func Locate(exe []byte) (Format, Span, error) {
	format, err := DetectFormat(exe)
	if err != nil {
		return FormatUnknown, Span{}, err
	}
	var span Span
	switch format {
	case FormatELF:
		span, err = locateELF(exe)
	case FormatPE:
		span, err = locatePE(exe)
	case FormatMachO:
		span, err = locateMachO(exe)
	}
	if err != nil {
		return format, Span{}, err
	}
	return format, span, nil
}

// Extract locates and decodes the embedded resource of an executable image.
// The returned blob aliases exe; callers must not modify exe afterwards.
func Extract(exe []byte) (*seablob.Blob, error) {
	_, span, err := Locate(exe)
	if err != nil {
		return nil, err
	}
	return seablob.Decode(exe[span.Offset : span.Offset+span.Length])
}

// ExtractFile reads an executable from disk and extracts its embedded
// resource.
func ExtractFile(path string) (*seablob.Blob, error) {
	exe, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Extract(exe)
}

// makeSpan converts an offset/size pair into a Span after verifying that it
// lies inside the image.
func makeSpan(v internal.View, off, size uint64) (Span, bool) {
	if !v.In(off, size) {
		return Span{}, false
	}
	return Span{Offset: int64(off), Length: int64(size)}, true
}
