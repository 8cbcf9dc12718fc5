package unsea

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Format identifies the container format of an executable.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPE
	FormatMachO
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "ELF"
	case FormatPE:
		return "PE"
	case FormatMachO:
		return "Mach-O"
	default:
		return "unknown"
	}
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// DetectFormat sniffs the container format from the leading magic bytes.
// Inputs too short to hold any known magic, or starting with an unrecognized
// one, fail with ErrMalformedContainer.
func DetectFormat(exe []byte) (Format, error) {
	if len(exe) < 4 {
		return FormatUnknown, fmt.Errorf("%w: %d bytes is too short for a format magic",
			ErrMalformedContainer, len(exe))
	}
	if bytes.HasPrefix(exe, elfMagic) {
		return FormatELF, nil
	}
	if exe[0] == 'M' && exe[1] == 'Z' {
		return FormatPE, nil
	}
	// Thin Mach-O magics appear in the file's own byte order, fat headers are
	// always big-endian on disk; reading the first word both ways covers all
	// combinations.
	le := binary.LittleEndian.Uint32(exe)
	be := binary.BigEndian.Uint32(exe)
	switch {
	case le == machoMagic32 || le == machoMagic64,
		be == machoMagic32 || be == machoMagic64,
		be == machoFatMagic32 || be == machoFatMagic64:
		return FormatMachO, nil
	}
	return FormatUnknown, fmt.Errorf("%w: unrecognized leading magic 0x%08x",
		ErrMalformedContainer, be)
}
