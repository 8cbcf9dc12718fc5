package unsea

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/unsea/unsea/internal"
)

const (
	machoMagic32    = 0xfeedface
	machoMagic64    = 0xfeedfacf
	machoFatMagic32 = 0xcafebabe
	machoFatMagic64 = 0xcafebabf

	machoSegmentCmd32 = 0x1
	machoSegmentCmd64 = 0x19
)

// locateMachO finds the resource span in a thin or fat Mach-O image.
func locateMachO(exe []byte) (Span, error) {
	be := internal.NewView(exe, binary.BigEndian)
	magic, ok := be.U32(0)
	if !ok {
		return Span{}, fmt.Errorf("%w: Mach-O image too short for a magic number", ErrMalformedContainer)
	}
	if magic == machoFatMagic32 || magic == machoFatMagic64 {
		return locateMachOFat(be, magic == machoFatMagic64)
	}
	return locateMachOThin(exe, 0)
}

// locateMachOFat scans the architecture slices of a fat image in header
// order and returns the first match, with the span made absolute in the fat
// file. A slice without the resource does not end the scan; a slice that
// does not parse does.
func locateMachOFat(v internal.View, is64 bool) (Span, error) {
	narch, ok := v.U32(4)
	if !ok {
		return Span{}, fmt.Errorf("%w: fat Mach-O header exceeds image size %d",
			ErrMalformedContainer, v.Len())
	}
	entSize := uint64(20)
	if is64 {
		entSize = 32
	}
	if !v.In(8, uint64(narch)*entSize) {
		return Span{}, fmt.Errorf("%w: fat Mach-O arch table (%d entries) exceeds image size %d",
			ErrMalformedContainer, narch, v.Len())
	}

	for i := uint64(0); i < uint64(narch); i++ {
		base := 8 + i*entSize
		var off, size uint64
		if is64 {
			off, _ = v.U64(base + 8)
			size, _ = v.U64(base + 16)
		} else {
			off32, _ := v.U32(base + 8)
			size32, _ := v.U32(base + 12)
			off, size = uint64(off32), uint64(size32)
		}
		slice, ok := v.Bytes(off, size)
		if !ok {
			return Span{}, fmt.Errorf("%w: fat Mach-O slice %d [%d+%d] exceeds image size %d",
				ErrMalformedContainer, i, off, size, v.Len())
		}
		sp, err := locateMachOThin(slice, off)
		if err == nil {
			return sp, nil
		}
		if !errors.Is(err, ErrResourceNotFound) {
			return Span{}, fmt.Errorf("fat Mach-O slice %d: %w", i, err)
		}
	}
	return Span{}, fmt.Errorf("%w: no %s section in any of %d fat Mach-O slices",
		ErrResourceNotFound, ResourceName, narch)
}

// locateMachOThin walks the load commands of a single-architecture image.
// abs is the slice's offset in the surrounding file and is added to every
// returned span.
//
// Candidates in order of preference: the section (NODE_SEA, NODE_SEA_BLOB)
// that node's tooling documents; a NODE_SEA_BLOB section in any other
// segment; the whole content of postject's default __POSTJECT segment.
// Within each category the first match in load-command order wins.
func locateMachOThin(data []byte, abs uint64) (Span, error) {
	if len(data) < 4 {
		return Span{}, fmt.Errorf("%w: Mach-O slice too short for a magic number", ErrMalformedContainer)
	}
	var (
		bo   binary.ByteOrder = binary.LittleEndian
		is64 bool
	)
	switch binary.LittleEndian.Uint32(data) {
	case machoMagic32:
	case machoMagic64:
		is64 = true
	default:
		switch binary.BigEndian.Uint32(data) {
		case machoMagic32:
			bo = binary.BigEndian
		case machoMagic64:
			bo = binary.BigEndian
			is64 = true
		default:
			return Span{}, fmt.Errorf("%w: unrecognized Mach-O magic 0x%08x",
				ErrMalformedContainer, binary.BigEndian.Uint32(data))
		}
	}

	v := internal.NewView(data, bo)
	headerSize := uint64(28)
	segCmd := uint32(machoSegmentCmd32)
	segFixed, sectSize := uint64(56), uint64(68)
	if is64 {
		headerSize = 32
		segCmd = machoSegmentCmd64
		segFixed, sectSize = 72, 80
	}
	if v.Len() < headerSize {
		return Span{}, fmt.Errorf("%w: Mach-O header needs %d bytes, have %d",
			ErrMalformedContainer, headerSize, v.Len())
	}
	ncmds, _ := v.U32(16)

	var (
		primary, anySegment, postject             Span
		havePrimary, haveAnySegment, havePostject bool
	)

	cur := headerSize
	for i := uint32(0); i < ncmds; i++ {
		cmd, ok1 := v.U32(cur)
		cmdsize, ok2 := v.U32(cur + 4)
		if !ok1 || !ok2 || cmdsize < 8 || !v.In(cur, uint64(cmdsize)) {
			return Span{}, fmt.Errorf("%w: Mach-O load command %d at offset %d exceeds image size %d",
				ErrMalformedContainer, i, cur, v.Len())
		}
		if cmd != segCmd {
			cur += uint64(cmdsize)
			continue
		}
		if uint64(cmdsize) < segFixed {
			return Span{}, fmt.Errorf("%w: Mach-O segment command %d has size %d, need at least %d",
				ErrMalformedContainer, i, cmdsize, segFixed)
		}

		segNameRaw, _ := v.Bytes(cur+8, 16)
		segName := internal.CString(segNameRaw)
		var fileoff, filesize, nsects uint64
		if is64 {
			fileoff, _ = v.U64(cur + 40)
			filesize, _ = v.U64(cur + 48)
			n, _ := v.U32(cur + 64)
			nsects = uint64(n)
		} else {
			fo, _ := v.U32(cur + 32)
			fs, _ := v.U32(cur + 36)
			n, _ := v.U32(cur + 48)
			fileoff, filesize, nsects = uint64(fo), uint64(fs), uint64(n)
		}
		if segFixed+nsects*sectSize > uint64(cmdsize) {
			return Span{}, fmt.Errorf("%w: Mach-O segment %s declares %d sections beyond its command size %d",
				ErrMalformedContainer, segName, nsects, cmdsize)
		}

		for j := uint64(0); j < nsects; j++ {
			sbase := cur + segFixed + j*sectSize
			sectNameRaw, _ := v.Bytes(sbase, 16)
			if internal.CString(sectNameRaw) != machoSectionName {
				continue
			}
			var soff, ssize uint64
			if is64 {
				ssize, _ = v.U64(sbase + 40)
				o, _ := v.U32(sbase + 48)
				soff = uint64(o)
			} else {
				sz, _ := v.U32(sbase + 36)
				o, _ := v.U32(sbase + 40)
				ssize, soff = uint64(sz), uint64(o)
			}
			if !v.In(soff, ssize) {
				if segName == machoSegmentName {
					return Span{}, fmt.Errorf("%w: section %s data [%d+%d] exceeds slice size %d",
						ErrMalformedContainer, machoSectionName, soff, ssize, v.Len())
				}
				continue
			}
			sp := Span{Offset: int64(abs + soff), Length: int64(ssize)}
			if segName == machoSegmentName {
				if !havePrimary {
					primary, havePrimary = sp, true
				}
			} else if !haveAnySegment {
				anySegment, haveAnySegment = sp, true
			}
		}

		if segName == machoPostjectSegment && !havePostject && filesize > 0 && v.In(fileoff, filesize) {
			postject = Span{Offset: int64(abs + fileoff), Length: int64(filesize)}
			havePostject = true
		}
		cur += uint64(cmdsize)
	}

	switch {
	case havePrimary:
		return primary, nil
	case haveAnySegment:
		return anySegment, nil
	case havePostject:
		return postject, nil
	}
	return Span{}, fmt.Errorf("%w: no %s section in Mach-O image", ErrResourceNotFound, ResourceName)
}
