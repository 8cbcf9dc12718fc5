package unsea

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/unsea/unsea/internal"
)

const (
	peSignatureOffset = 0x3c
	peOptMagic32      = 0x10b
	peOptMagic64      = 0x20b

	// High bit of a resource directory entry field: the name is a string
	// reference, or the entry points at a subdirectory.
	peRsrcSubdir = 0x80000000
)

type peSection struct {
	name     string
	virtSize uint64
	virtAddr uint64
	rawSize  uint64
	rawOff   uint64
}

// locatePE finds the resource span in a PE image.
//
// The section table is authoritative: section names hold 8 bytes, so the
// resource name arrives truncated to NODE_SEA. postject instead stores the
// blob as a named entry in the resource directory, which is walked when no
// section matches.
func locatePE(exe []byte) (Span, error) {
	v := internal.NewView(exe, binary.LittleEndian)

	lfanew, ok := v.U32(peSignatureOffset)
	if !ok {
		return Span{}, fmt.Errorf("%w: PE image too short for the DOS header", ErrMalformedContainer)
	}
	sig, ok := v.Bytes(uint64(lfanew), 4)
	if !ok || string(sig) != "PE\x00\x00" {
		return Span{}, fmt.Errorf("%w: PE signature not found at offset %d", ErrMalformedContainer, lfanew)
	}

	coff := uint64(lfanew) + 4
	numSections, ok1 := v.U16(coff + 2)
	optSize, ok2 := v.U16(coff + 16)
	if !ok1 || !ok2 {
		return Span{}, fmt.Errorf("%w: COFF header at offset %d exceeds image size %d",
			ErrMalformedContainer, coff, v.Len())
	}

	tableOff := coff + 20 + uint64(optSize)
	if !v.In(tableOff, uint64(numSections)*40) {
		return Span{}, fmt.Errorf("%w: PE section table [%d+%d] exceeds image size %d",
			ErrMalformedContainer, tableOff, uint64(numSections)*40, v.Len())
	}

	sections := make([]peSection, numSections)
	for i := range sections {
		base := tableOff + uint64(i)*40
		name, _ := v.Bytes(base, 8)
		virtSize, _ := v.U32(base + 8)
		virtAddr, _ := v.U32(base + 12)
		rawSize, _ := v.U32(base + 16)
		rawOff, _ := v.U32(base + 20)
		sections[i] = peSection{
			name:     internal.CString(name),
			virtSize: uint64(virtSize),
			virtAddr: uint64(virtAddr),
			rawSize:  uint64(rawSize),
			rawOff:   uint64(rawOff),
		}
	}

	for _, sec := range sections {
		if sec.name != peSectionName {
			continue
		}
		sp, ok := makeSpan(v, sec.rawOff, sec.rawSize)
		if !ok {
			return Span{}, fmt.Errorf("%w: section %s raw data [%d+%d] exceeds image size %d",
				ErrMalformedContainer, peSectionName, sec.rawOff, sec.rawSize, v.Len())
		}
		return sp, nil
	}

	if sp, ok := findPEResource(v, coff, uint64(optSize), sections); ok {
		return sp, nil
	}
	return Span{}, fmt.Errorf("%w: no %s section or %s resource in PE image",
		ErrResourceNotFound, peSectionName, ResourceName)
}

// findPEResource walks the resource directory tree for a named entry matching
// the resource name: type directories at the first level, names at the
// second, languages below. The first matching leaf wins. Any structural
// inconsistency abandons the walk; a fallback never reports a malformed
// image.
func findPEResource(v internal.View, coff, optSize uint64, sections []peSection) (Span, bool) {
	optOff := coff + 20
	magic, ok := v.U16(optOff)
	if !ok {
		return Span{}, false
	}
	var ddOff uint64
	switch magic {
	case peOptMagic32:
		ddOff = optOff + 96
	case peOptMagic64:
		ddOff = optOff + 112
	default:
		return Span{}, false
	}
	// The resource entry is data directory index 2; it and the directory
	// count must fit inside the declared optional header.
	if ddOff+24 > optOff+optSize {
		return Span{}, false
	}
	ddCount, ok := v.U32(ddOff - 4)
	if !ok || ddCount < 3 {
		return Span{}, false
	}
	rsrcRVA, ok1 := v.U32(ddOff + 16)
	rsrcSize, ok2 := v.U32(ddOff + 20)
	if !ok1 || !ok2 || rsrcRVA == 0 || rsrcSize == 0 {
		return Span{}, false
	}
	base, ok := rvaToOffset(sections, uint64(rsrcRVA))
	if !ok {
		return Span{}, false
	}

	types, ok := readRsrcDir(v, base, 0)
	if !ok {
		return Span{}, false
	}
	for _, typ := range types {
		if typ.data&peRsrcSubdir == 0 {
			continue
		}
		names, ok := readRsrcDir(v, base, uint64(typ.data&^peRsrcSubdir))
		if !ok {
			continue
		}
		for _, ent := range names {
			if ent.name&peRsrcSubdir == 0 || rsrcEntryName(v, base, ent.name) != ResourceName {
				continue
			}
			ptr, ok := descendToLeaf(v, base, ent.data)
			if !ok {
				continue
			}
			dataRVA, ok1 := v.U32(base + uint64(ptr))
			size, ok2 := v.U32(base + uint64(ptr) + 4)
			if !ok1 || !ok2 {
				continue
			}
			off, ok := rvaToOffset(sections, uint64(dataRVA))
			if !ok {
				continue
			}
			if sp, ok := makeSpan(v, off, uint64(size)); ok {
				return sp, true
			}
		}
	}
	return Span{}, false
}

type rsrcEntry struct {
	name uint32 // string reference (high bit set) or numeric ID
	data uint32 // subdirectory (high bit set) or data entry offset, relative to the directory base
}

// readRsrcDir returns the entries of the resource directory at rel, named
// entries first as the tree stores them.
func readRsrcDir(v internal.View, base, rel uint64) ([]rsrcEntry, bool) {
	named, ok1 := v.U16(base + rel + 12)
	ids, ok2 := v.U16(base + rel + 14)
	if !ok1 || !ok2 {
		return nil, false
	}
	n := uint64(named) + uint64(ids)
	entries := make([]rsrcEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		name, ok1 := v.U32(base + rel + 16 + i*8)
		data, ok2 := v.U32(base + rel + 16 + i*8 + 4)
		if !ok1 || !ok2 {
			return nil, false
		}
		entries = append(entries, rsrcEntry{name: name, data: data})
	}
	return entries, true
}

// rsrcEntryName resolves a named entry's string: a u16 character count
// followed by UTF-16LE characters.
func rsrcEntryName(v internal.View, base uint64, ref uint32) string {
	rel := uint64(ref &^ peRsrcSubdir)
	n, ok := v.U16(base + rel)
	if !ok {
		return ""
	}
	raw, ok := v.Bytes(base+rel+2, uint64(n)*2)
	if !ok {
		return ""
	}
	u := make([]uint16, n)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(u))
}

// descendToLeaf follows subdirectory references (normally just the language
// level) down to a data entry, taking the first entry at each level.
func descendToLeaf(v internal.View, base uint64, ptr uint32) (uint32, bool) {
	for depth := 0; ptr&peRsrcSubdir != 0; depth++ {
		if depth == 4 {
			return 0, false
		}
		sub, ok := readRsrcDir(v, base, uint64(ptr&^peRsrcSubdir))
		if !ok || len(sub) == 0 {
			return 0, false
		}
		ptr = sub[0].data
	}
	return ptr, true
}

// rvaToOffset maps a virtual address to a file offset through the section
// that contains it.
func rvaToOffset(sections []peSection, rva uint64) (uint64, bool) {
	for _, sec := range sections {
		if rva >= sec.virtAddr && rva-sec.virtAddr < sec.rawSize {
			return sec.rawOff + (rva - sec.virtAddr), true
		}
	}
	return 0, false
}
