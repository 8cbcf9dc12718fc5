package unsea

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/unsea/unsea/internal"
)

// elfFile carries the header fields needed to enumerate section and program
// header tables, for both bit widths and both byte orders.
type elfFile struct {
	v    internal.View
	is64 bool

	shoff     uint64
	shentsize uint64
	shnum     uint64
	shstrndx  uint64

	phoff     uint64
	phentsize uint64
	phnum     uint64
}

type elfSection struct {
	nameOff uint64
	typ     elf.SectionType
	off     uint64
	size    uint64
}

type elfProg struct {
	typ    elf.ProgType
	off    uint64
	filesz uint64
}

// locateELF finds the resource span in an ELF image.
//
// The section table is authoritative: the first section named NODE_SEA_BLOB
// wins, in table order. Images whose resource is only discoverable as a note
// (postject emits one alongside the section) are handled by walking SHT_NOTE
// sections and PT_NOTE segments for a note owned by the resource name.
func locateELF(exe []byte) (Span, error) {
	f, err := parseELF(exe)
	if err != nil {
		return Span{}, err
	}
	sections, strtab, err := f.sectionTable()
	if err != nil {
		return Span{}, err
	}

	for _, sec := range sections {
		if sectionName(strtab, sec.nameOff) != elfSectionName {
			continue
		}
		sp, ok := makeSpan(f.v, sec.off, sec.size)
		if !ok {
			return Span{}, fmt.Errorf("%w: section %s data [%d+%d] exceeds image size %d",
				ErrMalformedContainer, elfSectionName, sec.off, sec.size, f.v.Len())
		}
		return sp, nil
	}

	for _, sec := range sections {
		if sec.typ != elf.SHT_NOTE {
			continue
		}
		if sp, ok := f.findNote(sec.off, sec.size); ok {
			return sp, nil
		}
	}
	for _, ph := range f.programHeaders() {
		if ph.typ != elf.PT_NOTE {
			continue
		}
		if sp, ok := f.findNote(ph.off, ph.filesz); ok {
			return sp, nil
		}
	}

	return Span{}, fmt.Errorf("%w: no %s section or note in ELF image",
		ErrResourceNotFound, ResourceName)
}

func parseELF(exe []byte) (*elfFile, error) {
	if len(exe) < 6 {
		return nil, fmt.Errorf("%w: ELF identification truncated at %d bytes",
			ErrMalformedContainer, len(exe))
	}

	var bo binary.ByteOrder
	switch elf.Data(exe[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		bo = binary.LittleEndian
	case elf.ELFDATA2MSB:
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: unsupported ELF data encoding %d",
			ErrMalformedContainer, exe[elf.EI_DATA])
	}

	f := &elfFile{v: internal.NewView(exe, bo)}
	var headerSize uint64
	switch elf.Class(exe[elf.EI_CLASS]) {
	case elf.ELFCLASS64:
		f.is64 = true
		headerSize = 64
	case elf.ELFCLASS32:
		headerSize = 52
	default:
		return nil, fmt.Errorf("%w: unsupported ELF class %d",
			ErrMalformedContainer, exe[elf.EI_CLASS])
	}
	if f.v.Len() < headerSize {
		return nil, fmt.Errorf("%w: ELF header needs %d bytes, have %d",
			ErrMalformedContainer, headerSize, f.v.Len())
	}

	u16 := func(off uint64) uint64 {
		x, _ := f.v.U16(off)
		return uint64(x)
	}
	u32 := func(off uint64) uint64 {
		x, _ := f.v.U32(off)
		return uint64(x)
	}
	if f.is64 {
		f.phoff, _ = f.v.U64(0x20)
		f.shoff, _ = f.v.U64(0x28)
		f.phentsize, f.phnum = u16(0x36), u16(0x38)
		f.shentsize, f.shnum, f.shstrndx = u16(0x3a), u16(0x3c), u16(0x3e)
	} else {
		f.phoff, f.shoff = u32(0x1c), u32(0x20)
		f.phentsize, f.phnum = u16(0x2a), u16(0x2c)
		f.shentsize, f.shnum, f.shstrndx = u16(0x2e), u16(0x30), u16(0x32)
	}
	return f, nil
}

// sectionTable decodes all section headers and the section name string table.
// An image without sections yields nil tables and no error; an inconsistent
// table is a malformed container.
func (f *elfFile) sectionTable() ([]elfSection, []byte, error) {
	if f.shnum == 0 {
		return nil, nil, nil
	}
	minEnt := uint64(40)
	if f.is64 {
		minEnt = 64
	}
	if f.shentsize < minEnt {
		return nil, nil, fmt.Errorf("%w: ELF section header entry size %d below minimum %d",
			ErrMalformedContainer, f.shentsize, minEnt)
	}
	if !f.v.In(f.shoff, f.shnum*f.shentsize) {
		return nil, nil, fmt.Errorf("%w: ELF section header table [%d+%d] exceeds image size %d",
			ErrMalformedContainer, f.shoff, f.shnum*f.shentsize, f.v.Len())
	}

	sections := make([]elfSection, f.shnum)
	for i := range sections {
		base := f.shoff + uint64(i)*f.shentsize
		nameOff, _ := f.v.U32(base)
		typ, _ := f.v.U32(base + 4)
		s := elfSection{nameOff: uint64(nameOff), typ: elf.SectionType(typ)}
		if f.is64 {
			s.off, _ = f.v.U64(base + 0x18)
			s.size, _ = f.v.U64(base + 0x20)
		} else {
			off, _ := f.v.U32(base + 0x10)
			size, _ := f.v.U32(base + 0x14)
			s.off, s.size = uint64(off), uint64(size)
		}
		sections[i] = s
	}

	var strtab []byte
	if f.shstrndx != 0 {
		if f.shstrndx >= f.shnum {
			return nil, nil, fmt.Errorf("%w: ELF string table index %d out of range (%d sections)",
				ErrMalformedContainer, f.shstrndx, f.shnum)
		}
		sh := sections[f.shstrndx]
		var ok bool
		if strtab, ok = f.v.Bytes(sh.off, sh.size); !ok {
			return nil, nil, fmt.Errorf("%w: ELF string table [%d+%d] exceeds image size %d",
				ErrMalformedContainer, sh.off, sh.size, f.v.Len())
		}
	}
	return sections, strtab, nil
}

// programHeaders decodes the program header table. It only serves the note
// fallback, so an inconsistent table yields no entries instead of an error.
func (f *elfFile) programHeaders() []elfProg {
	minEnt := uint64(32)
	if f.is64 {
		minEnt = 56
	}
	if f.phnum == 0 || f.phentsize < minEnt || !f.v.In(f.phoff, f.phnum*f.phentsize) {
		return nil
	}
	progs := make([]elfProg, f.phnum)
	for i := range progs {
		base := f.phoff + uint64(i)*f.phentsize
		typ, _ := f.v.U32(base)
		p := elfProg{typ: elf.ProgType(typ)}
		if f.is64 {
			p.off, _ = f.v.U64(base + 8)
			p.filesz, _ = f.v.U64(base + 0x20)
		} else {
			off, _ := f.v.U32(base + 4)
			filesz, _ := f.v.U32(base + 0x10)
			p.off, p.filesz = uint64(off), uint64(filesz)
		}
		progs[i] = p
	}
	return progs
}

// findNote walks the note entries in [off, off+size) looking for one whose
// owner name is the resource name, and returns the span of its descriptor.
// Note names include their NUL terminator in namesz; name and descriptor are
// both padded to 4 bytes. Inconsistent note data ends the walk without an
// error: a fallback never turns a missing resource into a failure.
func (f *elfFile) findNote(off, size uint64) (Span, bool) {
	w, ok := f.v.Sub(off, size)
	if !ok {
		return Span{}, false
	}
	var cur uint64
	for cur+12 <= w.Len() {
		namesz, _ := w.U32(cur)
		descsz, _ := w.U32(cur + 4)
		nameOff := cur + 12
		descOff := nameOff + align4(uint64(namesz))
		next := descOff + align4(uint64(descsz))
		if next > w.Len() {
			return Span{}, false
		}
		name, _ := w.Bytes(nameOff, uint64(namesz))
		if internal.CString(name) == ResourceName {
			return Span{Offset: int64(off + descOff), Length: int64(descsz)}, true
		}
		cur = next
	}
	return Span{}, false
}

func sectionName(strtab []byte, off uint64) string {
	if off >= uint64(len(strtab)) {
		return ""
	}
	return internal.CString(strtab[off:])
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}
