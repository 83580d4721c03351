// Package elf reads ELF object-file headers.
//
// It decodes the file header, program header table, and section
// header table for both 32- and 64-bit files of either byte order.
// All offset, size, and count arithmetic over header fields is
// performed with deedles.dev/sat saturating integers, so a malformed
// or hostile file can pin a computed extent at the maximum value but
// can never wrap it around into a plausible-looking small offset.
// The decoder treats a saturated extent as corruption.
package elf

import (
	"iter"
	"slices"

	"deedles.dev/sat"
	"deedles.dev/xiter"
)

// Class is an ELF file class, distinguishing 32- and 64-bit layouts.
type Class uint8

const (
	Class32 Class = 1
	Class64 Class = 2
)

// Data is an ELF data encoding, i.e. the file's byte order.
type Data uint8

const (
	Data2LSB Data = 1
	Data2MSB Data = 2
)

// FileType is an ELF object file type.
type FileType uint16

const (
	FileTypeNone FileType = iota
	FileTypeRel
	FileTypeExec
	FileTypeDyn
	FileTypeCore
)

// SectionType is an ELF section header type.
type SectionType uint32

const (
	SectionTypeNull     SectionType = 0
	SectionTypeProgBits SectionType = 1
	SectionTypeSymTab   SectionType = 2
	SectionTypeStrTab   SectionType = 3
	SectionTypeNoBits   SectionType = 8
)

// SegmentType is an ELF program header type.
type SegmentType uint32

const (
	SegmentTypeNull    SegmentType = 0
	SegmentTypeLoad    SegmentType = 1
	SegmentTypeDynamic SegmentType = 2
	SegmentTypeInterp  SegmentType = 3
)

// Header is the decoded ELF file header. Fields that seed offset
// arithmetic are held as saturating integers; 32-bit files have
// their address-sized fields widened during decoding.
type Header struct {
	Class   Class
	Data    Data
	OSABI   uint8
	Type    FileType
	Machine uint16
	Entry   sat.U64
	PHOff   sat.U64
	SHOff   sat.U64
	Flags   uint32

	EHSize    uint16
	PHEntSize uint16
	PHNum     uint16
	SHEntSize uint16
	SHNum     uint16
	SHStrNdx  uint16
}

// Section is a decoded section header. Name is resolved through the
// section-name string table when the file has one.
type Section struct {
	Name      string
	NameIndex uint32
	Type      SectionType
	Flags     sat.U64
	Addr      sat.U64
	Offset    sat.U64
	Size      sat.U64
	Link      uint32
	Info      uint32
	Align     sat.U64
	EntSize   sat.U64
}

// End returns the section's file extent, Offset + Size. The sum
// saturates instead of wrapping; a result pinned at the maximum
// means the header is lying about the section.
func (s *Section) End() sat.U64 {
	return s.Offset.Add(s.Size)
}

// Segment is a decoded program header.
type Segment struct {
	Type     SegmentType
	Flags    uint32
	Offset   sat.U64
	VAddr    sat.U64
	PAddr    sat.U64
	FileSize sat.U64
	MemSize  sat.U64
	Align    sat.U64
}

// End returns the segment's file extent, Offset + FileSize,
// saturating instead of wrapping.
func (s *Segment) End() sat.U64 {
	return s.Offset.Add(s.FileSize)
}

// File is a decoded ELF file.
type File struct {
	Header   Header
	Segments []*Segment
	Sections []*Section
}

// SectionNames yields the names of the file's sections in table
// order.
func (f *File) SectionNames() iter.Seq[string] {
	return xiter.Map(slices.Values(f.Sections), func(s *Section) string { return s.Name })
}

// SectionIndex returns the table index of the first section with the
// given name, or -1 if there is none.
func (f *File) SectionIndex(name string) int {
	for i, s := range xiter.Enumerate(slices.Values(f.Sections)) {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Section returns the first section with the given name, or nil if
// there is none.
func (f *File) Section(name string) *Section {
	if i := f.SectionIndex(name); i >= 0 {
		return f.Sections[i]
	}
	return nil
}
