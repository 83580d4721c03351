package elf_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"slices"
	"testing"

	"deedles.dev/sat"
	"deedles.dev/sat/elf"
	"github.com/stretchr/testify/require"
)

// put appends fixed-width values to buf in the given byte order.
func put(t *testing.T, buf *bytes.Buffer, order binary.ByteOrder, vs ...any) {
	t.Helper()
	for _, v := range vs {
		require.Nil(t, binary.Write(buf, order, v))
	}
}

// elf64 builds a little-endian ELF64 image with one loadable
// segment, a .text section, and a .shstrtab section. The returned
// mutate hook runs over the raw bytes before they are returned.
//
// Layout:
//
//	0   file header
//	64  program header table (1 entry)
//	120 .text contents (16 bytes)
//	136 .shstrtab contents (17 bytes)
//	153 section header table (3 entries)
func elf64(t *testing.T, mutate func([]byte)) []byte {
	t.Helper()

	le := binary.LittleEndian
	var buf bytes.Buffer

	buf.Write([]byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	put(t, &buf, le,
		uint16(2),          // e_type: EXEC
		uint16(0x3E),       // e_machine: x86-64
		uint32(1),          // e_version
		uint64(0x401000),   // e_entry
		uint64(64),         // e_phoff
		uint64(153),        // e_shoff
		uint32(0),          // e_flags
		uint16(64),         // e_ehsize
		uint16(56),         // e_phentsize
		uint16(1),          // e_phnum
		uint16(64),         // e_shentsize
		uint16(3),          // e_shnum
		uint16(2),          // e_shstrndx
	)

	// PT_LOAD covering .text.
	put(t, &buf, le,
		uint32(1), uint32(5),
		uint64(120), uint64(0x401000), uint64(0x401000),
		uint64(16), uint64(16), uint64(0x1000),
	)

	buf.Write(bytes.Repeat([]byte{0xC3}, 16))        // .text
	buf.WriteString("\x00.text\x00.shstrtab\x00")    // .shstrtab

	// Section headers: null, .text, .shstrtab.
	put(t, &buf, le,
		uint32(0), uint32(0),
		uint64(0), uint64(0), uint64(0), uint64(0),
		uint32(0), uint32(0), uint64(0), uint64(0),
	)
	put(t, &buf, le,
		uint32(1), uint32(1),
		uint64(6), uint64(0x401000), uint64(120), uint64(16),
		uint32(0), uint32(0), uint64(16), uint64(0),
	)
	put(t, &buf, le,
		uint32(7), uint32(3),
		uint64(0), uint64(0), uint64(136), uint64(17),
		uint32(0), uint32(0), uint64(1), uint64(0),
	)

	img := buf.Bytes()
	if mutate != nil {
		mutate(img)
	}
	return img
}

func TestDecode64(t *testing.T) {
	f, err := elf.Decode(bytes.NewReader(elf64(t, nil)))
	require.Nil(t, err)

	require.Equal(t, elf.Class64, f.Header.Class)
	require.Equal(t, elf.Data2LSB, f.Header.Data)
	require.Equal(t, elf.FileTypeExec, f.Header.Type)
	require.Equal(t, uint16(0x3E), f.Header.Machine)
	require.Equal(t, sat.New(uint64(0x401000)), f.Header.Entry)

	require.Len(t, f.Segments, 1)
	seg := f.Segments[0]
	require.Equal(t, elf.SegmentTypeLoad, seg.Type)
	require.Equal(t, sat.New(uint64(120)), seg.Offset)
	require.Equal(t, sat.New(uint64(16)), seg.FileSize)
	require.Equal(t, sat.New(uint64(136)), seg.End())

	require.Len(t, f.Sections, 3)
	require.Equal(t, []string{"", ".text", ".shstrtab"}, slices.Collect(f.SectionNames()))

	text := f.Section(".text")
	require.NotNil(t, text)
	require.Equal(t, elf.SectionTypeProgBits, text.Type)
	require.Equal(t, sat.New(uint64(120)), text.Offset)
	require.Equal(t, sat.New(uint64(16)), text.Size)
	require.Equal(t, sat.New(uint64(136)), text.End())

	require.Equal(t, 2, f.SectionIndex(".shstrtab"))
	require.Equal(t, -1, f.SectionIndex(".bss"))
	require.Nil(t, f.Section(".bss"))
}

func TestDecode32BigEndian(t *testing.T) {
	be := binary.BigEndian
	var buf bytes.Buffer

	// Layout: header (52), .shstrtab contents at 52 (17 bytes),
	// section header table at 69 (3 entries of 40 bytes).
	buf.Write([]byte{0x7F, 'E', 'L', 'F', 1, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	put(t, &buf, be,
		uint16(1),        // e_type: REL
		uint16(0x28),     // e_machine: ARM
		uint32(1),        // e_version
		uint32(0),        // e_entry
		uint32(0),        // e_phoff
		uint32(69),       // e_shoff
		uint32(0),        // e_flags
		uint16(52),       // e_ehsize
		uint16(0),        // e_phentsize
		uint16(0),        // e_phnum
		uint16(40),       // e_shentsize
		uint16(3),        // e_shnum
		uint16(2),        // e_shstrndx
	)
	buf.WriteString("\x00.data\x00.shstrtab\x00")

	put(t, &buf, be,
		uint32(0), uint32(0), uint32(0), uint32(0), uint32(0),
		uint32(0), uint32(0), uint32(0), uint32(0), uint32(0),
	)
	put(t, &buf, be,
		uint32(1), uint32(8), // .data as NOBITS
		uint32(3), uint32(0x8000), uint32(0), uint32(1024),
		uint32(0), uint32(0), uint32(4), uint32(0),
	)
	put(t, &buf, be,
		uint32(7), uint32(3),
		uint32(0), uint32(0), uint32(52), uint32(17),
		uint32(0), uint32(0), uint32(1), uint32(0),
	)

	f, err := elf.Decode(bytes.NewReader(buf.Bytes()))
	require.Nil(t, err)

	require.Equal(t, elf.Class32, f.Header.Class)
	require.Equal(t, elf.Data2MSB, f.Header.Data)
	require.Equal(t, elf.FileTypeRel, f.Header.Type)
	require.Empty(t, f.Segments)

	data := f.Section(".data")
	require.NotNil(t, data)
	require.Equal(t, elf.SectionTypeNoBits, data.Type)
	require.Equal(t, sat.New(uint64(0x8000)), data.Addr)
	require.Equal(t, sat.New(uint64(1024)), data.Size)
}

func TestDecodeBadMagic(t *testing.T) {
	img := elf64(t, func(img []byte) { img[0] = 0x7E })
	_, err := elf.Decode(bytes.NewReader(img))
	require.ErrorIs(t, err, elf.ErrBadMagic)
}

func TestDecodeTruncated(t *testing.T) {
	img := elf64(t, nil)
	_, err := elf.Decode(bytes.NewReader(img[:40]))
	require.NotNil(t, err)
}

func TestDecodeOverflowingSection(t *testing.T) {
	// Give .text a size that would wrap its extent past the top of
	// the address space. The saturating sum pins at the maximum and
	// the decoder reports corruption instead of computing a small
	// bogus extent.
	img := elf64(t, func(img []byte) {
		const textSize = 153 + 64 + 32 // e_shoff + null entry + sh_size field offset
		binary.LittleEndian.PutUint64(img[textSize:], ^uint64(0)-8)
	})
	_, err := elf.Decode(bytes.NewReader(img))
	require.ErrorIs(t, err, elf.ErrCorrupt)
}

func TestDecodeNameOutsideStringTable(t *testing.T) {
	img := elf64(t, func(img []byte) {
		const textName = 153 + 64 // e_shoff + null entry, sh_name field
		binary.LittleEndian.PutUint32(img[textName:], 9999)
	})
	_, err := elf.Decode(bytes.NewReader(img))
	require.ErrorIs(t, err, elf.ErrCorrupt)
}

func TestDecodeNotSeekable(t *testing.T) {
	// Section names live before the section header table, so a
	// non-seeking reader cannot resolve them.
	img := elf64(t, nil)
	_, err := elf.Decode(io.LimitReader(bytes.NewReader(img), int64(len(img))))
	require.NotNil(t, err)
}
