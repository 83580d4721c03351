package elf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"deedles.dev/sat"
)

// ErrBadMagic indicates that the input does not start with the ELF
// identification magic.
var ErrBadMagic = errors.New("bad magic")

// ErrCorrupt indicates a header whose fields are internally
// inconsistent, including any offset or size computation that
// saturated.
var ErrCorrupt = errors.New("corrupt header")

const (
	identSize = 16

	phEntSize32 = 32
	phEntSize64 = 56
	shEntSize32 = 40
	shEntSize64 = 64
)

type decoder struct {
	r     io.Reader
	br    *bufio.Reader
	order binary.ByteOrder
	class Class
	n     int
	err   error
}

// DecodeFile opens the file at path and decodes it.
func DecodeFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode reads an ELF file from r. If r is also an io.Seeker, the
// decoder can seek backwards to resolve section names from a string
// table that precedes the section header table, which is the usual
// layout; otherwise such files fail to decode.
func Decode(r io.Reader) (*File, error) {
	d := decoder{
		r:  r,
		br: bufio.NewReader(r),
	}
	return d.Decode()
}

func (d *decoder) Decode() (f *File, err error) {
	if d.err != nil {
		return nil, d.err
	}

	defer d.catch(&err)

	var file File

	d.ident(&file.Header)
	d.header(&file.Header)
	d.segments(&file)
	d.sections(&file)
	d.sectionNames(&file)

	return &file, nil
}

func (d *decoder) ident(h *Header) {
	var ident [identSize]byte
	_, err := io.ReadFull(d, ident[:])
	d.throw(err)

	if ident[0] != 0x7F || ident[1] != 'E' || ident[2] != 'L' || ident[3] != 'F' {
		d.throw(ErrBadMagic)
	}

	h.Class = Class(ident[4])
	if h.Class != Class32 && h.Class != Class64 {
		d.throw(fmt.Errorf("%w: unknown class %d", ErrCorrupt, ident[4]))
	}
	d.class = h.Class

	h.Data = Data(ident[5])
	switch h.Data {
	case Data2LSB:
		d.order = binary.LittleEndian
	case Data2MSB:
		d.order = binary.BigEndian
	default:
		d.throw(fmt.Errorf("%w: unknown data encoding %d", ErrCorrupt, ident[5]))
	}

	if ident[6] != 1 {
		d.throw(fmt.Errorf("%w: unknown version %d", ErrCorrupt, ident[6]))
	}
	h.OSABI = ident[7]
}

func (d *decoder) header(h *Header) {
	h.Type = FileType(d.uint16())
	h.Machine = d.uint16()
	d.uint32() // Version, already checked in the ident block.
	h.Entry = d.word()
	h.PHOff = d.word()
	h.SHOff = d.word()
	h.Flags = d.uint32()
	h.EHSize = d.uint16()
	h.PHEntSize = d.uint16()
	h.PHNum = d.uint16()
	h.SHEntSize = d.uint16()
	h.SHNum = d.uint16()
	h.SHStrNdx = d.uint16()
}

func (d *decoder) segments(f *File) {
	h := &f.Header
	if h.PHNum == 0 {
		return
	}

	want := uint16(phEntSize32)
	if d.class == Class64 {
		want = phEntSize64
	}
	d.checkTable(h.PHOff, h.PHNum, h.PHEntSize, want)

	d.seekTo(h.PHOff)
	f.Segments = make([]*Segment, 0, h.PHNum)
	for range h.PHNum {
		f.Segments = append(f.Segments, d.segment())
		d.Discard(int(h.PHEntSize - want))
	}
}

func (d *decoder) segment() *Segment {
	var s Segment
	s.Type = SegmentType(d.uint32())
	if d.class == Class64 {
		s.Flags = d.uint32()
	}
	s.Offset = d.word()
	s.VAddr = d.word()
	s.PAddr = d.word()
	s.FileSize = d.word()
	s.MemSize = d.word()
	if d.class == Class32 {
		s.Flags = d.uint32()
	}
	s.Align = d.word()

	if s.End() == sat.Max[uint64]() {
		d.throw(fmt.Errorf("%w: segment extent overflows", ErrCorrupt))
	}
	return &s
}

func (d *decoder) sections(f *File) {
	h := &f.Header
	if h.SHNum == 0 {
		return
	}

	want := uint16(shEntSize32)
	if d.class == Class64 {
		want = shEntSize64
	}
	d.checkTable(h.SHOff, h.SHNum, h.SHEntSize, want)

	d.seekTo(h.SHOff)
	f.Sections = make([]*Section, 0, h.SHNum)
	for range h.SHNum {
		f.Sections = append(f.Sections, d.section())
		d.Discard(int(h.SHEntSize - want))
	}
}

func (d *decoder) section() *Section {
	var s Section
	s.NameIndex = d.uint32()
	s.Type = SectionType(d.uint32())
	s.Flags = d.word()
	s.Addr = d.word()
	s.Offset = d.word()
	s.Size = d.word()
	s.Link = d.uint32()
	s.Info = d.uint32()
	s.Align = d.word()
	s.EntSize = d.word()

	// A NOBITS section occupies no file space, so its size may
	// legitimately dwarf the file.
	if s.Type != SectionTypeNoBits && s.End() == sat.Max[uint64]() {
		d.throw(fmt.Errorf("%w: section extent overflows", ErrCorrupt))
	}
	return &s
}

// checkTable validates the placement of a header table: the entry
// size must cover the fields being read, and the table's file extent
// must not saturate.
func (d *decoder) checkTable(off sat.U64, num, entSize, want uint16) {
	if entSize < want {
		d.throw(fmt.Errorf("%w: entry size %d, need at least %d", ErrCorrupt, entSize, want))
	}
	end := off.Add(sat.New(uint64(num)).Mul(sat.New(uint64(entSize))))
	if end == sat.Max[uint64]() {
		d.throw(fmt.Errorf("%w: table extent overflows", ErrCorrupt))
	}
}

func (d *decoder) sectionNames(f *File) {
	ndx := int(f.Header.SHStrNdx)
	if ndx == 0 || ndx >= len(f.Sections) {
		return
	}
	tab := f.Sections[ndx]
	if tab.Type != SectionTypeStrTab {
		d.throw(fmt.Errorf("%w: section %d is not a string table", ErrCorrupt, ndx))
	}

	end := tab.End()
	for _, s := range f.Sections {
		if s.NameIndex == 0 {
			continue
		}

		off := tab.Offset.Add(sat.Cast[uint64](sat.New(s.NameIndex)))
		if off.GreaterEq(end) {
			d.throw(fmt.Errorf("%w: name offset %v outside string table", ErrCorrupt, off))
		}

		d.seekTo(off)
		s.Name = d.cstring(sat.Cast[int](end.Sub(off)).Value())
	}
}

// cstring reads a NUL-terminated string of at most limit bytes,
// including the terminator.
func (d *decoder) cstring(limit int) string {
	var sb strings.Builder
	var buf [1]byte
	for range limit {
		_, err := io.ReadFull(d, buf[:])
		d.throw(err)
		if buf[0] == 0 {
			return sb.String()
		}
		sb.WriteByte(buf[0])
	}
	d.throw(fmt.Errorf("%w: unterminated name string", ErrCorrupt))
	return ""
}

// word reads an address-sized field and widens it into a saturating
// uint64, so that all extent arithmetic happens at full width no
// matter the file's class.
func (d *decoder) word() sat.U64 {
	if d.class == Class64 {
		return sat.New(d.uint64())
	}
	return sat.Cast[uint64](sat.New(d.uint32()))
}

func (d *decoder) uint16() (v uint16) {
	d.throw(binary.Read(d, d.order, &v))
	return v
}

func (d *decoder) uint32() (v uint32) {
	d.throw(binary.Read(d, d.order, &v))
	return v
}

func (d *decoder) uint64() (v uint64) {
	d.throw(binary.Read(d, d.order, &v))
	return v
}

func (d *decoder) Read(buf []byte) (int, error) {
	n, err := d.br.Read(buf)
	d.throw(err)
	d.n += n
	return n, err
}

func (d *decoder) Discard(n int) (int, error) {
	disc, err := d.br.Discard(n)
	d.throw(err)
	d.n += disc
	return disc, err
}

// seekTo positions the decoder at a file offset taken from an
// untrusted header field.
func (d *decoder) seekTo(off sat.U64) {
	n := sat.Cast[int](off)
	if uint64(n.Value()) != off.Value() {
		d.throw(fmt.Errorf("%w: offset %v beyond addressable range", ErrCorrupt, off))
	}
	d.SeekTo(n.Value())
}

func (d *decoder) SeekTo(n int) {
	diff := n - d.n
	if diff == 0 {
		return
	}

	s, ok := d.r.(io.Seeker)
	if diff > 0 && (!ok || diff <= d.br.Buffered()) {
		d.Discard(diff)
		return
	}
	if !ok {
		d.throw(fmt.Errorf("seek to %d: input is not seekable", n))
	}

	_, err := s.Seek(int64(n), io.SeekStart)
	d.throw(err)
	d.br.Reset(d.r)
	d.n = n
}

type decoderError struct {
	err error
}

func (d *decoder) throw(err error) {
	if err != nil {
		panic(decoderError{err: err})
	}
}

func (d *decoder) catch(err *error) {
	switch r := recover().(type) {
	case decoderError:
		*err = r.err
		d.err = r.err
	case nil:
		*err = d.err
	default:
		panic(r)
	}
}
