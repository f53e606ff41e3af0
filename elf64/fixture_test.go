// #############################################################################
// This file is part of the "elf64" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package elf64

import (
	"encoding/binary"
	"os"
	"testing"
)

// fixtureBuilder assembles a minimal, valid ELF64 little-endian file byte
// by byte, synthetically rather than via a real compiler, so tests can
// exercise exact boundary conditions (zero symbols, ties, malformed sizes)
// without shipping binary fixtures.
type fixtureBuilder struct {
	sections []fixtureSection
}

type fixtureSection struct {
	name    string
	sType   SectionType
	data    []byte
}

func newFixture() *fixtureBuilder {
	b := &fixtureBuilder{}
	b.sections = append(b.sections, fixtureSection{name: "", sType: SHTNull})
	return b
}

func (b *fixtureBuilder) addSection(name string, sType SectionType, data []byte) {
	b.sections = append(b.sections, fixtureSection{name: name, sType: sType, data: data})
}

func strTabBytes(names ...string) ([]byte, map[string]uint32) {
	tab := []byte{0}
	offsets := map[string]uint32{"": 0}
	for _, n := range names {
		offsets[n] = uint32(len(tab))
		tab = append(tab, []byte(n)...)
		tab = append(tab, 0)
	}
	return tab, offsets
}

// build lays out: ELF header, then each section's raw data back to back
// (8-byte aligned), then the section header table, and returns the
// complete file bytes. shstrtab is expected to already be among b.sections
// (added by the caller via addSection) so its offsets line up with the
// section name map passed in.
func (b *fixtureBuilder) build(t *testing.T, shstrndx int, nameOffsets map[string]uint32) []byte {
	t.Helper()

	const headerSize = HeaderSize
	offsets := make([]uint64, len(b.sections))
	cursor := uint64(headerSize)
	for i, s := range b.sections {
		if s.sType == SHTNull {
			offsets[i] = 0
			continue
		}
		// 8-byte align.
		if cursor%8 != 0 {
			cursor += 8 - cursor%8
		}
		offsets[i] = cursor
		cursor += uint64(len(s.data))
	}
	if cursor%8 != 0 {
		cursor += 8 - cursor%8
	}
	shoff := cursor

	buf := make([]byte, shoff+uint64(len(b.sections))*SectionHeaderSize)

	// e_ident
	buf[0], buf[1], buf[2], buf[3] = Mag0, Mag1, Mag2, Mag3
	buf[4] = byte(Class64)
	buf[5] = byte(LittleEndian)
	buf[6] = 1 // EI_VERSION

	e := binary.LittleEndian
	e.PutUint16(buf[16:18], 2)               // e_type: ET_EXEC
	e.PutUint16(buf[18:20], 0x3E)            // e_machine: EM_X86_64
	e.PutUint32(buf[20:24], 1)               // e_version
	e.PutUint64(buf[24:32], 0)               // e_entry
	e.PutUint64(buf[32:40], 0)               // e_phoff
	e.PutUint64(buf[40:48], shoff)           // e_shoff
	e.PutUint32(buf[48:52], 0)               // e_flags
	e.PutUint16(buf[52:54], headerSize)      // e_ehsize
	e.PutUint16(buf[54:56], 0)               // e_phentsize
	e.PutUint16(buf[56:58], 0)               // e_phnum
	e.PutUint16(buf[58:60], SectionHeaderSize) // e_shentsize
	e.PutUint16(buf[60:62], uint16(len(b.sections)))
	e.PutUint16(buf[62:64], uint16(shstrndx))

	for i, s := range b.sections {
		copy(buf[offsets[i]:], s.data)
	}

	for i, s := range b.sections {
		shOff := shoff + uint64(i)*SectionHeaderSize
		rec := buf[shOff : shOff+SectionHeaderSize]
		e.PutUint32(rec[0:4], nameOffsets[s.name])
		e.PutUint32(rec[4:8], uint32(s.sType))
		e.PutUint64(rec[8:16], 0)
		e.PutUint64(rec[16:24], 0)
		e.PutUint64(rec[24:32], offsets[i])
		e.PutUint64(rec[32:40], uint64(len(s.data)))
		e.PutUint32(rec[40:44], 0)
		e.PutUint32(rec[44:48], 0)
		e.PutUint64(rec[48:56], 1)
		entSize := uint64(0)
		if s.sType == SHTSymTab {
			entSize = SymbolEntrySize
		}
		e.PutUint64(rec[56:64], entSize)
	}

	return buf
}

func encodeSymbol(s SymbolEntry) []byte {
	buf := make([]byte, SymbolEntrySize)
	e := binary.LittleEndian
	e.PutUint32(buf[0:4], s.NameOffset)
	buf[4] = s.Info
	buf[5] = s.Other
	e.PutUint16(buf[6:8], s.SectIndex)
	e.PutUint64(buf[8:16], s.Value)
	e.PutUint64(buf[16:24], s.Size)
	return buf
}

func makeInfo(bind uint8, t SymType) byte {
	return byte(bind<<4) | byte(t)
}

// writeFixture builds a small ELF64 file with a handful of FUNC symbols
// (including a zero-value tie and an UNDEF entry) and writes it to a temp
// file, returning its path.
func writeFixture(t *testing.T) string {
	t.Helper()

	names, offsets := strTabBytes("alpha", "beta", "gamma", "alpha_alias")
	shstrtab, shOffsets := strTabBytes(".shstrtab", ".symtab", ".strtab")

	syms := []SymbolEntry{
		{}, // index 0 is always the reserved null symbol.
		{NameOffset: offsets["alpha"], Info: makeInfo(1, STTFunc), SectIndex: 1, Value: 0x1000, Size: 0x10},
		{NameOffset: offsets["beta"], Info: makeInfo(1, STTFunc), SectIndex: 1, Value: 0x2000, Size: 0x10},
		{NameOffset: offsets["gamma"], Info: makeInfo(1, STTObject), SectIndex: 1, Value: 0x3000, Size: 0x8},
		{NameOffset: offsets["alpha_alias"], Info: makeInfo(1, STTFunc), SectIndex: 1, Value: 0x1000, Size: 0x10},
		{NameOffset: offsets["beta"], Info: makeInfo(0, STTFunc), SectIndex: 0, Value: 0, Size: 0}, // UNDEF
	}
	var symtabData []byte
	for _, s := range syms {
		symtabData = append(symtabData, encodeSymbol(s)...)
	}

	b := newFixture()
	b.addSection(".shstrtab", SHTStrTab, shstrtab)
	b.addSection(".symtab", SHTSymTab, symtabData)
	b.addSection(".strtab", SHTStrTab, names)

	data := b.build(t, 1, shOffsets)

	f, err := os.CreateTemp("", "fixture-*.elf")
	if err != nil {
		t.Fatalf("unable to create temp file: %s", err.Error())
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("unable to write fixture: %s", err.Error())
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}
