// #############################################################################
// This file is part of the "elf64" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package elf64

import "encoding/binary"

// decodeHeader parses a 64-byte Elf64_Ehdr from buf. buf must be exactly
// HeaderSize bytes; the caller (ensureHeader) is responsible for reading
// that many bytes from offset 0 first.
func decodeHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, newError(KindInvalidData, "header buffer is %d bytes, want %d", len(buf), HeaderSize)
	}

	h := &Header{}
	copy(h.Ident[:], buf[0:16])

	if h.Ident[0] != Mag0 || h.Ident[1] != Mag1 || h.Ident[2] != Mag2 || h.Ident[3] != Mag3 {
		return nil, newError(KindInvalidData, "bad magic bytes %v", h.Ident[0:4])
	}

	h.Class = Class(h.Ident[4])
	if h.Class != Class64 {
		return nil, newError(KindInvalidData, "unsupported ELF class %d (only 64-bit is supported)", h.Class)
	}

	h.Endianness = Endianness(h.Ident[5])
	if h.Endianness != LittleEndian {
		return nil, newError(KindInvalidData, "unsupported endianness %d (only little-endian is supported)", h.Endianness)
	}

	e := binary.LittleEndian
	h.Type = e.Uint16(buf[16:18])
	h.Machine = e.Uint16(buf[18:20])
	h.Version = e.Uint32(buf[20:24])
	h.Entry = e.Uint64(buf[24:32])
	h.ProgHdrOffset = e.Uint64(buf[32:40])
	h.SectHdrOffset = e.Uint64(buf[40:48])
	h.Flags = e.Uint32(buf[48:52])
	h.HeaderSize = e.Uint16(buf[52:54])
	h.ProgHdrEntSize = e.Uint16(buf[54:56])
	h.ProgHdrCount = e.Uint16(buf[56:58])
	h.SectHdrEntSize = e.Uint16(buf[58:60])
	h.SectHdrCount = e.Uint16(buf[60:62])
	h.SectHdrStrNdx = e.Uint16(buf[62:64])

	if h.SectHdrEntSize != SectionHeaderSize {
		return nil, newError(KindInvalidData, "e_shentsize is %d, want %d", h.SectHdrEntSize, SectionHeaderSize)
	}

	return h, nil
}

// decodeSectionHeader parses a 64-byte Elf64_Shdr from buf.
func decodeSectionHeader(buf []byte) (*SectionHeader, error) {
	if len(buf) != SectionHeaderSize {
		return nil, newError(KindInvalidData, "section header buffer is %d bytes, want %d", len(buf), SectionHeaderSize)
	}

	e := binary.LittleEndian
	return &SectionHeader{
		NameOffset: e.Uint32(buf[0:4]),
		Type:       SectionType(e.Uint32(buf[4:8])),
		Flags:      e.Uint64(buf[8:16]),
		Addr:       e.Uint64(buf[16:24]),
		Offset:     e.Uint64(buf[24:32]),
		Size:       e.Uint64(buf[32:40]),
		Link:       e.Uint32(buf[40:44]),
		Info:       e.Uint32(buf[44:48]),
		AddrAlign:  e.Uint64(buf[48:56]),
		EntSize:    e.Uint64(buf[56:64]),
	}, nil
}

// decodeSymbolEntry parses a 24-byte Elf64_Sym from buf.
func decodeSymbolEntry(buf []byte) (*SymbolEntry, error) {
	if len(buf) != SymbolEntrySize {
		return nil, newError(KindInvalidData, "symbol entry buffer is %d bytes, want %d", len(buf), SymbolEntrySize)
	}

	e := binary.LittleEndian
	return &SymbolEntry{
		NameOffset: e.Uint32(buf[0:4]),
		Info:       buf[4],
		Other:      buf[5],
		SectIndex:  e.Uint16(buf[6:8]),
		Value:      e.Uint64(buf[8:16]),
		Size:       e.Uint64(buf[16:24]),
	}, nil
}
