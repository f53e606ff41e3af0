// #############################################################################
// This file is part of the "elf64" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package elf64

import (
	"sort"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/binsym/symex/bytesrc"
	"github.com/binsym/symex/internal/symlog"
)

// Image is the entry point to reading an ELF64 file's headers, section
// table, and symbol table. It owns a byte source and lazily materializes
// six caches on first demand: header, section headers, section-header
// string table bytes, symbol table sorted by st_value, symbol table in file
// order, and .strtab bytes. The .dynsym/.dynstr analogues of the last three
// are kept as separate caches, filled only through the DynSymbol accessors.
// Each cache is filled at most once and never reverts.
//
// An Image is not safe for concurrent use from multiple goroutines; callers
// needing concurrent access must synchronize externally or open distinct
// Images over the same file.
type Image struct {
	r    bytesrc.Reader
	path string
	log  zerolog.Logger

	header       *Header
	sectionsOK   bool
	sections     []SectionHeader

	shstrtabOK bool
	shstrtab   []byte

	symtabOK        bool
	symtabSorted    []SymbolEntry
	symtabFileOrder []SymbolEntry

	strtabOK bool
	strtab   []byte

	dynsymOK        bool
	dynsymSorted    []SymbolEntry
	dynsymFileOrder []SymbolEntry

	dynstrOK bool
	dynstr   []byte

	// cursor tracks the position set by SectionSeek/SectionOffsetSeek so
	// ReadRaw knows where to read from and how much of the current
	// section remains.
	cursorSection int
	cursorOffset  uint64
}

// Open opens the file at path for reading and returns an Image handle. It
// performs no parsing; every cache fills lazily on first demand.
func Open(path string) (*Image, error) {
	r, err := bytesrc.OpenFile(path)
	if err != nil {
		return nil, newError(KindIO, "unable to open '%s': %s", path, err.Error())
	}
	return newImage(r, path), nil
}

// OpenReader wraps an already-open bytesrc.Reader (e.g. an MmapReader) in
// an Image. The Image takes ownership of r and closes it when Close is
// called.
func OpenReader(r bytesrc.Reader, path string) *Image {
	return newImage(r, path)
}

func newImage(r bytesrc.Reader, path string) *Image {
	return &Image{
		r:             r,
		path:          path,
		log:           symlog.For("elf64"),
		cursorSection: -1,
	}
}

// Close releases the underlying byte source. All derived buffers are
// released with it.
func (img *Image) Close() error {
	return img.r.Close()
}

// ensureHeader loads and validates the ELF header, the first prerequisite
// of every other cache (fill order: header -> sections -> (shstrtab |
// symtab)).
func (img *Image) ensureHeader() error {
	if img.header != nil {
		return nil
	}

	buf, err := bytesrc.ReadAt(img.r, 0, HeaderSize)
	if err != nil {
		return newError(KindIO, "unable to read ELF header of '%s': %s", img.path, err.Error())
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return err
	}

	img.header = h
	img.log.Debug().Str("path", img.path).Uint16("machine", h.Machine).Msg("header loaded")
	return nil
}

// ensureSections loads the section header table.
func (img *Image) ensureSections() error {
	if img.sectionsOK {
		return nil
	}
	if err := img.ensureHeader(); err != nil {
		return err
	}

	h := img.header
	count := int(h.SectHdrCount)
	sections := make([]SectionHeader, count)
	for i := 0; i < count; i++ {
		off := int64(h.SectHdrOffset) + int64(i)*SectionHeaderSize
		buf, err := bytesrc.ReadAt(img.r, off, SectionHeaderSize)
		if err != nil {
			return newError(KindIO, "unable to read section header %d of '%s': %s", i, img.path, err.Error())
		}
		sh, err := decodeSectionHeader(buf)
		if err != nil {
			return err
		}
		sections[i] = *sh
	}

	img.sections = sections
	img.sectionsOK = true
	img.log.Debug().Int("count", count).Msg("section headers loaded")
	return nil
}

// ensureShstrtab loads the section-header string table bytes (the section
// named by e_shstrndx).
func (img *Image) ensureShstrtab() error {
	if img.shstrtabOK {
		return nil
	}
	if err := img.ensureSections(); err != nil {
		return err
	}

	idx := int(img.header.SectHdrStrNdx)
	if idx < 0 || idx >= len(img.sections) {
		return newError(KindInvalidData, "e_shstrndx %d is out of range (%d sections)", idx, len(img.sections))
	}

	data, err := img.readSectionRaw(idx)
	if err != nil {
		return err
	}

	img.shstrtab = data
	img.shstrtabOK = true
	return nil
}

// ensureSymtab loads the .symtab section, sorting a copy by st_value while
// retaining the file-order copy. It also ensures .strtab is loaded, since a
// symbol table is useless without names.
func (img *Image) ensureSymtab() error {
	return img.ensureSymbolTable(NameSymTab, NameSymNameTbl, &img.symtabOK, &img.symtabSorted, &img.symtabFileOrder, &img.strtabOK, &img.strtab)
}

// ensureDynsym is the .dynsym/.dynstr analogue of ensureSymtab, kept
// entirely separate from it: callers opt in explicitly via
// FindDynSymbol/NumDynSymbols, nothing silently unions the two tables.
func (img *Image) ensureDynsym() error {
	return img.ensureSymbolTable(NameDynSymTab, NameDynSymNameTbl, &img.dynsymOK, &img.dynsymSorted, &img.dynsymFileOrder, &img.dynstrOK, &img.dynstr)
}

func (img *Image) ensureSymbolTable(symSectName, strSectName string, ok *bool, sorted, fileOrder *[]SymbolEntry, strOK *bool, strBuf *[]byte) error {
	if *ok {
		return nil
	}
	if err := img.ensureShstrtab(); err != nil {
		return err
	}

	idx, err := img.findSectionLocked(symSectName)
	if err != nil {
		return err
	}

	sh := img.sections[idx]
	if sh.EntSize == 0 || sh.Size%sh.EntSize != 0 {
		return newError(KindInvalidData, "%s size %d is not a multiple of entry size %d", symSectName, sh.Size, sh.EntSize)
	}
	count := int(sh.Size / sh.EntSize)

	fo := make([]SymbolEntry, count)
	for i := 0; i < count; i++ {
		off := int64(sh.Offset) + int64(i)*int64(sh.EntSize)
		buf, err := bytesrc.ReadAt(img.r, off, SymbolEntrySize)
		if err != nil {
			return newError(KindIO, "unable to read %s entry %d of '%s': %s", symSectName, i, img.path, err.Error())
		}
		e, err := decodeSymbolEntry(buf)
		if err != nil {
			return err
		}
		e.fileOrderIndex = i
		fo[i] = *e
	}

	srt := make([]SymbolEntry, len(fo))
	copy(srt, fo)
	sort.SliceStable(srt, func(i, j int) bool {
		return srt[i].Value < srt[j].Value
	})

	strIdx, err := img.findSectionLocked(strSectName)
	if err != nil {
		return err
	}
	strData, err := img.readSectionRaw(strIdx)
	if err != nil {
		return err
	}

	*fileOrder = fo
	*sorted = srt
	*strBuf = strData
	*strOK = true
	*ok = true
	img.log.Debug().Str("section", symSectName).Int("count", count).Msg("symbol table loaded")
	return nil
}

// findSectionLocked is FindSection without the ensureShstrtab prerequisite
// check, for internal callers that have already ensured it.
func (img *Image) findSectionLocked(name string) (int, error) {
	for i := range img.sections {
		n, err := img.sectionNameLocked(i)
		if err != nil {
			continue
		}
		if n == name {
			return i, nil
		}
	}
	return 0, newError(KindNotFound, "no section named '%s'", name)
}

func (img *Image) sectionNameLocked(i int) (string, error) {
	sh := img.sections[i]
	return stringAt(img.shstrtab, sh.NameOffset)
}

// readSectionRaw reads the full raw contents of section i directly
// (bypassing the cursor), used internally while filling other caches.
func (img *Image) readSectionRaw(i int) ([]byte, error) {
	sh := img.sections[i]
	if sh.Type == SHTNoBits {
		return nil, nil
	}
	buf, err := bytesrc.ReadAt(img.r, int64(sh.Offset), int(sh.Size))
	if err != nil {
		return nil, newError(KindIO, "unable to read section %d raw data of '%s': %s", i, img.path, err.Error())
	}
	return buf, nil
}

// stringAt extracts the NUL-terminated string starting at offset o within
// a string-table byte buffer.
func stringAt(tbl []byte, o uint32) (string, error) {
	if uint64(o) >= uint64(len(tbl)) {
		return "", newError(KindInvalidData, "string offset %d out of bounds (table size %d)", o, len(tbl))
	}
	end := o
	for end < uint32(len(tbl)) && tbl[end] != 0 {
		end++
	}
	if end >= uint32(len(tbl)) {
		return "", newError(KindInvalidData, "string at offset %d is not NUL-terminated", o)
	}
	s := tbl[o:end]
	if !utf8.Valid(s) {
		return "", newError(KindInvalidData, "string at offset %d is not valid UTF-8", o)
	}
	return string(s), nil
}
