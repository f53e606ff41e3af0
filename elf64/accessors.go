// #############################################################################
// This file is part of the "elf64" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package elf64

// Header returns the parsed ELF header, loading it if needed.
func (img *Image) Header() (*Header, error) {
	if err := img.ensureHeader(); err != nil {
		return nil, err
	}
	return img.header, nil
}

// NumSections returns the number of entries in the section header table.
func (img *Image) NumSections() (int, error) {
	if err := img.ensureSections(); err != nil {
		return 0, err
	}
	return len(img.sections), nil
}

// SectionHeader returns the i-th section header.
func (img *Image) SectionHeader(i int) (*SectionHeader, error) {
	if err := img.ensureSections(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(img.sections) {
		return nil, newError(KindInvalidInput, "section index %d out of range (%d sections)", i, len(img.sections))
	}
	sh := img.sections[i]
	return &sh, nil
}

// SectionName returns the name of section i, resolved from the
// section-header string table.
func (img *Image) SectionName(i int) (string, error) {
	if err := img.ensureShstrtab(); err != nil {
		return "", err
	}
	if i < 0 || i >= len(img.sections) {
		return "", newError(KindInvalidInput, "section index %d out of range (%d sections)", i, len(img.sections))
	}
	return img.sectionNameLocked(i)
}

// SectionSize returns the byte size of section i.
func (img *Image) SectionSize(i int) (uint64, error) {
	sh, err := img.SectionHeader(i)
	if err != nil {
		return 0, err
	}
	return sh.Size, nil
}

// SectionRaw returns the raw bytes of section i.
func (img *Image) SectionRaw(i int) ([]byte, error) {
	if err := img.ensureSections(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(img.sections) {
		return nil, newError(KindInvalidInput, "section index %d out of range (%d sections)", i, len(img.sections))
	}
	return img.readSectionRaw(i)
}

// FindSection returns the index of the first section named name.
func (img *Image) FindSection(name string) (int, error) {
	if err := img.ensureShstrtab(); err != nil {
		return 0, err
	}
	return img.findSectionLocked(name)
}

// SectionSeek positions the underlying reader at the start of section i and
// resets the ReadRaw cursor to the start of that section.
func (img *Image) SectionSeek(i int) error {
	return img.SectionOffsetSeek(i, 0)
}

// SectionOffsetSeek positions the underlying reader at offset o into
// section i, for a subsequent ReadRaw. It fails with KindInvalidInput when
// o >= the section's size.
func (img *Image) SectionOffsetSeek(i int, o uint64) error {
	if err := img.ensureSections(); err != nil {
		return err
	}
	if i < 0 || i >= len(img.sections) {
		return newError(KindInvalidInput, "section index %d out of range (%d sections)", i, len(img.sections))
	}
	sh := img.sections[i]
	if o >= sh.Size {
		return newError(KindInvalidInput, "offset %d is out of range for section %d of size %d", o, i, sh.Size)
	}
	if err := img.r.SeekAbs(int64(sh.Offset) + int64(o)); err != nil {
		return newError(KindIO, "unable to seek into section %d of '%s': %s", i, img.path, err.Error())
	}
	img.cursorSection = i
	img.cursorOffset = o
	return nil
}

// ReadRaw reads bytes at the reader's current position into buf. The
// caller is responsible for having positioned the cursor via SectionSeek or
// SectionOffsetSeek, and for not reading past the boundary of that section.
func (img *Image) ReadRaw(buf []byte) error {
	if img.cursorSection < 0 {
		return newError(KindInvalidInput, "ReadRaw called before SectionSeek/SectionOffsetSeek")
	}
	if err := img.r.ReadFull(buf); err != nil {
		return newError(KindIO, "unable to read %d raw bytes from '%s': %s", len(buf), img.path, err.Error())
	}
	img.cursorOffset += uint64(len(buf))
	return nil
}

// NumSymbols returns the number of entries in .symtab, loading it if
// needed.
func (img *Image) NumSymbols() (int, error) {
	if err := img.ensureSymtab(); err != nil {
		return 0, err
	}
	return len(img.symtabSorted), nil
}

// Symbol returns the i-th symbol in address-sorted order.
func (img *Image) Symbol(i int) (*SymbolEntry, error) {
	if err := img.ensureSymtab(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(img.symtabSorted) {
		return nil, newError(KindInvalidInput, "symbol index %d out of range (%d symbols)", i, len(img.symtabSorted))
	}
	s := img.symtabSorted[i]
	return &s, nil
}

// SymbolFileOrder returns the i-th symbol in the order it appears on disk.
func (img *Image) SymbolFileOrder(i int) (*SymbolEntry, error) {
	if err := img.ensureSymtab(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(img.symtabFileOrder) {
		return nil, newError(KindInvalidInput, "symbol index %d out of range (%d symbols)", i, len(img.symtabFileOrder))
	}
	s := img.symtabFileOrder[i]
	return &s, nil
}

// SymbolName returns the string at the symbol's st_name offset into
// .strtab.
func (img *Image) SymbolName(s *SymbolEntry) (string, error) {
	if err := img.ensureSymtab(); err != nil {
		return "", err
	}
	return stringAt(img.strtab, s.NameOffset)
}

// FindSymbol returns the best matching symbol of the given type: the
// greatest-valued symbol with Value <= addr, among symbols whose type
// equals t and whose section index is not SHN_UNDEF.
func (img *Image) FindSymbol(addr uint64, t SymType) (name string, value uint64, err error) {
	if err := img.ensureSymtab(); err != nil {
		return "", 0, err
	}
	return findSymbolIn(img, img.symtabSorted, img.strtab, addr, t)
}

// NumDynSymbols returns the number of entries in .dynsym, loading it if
// needed. This is a distinct operation from NumSymbols, never implicitly
// merged with it.
func (img *Image) NumDynSymbols() (int, error) {
	if err := img.ensureDynsym(); err != nil {
		return 0, err
	}
	return len(img.dynsymSorted), nil
}

// DynSymbol returns the i-th dynamic symbol in address-sorted order.
func (img *Image) DynSymbol(i int) (*SymbolEntry, error) {
	if err := img.ensureDynsym(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(img.dynsymSorted) {
		return nil, newError(KindInvalidInput, "dynamic symbol index %d out of range (%d symbols)", i, len(img.dynsymSorted))
	}
	s := img.dynsymSorted[i]
	return &s, nil
}

// DynSymbolName returns the string at the dynamic symbol's st_name offset
// into .dynstr.
func (img *Image) DynSymbolName(s *SymbolEntry) (string, error) {
	if err := img.ensureDynsym(); err != nil {
		return "", err
	}
	return stringAt(img.dynstr, s.NameOffset)
}

// FindDynSymbol is the .dynsym analogue of FindSymbol.
func (img *Image) FindDynSymbol(addr uint64, t SymType) (name string, value uint64, err error) {
	if err := img.ensureDynsym(); err != nil {
		return "", 0, err
	}
	return findSymbolIn(img, img.dynsymSorted, img.dynstr, addr, t)
}

// FindSymbolEntry is FindSymbol but returns the full matching SymbolEntry
// (and its resolved name) instead of just name and value, for callers that
// also need st_size.
func (img *Image) FindSymbolEntry(addr uint64, t SymType) (name string, entry SymbolEntry, err error) {
	if err := img.ensureSymtab(); err != nil {
		return "", SymbolEntry{}, err
	}
	match, ok := matchSymbolIn(img.symtabSorted, addr, t)
	if !ok {
		return "", SymbolEntry{}, newError(KindNotFound, "no symbol of type %d covers address 0x%x", t, addr)
	}
	name, err = stringAt(img.strtab, match.NameOffset)
	if err != nil {
		return "", SymbolEntry{}, err
	}
	return name, *match, nil
}

// FindDynSymbolEntry is the .dynsym analogue of FindSymbolEntry.
func (img *Image) FindDynSymbolEntry(addr uint64, t SymType) (name string, entry SymbolEntry, err error) {
	if err := img.ensureDynsym(); err != nil {
		return "", SymbolEntry{}, err
	}
	match, ok := matchSymbolIn(img.dynsymSorted, addr, t)
	if !ok {
		return "", SymbolEntry{}, newError(KindNotFound, "no symbol of type %d covers address 0x%x", t, addr)
	}
	name, err = stringAt(img.dynstr, match.NameOffset)
	if err != nil {
		return "", SymbolEntry{}, err
	}
	return name, *match, nil
}
