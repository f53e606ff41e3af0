// #############################################################################
// This file is part of the "elfsym" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

// Package elfsym is the symtab/dynsym-backed Symbolize implementation: it
// answers FindSym from an elf64.Image's symbol tables, falling back from
// .symtab to .dynsym when the former is absent (e.g. a stripped shared
// library) or has no matching symbol. Source-location resolution is
// delegated to a backend/dwarfline.Resolver that every Backend built by
// Open or FromImage carries.
package elfsym

import (
	"strings"

	"github.com/binsym/symex/backend/dwarfline"
	"github.com/binsym/symex/elf64"
	"github.com/binsym/symex/internal/symlog"
	"github.com/binsym/symex/symbolize"
)

// Backend resolves addresses against one ELF image's symbol tables,
// optionally upgrading a hit with DWARF-derived CodeInfo/inlined frames
// when a dwarfline.Resolver is attached.
type Backend struct {
	img *elf64.Image
	dw  *dwarfline.Resolver
}

// Open opens path and returns a Backend over it, with DWARF resolution
// enabled (it degrades to Basic-only results if the image has no debug
// info). The caller owns the returned Backend's lifetime and must call
// Close when done.
func Open(path string) (*Backend, error) {
	img, err := elf64.Open(path)
	if err != nil {
		return nil, err
	}
	return &Backend{img: img, dw: dwarfline.NewResolver(img)}, nil
}

// FromImage wraps an already-open Image, with DWARF resolution enabled.
// Ownership of img stays with the caller.
func FromImage(img *elf64.Image) *Backend {
	return &Backend{img: img, dw: dwarfline.NewResolver(img)}
}

// Close releases the underlying image.
func (b *Backend) Close() error {
	return b.img.Close()
}

var _ symbolize.Symbolize = (*Backend)(nil)

// FindSym implements symbolize.Symbolize. It tries .symtab first (STT_FUNC
// then STT_OBJECT), then falls back to .dynsym on the same order when
// .symtab is absent, empty, or yields no hit. It reports MissingSyms when
// neither table has any entries, and UnknownAddr when the tables exist but
// no symbol covers the address.
func (b *Backend) FindSym(virtOffset uint64, opts symbolize.Opts) (symbolize.FindSymResult, error) {
	log := symlog.For("elfsym")
	haveSyms := false

	if n, err := b.img.NumSymbols(); err == nil && n > 0 {
		haveSyms = true
		if sym, ok := b.findIn(findSymtab, virtOffset); ok {
			b.attachDebugInfo(sym, virtOffset, opts)
			return symbolize.FindSymResult{Sym: sym}, nil
		}
	}

	if n, err := b.img.NumDynSymbols(); err == nil && n > 0 {
		haveSyms = true
		if sym, ok := b.findIn(findDynsym, virtOffset); ok {
			b.attachDebugInfo(sym, virtOffset, opts)
			return symbolize.FindSymResult{Sym: sym}, nil
		}
	}

	if !haveSyms {
		log.Debug().Uint64("addr", virtOffset).Msg("image has no symbol table entries")
		return symbolize.FindSymResult{Reason: symbolize.MissingSyms}, nil
	}

	log.Debug().Uint64("addr", virtOffset).Msg("no symbol covers address")
	return symbolize.FindSymResult{Reason: symbolize.UnknownAddr}, nil
}

// attachDebugInfo fills in sym.Code and sym.Inlined from b.dw when opts
// asks for them and a resolver is attached. Failure to resolve DWARF info
// is not itself an error: the caller still has a valid Basic-level Sym.
func (b *Backend) attachDebugInfo(sym *symbolize.IntSym, virtOffset uint64, opts symbolize.Opts) {
	if b.dw == nil || !opts.WantsCodeInfo() {
		return
	}
	code, inlined, err := b.dw.Resolve(virtOffset)
	if err != nil {
		symlog.For("elfsym").Debug().Err(err).Msg("DWARF resolution failed, keeping Basic-level Sym")
		return
	}
	sym.Code = code
	if opts.WantsInlinedFns() {
		sym.Inlined = inlined
	}
}

type tableKind int

const (
	findSymtab tableKind = iota
	findDynsym
)

func (b *Backend) findIn(kind tableKind, addr uint64) (*symbolize.IntSym, bool) {
	for _, t := range []elf64.SymType{elf64.STTFunc, elf64.STTObject} {
		var name string
		var entry elf64.SymbolEntry
		var err error
		switch kind {
		case findSymtab:
			name, entry, err = b.img.FindSymbolEntry(addr, t)
		case findDynsym:
			name, entry, err = b.img.FindDynSymbolEntry(addr, t)
		}
		if err != nil || name == "" {
			continue
		}
		size := entry.Size
		return &symbolize.IntSym{
			Name: name,
			Addr: entry.Value,
			Size: &size,
			Lang: guessLang(name),
		}, true
	}
	return nil, false
}

// guessLang applies the same mangling-prefix heuristic
// ianlancetaylor/demangle's callers typically gate on, so Backend can tag
// an IntSym with a Lang before internal/demangle ever sees the name.
func guessLang(name string) symbolize.Lang {
	switch {
	case strings.HasPrefix(name, "_Z"):
		return symbolize.LangCpp
	case strings.HasPrefix(name, "_R"), strings.HasPrefix(name, "_ZN") && strings.Contains(name, "17h"):
		return symbolize.LangRust
	default:
		return symbolize.LangUnknown
	}
}
