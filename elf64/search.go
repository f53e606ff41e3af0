// #############################################################################
// This file is part of the "elf64" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package elf64

import "sort"

// searchEntry is a (key, symbol) pair surviving a predicate filter, kept in
// the same relative order as the sorted symbol table it was built from.
type searchEntry struct {
	key uint64
	sym *SymbolEntry
}

// searchSorted performs the address search: given the address-sorted symbol
// vector, an address a, and a predicate extracting a comparable key (or
// reporting that an entry should be skipped), return the greatest-keyed
// entry with key <= a.
//
// This is implemented as an equivalent strategy rather than literally as a
// binary search that skips over None entries mid-probe: first project the
// sorted vector down to
// (key, *SymbolEntry) pairs for entries the predicate accepts, dropping the
// rest, then run a single partition-point binary search over that dense
// slice. Because the source slice is sorted ascending by value with ties
// broken by ascending file-order (sort.SliceStable in ensureSymbolTable),
// the filtered slice keeps that same ordering, so the *last* entry with the
// maximal qualifying key is exactly the highest file-order symbol among any
// ties — which is the required tie-break rule, with no special-casing.
func searchSorted(symbols []SymbolEntry, addr uint64, key func(*SymbolEntry) (uint64, bool)) (*SymbolEntry, bool) {
	entries := make([]searchEntry, 0, len(symbols))
	for i := range symbols {
		s := &symbols[i]
		k, ok := key(s)
		if !ok {
			continue
		}
		entries = append(entries, searchEntry{key: k, sym: s})
	}
	if len(entries) == 0 {
		return nil, false
	}

	// Find the first index whose key exceeds addr; the answer, if any, is
	// the entry immediately before it.
	cut := sort.Search(len(entries), func(i int) bool {
		return entries[i].key > addr
	})
	if cut == 0 {
		return nil, false
	}
	return entries[cut-1].sym, true
}

// findSymbolIn implements FindSymbol/FindDynSymbol over an already-loaded
// sorted symbol slice and string table: it builds the predicate
// ("st_value iff (st_info & 0xf) == t && st_shndx != UNDEF"), runs the
// search, and resolves the matching name.
func findSymbolIn(img *Image, sorted []SymbolEntry, strtab []byte, addr uint64, t SymType) (string, uint64, error) {
	match, ok := matchSymbolIn(sorted, addr, t)
	if !ok {
		return "", 0, newError(KindNotFound, "no symbol of type %d covers address 0x%x", t, addr)
	}
	name, err := stringAt(strtab, match.NameOffset)
	if err != nil {
		return "", 0, err
	}
	return name, match.Value, nil
}

// matchSymbolIn runs the same search as findSymbolIn but returns the full
// matching entry instead of just its name and value, so callers that need
// st_size (e.g. a Symbolize backend wanting IntSym.Size) don't have to
// re-run the search.
func matchSymbolIn(sorted []SymbolEntry, addr uint64, t SymType) (*SymbolEntry, bool) {
	return searchSorted(sorted, addr, func(s *SymbolEntry) (uint64, bool) {
		if s.Type() != t || s.isUndef() {
			return 0, false
		}
		return s.Value, true
	})
}
