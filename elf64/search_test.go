// #############################################################################
// This file is part of the "elf64" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package elf64

import "testing"

func sym(value uint64, fileOrder int) SymbolEntry {
	return SymbolEntry{Value: value, fileOrderIndex: fileOrder}
}

func allKey(s *SymbolEntry) (uint64, bool) { return s.Value, true }

func TestSearchSortedBoundaryExactAndBelow(t *testing.T) {
	symbols := []SymbolEntry{sym(10, 0), sym(20, 1), sym(30, 2)}

	if _, ok := searchSorted(symbols, 9, allKey); ok {
		t.Errorf("address below every entry must not match")
	}

	m, ok := searchSorted(symbols, 10, allKey)
	if !ok || m.Value != 10 {
		t.Errorf("exact match at lower boundary failed: %+v, %v", m, ok)
	}

	m, ok = searchSorted(symbols, 29, allKey)
	if !ok || m.Value != 20 {
		t.Errorf("address between entries should match the lower one: %+v, %v", m, ok)
	}

	m, ok = searchSorted(symbols, 1000, allKey)
	if !ok || m.Value != 30 {
		t.Errorf("address above every entry should match the last one: %+v, %v", m, ok)
	}
}

func TestSearchSortedAllFilteredWindow(t *testing.T) {
	symbols := []SymbolEntry{sym(10, 0), sym(20, 1), sym(30, 2)}
	noneKey := func(s *SymbolEntry) (uint64, bool) { return 0, false }

	if _, ok := searchSorted(symbols, 100, noneKey); ok {
		t.Errorf("a predicate rejecting every entry must yield no match")
	}
}

func TestSearchSortedSkipsFilteredMiddleEntries(t *testing.T) {
	// Entry at index 1 is filtered out; an address between it and index 2
	// must resolve to index 0, the last unfiltered entry at or below it.
	symbols := []SymbolEntry{sym(10, 0), sym(20, 1), sym(30, 2)}
	skipMiddle := func(s *SymbolEntry) (uint64, bool) {
		if s.Value == 20 {
			return 0, false
		}
		return s.Value, true
	}

	m, ok := searchSorted(symbols, 25, skipMiddle)
	if !ok || m.Value != 10 {
		t.Errorf("expected fallback to the last unfiltered entry <= addr: %+v, %v", m, ok)
	}
}

func TestSearchSortedTieBreakLastFileOrder(t *testing.T) {
	symbols := []SymbolEntry{sym(10, 0), sym(10, 1), sym(10, 2)}

	m, ok := searchSorted(symbols, 10, allKey)
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.fileOrderIndex != 2 {
		t.Errorf("tie-break should prefer the highest file-order index, got %d", m.fileOrderIndex)
	}
}

func TestSearchSortedEmpty(t *testing.T) {
	if _, ok := searchSorted(nil, 100, allKey); ok {
		t.Errorf("empty symbol table must never match")
	}
}
