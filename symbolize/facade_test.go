// #############################################################################
// This file is part of the "symbolize" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package symbolize

import (
	"errors"
	"testing"

	"github.com/binsym/symex/normalize"
	"github.com/binsym/symex/symaddr"
)

// stubBackend is a minimal Symbolize backend for façade-level tests: a
// flat table of (addr, size) -> name, no source location support.
type stubBackend struct {
	entries []stubEntry
}

type stubEntry struct {
	name string
	addr uint64
	size uint64
}

func (b *stubBackend) FindSym(virt uint64, opts Opts) (FindSymResult, error) {
	var best *stubEntry
	for i := range b.entries {
		e := &b.entries[i]
		if e.addr > virt {
			continue
		}
		if best == nil || e.addr > best.addr {
			best = e
		}
	}
	if best == nil {
		return FindSymResult{Reason: UnknownAddr}, nil
	}
	size := best.size
	return FindSymResult{Sym: &IntSym{Name: best.name, Addr: best.addr, Size: &size}}, nil
}

func newStubSymbolizer() *Symbolizer {
	s := New()
	s.RegisterBackend(SourceElfPath, func(src Source) (Symbolize, error) {
		return &stubBackend{entries: []stubEntry{
			{name: "foo", addr: 0x1000, size: 0x100},
			{name: "bar", addr: 0x2000, size: 0x50},
		}}, nil
	})
	return s
}

func TestSymbolizeBasicHit(t *testing.T) {
	s := newStubSymbolizer()
	src := ElfPathSource("/bin/dummy")

	z, err := s.Symbolize(src, symaddr.VirtOffset[uint64](0x1010), Basic)
	if err != nil {
		t.Fatalf("Symbolize: %v", err)
	}
	sym, ok := z.AsSym()
	if !ok {
		t.Fatalf("expected a Sym result")
	}
	if sym.Name != "foo" || sym.Offset != 0x10 {
		t.Errorf("got name=%s offset=0x%x, want foo/0x10", sym.Name, sym.Offset)
	}
}

func TestSymbolizeUnknownAddr(t *testing.T) {
	s := newStubSymbolizer()
	src := ElfPathSource("/bin/dummy")

	z, err := s.Symbolize(src, symaddr.VirtOffset[uint64](0x10), Basic)
	if err != nil {
		t.Fatalf("Symbolize: %v", err)
	}
	reason, ok := z.Reason()
	if !ok || reason != UnknownAddr {
		t.Errorf("expected UnknownAddr, got reason=%v ok=%v", reason, ok)
	}
}

func TestSymbolizeMissingBackend(t *testing.T) {
	s := New()
	_, err := s.Symbolize(ProcessSource(1), symaddr.VirtOffset[uint64](0x10), Basic)
	if err == nil {
		t.Fatalf("expected an error for an unregistered source kind")
	}
}

func TestSymbolizeAbsAddrUnsupportedWithoutNormalizer(t *testing.T) {
	s := newStubSymbolizer()
	src := ElfPathSource("/bin/dummy")

	z, err := s.Symbolize(src, symaddr.AbsAddr[uint64](0x1010), Basic)
	if err != nil {
		t.Fatalf("Symbolize: %v", err)
	}
	reason, ok := z.Reason()
	if !ok || reason != Unsupported {
		t.Errorf("expected Unsupported, got reason=%v ok=%v", reason, ok)
	}
}

// normalizingBackend composes stubBackend with a canned AbsAddr
// normalization outcome, to exercise the AbsAddr resolution path and its
// normalize.Reason -> symbolize.Reason conversion.
type normalizingBackend struct {
	stubBackend
	shift  uint64
	reason normalize.Reason
	fail   bool
}

func (b *normalizingBackend) NormalizeAbsAddr(addr uint64) (*uint64, normalize.Reason, error) {
	if b.fail {
		return nil, b.reason, nil
	}
	v := addr + b.shift
	return &v, 0, nil
}

func TestSymbolizeAbsAddrWithNormalizer(t *testing.T) {
	s := New()
	s.RegisterBackend(SourceElfPath, func(src Source) (Symbolize, error) {
		return &normalizingBackend{
			stubBackend: stubBackend{entries: []stubEntry{{name: "foo", addr: 0x1000, size: 0x100}}},
			shift:       0x1000,
		}, nil
	})

	z, err := s.Symbolize(ElfPathSource("/bin/dummy"), symaddr.AbsAddr[uint64](0x10), Basic)
	if err != nil {
		t.Fatalf("Symbolize: %v", err)
	}
	sym, ok := z.AsSym()
	if !ok || sym.Name != "foo" {
		t.Fatalf("expected a hit on foo, got %+v ok=%v", z, ok)
	}
}

func TestSymbolizeAbsAddrNormalizeReasonConversion(t *testing.T) {
	cases := []struct {
		in   normalize.Reason
		want Reason
	}{
		{normalize.Unmapped, Unmapped},
		{normalize.MissingComponent, MissingComponent},
		{normalize.Unsupported, Unsupported},
	}
	for _, c := range cases {
		s := New()
		s.RegisterBackend(SourceElfPath, func(src Source) (Symbolize, error) {
			return &normalizingBackend{fail: true, reason: c.in}, nil
		})

		z, err := s.Symbolize(ElfPathSource("/bin/dummy"), symaddr.AbsAddr[uint64](0x10), Basic)
		if err != nil {
			t.Fatalf("Symbolize: %v", err)
		}
		reason, ok := z.Reason()
		if !ok || reason != c.want {
			t.Errorf("normalize.%s: got reason=%v ok=%v, want %v", c.in, reason, ok, c.want)
		}
	}
}

func TestSymbolizeFileOffsetNeedsTranslator(t *testing.T) {
	s := newStubSymbolizer()
	src := ElfPathSource("/bin/dummy")

	z, err := s.Symbolize(src, symaddr.FileOffset[uint64](0x1010), Basic)
	if err != nil {
		t.Fatalf("Symbolize: %v", err)
	}
	reason, ok := z.Reason()
	if !ok || reason != MissingComponent {
		t.Errorf("expected MissingComponent for a backend without a translator, got reason=%v ok=%v", reason, ok)
	}
}

// translatingBackend composes stubBackend with a fixed file-to-virtual
// offset shift, to exercise the FileOffset resolution path.
type translatingBackend struct {
	stubBackend
	shift uint64
}

func (b *translatingBackend) FileOffsetToVirtOffset(off uint64) (*uint64, error) {
	if off == 0 {
		return nil, errors.New("no mapping for offset 0")
	}
	v := off + b.shift
	return &v, nil
}

func TestSymbolizeFileOffsetWithTranslator(t *testing.T) {
	s := New()
	s.RegisterBackend(SourceElfPath, func(src Source) (Symbolize, error) {
		return &translatingBackend{
			stubBackend: stubBackend{entries: []stubEntry{{name: "foo", addr: 0x1000, size: 0x100}}},
			shift:       0x1000,
		}, nil
	})

	z, err := s.Symbolize(ElfPathSource("/bin/dummy"), symaddr.FileOffset[uint64](0x10), Basic)
	if err != nil {
		t.Fatalf("Symbolize: %v", err)
	}
	sym, ok := z.AsSym()
	if !ok || sym.Name != "foo" {
		t.Fatalf("expected a hit on foo, got %+v ok=%v", z, ok)
	}
}

func TestSymbolizeManyPreservesOrder(t *testing.T) {
	s := newStubSymbolizer()
	src := ElfPathSource("/bin/dummy")

	ins := []symaddr.Input[uint64]{
		symaddr.VirtOffset[uint64](0x1010),
		symaddr.VirtOffset[uint64](0x2010),
		symaddr.VirtOffset[uint64](0x10),
	}
	results, err := s.SymbolizeMany(src, ins, Basic)
	if err != nil {
		t.Fatalf("SymbolizeMany: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	sym0, _ := results[0].AsSym()
	sym1, _ := results[1].AsSym()
	if sym0.Name != "foo" || sym1.Name != "bar" {
		t.Errorf("unexpected order: %+v, %+v", sym0, sym1)
	}
	if _, ok := results[2].AsSym(); ok {
		t.Errorf("expected the third lookup to miss")
	}
}

func TestBackendCachedAcrossCalls(t *testing.T) {
	calls := 0
	s := New()
	s.RegisterBackend(SourceElfPath, func(src Source) (Symbolize, error) {
		calls++
		return &stubBackend{}, nil
	})
	src := ElfPathSource("/bin/dummy")
	_, _ = s.Symbolize(src, symaddr.VirtOffset[uint64](1), Basic)
	_, _ = s.Symbolize(src, symaddr.VirtOffset[uint64](2), Basic)
	if calls != 1 {
		t.Errorf("builder invoked %d times, want 1 (cached)", calls)
	}
}
