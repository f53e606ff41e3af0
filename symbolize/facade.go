// #############################################################################
// This file is part of the "symbolize" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package symbolize

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/binsym/symex/internal/symlog"
	"github.com/binsym/symex/normalize"
	"github.com/binsym/symex/symaddr"
)

// Builder constructs the backend for one resolverKey. Registered per
// SourceKind via RegisterBackend.
type Builder func(src Source) (Symbolize, error)

// Symbolizer is the public entry point: given a Source and an address in
// any of the three symaddr coordinate systems, it resolves a Sym or
// explains why it could not. Backends are built lazily and cached for the
// Symbolizer's lifetime.
type Symbolizer struct {
	mu       sync.Mutex
	builders map[SourceKind]Builder
	cache    map[resolverKey]Symbolize
	log      zerolog.Logger
}

// New returns a Symbolizer with no backends registered; callers install one
// per SourceKind with RegisterBackend.
func New() *Symbolizer {
	s := &Symbolizer{
		builders: make(map[SourceKind]Builder),
		cache:    make(map[resolverKey]Symbolize),
		log:      symlog.For("symbolize"),
	}
	return s
}

// RegisterBackend installs or replaces the Builder used for SourceKind k.
func (s *Symbolizer) RegisterBackend(k SourceKind, b Builder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builders[k] = b
}

func (s *Symbolizer) backendFor(src Source) (Symbolize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(src)
	if b, ok := s.cache[key]; ok {
		return b, nil
	}

	builder, ok := s.builders[src.Kind]
	if !ok {
		return nil, fmt.Errorf("symbolize: no backend registered for source kind %s", src.Kind)
	}
	backend, err := builder(src)
	if err != nil {
		return nil, fmt.Errorf("symbolize: building backend for %s: %w", src.Kind, err)
	}
	s.cache[key] = backend
	return backend, nil
}

// fromNormalizeReason converts a normalize.Reason into the corresponding
// symbolize.Reason. The conversion is total: every normalize.Reason variant
// has a same-named symbolize.Reason counterpart.
func fromNormalizeReason(r normalize.Reason) Reason {
	switch r {
	case normalize.Unmapped:
		return Unmapped
	case normalize.MissingComponent:
		return MissingComponent
	case normalize.Unsupported:
		return Unsupported
	default:
		return Unsupported
	}
}

// resolveVirtOffset converts in into the virtual-offset coordinate every
// Symbolize backend expects, consulting backend as a
// normalize.TranslateFileOffset when in is a FileOffset, or as a
// normalize.NormalizeAbsAddr when in is an AbsAddr. A backend that does not
// implement the collaborator for that coordinate kind cannot accept it,
// which is reported as MissingComponent for a FileOffset and as Unsupported
// for an AbsAddr.
func resolveVirtOffset(backend Symbolize, in symaddr.Input[uint64]) (uint64, Reason, bool) {
	switch in.Kind() {
	case symaddr.KindVirtOffset:
		return in.IntoInner(), 0, true
	case symaddr.KindFileOffset:
		translator, ok := backend.(normalize.TranslateFileOffset)
		if !ok {
			return 0, MissingComponent, false
		}
		virt, err := translator.FileOffsetToVirtOffset(in.IntoInner())
		if err != nil || virt == nil {
			return 0, InvalidFileOffset, false
		}
		return *virt, 0, true
	case symaddr.KindAbsAddr:
		normalizer, ok := backend.(normalize.NormalizeAbsAddr)
		if !ok {
			return 0, Unsupported, false
		}
		virt, reason, err := normalizer.NormalizeAbsAddr(in.IntoInner())
		if err != nil || virt == nil {
			return 0, fromNormalizeReason(reason), false
		}
		return *virt, 0, true
	default:
		return 0, Unsupported, false
	}
}

// Symbolize resolves one address against src.
func (s *Symbolizer) Symbolize(src Source, in symaddr.Input[uint64], opts Opts) (Symbolized, error) {
	backend, err := s.backendFor(src)
	if err != nil {
		return Symbolized{}, err
	}

	virt, reason, ok := resolveVirtOffset(backend, in)
	if !ok {
		s.log.Debug().Str("kind", in.Kind().String()).Str("reason", reason.String()).Msg("address not resolvable to a virtual offset")
		return UnknownResult(reason), nil
	}

	s.log.Trace().Str("source", src.Kind.String()).Uint64("virt", virt).Msg("dispatching to backend")
	res, err := backend.FindSym(virt, opts)
	if err != nil {
		return Symbolized{}, fmt.Errorf("symbolize: %w", err)
	}
	if res.Sym == nil {
		s.log.Debug().Uint64("virt", virt).Str("reason", res.Reason.String()).Msg("lookup miss")
		return UnknownResult(res.Reason), nil
	}

	offset := virt - res.Sym.Addr
	return SymResult(Sym{
		Name:    res.Sym.Name,
		Addr:    res.Sym.Addr,
		Offset:  offset,
		Size:    res.Sym.Size,
		Lang:    res.Sym.Lang,
		Code:    res.Sym.Code,
		Inlined: res.Sym.Inlined,
	}), nil
}

// SymbolizeMany resolves every address in ins against src, preserving
// order and producing one Symbolized per input.
func (s *Symbolizer) SymbolizeMany(src Source, ins []symaddr.Input[uint64], opts Opts) ([]Symbolized, error) {
	out := make([]Symbolized, len(ins))
	for i, in := range ins {
		z, err := s.Symbolize(src, in, opts)
		if err != nil {
			return nil, fmt.Errorf("symbolize: address %d of %d: %w", i, len(ins), err)
		}
		out[i] = z
	}
	return out, nil
}
