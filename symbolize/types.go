// #############################################################################
// This file is part of the "symbolize" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

// #############################################################################
// Package symbolize is the public façade and data model of the
// symbolization engine: given a coordinate (symaddr.Input) and a backend
// implementing Symbolize, it returns a Sym (name, defining address, offset,
// optional source location and inlined frames) or a Reason hinting at why
// it could not. It is distributed under the MIT License.
// #############################################################################

package symbolize

import "path/filepath"

// Lang hints at the source language a symbol's mangled name suggests.
// Demangling itself is delegated (internal/demangle); Lang only routes to
// the right demangling rule.
type Lang int

const (
	LangUnknown Lang = iota
	LangCpp
	LangRust
)

// Opts drives how much work a backend performs resolving one address,
// from a bare name+offset lookup up through source location and inlined
// call chains.
type Opts int

const (
	// Basic: name, defining address, and offset only.
	Basic Opts = iota
	// WithCodeInfo: also resolve source file/line/column.
	WithCodeInfo
	// WithCodeInfoAndInlined: also reconstruct the inlined call chain.
	WithCodeInfoAndInlined
)

// WantsCodeInfo reports whether opts requests CodeInfo resolution.
func (o Opts) WantsCodeInfo() bool {
	return o == WithCodeInfo || o == WithCodeInfoAndInlined
}

// WantsInlinedFns reports whether opts requests inlined-frame
// reconstruction.
func (o Opts) WantsInlinedFns() bool {
	return o == WithCodeInfoAndInlined
}

// CodeInfo is a source location: a required file name, an optional
// directory, and optional line/column. dir and file are kept separate so a
// backend need not pay for path-joining until a caller asks for it.
type CodeInfo struct {
	Dir    string // empty if unknown
	HasDir bool
	File   string
	Line   uint32
	HasLine bool
	Column  uint16
	HasColumn bool
}

// ToPath joins Dir and File when Dir is present, else returns File
// unchanged.
func (c CodeInfo) ToPath() string {
	if !c.HasDir || c.Dir == "" {
		return c.File
	}
	return filepath.Join(c.Dir, c.File)
}

// ToOwned returns a deep copy of c. Go strings are already immutable value
// types, so this is a plain value copy — kept as a named method so callers
// that hold a CodeInfo derived from a backend's internal buffers have an
// explicit way to detach it.
func (c CodeInfo) ToOwned() CodeInfo {
	return c
}

// InlinedFn is one frame of an inlined call chain, outermost-to-innermost
// order within Sym.Inlined.
type InlinedFn struct {
	Name     string
	CodeInfo *CodeInfo // nil if the inline site has no known location
}

// IntSym is the intermediate result a Symbolize backend hands up to the
// façade. The façade turns this into a Sym by computing Offset.
type IntSym struct {
	Name   string
	Addr   uint64
	Size   *uint64 // nil if unknown
	Lang   Lang
	Code     *CodeInfo
	Inlined  []InlinedFn
}

// Sym is the public symbolization result.
type Sym struct {
	Name    string
	Addr    uint64
	Offset  uint64 // requested_addr - Addr, always >= 0 by construction
	Size    *uint64
	Lang    Lang
	Code    *CodeInfo
	Inlined []InlinedFn
}

// Demangled returns Name run through the demangler appropriate for Lang.
// If Lang is LangUnknown, or the name is not recognizably mangled, Name is
// returned unchanged.
func (s Sym) Demangled() string {
	return demangleName(s.Name, s.Lang)
}

// Reason enumerates why symbolization could not produce a Sym. These are
// hints, never part of the correctness interface: callers must not branch
// program logic on a specific Reason value except for observability.
type Reason int

const (
	Unmapped Reason = iota
	InvalidFileOffset
	MissingComponent
	MissingSyms
	Unsupported
	UnknownAddr
)

func (r Reason) String() string {
	switch r {
	case Unmapped:
		return "Unmapped"
	case InvalidFileOffset:
		return "InvalidFileOffset"
	case MissingComponent:
		return "MissingComponent"
	case MissingSyms:
		return "MissingSyms"
	case Unsupported:
		return "Unsupported"
	case UnknownAddr:
		return "UnknownAddr"
	default:
		return "Unknown"
	}
}

// Symbolized is the sum Sym(Sym) | Unknown(Reason).
type Symbolized struct {
	sym    *Sym
	reason Reason
}

// SymResult returns a Symbolized wrapping a successful result.
func SymResult(s Sym) Symbolized {
	return Symbolized{sym: &s}
}

// UnknownResult returns a Symbolized wrapping a miss hint.
func UnknownResult(r Reason) Symbolized {
	return Symbolized{reason: r}
}

// AsSym projects the Sym variant out of a Symbolized, reporting false if
// this is an Unknown result.
func (z Symbolized) AsSym() (*Sym, bool) {
	if z.sym == nil {
		return nil, false
	}
	return z.sym, true
}

// IntoSym is AsSym but returns a value copy instead of a pointer.
func (z Symbolized) IntoSym() (Sym, bool) {
	if z.sym == nil {
		return Sym{}, false
	}
	return *z.sym, true
}

// Reason returns the miss hint when z is an Unknown result.
func (z Symbolized) Reason() (Reason, bool) {
	if z.sym != nil {
		return 0, false
	}
	return z.reason, true
}
