// #############################################################################
// This file is part of the "demangle" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

// Package demangle wraps github.com/ianlancetaylor/demangle behind the Lang
// hint that symbolize.IntSym carries: a language tag is carried alongside
// a raw mangled name, and demangling itself is delegated to this package
// rather than reimplemented.
package demangle

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Lang identifies the source language a mangled symbol name hints at. It
// mirrors symbolize.Lang without importing it, keeping this package
// dependency-free of the façade.
type Lang int

const (
	LangUnknown Lang = iota
	LangCpp
	LangRust
)

// Name demangles raw using the rules for lang. If raw is not recognizably
// mangled for that language, raw is returned unchanged: demangling is a
// best-effort presentation step, never load-bearing for correctness.
func Name(raw string, lang Lang) string {
	switch lang {
	case LangCpp:
		if out, err := demangle.ToString(raw, demangle.NoClones); err == nil {
			return out
		}
		return raw
	case LangRust:
		if !looksRustMangled(raw) {
			return raw
		}
		if out, err := demangle.ToString(raw, demangle.NoClones); err == nil {
			return out
		}
		return raw
	default:
		return raw
	}
}

// looksRustMangled reports whether raw carries the legacy or v0 Rust
// mangling prefixes. The demangle library itself detects v0 vs. Itanium
// internally; this is only a cheap pre-filter so we don't pay for a failed
// demangle attempt on names that are plainly not Rust symbols.
func looksRustMangled(raw string) bool {
	return strings.HasPrefix(raw, "_ZN") || strings.HasPrefix(raw, "_R")
}
