// #############################################################################
// This file is part of the "symbolize" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package symbolize

// FindSymResult is what a backend returns from FindSym: either Sym is
// non-nil and Reason is meaningless, or Sym is nil and Reason explains the
// miss.
type FindSymResult struct {
	Sym    *IntSym
	Reason Reason
}

// Symbolize is implemented by every concrete address resolution backend
// (an ELF symbol table, a kernel image, an APK-embedded library, ...).
// FindSym takes a virtual offset already normalized into the backend's own
// coordinate space; callers route through a Source and the façade to get
// there from an absolute address.
type Symbolize interface {
	FindSym(virtOffset uint64, opts Opts) (FindSymResult, error)
}
