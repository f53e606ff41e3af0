// #############################################################################
// This file is part of the "symbolize" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package symbolize

import (
	"github.com/binsym/symex/internal/demangle"
)

// demangleName routes a mangled name through the demangler matching lang.
func demangleName(name string, lang Lang) string {
	switch lang {
	case LangCpp:
		return demangle.Name(name, demangle.LangCpp)
	case LangRust:
		return demangle.Name(name, demangle.LangRust)
	default:
		return name
	}
}
