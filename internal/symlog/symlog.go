// #############################################################################
// This file is part of the "symlog" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

// Package symlog provides the structured logging used across elf64 and
// symbolize. It follows the zerolog idiom shown in the agent-side
// symbolizer reference this module was grounded on: a component-scoped
// logger obtained once and cheap Debug()/Trace() calls at cache fills and
// lookup misses, never at the Info level or above during normal
// symbolization (a hot address lookup should not cost a syscall's worth of
// log formatting by default).
package symlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	base     zerolog.Logger
	baseOnce sync.Once
)

func root() zerolog.Logger {
	baseOnce.Do(func() {
		var w io.Writer = os.Stderr
		base = zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	})
	return base
}

// SetLevel adjusts the minimum level logged by every component logger
// obtained from this package after the call; loggers obtained earlier keep
// the level they were created with. Intended for CLI/test callers; library
// code never calls it.
func SetLevel(level zerolog.Level) {
	root()
	base = base.Level(level)
}

// For returns a logger scoped to the named component, mirroring
// logger.With().Str("component", name).Logger() from the reference
// symbolizer.
func For(component string) zerolog.Logger {
	return root().With().Str("component", component).Logger()
}
