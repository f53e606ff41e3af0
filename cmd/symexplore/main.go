// #############################################################################
// This file is part of the "symexplore" command. It is distributed under
// the MIT License. Refer to the LICENSE file for more information.
// #############################################################################

// symexplore is a small demonstration CLI for the symbolization engine:
// it opens one ELF file and answers "what symbol covers this address"
// and section/symbol listing queries against it.
package main

import (
	"fmt"
	"os"

	"github.com/binsym/symex/backend/elfsym"
	"github.com/binsym/symex/clap"
	"github.com/binsym/symex/elf64"
	"github.com/binsym/symex/internal/symlog"
	"github.com/binsym/symex/symaddr"
	"github.com/binsym/symex/symbolize"
)

func main() {
	root := clap.NewArgSet("symexplore", "Inspect and symbolize addresses in an ELF64 file.")

	var path string
	root.AddStringArg("file", "f", &path, "", true, "Path to the ELF64 file to inspect.")

	addrCmd := clap.NewArgSet("addr", "Resolve one address to a symbol and, if available, source location.")
	var addrHex string
	var wantCode, wantInlined bool
	addrCmd.AddStringArg("address", "a", &addrHex, "", true, "Address to resolve, hex (e.g. 0x401020).")
	addrCmd.AddBoolArg("code", "c", &wantCode, false, false, "Also resolve source file/line.")
	addrCmd.AddBoolArg("inlined", "i", &wantInlined, false, false, "Also reconstruct the inlined call chain (implies --code).")

	sectionsCmd := clap.NewArgSet("sections", "List section headers.")
	symbolsCmd := clap.NewArgSet("symbols", "List .symtab entries.")

	// A sub-command parses its own arguments only, so each one takes --file too.
	for _, sub := range []*clap.ArgSet{addrCmd, sectionsCmd, symbolsCmd} {
		sub.AddStringArg("file", "f", &path, "", true, "Path to the ELF64 file to inspect.")
	}

	if err := root.AddSubCommand(addrCmd); err != nil {
		fail(err)
	}
	if err := root.AddSubCommand(sectionsCmd); err != nil {
		fail(err)
	}
	if err := root.AddSubCommand(symbolsCmd); err != nil {
		fail(err)
	}

	chain, err := root.Parse(os.Args[1:])
	if err != nil {
		fail(err)
	}

	log := symlog.For("symexplore")
	if path == "" {
		fail(fmt.Errorf("--file is required"))
	}

	switch {
	case contains(chain, "addr"):
		runAddr(path, addrHex, wantCode, wantInlined)
	case contains(chain, "sections"):
		runSections(path)
	case contains(chain, "symbols"):
		runSymbols(path)
	default:
		log.Info().Msg("no sub-command given; use addr, sections, or symbols")
	}
}

func contains(chain []string, name string) bool {
	for _, c := range chain {
		if c == name {
			return true
		}
	}
	return false
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "symexplore: %s\n", err.Error())
	os.Exit(1)
}

func runSections(path string) {
	img, err := elf64.Open(path)
	if err != nil {
		fail(err)
	}
	defer img.Close()

	n, err := img.NumSections()
	if err != nil {
		fail(err)
	}
	for i := 0; i < n; i++ {
		name, err := img.SectionName(i)
		if err != nil {
			fail(err)
		}
		sh, err := img.SectionHeader(i)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%3d  %-20s  size=0x%-8x  off=0x%x\n", i, name, sh.Size, sh.Offset)
	}
}

func runSymbols(path string) {
	img, err := elf64.Open(path)
	if err != nil {
		fail(err)
	}
	defer img.Close()

	n, err := img.NumSymbols()
	if err != nil {
		fail(err)
	}
	for i := 0; i < n; i++ {
		s, err := img.Symbol(i)
		if err != nil {
			fail(err)
		}
		name, err := img.SymbolName(s)
		if err != nil {
			fail(err)
		}
		fmt.Printf("0x%016x  size=0x%-6x  %s\n", s.Value, s.Size, name)
	}
}

func runAddr(path, addrHex string, wantCode, wantInlined bool) {
	var addr uint64
	if _, err := fmt.Sscanf(addrHex, "0x%x", &addr); err != nil {
		if _, err := fmt.Sscanf(addrHex, "%x", &addr); err != nil {
			fail(fmt.Errorf("invalid --address %q: %w", addrHex, err))
		}
	}

	backend, err := elfsym.Open(path)
	if err != nil {
		fail(err)
	}
	defer backend.Close()

	sym := symbolize.New()
	sym.RegisterBackend(symbolize.SourceElfPath, func(_ symbolize.Source) (symbolize.Symbolize, error) {
		return backend, nil
	})

	opts := symbolize.Basic
	switch {
	case wantInlined:
		opts = symbolize.WithCodeInfoAndInlined
	case wantCode:
		opts = symbolize.WithCodeInfo
	}

	z, err := sym.Symbolize(symbolize.ElfPathSource(path), symaddr.VirtOffset[uint64](addr), opts)
	if err != nil {
		fail(err)
	}

	s, ok := z.AsSym()
	if !ok {
		reason, _ := z.Reason()
		fmt.Printf("0x%x: unresolved (%s)\n", addr, reason)
		return
	}

	fmt.Printf("0x%x: %s+0x%x\n", addr, s.Demangled(), s.Offset)
	if s.Code != nil {
		fmt.Printf("    at %s:%d\n", s.Code.ToPath(), s.Code.Line)
	}
	for _, fn := range s.Inlined {
		fmt.Printf("    inlined from %s\n", fn.Name)
	}
}
