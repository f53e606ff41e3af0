// #############################################################################
// This file is part of the "elf64" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package elf64

import (
	"os"
	"runtime"
	"testing"
)

// TestSelfOpen opens the running test binary and finds its
// section-header string table.
func TestSelfOpen(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("self-open scenario only applies to ELF hosts")
	}

	exe, err := os.Executable()
	if err != nil {
		t.Skipf("unable to locate test binary: %s", err.Error())
	}

	img, err := Open(exe)
	if err != nil {
		t.Fatalf("Open(%q) failed: %s", exe, err.Error())
	}
	defer img.Close()

	i, err := img.FindSection(".shstrtab")
	if err != nil {
		t.Fatalf("FindSection(.shstrtab) failed: %s", err.Error())
	}
	name, err := img.SectionName(i)
	if err != nil {
		t.Fatalf("SectionName failed: %s", err.Error())
	}
	if name != ".shstrtab" {
		t.Errorf("SectionName(%d) = %q, want %q", i, name, ".shstrtab")
	}
}

// TestSelfOpenHeaderSanity sanity-checks the running test binary's decoded
// header.
func TestSelfOpenHeaderSanity(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("self-open scenario only applies to ELF hosts")
	}

	exe, err := os.Executable()
	if err != nil {
		t.Skipf("unable to locate test binary: %s", err.Error())
	}

	img, err := Open(exe)
	if err != nil {
		t.Fatalf("Open(%q) failed: %s", exe, err.Error())
	}
	defer img.Close()

	h, err := img.Header()
	if err != nil {
		t.Fatalf("Header failed: %s", err.Error())
	}
	if h.Ident[0] != Mag0 || h.Ident[1] != Mag1 || h.Ident[2] != Mag2 || h.Ident[3] != Mag3 {
		t.Errorf("bad magic in running binary: %v", h.Ident[0:4])
	}
	if h.Version != 1 {
		t.Errorf("e_version = %d, want 1", h.Version)
	}
	if h.SectHdrEntSize != SectionHeaderSize {
		t.Errorf("e_shentsize = %d, want %d", h.SectHdrEntSize, SectionHeaderSize)
	}
}
