// #############################################################################
// This file is part of the "leb128" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package leb128

import (
	"bytes"
	"testing"
)

func TestReadSigned(t *testing.T) {
	b := []byte{0x9b, 0xf1, 0x59}
	r := bytes.NewReader(b)

	res, err := ReadSigned(r)
	if err != nil {
		t.Fatalf("ReadSigned: %s", err)
	}
	if res != -624485 {
		t.Errorf("ReadSigned() = %d, want -624485", res)
	}
}

func TestReadUnsigned(t *testing.T) {
	b := []byte{0xE5, 0x8E, 0x26}
	r := bytes.NewReader(b)

	res, err := ReadUnsigned(r)
	if err != nil {
		t.Fatalf("ReadUnsigned: %s", err)
	}
	if res != 624485 {
		t.Errorf("ReadUnsigned() = %d, want 624485", res)
	}
}

func TestReadLEB128Signed(t *testing.T) {
	b := []byte{0x9b, 0xf1, 0x59}
	r := bytes.NewReader(b)

	n, err := Read(r)
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	res, err := n.AsSigned()
	if err != nil {
		t.Fatalf("AsSigned: %s", err)
	}
	if res != -624485 {
		t.Errorf("AsSigned() = %d, want -624485", res)
	}
}

func TestReadLEB128Unsigned(t *testing.T) {
	b := []byte{0xE5, 0x8E, 0x26}
	r := bytes.NewReader(b)

	n, err := Read(r)
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	res, err := n.AsUnsigned()
	if err != nil {
		t.Fatalf("AsUnsigned: %s", err)
	}
	if res != 624485 {
		t.Errorf("AsUnsigned() = %d, want 624485", res)
	}
}
