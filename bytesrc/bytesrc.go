// #############################################################################
// This file is part of the "bytesrc" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

// #############################################################################
// Package bytesrc provides the seekable, random-access byte source that the
// rest of symex reads ELF images through. It is distributed under the MIT
// License. Refer to the LICENSE file for more information.
// #############################################################################

// Package bytesrc provides seekable random-access readers over a file or a
// memory mapping. Callers that only need "seek then read N bytes" should use
// ReadAt, which performs both atomically with respect to other reads on the
// same Reader.
package bytesrc

import (
	"fmt"
	"io"
)

// Reader is the minimal contract the ELF64 parser needs from a byte source:
// absolute seeking and reading N bytes into a caller-provided buffer. A
// Reader is not required to be safe for concurrent use; see the package doc
// of elf64 for the single-threaded access rule this mirrors.
type Reader interface {
	io.Closer

	// SeekAbs positions the reader at the given absolute byte offset.
	SeekAbs(offset int64) error

	// ReadFull reads exactly len(buf) bytes into buf starting at the
	// reader's current position, advancing the position by len(buf).
	// A short read is reported as an error rather than returned
	// partially.
	ReadFull(buf []byte) error

	// Size returns the total size, in bytes, of the underlying source.
	Size() int64
}

// ReadAt seeks to offset and reads exactly n bytes, returning them as a new
// slice. It is the composition most callers want and is atomic with respect
// to other ReadAt/SeekAbs+ReadFull calls on the same Reader only insofar as
// the caller does not interleave calls from multiple goroutines (see
// elf64's single-threaded access rule).
func ReadAt(r Reader, offset int64, n int) ([]byte, error) {
	if offset < 0 || n < 0 {
		return nil, fmt.Errorf("bytesrc: invalid read request at offset %d of %d bytes", offset, n)
	}
	if offset+int64(n) > r.Size() {
		return nil, fmt.Errorf(
			"bytesrc: read of %d bytes at offset %d runs past end of source (size %d)",
			n, offset, r.Size())
	}
	if err := r.SeekAbs(offset); err != nil {
		return nil, fmt.Errorf("bytesrc: unable to seek to offset %d.\n%s", offset, err.Error())
	}
	buf := make([]byte, n)
	if err := r.ReadFull(buf); err != nil {
		return nil, fmt.Errorf("bytesrc: unable to read %d bytes at offset %d.\n%s", n, offset, err.Error())
	}
	return buf, nil
}
