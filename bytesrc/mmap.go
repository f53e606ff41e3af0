// #############################################################################
// This file is part of the "bytesrc" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

//go:build linux || darwin

package bytesrc

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapReader is a Reader backed by an mmap(2) mapping of the underlying
// file. Reads are served out of the mapping rather than via syscalls per
// read, which matters for callers that symbolize many addresses against the
// same image.
type MmapReader struct {
	file *os.File
	data []byte
	pos  int64
}

// OpenMmap opens path and maps its full contents read-only.
func OpenMmap(path string) (*MmapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bytesrc: unable to open '%s'.\n%s", path, err.Error())
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bytesrc: unable to stat '%s'.\n%s", path, err.Error())
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("bytesrc: '%s' is empty, nothing to map", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bytesrc: mmap of '%s' failed.\n%s", path, err.Error())
	}

	return &MmapReader{file: f, data: data}, nil
}

func (r *MmapReader) Size() int64 {
	return int64(len(r.data))
}

func (r *MmapReader) SeekAbs(offset int64) error {
	if offset < 0 || offset > int64(len(r.data)) {
		return fmt.Errorf("bytesrc: seek to %d out of bounds (size %d)", offset, len(r.data))
	}
	r.pos = offset
	return nil
}

func (r *MmapReader) ReadFull(buf []byte) error {
	end := r.pos + int64(len(buf))
	if end > int64(len(r.data)) {
		return fmt.Errorf("bytesrc: read of %d bytes at %d runs past mapping end %d", len(buf), r.pos, len(r.data))
	}
	n := copy(buf, r.data[r.pos:end])
	r.pos += int64(n)
	return nil
}

func (r *MmapReader) Close() error {
	err := unix.Munmap(r.data)
	r.data = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
