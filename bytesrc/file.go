// #############################################################################
// This file is part of the "bytesrc" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package bytesrc

import (
	"fmt"
	"io"
	"os"
)

// FileReader is a Reader backed by a plain *os.File. It is the default
// implementation: it makes no assumption about memory mapping and works on
// any file descriptor a host can open.
type FileReader struct {
	file *os.File
	size int64
}

// OpenFile opens path for reading and returns a FileReader over it. The file
// descriptor is owned by the returned FileReader and released by Close.
func OpenFile(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bytesrc: unable to open '%s'.\n%s", path, err.Error())
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bytesrc: unable to stat '%s'.\n%s", path, err.Error())
	}

	return &FileReader{file: f, size: info.Size()}, nil
}

func (r *FileReader) Size() int64 {
	return r.size
}

func (r *FileReader) SeekAbs(offset int64) error {
	_, err := r.file.Seek(offset, 0)
	return err
}

func (r *FileReader) ReadFull(buf []byte) error {
	n, err := io.ReadFull(r.file, buf)
	if err != nil {
		return fmt.Errorf("bytesrc: short read: got %d of %d bytes.\n%s", n, len(buf), err.Error())
	}
	return nil
}

func (r *FileReader) Close() error {
	return r.file.Close()
}
