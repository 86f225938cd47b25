package form

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is the binary blob selected by the user. Open may be called once per
// submission, so implementations must be re-readable.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Sizer is implemented by sources that know their length up front.
type Sizer interface {
	Size() (int64, error)
}

type localFile struct {
	path string
}

// LocalFile references a file on disk by path.
func LocalFile(path string) Source {
	return localFile{path: path}
}

func (f localFile) Name() string { return filepath.Base(f.path) }

func (f localFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

func (f localFile) Size() (int64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

type memoryFile struct {
	name string
	data []byte
}

// MemoryFile wraps bytes already held in memory, such as an HTTP upload.
func MemoryFile(name string, data []byte) Source {
	return memoryFile{name: name, data: data}
}

func (f memoryFile) Name() string { return f.name }

func (f memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (f memoryFile) Size() (int64, error) { return int64(len(f.data)), nil }
