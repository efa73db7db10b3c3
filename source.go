package jsonkv

import (
	"io"
	"os"
	"path/filepath"
)

// Source gives access to the backing document.
type Source interface {
	// OpenForRead opens the current content. A missing document is reported
	// with an error wrapping fs.ErrNotExist.
	OpenForRead() (io.ReadCloser, error)
	// PhysicalPath returns the file the document is written to.
	PhysicalPath() (string, error)
}

// FileSource is a Source for a file on the local file system.
type FileSource string

// OpenForRead implements Source.
func (f FileSource) OpenForRead() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// PhysicalPath implements Source.
func (f FileSource) PhysicalPath() (string, error) {
	return filepath.Abs(string(f))
}
