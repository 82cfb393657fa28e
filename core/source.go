package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSource is a readable, named, sized byte source used for attachments
// and imports.
type FileSource interface {
	// Name is the base filename sent to the remote storage.
	Name() string
	// Open prepares the content for one upload. The caller must Close the
	// returned file on every exit path.
	Open() (*OpenedFile, error)
}

// OpenedFile is rewindable so a retried upload resends the full content.
type OpenedFile struct {
	Reader io.ReadSeeker
	Size   int64
	closer io.Closer
}

func (f *OpenedFile) Rewind() error {
	if f == nil || f.Reader == nil {
		return nil
	}
	_, err := f.Reader.Seek(0, io.SeekStart)
	return err
}

func (f *OpenedFile) Close() error {
	if f == nil || f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// FilePath is opened on demand and closed after the upload.
type FilePath string

func (p FilePath) Name() string {
	return filepath.Base(string(p))
}

func (p FilePath) Open() (*OpenedFile, error) {
	path := strings.TrimSpace(string(p))
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file does not exist: %s", string(p))
		}
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("file does not exist: %s", string(p))
	}
	return &OpenedFile{Reader: file, Size: info.Size(), closer: file}, nil
}

// FileHandle wraps a caller-owned file. Content is read from the handle's
// current offset and the handle is never closed. Size is always the full
// file size, whatever the offset.
type FileHandle struct {
	File *os.File
}

func (h FileHandle) Name() string {
	if h.File == nil {
		return ""
	}
	return filepath.Base(h.File.Name())
}

func (h FileHandle) Open() (*OpenedFile, error) {
	if h.File == nil {
		return nil, fmt.Errorf("file handle is nil")
	}
	info, err := h.File.Stat()
	if err != nil {
		return nil, err
	}
	offset, err := h.File.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return &OpenedFile{
		Reader: io.NewSectionReader(h.File, offset, info.Size()-offset),
		Size:   info.Size(),
	}, nil
}

func (p FilePath) String() string {
	return string(p)
}
