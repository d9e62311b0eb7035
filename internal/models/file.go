package models

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// LocalFile is a file the user picked for upload.
// It is a plain value so two entries with the same fields compare equal;
// Name is not guaranteed unique within a selection.
type LocalFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"sizeBytes"`
}

// NewLocalFile stats path and returns a LocalFile for it.
func NewLocalFile(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return LocalFile{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}, nil
}

// Open opens the file content for reading. Each call returns a fresh reader.
func (f LocalFile) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// ContentType sniffs the file content. Unreadable files report
// application/octet-stream; the upload itself surfaces the read error.
func (f LocalFile) ContentType() string {
	mtype, err := mimetype.DetectFile(f.Path)
	if err != nil {
		return defaultContentType
	}
	return mtype.String()
}

// UploadedFile is the server-side result of one successful file upload.
type UploadedFile struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// BatchResult is the outcome of a completed upload batch.
// Files is only populated when every file and the webhook succeeded.
type BatchResult struct {
	BatchID   string         `json:"batchId"`
	Files     []UploadedFile `json:"files"`
	Succeeded bool           `json:"succeeded"`
}
