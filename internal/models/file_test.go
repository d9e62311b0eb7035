package models

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte("hello world\n"), 0600); err != nil {
		t.Fatal(err)
	}

	f, err := NewLocalFile(path)
	if err != nil {
		t.Fatalf("NewLocalFile() error = %v", err)
	}
	if f.Name != "report.txt" {
		t.Errorf("Name = %q, want %q", f.Name, "report.txt")
	}
	if f.Size != 12 {
		t.Errorf("Size = %d, want 12", f.Size)
	}
	if ct := f.ContentType(); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("ContentType() = %q, want text/plain", ct)
	}

	if _, err := NewLocalFile(dir); err == nil {
		t.Error("NewLocalFile() should reject directories")
	}
}

func TestLocalFileEquality(t *testing.T) {
	a := LocalFile{Name: "a.pdf", Path: "/tmp/a.pdf", Size: 10}
	b := LocalFile{Name: "a.pdf", Path: "/tmp/a.pdf", Size: 10}
	if a != b {
		t.Error("identical files should compare equal")
	}
}

func TestContentTypeMissingFile(t *testing.T) {
	f := LocalFile{Name: "gone", Path: filepath.Join(t.TempDir(), "gone")}
	if ct := f.ContentType(); ct != "application/octet-stream" {
		t.Errorf("ContentType() = %q, want application/octet-stream", ct)
	}
}

func TestUnitLabel(t *testing.T) {
	u := Unit{ID: "42", DisplayName: "Unidade Centro"}
	if got := u.Label(); got != "42 - Unidade Centro" {
		t.Errorf("Label() = %q, want %q", got, "42 - Unidade Centro")
	}
}
