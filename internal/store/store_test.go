package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_CreatesRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	s, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Root() != root {
		t.Errorf("Root() = %q, want %q", s.Root(), root)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Errorf("expected %s to be a directory, err=%v", root, err)
	}
}

func TestDocPath_UsesProcessingIDNaming(t *testing.T) {
	s, _ := New(t.TempDir())
	got := s.DocPath("abc-123")
	if filepath.Base(got) != "financial_document_abc-123.pdf" {
		t.Errorf("got %q", got)
	}
}

func TestSave_WritesFileAndReturnsSize(t *testing.T) {
	s, _ := New(t.TempDir())
	path, size, err := s.Save("id1", strings.NewReader("%PDF-1.4 fake content"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len("%PDF-1.4 fake content")) {
		t.Errorf("size = %d", size)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "%PDF-1.4 fake content" {
		t.Errorf("content mismatch: %q", data)
	}
}

func TestSave_EmptyUploadLeavesNoFile(t *testing.T) {
	// A zero-byte upload is rejected and its scratch file removed
	s, _ := New(t.TempDir())
	_, _, err := s.Save("id1", strings.NewReader(""))
	if !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("err = %v, want ErrEmptyUpload", err)
	}
	if _, statErr := os.Stat(s.DocPath("id1")); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("expected no file left behind, stat err = %v", statErr)
	}
}

func TestRemove_DeletesFile(t *testing.T) {
	s, _ := New(t.TempDir())
	path, _, err := s.Save("id1", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Remove(path)
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("expected file removed, stat err = %v", statErr)
	}
}

func TestRemove_QuietOnMissingFileAndEmptyPath(t *testing.T) {
	// Cleanup of an already-gone file must not panic or log spuriously
	s, _ := New(t.TempDir())
	s.Remove(filepath.Join(s.Root(), "never_existed.pdf"))
	s.Remove("")
}
