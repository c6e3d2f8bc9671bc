package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDocumentReader_Name(t *testing.T) {
	if got := (DocumentReader{}).Name(); got != "read_financial_document" {
		t.Errorf("got %q", got)
	}
}

func TestDocumentReaderCall_ErrorOnMissingPathArg(t *testing.T) {
	_, err := DocumentReader{}.Call(context.Background(), map[string]string{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), `"path"`) {
		t.Errorf("got %q", err.Error())
	}
}

func TestExtractText_ErrorOnMissingFile(t *testing.T) {
	_, err := ExtractText(filepath.Join(t.TempDir(), "nope.pdf"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "file not found") {
		t.Errorf("got %q", err.Error())
	}
}

func TestExtractText_ErrorOnNonPDFContent(t *testing.T) {
	// A file that exists but is not a PDF fails at open, not at stat
	path := filepath.Join(t.TempDir(), "garbage.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ExtractText(path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if strings.Contains(err.Error(), "file not found") {
		t.Errorf("wrong failure mode: %q", err.Error())
	}
}

func TestCollapseBlankLines_ReducesRunsToTwo(t *testing.T) {
	got := collapseBlankLines("a\n\n\n\n\nb")
	if got != "a\n\nb" {
		t.Errorf("got %q", got)
	}
}

func TestCollapseBlankLines_LeavesSingleAndDoubleNewlines(t *testing.T) {
	in := "a\nb\n\nc"
	if got := collapseBlankLines(in); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}
