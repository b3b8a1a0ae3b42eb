package upload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestPrepareValidatesFile(t *testing.T) {
	p := NewPreparer(1024)

	if _, err := p.Prepare(filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}

	empty := writeFile(t, "empty.txt", "")
	if _, err := p.Prepare(empty); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}

	big := writeFile(t, "big.txt", strings.Repeat("x", 2048))
	if _, err := p.Prepare(big); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestPrepareRegularFile(t *testing.T) {
	p := NewPreparer(0)
	path := writeFile(t, "report.pdf", "%PDF-1.4 fake")

	prepared, err := p.Prepare(path)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if prepared.DisplayName != "report.pdf" {
		t.Fatalf("expected base filename, got %q", prepared.DisplayName)
	}
	if prepared.ContentType != "application/pdf" {
		t.Fatalf("expected pdf content type, got %q", prepared.ContentType)
	}
	if prepared.Size == 0 {
		t.Fatal("expected size probed")
	}
}

func TestPrepareHTMLUsesTitle(t *testing.T) {
	p := NewPreparer(0)
	path := writeFile(t, "page.html", `<html><head><title>
		Quarterly   Review
	</title></head><body>content</body></html>`)

	prepared, err := p.Prepare(path)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if prepared.DisplayName != "Quarterly Review" {
		t.Fatalf("expected collapsed title, got %q", prepared.DisplayName)
	}
}

func TestPrepareHTMLWithoutTitleKeepsFilename(t *testing.T) {
	p := NewPreparer(0)
	path := writeFile(t, "bare.html", `<html><body>no title here</body></html>`)

	prepared, err := p.Prepare(path)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if prepared.DisplayName != "bare.html" {
		t.Fatalf("expected filename fallback, got %q", prepared.DisplayName)
	}
}
