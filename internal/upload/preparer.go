// Package upload validates local files before they are sent to a remote
// instance and derives sensible display names for them.
package upload

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrFileNotFound = errors.New("file does not exist")
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")
)

// Prepared describes a file that passed validation and is ready for upload.
type Prepared struct {
	Path        string
	DisplayName string
	Size        int64
	ContentType string
}

type Preparer struct {
	maxFileSize int64
}

func NewPreparer(maxFileSize int64) *Preparer {
	if maxFileSize <= 0 {
		maxFileSize = 128 << 20
	}
	return &Preparer{maxFileSize: maxFileSize}
}

// Prepare probes the file and returns its upload descriptor. HTML files get
// their document title as display name when one exists; everything else keeps
// its base filename.
func (p *Preparer) Prepare(path string) (*Prepared, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	if info.Size() > p.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, info.Size(), p.maxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(path))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	displayName := filepath.Base(path)
	if ext == ".html" || ext == ".htm" {
		if title := htmlTitle(path); title != "" {
			displayName = title
		}
	}

	return &Prepared{
		Path:        path,
		DisplayName: displayName,
		Size:        info.Size(),
		ContentType: contentType,
	}, nil
}

// htmlTitle extracts the <title> text of an HTML file. Any failure just
// falls back to the filename.
func htmlTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.Join(strings.Fields(title), " ")
	return title
}
