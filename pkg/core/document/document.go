// Package document turns statement files into a stream of page texts.
//
// Every loader produces one string per page in reading order with rows
// separated by "\n". The extractors downstream only ever see this text.
package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Document is a loaded statement.
type Document struct {
	Path  string
	Pages []string
}

// Name returns the file name without directories.
func (d *Document) Name() string {
	return filepath.Base(d.Path)
}

// FirstPage returns the text of page 1, or "" for an empty document.
func (d *Document) FirstPage() string {
	if len(d.Pages) == 0 {
		return ""
	}
	return d.Pages[0]
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// FromPages wraps already-extracted page text.
func FromPages(path string, pages ...string) *Document {
	return &Document{Path: path, Pages: pages}
}

// Supported reports whether Load can read the file.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html", ".htm", ".txt":
		return true
	}
	return false
}

// Load reads a statement, choosing the loader from the file extension.
func Load(ctx context.Context, path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return LoadPDF(ctx, path)
	case ".html", ".htm":
		return LoadHTML(ctx, path)
	case ".txt":
		return LoadText(path)
	default:
		return nil, eris.Errorf("document: unsupported file type %q", path)
	}
}

// LoadText reads a plain-text dump where pages are separated by form feeds.
func LoadText(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: read %s", path)
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return &Document{Path: path, Pages: strings.Split(text, "\f")}, nil
}
