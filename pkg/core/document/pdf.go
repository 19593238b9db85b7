package document

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// LoadPDF extracts row-ordered text from every page of a PDF.
func LoadPDF(ctx context.Context, path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: open pdf %s", path)
	}
	defer f.Close()

	doc := &Document{Path: path}
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, eris.Wrapf(err, "document: read page %d of %s", i, path)
		}
		doc.Pages = append(doc.Pages, joinRows(rows))
	}
	return doc, nil
}

// joinRows renders rows top to bottom. Each text-show run becomes one
// whitespace separated token group, so table cells stay apart.
func joinRows(rows pdf.Rows) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		parts := make([]string, 0, len(row.Content))
		for _, t := range row.Content {
			if s := strings.TrimSpace(t.S); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return strings.Join(lines, "\n")
}
