package document

import (
	"context"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// pageSelector matches the page containers emitted by the statement print view.
const pageSelector = ".page, section.page, div[style*='page-break-after']"

// lineSelector lists the elements that carry one logical line of text.
const lineSelector = "h1, h2, h3, h4, h5, h6, p, caption, li, tr"

// LoadHTML reads a saved print-view statement. Each page container becomes
// one page; documents without containers are treated as a single page.
func LoadHTML(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: open html %s", path)
	}
	defer f.Close()

	gq, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, eris.Wrapf(err, "document: parse html %s", path)
	}
	return fromSelection(ctx, path, gq.Selection)
}

// ParseHTML builds a Document from HTML already in memory.
func ParseHTML(ctx context.Context, path, html string) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "document: parse html %s", path)
	}
	return fromSelection(ctx, path, gq.Selection)
}

func fromSelection(ctx context.Context, path string, root *goquery.Selection) (*Document, error) {
	doc := &Document{Path: path}

	pages := root.Find(pageSelector)
	if pages.Length() == 0 {
		pages = root.Find("body")
	}
	if pages.Length() == 0 {
		pages = root
	}

	var loopErr error
	pages.EachWithBreak(func(_ int, page *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			loopErr = err
			return false
		}
		doc.Pages = append(doc.Pages, pageText(page))
		return true
	})
	if loopErr != nil {
		return nil, loopErr
	}
	return doc, nil
}

// pageText renders table rows as space-joined cells and other block
// elements as single lines, in document order.
func pageText(page *goquery.Selection) string {
	var lines []string
	page.Find(lineSelector).Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "tr" && s.ParentsFiltered("tr").Length() > 0 {
			return
		}
		var line string
		if goquery.NodeName(s) == "tr" {
			var cells []string
			s.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				if text := collapse(cell.Text()); text != "" {
					cells = append(cells, text)
				}
			})
			line = strings.Join(cells, " ")
		} else {
			line = collapse(s.Text())
		}
		if line != "" {
			lines = append(lines, line)
		}
	})
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
