// Package page wraps a parsed snapshot of the current document and decides
// whether it is a job-application context.
package page

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OverlaySelector matches the nodes the in-page bridge adds (fill buttons and
// toasts). They are not part of the page and never reach classification.
const OverlaySelector = ".ai-copilot-btn, .ai-copilot-toast"

// Document is an immutable snapshot of the loaded page.
type Document struct {
	URL *url.URL
	Doc *goquery.Document
}

// NewDocument parses html captured from rawURL and drops bridge overlays.
func NewDocument(rawURL, html string) (*Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse document url %q: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document html: %w", err)
	}
	doc.Find(OverlaySelector).Remove()

	return &Document{URL: u, Doc: doc}, nil
}

// Hostname returns the lowercased host without port.
func (d *Document) Hostname() string {
	if d == nil || d.URL == nil {
		return ""
	}
	return strings.ToLower(d.URL.Hostname())
}

// Href returns the full document URL.
func (d *Document) Href() string {
	if d == nil || d.URL == nil {
		return ""
	}
	return d.URL.String()
}

// Title returns the trimmed text of the document's <title>.
func (d *Document) Title() string {
	if d == nil || d.Doc == nil {
		return ""
	}
	return strings.TrimSpace(d.Doc.Find("title").First().Text())
}

// First returns the first element matching selector. The selection is empty
// when nothing matches; goquery treats unparsable selectors as matching nothing.
func (d *Document) First(selector string) *goquery.Selection {
	if d == nil || d.Doc == nil {
		return &goquery.Selection{}
	}
	return d.Doc.Find(selector).First()
}

// VisibleText returns the element text with script and style content removed
// and whitespace collapsed per line.
func VisibleText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	clone := sel.First().Clone()
	clone.Find("script, style, noscript, template").Remove()

	lines := strings.Split(clone.Text(), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
