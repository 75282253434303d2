// Package extract provides HTML document querying and the field
// extractors used to build structured business information.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Document is a parsed HTML page exposing the query capabilities the
// orchestrator needs.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw HTML.
func Parse(body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// MetaDescription returns the content of <meta name="description">.
func (d *Document) MetaDescription() string {
	content, _ := d.doc.Find(`meta[name="description"]`).Attr("content")
	return strings.TrimSpace(content)
}

// FirstHeading returns the text of the first <h1>.
func (d *Document) FirstHeading() string {
	return strings.TrimSpace(d.doc.Find("h1").First().Text())
}

// Headings returns the trimmed texts of all H1 and H2 elements in
// document order.
func (d *Document) Headings() []string {
	var out []string
	d.doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// FirstMatch returns the trimmed text of the first node matching the
// selector, or "".
func (d *Document) FirstMatch(selector string) string {
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

// Links returns the raw href of every anchor carrying one.
func (d *Document) Links() []string {
	var out []string
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			out = append(out, href)
		}
	})
	return out
}

// VisibleText returns the page body text with script, style, and
// noscript content removed and whitespace collapsed.
func (d *Document) VisibleText() string {
	body := d.doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(body.Text(), " "))
}
