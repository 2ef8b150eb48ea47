package jobs

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var markupPattern = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][^>]*>`)

// CleanDescription reduces an HTML job description to its visible text.
// Plain-text descriptions are returned unchanged apart from outer whitespace.
func CleanDescription(description string) string {
	description = strings.TrimSpace(description)
	if description == "" || !markupPattern.MatchString(description) {
		return description
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return description
	}

	doc.Find("script, style, noscript, svg").Remove()

	// Block elements are separated so adjacent paragraphs do not glue words together.
	doc.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}
