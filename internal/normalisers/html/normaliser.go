package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser turns web pages into plain text. Heading elements are kept in
// order so chunks can carry a heading path.
type Normaliser struct{}

// New creates an HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority ranks above plaintext, which also claims text/*.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the page text, title and headings.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	page := string(raw.Content)
	title := raw.TitleOr(pageTitle(page))

	return &driven.NormaliseResult{
		Document: domain.Document{
			Title:      title,
			Content:    Text(page),
			SourceType: domain.SourceTypeURL,
			URI:        raw.URI,
			Source: domain.SourceMetadata{
				Title:    title,
				Headings: extractHeadings(page),
			},
		},
	}, nil
}

var (
	titleElement   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	headingElement = regexp.MustCompile(`(?is)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	anyTag         = regexp.MustCompile(`<[^>]+>`)
	hspace         = regexp.MustCompile(`[ \t]+`)

	// Elements whose content is never readable text.
	invisible = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`),
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}

	// Tags that start a new line of text.
	lineBreaks = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`),
		regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`),
		regexp.MustCompile(`(?i)<(br|hr)\s*/?>`),
	}
)

func pageTitle(page string) string {
	m := titleElement.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	return html.UnescapeString(strings.TrimSpace(m[1]))
}

func dropInvisible(page string) string {
	for _, re := range invisible {
		page = re.ReplaceAllString(page, "")
	}
	return page
}

// inlineText flattens a fragment to a single line of decoded text.
func inlineText(fragment string) string {
	text := html.UnescapeString(anyTag.ReplaceAllString(fragment, ""))
	return strings.TrimSpace(hspace.ReplaceAllString(text, " "))
}

// Text returns the readable text of an HTML page or fragment, one
// non-empty line per block element.
func Text(page string) string {
	page = dropInvisible(page)
	for _, re := range lineBreaks {
		page = re.ReplaceAllString(page, "\n")
	}

	var lines []string
	for _, line := range strings.Split(page, "\n") {
		if text := inlineText(line); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// extractHeadings returns the text of h1-h6 elements in document order.
func extractHeadings(page string) []string {
	var headings []string
	for _, m := range headingElement.FindAllStringSubmatch(dropInvisible(page), -1) {
		if text := inlineText(m[1]); text != "" {
			headings = append(headings, text)
		}
	}
	return headings
}
