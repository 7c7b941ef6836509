package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

const mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Normaliser extracts text from Word documents. Explicit page breaks make
// the result paginated, and heading-styled paragraphs become headings.
type Normaliser struct{}

// New creates a DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{mimeType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise reads word/document.xml and docProps/core.xml from the archive.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	archive, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	var body wordBody
	if f, err := archive.Open("word/document.xml"); err == nil {
		err = body.parse(f)
		f.Close()
		if err != nil {
			return nil, domain.ErrInvalidInput
		}
	}

	derived := coreTitle(archive)
	if derived == "" {
		derived = body.title
	}
	title := raw.TitleOr(derived)

	texts := make([]string, len(body.pages))
	for i, p := range body.pages {
		texts[i] = p.Text
	}

	doc := domain.Document{
		Title:      title,
		Content:    strings.Join(texts, "\n\n"),
		SourceType: domain.SourceTypeText,
		URI:        raw.URI,
		Source:     domain.SourceMetadata{Title: title, Headings: body.headings},
	}
	if len(body.pages) > 1 {
		doc.SourceType = domain.SourceTypePDF
		doc.Source.Pages = body.pages
	}
	return &driven.NormaliseResult{Document: doc}, nil
}

// wordBody accumulates the pages and headings of a document body.
type wordBody struct {
	pages    []domain.Page
	headings []string
	title    string

	page      []string // finished paragraphs on the current page
	para      strings.Builder
	paraStyle string
}

// parse walks the body token by token so text, tabs and breaks keep their
// order within a run.
func (b *wordBody) parse(r io.Reader) error {
	dec := xml.NewDecoder(r)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				b.para.Reset()
				b.paraStyle = ""
			case "pStyle":
				b.paraStyle = attr(t, "val")
			case "t":
				inText = true
			case "tab":
				b.para.WriteByte('\t')
			case "cr":
				b.para.WriteByte('\n')
			case "br":
				if attr(t, "type") == "page" {
					b.pageBreak()
				} else {
					b.para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.endParagraph()
			}
		case xml.CharData:
			if inText {
				b.para.Write(t)
			}
		}
	}
	b.flushPage()
	return nil
}

func (b *wordBody) endParagraph() {
	text := b.para.String()
	b.para.Reset()
	b.page = append(b.page, text)

	heading := strings.TrimSpace(text)
	if heading == "" {
		return
	}
	switch style := strings.ToLower(b.paraStyle); {
	case style == "title":
		if b.title == "" {
			b.title = heading
		}
	case strings.HasPrefix(style, "heading"):
		b.headings = append(b.headings, heading)
	}
}

// pageBreak ends the page in the middle of a paragraph. The rest of the
// paragraph continues on the next page.
func (b *wordBody) pageBreak() {
	if b.para.Len() > 0 {
		b.page = append(b.page, b.para.String())
		b.para.Reset()
	}
	b.flushPage()
}

// flushPage keeps the current page if it has any text. Pages are numbered
// from 1 in the order kept.
func (b *wordBody) flushPage() {
	text := strings.TrimSpace(strings.Join(b.page, "\n"))
	b.page = b.page[:0]
	if text != "" {
		b.pages = append(b.pages, domain.Page{PageNum: len(b.pages) + 1, Text: text})
	}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// coreTitle reads dc:title from docProps/core.xml.
func coreTitle(archive *zip.Reader) string {
	f, err := archive.Open("docProps/core.xml")
	if err != nil {
		return ""
	}
	defer f.Close()

	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.NewDecoder(f).Decode(&core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
