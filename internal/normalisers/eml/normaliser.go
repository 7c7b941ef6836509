package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers/html"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser turns RFC 822 messages into text documents. The From, To,
// Date and Subject headers lead the content so they can be retrieved.
type Normaliser struct{}

// New creates an email normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// maxNesting bounds how deep multipart bodies are followed.
const maxNesting = 8

// Normalise parses the message and keeps its plain-text body, or the text
// of its HTML body when there is no plain part. Attachments are skipped.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	var parts bodyParts
	if err := parts.collect(msg.Header, msg.Body, 0); err != nil {
		return nil, domain.ErrInvalidInput
	}

	var content strings.Builder
	for _, name := range []string{"From", "To", "Date", "Subject"} {
		value := msg.Header.Get(name)
		if name != "Date" {
			value = decodeHeader(value)
		}
		if value != "" {
			content.WriteString(name + ": " + value + "\n")
		}
	}
	content.WriteString("\n")
	content.WriteString(parts.text())

	title := raw.TitleOr(decodeHeader(msg.Header.Get("Subject")))

	return &driven.NormaliseResult{
		Document: domain.Document{
			Title:      title,
			Content:    strings.TrimSpace(content.String()),
			SourceType: domain.SourceTypeText,
			URI:        raw.URI,
			Source:     domain.SourceMetadata{Title: title},
		},
	}, nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the input
// unchanged when it cannot be decoded.
func decodeHeader(value string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

type header interface {
	Get(key string) string
}

// bodyParts accumulates the readable parts of a message body.
type bodyParts struct {
	plain []string
	html  []string
}

func (b *bodyParts) text() string {
	if len(b.plain) > 0 {
		return strings.Join(b.plain, "\n")
	}
	return strings.Join(b.html, "\n")
}

// collect reads one entity. A missing or malformed Content-Type is read as
// plain text.
func (b *bodyParts) collect(h header, body io.Reader, depth int) error {
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxNesting || params["boundary"] == "" {
			return nil
		}
		b.collectMultipart(multipart.NewReader(body, params["boundary"]), depth+1)
		return nil
	}

	if mediaType != "text/plain" && mediaType != "text/html" {
		return nil
	}
	data, err := io.ReadAll(transferDecoder(h, body))
	if err != nil {
		return err
	}
	if mediaType == "text/html" {
		b.html = append(b.html, html.Text(string(data)))
	} else {
		b.plain = append(b.plain, string(data))
	}
	return nil
}

// collectMultipart reads parts until the closing boundary or the first
// malformed part. Unreadable parts are skipped.
func (b *bodyParts) collectMultipart(mr *multipart.Reader, depth int) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return
		}
		if disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition")); disposition != "attachment" {
			_ = b.collect(part.Header, part, depth)
		}
		_ = part.Close()
	}
}

// transferDecoder undoes base64 and quoted-printable transfer encodings.
// multipart.Reader already decodes quoted-printable parts and drops the
// header, so those are never decoded twice.
func transferDecoder(h header, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding"))) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}
