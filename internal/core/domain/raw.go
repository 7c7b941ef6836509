package domain

import (
	"path"
	"strings"
)

// RawDocument is a file's bytes before normalisation into text.
type RawDocument struct {
	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the detected content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Title overrides the title a normaliser would derive.
	Title string
}

// TitleOr picks the document title: the explicit Title, then derived (a
// title found in the content), then the file name without its extension
// and with underscores and dashes turned into spaces.
func (r *RawDocument) TitleOr(derived string) string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(derived); t != "" {
		return t
	}
	name := path.Base(strings.ReplaceAll(r.URI, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}
