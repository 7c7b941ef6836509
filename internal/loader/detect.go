package loader

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// MIME types of binary formats that have a dedicated normaliser.
const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeEML  = "message/rfc822"
)

// extensionMIME covers formats enry does not classify as languages.
var extensionMIME = map[string]string{
	".docx": mimeDOCX,
	".eml":  mimeEML,
	".txt":  "text/plain",
	".text": "text/plain",
	".htm":  "text/html",
	".html": "text/html",
	".md":   "text/markdown",
}

var languageMIME = map[string]string{
	"Go":         "text/x-go",
	"JavaScript": "text/javascript",
	"TypeScript": "text/x-typescript",
	"Python":     "text/x-python",
	"Java":       "text/x-java",
	"C":          "text/x-c",
	"C++":        "text/x-c++",
	"Ruby":       "text/x-ruby",
	"Rust":       "text/x-rust",
	"Shell":      "text/x-shellscript",
	"Markdown":   "text/markdown",
	"HTML":       "text/html",
	"CSS":        "text/css",
	"JSON":       "application/json",
	"YAML":       "text/x-yaml",
	"XML":        "text/xml",
	"SQL":        "text/x-sql",
	"TOML":       "text/toml",
	"CSV":        "text/csv",
	"Text":       "text/plain",
}

// DetectMIME returns the MIME type of a file from its name and content.
func DetectMIME(path string, content []byte) string {
	if mime, ok := extensionMIME[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}

	if language := enry.GetLanguage(filepath.Base(path), content); language != "" {
		if mime, ok := languageMIME[language]; ok {
			return mime
		}
	}

	if len(content) == 0 {
		return "text/plain"
	}

	detected := http.DetectContentType(content)
	if idx := strings.Index(detected, ";"); idx != -1 {
		detected = detected[:idx]
	}
	return strings.TrimSpace(detected)
}

// isBinary reports whether content should be skipped as undecodable. Formats
// with a binary normaliser are never skipped.
func isBinary(mime string, content []byte) bool {
	if mime == mimeDOCX {
		return false
	}
	return enry.IsBinary(content)
}
