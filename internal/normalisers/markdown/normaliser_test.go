package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/markdown")
	assert.Contains(t, mimeTypes, "text/x-markdown")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "/path/to/document.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Hello World\n\nThis is a test.\n\n## Usage\n\nRun it."),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, raw.URI, doc.URI)
	assert.Equal(t, "Hello World", doc.Title)
	assert.Equal(t, domain.SourceTypeURL, doc.SourceType)
	assert.Equal(t, []string{"Hello World", "Usage"}, doc.Source.Headings)
	assert.Equal(t, "Hello World\n\nThis is a test.\n\nUsage\n\nRun it.", doc.Content)
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_TitleExtraction(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		content string
		want    string
	}{
		{"h1 heading", "/docs/x.md", "# My Title\n\nbody", "My Title"},
		{"h1 after text", "/docs/x.md", "intro\n# Later\n", "Later"},
		{"h2 only falls back", "/docs/user_guide.md", "## Section\n", "user guide"},
		{"no heading", "/docs/getting-started.md", "plain", "getting started"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &domain.RawDocument{URI: tt.uri, Content: []byte(tt.content)}
			result, err := New().Normalise(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Document.Title)
		})
	}
}

func TestExtractHeadings_IgnoresCodeBlocks(t *testing.T) {
	content := "# Top\n\n```\n# not a heading\n```\n\n### Deep ###\n"
	assert.Equal(t, []string{"Top", "Deep"}, extractHeadings(content))
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bold and italic", "**bold** and *italic*", "bold and italic"},
		{"link", "see [the docs](https://example.com)", "see the docs"},
		{"image removed", "a ![alt](img.png) b", "a  b"},
		{"inline code removed", "run `make` now", "run  now"},
		{"list markers", "- one\n- two", "one\ntwo"},
		{"numbered list", "1. one\n2. two", "one\ntwo"},
		{"blockquote", "> quoted", "quoted"},
		{"collapses blank lines", "a\n\n\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMarkdown(tt.input))
		})
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
}
