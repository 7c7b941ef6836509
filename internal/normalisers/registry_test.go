package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

type stubNormaliser struct {
	mimes    []string
	priority int
	title    string
	err      error
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.mimes }
func (s *stubNormaliser) Priority() int                { return s.priority }

func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &driven.NormaliseResult{Document: domain.Document{Title: s.title, Content: string(raw.Content)}}, nil
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{mimes: []string{"text/x"}, priority: 5, title: "low"})
	r.Register(&stubNormaliser{mimes: []string{"text/x"}, priority: 50, title: "high"})

	result, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/x", Content: []byte("c")})
	require.NoError(t, err)
	assert.Equal(t, "high", result.Document.Title)
}

func TestRegistry_FallsBackOnUnsupported(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{mimes: []string{"text/x"}, priority: 5, title: "fallback"})
	r.Register(&stubNormaliser{mimes: []string{"text/x"}, priority: 50, err: domain.ErrUnsupportedType})

	result, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/x"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Document.Title)
}

func TestRegistry_StopsOnOtherErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{mimes: []string{"text/x"}, priority: 5, title: "fallback"})
	r.Register(&stubNormaliser{mimes: []string{"text/x"}, priority: 50, err: domain.ErrInvalidInput})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_UnknownMIME(t *testing.T) {
	r := NewRegistry()

	_, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "image/png"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = r.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDefaults(t *testing.T) {
	r := Defaults()
	ctx := context.Background()

	types := r.SupportedMIMETypes()
	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "text/markdown")
	assert.Contains(t, types, "text/html")
	assert.Contains(t, types, "message/rfc822")
	assert.IsIncreasing(t, types)

	// Ordinary JSON falls through to the plain text normaliser.
	result, err := r.Normalise(ctx, &domain.RawDocument{
		URI:      "package.json",
		MIMEType: "application/json",
		Content:  []byte(`{"name": "x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTypeText, result.Document.SourceType)
	assert.Equal(t, `{"name": "x"}`, result.Document.Content)

	result, err = r.Normalise(ctx, &domain.RawDocument{
		URI:      "talk.json",
		MIMEType: "application/json",
		Content:  []byte(`{"title": "Talk", "source": {"segments": [{"start": 0, "end": 1, "text": "Hi."}]}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTypeYouTube, result.Document.SourceType)
}
