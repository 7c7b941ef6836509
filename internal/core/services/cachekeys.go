package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Cache scopes that are not a document or project ID.
const (
	scopeText   = "text"
	scopeGlobal = "global"
)

// cacheKey builds "<namespace>:<scope>:<hex sha256 of parts joined by |>".
func cacheKey(ns domain.CacheNamespace, scope string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return string(ns) + ":" + scope + ":" + hex.EncodeToString(sum[:])
}

// embeddingKey addresses a vector by content. The normalize flag is part of
// the hash because it changes the stored vector.
func embeddingKey(scope string, normalize bool, text string) string {
	return cacheKey(domain.CacheNamespaceEmbedding, scope, strconv.FormatBool(normalize), text)
}

// chunkSetKey addresses the embedded chunks of one document for a model at
// one embedding generation. A set written under an older generation is
// never read again.
func chunkSetKey(documentID, model string, dimension int, generation int64) string {
	return cacheKey(domain.CacheNamespaceChunk, documentID,
		model, strconv.Itoa(dimension), strconv.FormatInt(generation, 10))
}

// queryKey hashes every parameter that changes the answer.
func queryKey(req domain.QueryRequest) string {
	scope := req.Scope()
	return cacheKey(domain.CacheNamespaceQuery, scope,
		req.Query,
		scope,
		strconv.Itoa(req.TopK),
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.Itoa(req.MaxTokens),
		strconv.FormatBool(req.IncludeSources),
	)
}

func namespacePattern(ns domain.CacheNamespace, scope string) string {
	return fmt.Sprintf("%s:%s:*", ns, scope)
}

// Invalidator clears cache entries made stale by document and project
// mutations. Failures are logged, never returned.
type Invalidator struct {
	cache driven.Cache
}

// NewInvalidator creates an invalidator over cache. A nil cache makes every
// call a no-op.
func NewInvalidator(cache driven.Cache) *Invalidator {
	return &Invalidator{cache: cache}
}

// InvalidateDocument clears the document's cached vectors and chunk sets.
func (i *Invalidator) InvalidateDocument(ctx context.Context, documentID string) int {
	return i.clear(ctx,
		namespacePattern(domain.CacheNamespaceEmbedding, documentID),
		namespacePattern(domain.CacheNamespaceChunk, documentID),
	)
}

// InvalidateProject clears the project's cached answers.
func (i *Invalidator) InvalidateProject(ctx context.Context, projectID string) int {
	if projectID == "" {
		projectID = scopeGlobal
	}
	return i.clear(ctx, namespacePattern(domain.CacheNamespaceQuery, projectID))
}

// InvalidateAnswersFor clears cached answers of every scope that can see
// the document: the global scope and each project containing it.
func (i *Invalidator) InvalidateAnswersFor(ctx context.Context, projectIDs []string) int {
	n := i.InvalidateProject(ctx, scopeGlobal)
	for _, id := range projectIDs {
		n += i.InvalidateProject(ctx, id)
	}
	return n
}

func (i *Invalidator) clear(ctx context.Context, patterns ...string) int {
	if i == nil || i.cache == nil {
		return 0
	}
	total := 0
	for _, p := range patterns {
		n, err := i.cache.Clear(ctx, p)
		if err != nil {
			logger.Warn("cache invalidation %q failed: %v", p, err)
			continue
		}
		total += n
	}
	logger.Debug("invalidated %d cache entries", total)
	return total
}
