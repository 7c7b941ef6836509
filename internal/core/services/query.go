package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure QueryEngine implements the interface.
var _ driving.QueryService = (*QueryEngine)(nil)

// NoResultsAnswer is returned when retrieval finds nothing in scope.
const NoResultsAnswer = "I couldn't find any relevant information in the documents to answer your question."

// FallbackModel is reported when the answer was extracted from the context.
const FallbackModel = "fallback"

const (
	previewChars      = 200
	fallbackSentences = 3
	titleChars        = 60
)

// QueryConfig tunes the query pipeline.
type QueryConfig struct {
	Rerank            domain.RerankSettings
	QueryTTL          time.Duration
	HistoryTurns      int
	GenerationTimeout time.Duration
}

// QueryEngine answers questions: cache check, retrieval, rerank, context
// build, generation and caching, with optional conversation history.
type QueryEngine struct {
	retriever     *Retriever
	llm           driven.LLMService
	prompts       driven.PromptStore
	tokens        driven.TokenCounter
	cache         driven.Cache
	conversations driven.ConversationStore
	cfg           QueryConfig

	newID func() string
	now   func() time.Time
}

// NewQueryEngine creates a query engine. llm, cache, tokens and
// conversations are optional: without a generation backend every answer is
// extracted from the context.
func NewQueryEngine(
	retriever *Retriever,
	llm driven.LLMService,
	prompts driven.PromptStore,
	tokens driven.TokenCounter,
	cache driven.Cache,
	conversations driven.ConversationStore,
	cfg QueryConfig,
) *QueryEngine {
	return &QueryEngine{
		retriever:     retriever,
		llm:           llm,
		prompts:       prompts,
		tokens:        tokens,
		cache:         cache,
		conversations: conversations,
		cfg:           cfg,
		newID:         func() string { return uuid.New().String() },
		now:           time.Now,
	}
}

// Query answers req. When the request names a conversation or a project,
// prior turns are folded into the question and the exchange is recorded.
func (q *QueryEngine) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger.Section("Query")
	logger.Debug("Query: %q (scope %s, top_k %d)", req.Query, req.Scope(), req.TopK)

	conv, err := q.conversation(ctx, req)
	if err != nil {
		return nil, err
	}

	effective := req
	if conv != nil {
		effective.Query = q.withHistory(ctx, conv.ID, req.Query)
	}

	resp, err := q.answer(ctx, effective)
	if err != nil {
		return nil, err
	}

	if conv != nil {
		resp.ConversationID = conv.ID
		q.record(ctx, conv, req.Query, resp)
	}
	return resp, nil
}

// Retrieve returns the reranked chunks for a query without generating.
func (q *QueryEngine) Retrieve(ctx context.Context, req domain.QueryRequest) ([]domain.RankedChunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return q.retrieve(ctx, req)
}

func (q *QueryEngine) retrieve(ctx context.Context, req domain.QueryRequest) ([]domain.RankedChunk, error) {
	defer logger.Timed("retrieve")()
	candidates, err := q.retriever.Retrieve(ctx, req.Query, req.ProjectID, req.TopK*candidateFactor)
	if err != nil {
		return nil, err
	}
	if !q.cfg.Rerank.Enabled {
		return TopBySimilarity(candidates, req.TopK), nil
	}
	return Rerank(req.Query, candidates, req.TopK, q.cfg.Rerank), nil
}

// answer runs the pipeline for a single question.
func (q *QueryEngine) answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	key := queryKey(req)
	if resp, ok := q.cachedAnswer(ctx, key); ok {
		logger.Info("Cache hit for query: %.50s", req.Query)
		resp.Cached = true
		return resp, nil
	}

	ranked, err := q.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return &domain.QueryResponse{
			Answer:  NoResultsAnswer,
			Sources: []domain.Source{},
		}, nil
	}

	contextText := BuildContext(ranked)
	gen := q.generate(ctx, req, contextText)

	resp := &domain.QueryResponse{
		Answer:     gen.Text,
		Sources:    []domain.Source{},
		ChunksUsed: len(ranked),
		ModelUsed:  gen.Model,
		Usage:      gen.Usage,
	}
	if req.IncludeSources {
		resp.Sources = FormatSources(ranked)
	}

	logger.Info("Query answered with %d chunks by %s", resp.ChunksUsed, resp.ModelUsed)

	if q.cache != nil {
		if err := q.cache.Set(ctx, key, resp, q.cfg.QueryTTL); err != nil {
			logger.Warn("query: cache answer: %v", err)
		}
	}
	return resp, nil
}

func (q *QueryEngine) cachedAnswer(ctx context.Context, key string) (*domain.QueryResponse, bool) {
	if q.cache == nil {
		return nil, false
	}
	var resp domain.QueryResponse
	ok, err := q.cache.Get(ctx, key, &resp)
	if err != nil || !ok {
		return nil, false
	}
	return &resp, true
}

// generate asks the backend for an answer. Any failure, including a
// missing backend, yields an answer extracted from the context instead.
func (q *QueryEngine) generate(ctx context.Context, req domain.QueryRequest, contextText string) *driven.Generation {
	defer logger.Timed("generate")()
	prompt, system, err := q.buildPrompt(req, contextText)
	if err == nil && q.llm != nil {
		gen, genErr := q.callBackend(ctx, req, prompt, system)
		if genErr == nil {
			if gen.Usage.TotalTokens == 0 {
				gen.Usage = q.estimateUsage(prompt+system, gen.Text)
			}
			return gen
		}
		err = genErr
	} else if err == nil {
		err = domain.ErrLLMUnavailable
	}

	if errors.Is(err, domain.ErrLLMUnavailable) {
		logger.Debug("query: no generation backend, extracting answer")
	} else {
		logger.Warn("query: generation failed, extracting answer: %v", err)
	}

	text := FallbackAnswer(contextText)
	return &driven.Generation{
		Text:  text,
		Model: FallbackModel,
		Usage: q.estimateUsage(prompt, text),
	}
}

func (q *QueryEngine) callBackend(ctx context.Context, req domain.QueryRequest, prompt, system string) (*driven.Generation, error) {
	if q.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.GenerationTimeout)
		defer cancel()
	}

	gen, err := q.llm.Generate(ctx, driven.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: system,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationBackend, err)
	}
	if gen == nil || strings.TrimSpace(gen.Text) == "" {
		return nil, fmt.Errorf("%w: empty answer", domain.ErrGenerationBackend)
	}
	if gen.Model == "" {
		gen.Model = q.llm.ModelName()
	}
	return gen, nil
}

func (q *QueryEngine) buildPrompt(req domain.QueryRequest, contextText string) (prompt, system string, err error) {
	if q.prompts == nil {
		return "", "", fmt.Errorf("%w: no prompt templates", domain.ErrConfiguration)
	}
	name := driven.PromptAnswer
	if req.IncludeSources {
		name = driven.PromptAnswerWithSources
	}
	tmpl, err := q.prompts.Load(name)
	if err != nil {
		return "", "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	system, err = q.prompts.Load(driven.PromptSystem)
	if err != nil {
		logger.Debug("query: no system prompt: %v", err)
		system = ""
	}
	return fmt.Sprintf(tmpl, contextText, req.Query), system, nil
}

func (q *QueryEngine) estimateUsage(prompt, completion string) domain.Usage {
	if q.tokens == nil {
		return domain.Usage{}
	}
	u := domain.Usage{
		PromptTokens:     q.tokens.Count(prompt),
		CompletionTokens: q.tokens.Count(completion),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// conversation resolves the conversation a request continues, creating
// one for a project query without an ID. Returns nil when the request is
// not conversational or no conversation store is configured.
func (q *QueryEngine) conversation(ctx context.Context, req domain.QueryRequest) (*domain.Conversation, error) {
	if q.conversations == nil || (req.ConversationID == "" && req.ProjectID == "") {
		return nil, nil
	}

	if req.ConversationID != "" {
		conv, err := q.conversations.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", req.ConversationID, err)
		}
		if req.ProjectID != "" && conv.ProjectID != req.ProjectID {
			return nil, fmt.Errorf("%w: conversation %s belongs to project %s",
				domain.ErrInvalidInput, conv.ID, conv.ProjectID)
		}
		return conv, nil
	}

	// Fail on an unknown project before creating anything.
	if _, err := q.retriever.projects.GetProject(ctx, req.ProjectID); err != nil {
		return nil, fmt.Errorf("project %s: %w", req.ProjectID, err)
	}

	now := q.now()
	conv := &domain.Conversation{
		ID:        q.newID(),
		ProjectID: req.ProjectID,
		Title:     truncateTitle(req.Query),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.conversations.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	logger.Debug("query: started conversation %s", conv.ID)
	return conv, nil
}

// withHistory folds the latest turns into the question.
func (q *QueryEngine) withHistory(ctx context.Context, conversationID, query string) string {
	if q.cfg.HistoryTurns <= 0 {
		return query
	}
	msgs, err := q.conversations.RecentMessages(ctx, conversationID, q.cfg.HistoryTurns)
	if err != nil {
		logger.Warn("query: load history %s: %v", conversationID, err)
		return query
	}
	return FoldHistory(msgs, query)
}

// record persists the user turn and the assistant answer. Failures are
// logged; the answer has already been produced.
func (q *QueryEngine) record(ctx context.Context, conv *domain.Conversation, query string, resp *domain.QueryResponse) {
	now := q.now()
	user := &domain.Message{
		ID:             q.newID(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        query,
		CreatedAt:      now,
	}
	assistant := &domain.Message{
		ID:             q.newID(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        resp.Answer,
		Citations:      resp.Sources,
		Model:          resp.ModelUsed,
		TokensUsed:     resp.Usage.TotalTokens,
		CreatedAt:      now,
	}
	for _, m := range []*domain.Message{user, assistant} {
		if err := q.conversations.AddMessage(ctx, m); err != nil {
			logger.Warn("query: record %s message in %s: %v", m.Role, conv.ID, err)
			return
		}
	}

	conv.UpdatedAt = now
	if err := q.conversations.SaveConversation(ctx, conv); err != nil {
		logger.Warn("query: touch conversation %s: %v", conv.ID, err)
	}
}

// FoldHistory prefixes query with prior turns, oldest first. Without
// history the query is returned unchanged.
func FoldHistory(msgs []domain.Message, query string) string {
	if len(msgs) == 0 {
		return query
	}
	turns := make([]string, len(msgs))
	for i, m := range msgs {
		turns[i] = m.Role.Label() + ": " + m.Content
	}
	return "Previous conversation:\n" + strings.Join(turns, "\n\n") + "\n\nCurrent question: " + query
}

// BuildContext renders ranked chunks as numbered source blocks separated
// by blank lines.
func BuildContext(ranked []domain.RankedChunk) string {
	blocks := make([]string, len(ranked))
	for i, r := range ranked {
		var b strings.Builder
		fmt.Fprintf(&b, "[Source %d: %s", i+1, r.DocumentTitle)
		if r.Chunk.PageNum != nil {
			fmt.Fprintf(&b, ", Page %d", *r.Chunk.PageNum)
		}
		if r.Chunk.TimestampStart != nil {
			fmt.Fprintf(&b, ", %.1fs", *r.Chunk.TimestampStart)
		}
		b.WriteString("]\n")
		b.WriteString(r.Chunk.Text)
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}

// FormatSources converts ranked chunks to citations numbered like the
// context blocks.
func FormatSources(ranked []domain.RankedChunk) []domain.Source {
	sources := make([]domain.Source, len(ranked))
	for i, r := range ranked {
		sources[i] = domain.Source{
			ID:            i + 1,
			DocumentID:    r.Chunk.DocumentID,
			DocumentTitle: r.DocumentTitle,
			ChunkID:       r.Chunk.ID,
			TextPreview:   preview(r.Chunk.Text),
			Score:         r.Score,
			PageNum:       r.Chunk.PageNum,
			Timestamp:     r.Chunk.TimestampStart,
			Section:       r.Chunk.Section,
		}
	}
	return sources
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}

// FallbackAnswer extracts the first sentences of the context. When the
// extract carries source markers it is framed as a document-based answer.
func FallbackAnswer(contextText string) string {
	sentences := strings.Split(strings.TrimSpace(contextText), ". ")
	if len(sentences) > fallbackSentences {
		sentences = sentences[:fallbackSentences]
	}
	text := strings.Join(sentences, ". ") + "."
	if strings.Contains(text, "[Source") {
		text = "Based on the provided documents:\n\n" + text +
			"\n\n(Note: This is a simplified response. Configure an LLM for better answers.)"
	}
	return text
}

func truncateTitle(query string) string {
	runes := []rune(strings.TrimSpace(query))
	if len(runes) <= titleChars {
		return string(runes)
	}
	return string(runes[:titleChars]) + "..."
}
