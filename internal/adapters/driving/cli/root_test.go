package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/loader"
	"github.com/custodia-labs/docqa/internal/normalisers"
)

var errMock = errors.New("mock failure")

var testTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// Mock services

type mockQueryService struct {
	lastReq  domain.QueryRequest
	response *domain.QueryResponse
	ranked   []domain.RankedChunk
	err      error
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockQueryService) Retrieve(_ context.Context, req domain.QueryRequest) ([]domain.RankedChunk, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.ranked, nil
}

type mockIngestService struct {
	submitted   []driving.IngestRequest
	reprocessed []string
	statuses    map[string]*domain.Document
	err         error
}

func (m *mockIngestService) Submit(_ context.Context, req driving.IngestRequest) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = append(m.submitted, req)
	return &domain.Document{
		ID:     fmt.Sprintf("doc-%d", len(m.submitted)),
		Title:  req.Title,
		URI:    req.URI,
		Status: domain.DocumentStatusQueued,
	}, nil
}

func (m *mockIngestService) Status(_ context.Context, id string) (*domain.Document, error) {
	if doc, ok := m.statuses[id]; ok {
		return doc, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngestService) Reprocess(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.reprocessed = append(m.reprocessed, id)
	return nil
}

func (m *mockIngestService) Wait(_ context.Context, id string) (*domain.Document, error) {
	if doc, ok := m.statuses[id]; ok {
		return doc, nil
	}
	return &domain.Document{ID: id, Status: domain.DocumentStatusReady}, nil
}

type mockEmbeddingAdmin struct {
	stats     *domain.EmbeddingStats
	embedded  int
	lastForce bool
	lastScope string
	err       error
}

func (m *mockEmbeddingAdmin) Stats(context.Context) (*domain.EmbeddingStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

func (m *mockEmbeddingAdmin) EmbedAll(_ context.Context, projectID string, force bool) (int, error) {
	m.lastScope = projectID
	m.lastForce = force
	if m.err != nil {
		return 0, m.err
	}
	return m.embedded, nil
}

type mockDocumentService struct {
	docs    []domain.Document
	chunks  map[string][]domain.Chunk
	deleted []string
	err     error
}

func (m *mockDocumentService) List(context.Context) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetChunks(_ context.Context, id string) ([]domain.Chunk, error) {
	if _, err := m.Get(context.Background(), id); err != nil {
		return nil, err
	}
	return m.chunks[id], nil
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if _, err := m.Get(context.Background(), id); err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockProjectService struct {
	projects map[string]*domain.Project
	members  map[string][]string
	docs     *mockDocumentService
	lastName string
	lastDesc string
}

func (m *mockProjectService) Create(_ context.Context, name, description string) (*domain.Project, error) {
	p := &domain.Project{ID: "proj-new", Name: name, Description: description, CreatedAt: testTime}
	m.projects[p.ID] = p
	return p, nil
}

func (m *mockProjectService) Get(_ context.Context, id string) (*domain.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockProjectService) List(context.Context) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProjectService) Update(_ context.Context, id, name, description string) (*domain.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.lastName = name
	m.lastDesc = description
	return p, nil
}

func (m *mockProjectService) Delete(_ context.Context, id string) error {
	if _, ok := m.projects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *mockProjectService) AddDocument(_ context.Context, projectID, documentID string) error {
	if _, ok := m.projects[projectID]; !ok {
		return domain.ErrNotFound
	}
	if _, err := m.docs.Get(context.Background(), documentID); err != nil {
		return err
	}
	m.members[projectID] = append(m.members[projectID], documentID)
	return nil
}

func (m *mockProjectService) RemoveDocument(_ context.Context, projectID, documentID string) error {
	ids := m.members[projectID]
	for i, id := range ids {
		if id == documentID {
			m.members[projectID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockProjectService) Documents(_ context.Context, projectID string) ([]domain.Document, error) {
	if _, ok := m.projects[projectID]; !ok {
		return nil, domain.ErrNotFound
	}
	var out []domain.Document
	for _, id := range m.members[projectID] {
		doc, err := m.docs.Get(context.Background(), id)
		if err == nil {
			out = append(out, *doc)
		}
	}
	return out, nil
}

type mockConversationService struct {
	conversations []domain.Conversation
	messages      map[string][]domain.Message
	lastLimit     int
}

func (m *mockConversationService) Get(_ context.Context, id string) (*domain.Conversation, error) {
	for i := range m.conversations {
		if m.conversations[i].ID == id {
			return &m.conversations[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockConversationService) List(_ context.Context, projectID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, c := range m.conversations {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockConversationService) History(_ context.Context, id string, limit int) ([]domain.Message, error) {
	m.lastLimit = limit
	return m.messages[id], nil
}

type mockCacheAdmin struct {
	stats       domain.CacheStats
	health      domain.CacheHealth
	cleared     int
	lastPattern string
	err         error
}

func (m *mockCacheAdmin) Stats(context.Context) domain.CacheStats   { return m.stats }
func (m *mockCacheAdmin) Health(context.Context) domain.CacheHealth { return m.health }

func (m *mockCacheAdmin) Clear(_ context.Context, pattern string) (int, error) {
	m.lastPattern = pattern
	if m.err != nil {
		return 0, m.err
	}
	return m.cleared, nil
}

type mockSettingsService struct {
	settings *domain.AppSettings
	values   map[string]string
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.settings, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if key == "bogus" {
		return domain.ErrInvalidInput
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"retrieval.top_k", "cache.backend"}
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// testServices is the set of mocks installed by setupTestServices.
type testServices struct {
	query         *mockQueryService
	ingest        *mockIngestService
	embeddings    *mockEmbeddingAdmin
	documents     *mockDocumentService
	projects      *mockProjectService
	conversations *mockConversationService
	cache         *mockCacheAdmin
	settings      *mockSettingsService
}

var mocks *testServices

func newTestServices() *testServices {
	page := 3
	docs := &mockDocumentService{
		docs: []domain.Document{
			{
				ID:         "doc-1",
				Title:      "Test Document 1",
				Content:    "Alpha beta gamma.",
				SourceType: domain.SourceTypeText,
				URI:        "/notes/one.txt",
				Status:     domain.DocumentStatusReady,
				CreatedAt:  testTime,
				UpdatedAt:  testTime,
			},
			{
				ID:         "doc-2",
				Title:      "Test Document 2",
				Content:    "A report.",
				SourceType: domain.SourceTypePDF,
				Status:     domain.DocumentStatusError,
				Error:      "no chunks produced",
				Source:     domain.SourceMetadata{Pages: []domain.Page{{PageNum: 1, Text: "A"}, {PageNum: 2, Text: "report."}}},
				CreatedAt:  testTime,
				UpdatedAt:  testTime,
			},
		},
		chunks: map[string][]domain.Chunk{
			"doc-1": {
				{ID: "c0", DocumentID: "doc-1", Index: 0, StartChar: 0, EndChar: 11, Text: "Alpha beta"},
				{ID: "c1", DocumentID: "doc-1", Index: 1, StartChar: 11, EndChar: 17, Text: "gamma.", PageNum: &page, HeadingPath: "Intro"},
			},
		},
	}

	return &testServices{
		query: &mockQueryService{
			response: &domain.QueryResponse{
				Answer: "Alpha comes first [1].",
				Sources: []domain.Source{
					{ID: 1, DocumentID: "doc-1", DocumentTitle: "Test Document 1", TextPreview: "Alpha beta", Score: 0.91, PageNum: &page},
				},
				ChunksUsed: 1,
				ModelUsed:  "test-model",
				Usage:      domain.Usage{PromptTokens: 40, CompletionTokens: 8, TotalTokens: 48},
			},
			ranked: []domain.RankedChunk{
				{
					RetrievalCandidate: domain.RetrievalCandidate{
						Chunk:         domain.Chunk{ID: "c0", DocumentID: "doc-1", Text: "Alpha beta", HeadingPath: "Intro"},
						DocumentTitle: "Test Document 1",
						Similarity:    0.8,
					},
					Score: 0.75,
				},
			},
		},
		ingest: &mockIngestService{
			statuses: map[string]*domain.Document{
				"doc-1": {ID: "doc-1", Status: domain.DocumentStatusReady},
				"doc-2": {ID: "doc-2", Status: domain.DocumentStatusError, Error: "no chunks produced"},
			},
		},
		embeddings: &mockEmbeddingAdmin{
			stats: &domain.EmbeddingStats{
				TotalEmbeddings: 3,
				TotalChunks:     4,
				ReadyDocuments:  1,
				Coverage:        75,
				Model:           "hash-256",
				Dimension:       256,
				PerDocument:     map[string]int{"doc-2": 1, "doc-1": 2},
			},
			embedded: 2,
		},
		documents: docs,
		projects: &mockProjectService{
			projects: map[string]*domain.Project{
				"proj-1": {ID: "proj-1", Name: "Research", Description: "papers", CreatedAt: testTime},
			},
			members: map[string][]string{"proj-1": {"doc-1"}},
			docs:    docs,
		},
		conversations: &mockConversationService{
			conversations: []domain.Conversation{
				{ID: "conv-1", ProjectID: "proj-1", Title: "What is alpha?", UpdatedAt: testTime},
			},
			messages: map[string][]domain.Message{
				"conv-1": {
					{ID: "m1", ConversationID: "conv-1", Role: domain.RoleUser, Content: "What is alpha?", CreatedAt: testTime},
					{
						ID:             "m2",
						ConversationID: "conv-1",
						Role:           domain.RoleAssistant,
						Content:        "Alpha comes first [1].",
						Citations:      []domain.Source{{ID: 1, DocumentTitle: "Test Document 1"}},
						Model:          "test-model",
						TokensUsed:     48,
						CreatedAt:      testTime,
					},
				},
			},
		},
		cache: &mockCacheAdmin{
			stats:   domain.CacheStats{Backend: domain.CacheBackendMemory, Hits: 3, Misses: 1, Sets: 4, Keys: 4},
			health:  domain.CacheHealth{Backend: domain.CacheBackendMemory, Healthy: true},
			cleared: 4,
		},
		settings: &mockSettingsService{
			settings: func() *domain.AppSettings { s := domain.DefaultAppSettings(); return &s }(),
			values:   make(map[string]string),
		},
	}
}

// setupTestServices installs fresh mocks and returns a function restoring
// the unconfigured state.
func setupTestServices() func() {
	mocks = newTestServices()
	SetServices(&Services{
		Query:         mocks.query,
		Ingest:        mocks.ingest,
		Embeddings:    mocks.embeddings,
		Documents:     mocks.documents,
		Projects:      mocks.projects,
		Conversations: mocks.conversations,
		Cache:         mocks.cache,
		Settings:      mocks.settings,
		NewLoader: func(projectID string) *loader.Loader {
			return loader.New(normalisers.Defaults(), loader.WithProject(projectID))
		},
	})
	return func() {
		SetServices(nil)
		settingsService = nil
		bootstrapErr = nil
		mocks = nil
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag to its default. Cobra keeps parsed values
// in package variables between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// Root command tests

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "docqa", rootCmd.Use)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{
		"query", "search", "ingest", "document", "project",
		"conversation", "embeddings", "cache", "config", "mcp", "tui", "version",
	} {
		assert.Contains(t, names, want)
	}
}

func TestSetServices_NilClearsServices(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	SetServices(nil)

	assert.Nil(t, queryService)
	assert.Nil(t, documentService)
	assert.Nil(t, newLoader)
	assert.NotNil(t, settingsService, "settings survive a reset")
}

func TestPreRun_BootstrapsOnFirstUse(t *testing.T) {
	defer setupTestServices()()
	SetServices(nil)

	calls := 0
	released := false
	SetBootstrap(func(context.Context) (*Services, func() error, error) {
		calls++
		return &Services{Cache: mocks.cache}, func() error { released = true; return nil }, nil
	})
	defer SetBootstrap(nil)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"cache", "clear"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Equal(t, 1, calls)
	assert.True(t, released)
	assert.Contains(t, buf.String(), "Removed 4 entries.")
}

func TestPreRun_BootstrapFailure(t *testing.T) {
	defer setupTestServices()()
	SetServices(nil)

	SetBootstrap(func(context.Context) (*Services, func() error, error) {
		return nil, nil, errMock
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "cache", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
	assert.ErrorIs(t, err, errMock)
}

func TestPreRun_SkipsBootstrapForVersion(t *testing.T) {
	SetBootstrap(func(context.Context) (*Services, func() error, error) {
		t.Fatal("bootstrap should not run")
		return nil, nil, nil
	})
	defer SetBootstrap(nil)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docqa version")
}

func TestNotConfigured_IncludesBootstrapError(t *testing.T) {
	bootstrapErr = errMock
	defer func() { bootstrapErr = nil }()

	err := notConfigured("query")
	assert.Contains(t, err.Error(), "query service not configured")
	assert.ErrorIs(t, err, errMock)
}

func TestRequiresServices(t *testing.T) {
	assert.True(t, requiresServices(documentListCmd))
	assert.True(t, requiresServices(queryCmd))
	assert.False(t, requiresServices(versionCmd))
	assert.False(t, requiresServices(settingsShowCmd))
}
