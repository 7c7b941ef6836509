package mcp

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	response *domain.QueryResponse
	ranked   []domain.RankedChunk
	err      error
	lastReq  domain.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.lastReq = req
	return m.response, m.err
}

func (m *mockQueryService) Retrieve(_ context.Context, req domain.QueryRequest) ([]domain.RankedChunk, error) {
	m.lastReq = req
	return m.ranked, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockProjectService is a mock implementation of driving.ProjectService.
type mockProjectService struct {
	projects  []domain.Project
	documents []domain.Document
	err       error
	lastID    string
}

func (m *mockProjectService) Create(_ context.Context, _, _ string) (*domain.Project, error) {
	return nil, m.err
}

func (m *mockProjectService) Get(_ context.Context, _ string) (*domain.Project, error) {
	return nil, m.err
}

func (m *mockProjectService) List(_ context.Context) ([]domain.Project, error) {
	return m.projects, m.err
}

func (m *mockProjectService) Update(_ context.Context, _, _, _ string) (*domain.Project, error) {
	return nil, m.err
}

func (m *mockProjectService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockProjectService) AddDocument(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockProjectService) RemoveDocument(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockProjectService) Documents(_ context.Context, projectID string) ([]domain.Document, error) {
	m.lastID = projectID
	return m.documents, m.err
}

// mockCacheAdmin is a mock implementation of driving.CacheAdmin.
type mockCacheAdmin struct {
	stats domain.CacheStats
}

func (m *mockCacheAdmin) Stats(_ context.Context) domain.CacheStats {
	return m.stats
}

func (m *mockCacheAdmin) Health(_ context.Context) domain.CacheHealth {
	return domain.CacheHealth{Backend: m.stats.Backend, Healthy: true}
}

func (m *mockCacheAdmin) Clear(_ context.Context, _ string) (int, error) {
	return 0, nil
}
