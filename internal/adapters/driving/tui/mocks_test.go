package tui

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

type mockQueryService struct {
	resp    *domain.QueryResponse
	err     error
	lastReq domain.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockQueryService) Retrieve(context.Context, domain.QueryRequest) ([]domain.RankedChunk, error) {
	return nil, nil
}

type mockDocumentService struct {
	docs   []domain.Document
	chunks []domain.Chunk
	err    error
}

func (m *mockDocumentService) List(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetChunks(context.Context, string) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

func (m *mockDocumentService) Delete(context.Context, string) error {
	return m.err
}
