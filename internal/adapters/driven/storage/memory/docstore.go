package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore  = (*DocumentStore)(nil)
	_ driven.EmbeddingStore = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore
// and driven.EmbeddingStore.
type DocumentStore struct {
	mu         sync.RWMutex
	documents  map[string]domain.Document
	chunks     map[string][]domain.Chunk      // by document ID, ordered by index
	embeddings map[string]domain.Embedding    // by chunk ID
	chunkDoc   map[string]string              // chunk ID -> document ID
	generation map[string]int64               // by document ID
	failSave   func([]domain.Embedding) error // test hook
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents:  make(map[string]domain.Document),
		chunks:     make(map[string][]domain.Chunk),
		embeddings: make(map[string]domain.Embedding),
		chunkDoc:   make(map[string]string),
		generation: make(map[string]int64),
	}
}

// FailSaveEmbeddings makes SaveEmbeddings call fn first and abort when
// it returns an error. Pass nil to clear.
func (s *DocumentStore) FailSaveEmbeddings(fn func([]domain.Embedding) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = fn
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// UpdateStatus sets the ingestion status and error message.
func (s *DocumentStore) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	doc.Status = status
	doc.Error = errMsg
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes a document, its chunks and their embeddings.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	s.dropChunksLocked(id)
	delete(s.documents, id)
	return nil
}

// ReplaceChunks discards the document's chunks and embeddings and stores chunks.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[documentID]; !ok {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	s.dropChunksLocked(documentID)

	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })
	for _, c := range stored {
		s.chunkDoc[c.ID] = documentID
	}
	s.chunks[documentID] = stored
	return nil
}

func (s *DocumentStore) dropChunksLocked(documentID string) {
	for _, c := range s.chunks[documentID] {
		delete(s.embeddings, c.ID)
		delete(s.chunkDoc, c.ID)
	}
	delete(s.chunks, documentID)
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[documentID]
	result := make([]domain.Chunk, len(chunks))
	copy(result, chunks)
	return result, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.chunkDoc[id]
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	for _, c := range s.chunks[docID] {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
}

// CountChunks returns the number of chunks across all documents.
func (s *DocumentStore) CountChunks(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunkDoc), nil
}

// SaveEmbeddings stores embeddings all-or-nothing.
func (s *DocumentStore) SaveEmbeddings(_ context.Context, embeddings []domain.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		if err := s.failSave(embeddings); err != nil {
			return err
		}
	}
	for _, e := range embeddings {
		if _, ok := s.chunkDoc[e.ChunkID]; !ok {
			return fmt.Errorf("embedding for chunk %s: %w", e.ChunkID, domain.ErrNotFound)
		}
	}
	for _, e := range embeddings {
		e.Vector = append([]float32(nil), e.Vector...)
		s.embeddings[e.ChunkID] = e
	}
	return nil
}

// GetEmbeddings returns the embeddings of a document's chunks keyed by chunk ID.
func (s *DocumentStore) GetEmbeddings(_ context.Context, documentID string) (map[string]domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]domain.Embedding)
	for _, c := range s.chunks[documentID] {
		if e, ok := s.embeddings[c.ID]; ok {
			result[c.ID] = e
		}
	}
	return result, nil
}

// DeleteEmbeddings removes every embedding of a document's chunks.
func (s *DocumentStore) DeleteEmbeddings(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks[documentID] {
		if _, ok := s.embeddings[c.ID]; ok {
			delete(s.embeddings, c.ID)
			n++
		}
	}
	return n, nil
}

// ListEmbeddedChunks returns embedded chunks of ready documents.
func (s *DocumentStore) ListEmbeddedChunks(_ context.Context, documentIDs []string) ([]domain.EmbeddedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := append([]string(nil), documentIDs...)
	if documentIDs == nil {
		for id := range s.documents {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var result []domain.EmbeddedChunk
	for _, id := range ids {
		doc, ok := s.documents[id]
		if !ok || doc.Status != domain.DocumentStatusReady {
			continue
		}
		for _, c := range s.chunks[id] {
			e, ok := s.embeddings[c.ID]
			if !ok {
				continue
			}
			result = append(result, domain.EmbeddedChunk{
				Chunk:         c,
				DocumentTitle: doc.Title,
				Vector:        e.Vector,
			})
		}
	}
	return result, nil
}

// CountEmbeddings returns the total and the per-document embedding counts.
func (s *DocumentStore) CountEmbeddings(_ context.Context) (int, map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	per := make(map[string]int)
	for chunkID := range s.embeddings {
		per[s.chunkDoc[chunkID]]++
	}
	return len(s.embeddings), per, nil
}

// BumpEmbeddingGeneration increments the document's generation. It is kept
// when the document is deleted.
func (s *DocumentStore) BumpEmbeddingGeneration(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation[documentID]++
	return nil
}

// EmbeddingGenerations returns the generation of each stored document.
func (s *DocumentStore) EmbeddingGenerations(_ context.Context, documentIDs []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]int64, len(documentIDs))
	for _, id := range documentIDs {
		if _, ok := s.documents[id]; ok {
			result[id] = s.generation[id]
		}
	}
	return result, nil
}
