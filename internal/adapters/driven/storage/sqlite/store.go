package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// jsonNull is what json.Marshal produces for a nil map or pointer.
const jsonNull = "null"

// Store owns the docqa database. The per-port stores share its connection.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database in dataDir and migrates it.
// If dataDir is empty, defaults to ~/.docqa/data/docqa.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docqa", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "docqa.db")

	// Foreign keys are a per-connection pragma, so they go in the DSN
	// rather than a one-off Exec on whichever connection the pool hands out.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(context.Background(), migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// EmbeddingStore returns an EmbeddingStore interface backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{store: s}
}

// ProjectStore returns a ProjectStore interface backed by this store.
func (s *Store) ProjectStore() driven.ProjectStore {
	return &projectStore{store: s}
}

// ConversationStore returns a ConversationStore interface backed by this store.
func (s *Store) ConversationStore() driven.ConversationStore {
	return &conversationStore{store: s}
}

// ==================== Documents and chunks ====================

type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, title, content, source_type, uri, source, status, error, created_at, updated_at`

const chunkColumns = `id, document_id, chunk_index, start_char, end_char, text, page_num,
	heading_path, section, timestamp_start, timestamp_end, extra, created_at`

// SaveDocument upserts doc by ID.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	sourceJSON, err := json.Marshal(doc.Source)
	if err != nil {
		return fmt.Errorf("marshalling source metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			source_type = excluded.source_type,
			uri = excluded.uri,
			source = excluded.source,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, doc.Content, string(doc.SourceType), doc.URI, string(sourceJSON),
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, err
}

// ListDocuments returns all documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// UpdateStatus sets the ingestion status and error message.
func (s *documentStore) UpdateStatus(
	ctx context.Context, id string, status domain.DocumentStatus, errMsg string,
) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, string(status), errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return requireAffected(result, "document", id)
}

// DeleteDocument removes a document. Chunks, embeddings and project
// memberships go with it through ON DELETE CASCADE.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(result, "document", id)
}

// ReplaceChunks discards the document's chunks and embeddings and stores
// chunks in a single transaction.
func (s *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		chunk := &chunks[i]
		extraJSON, err := json.Marshal(chunk.Extra)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		createdAt := chunk.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Index,
			chunk.StartChar, chunk.EndChar, chunk.Text, nullInt(chunk.PageNum),
			chunk.HeadingPath, chunk.Section, nullFloat(chunk.TimestampStart),
			nullFloat(chunk.TimestampEnd), string(extraJSON), createdAt); err != nil {
			return fmt.Errorf("saving chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks
		WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks WHERE id = ?
	`, id)

	chunk, err := scanChunk(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	return chunk, err
}

// CountChunks returns the number of chunks across all documents.
func (s *documentStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// ==================== Embedding Store ====================

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// SaveEmbeddings stores embeddings in one transaction. An embedding for
// an unknown chunk aborts the whole batch.
func (s *embeddingStore) SaveEmbeddings(ctx context.Context, embeddings []domain.Embedding) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	check, err := tx.PrepareContext(ctx, "SELECT 1 FROM chunks WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer check.Close()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (id, chunk_id, vector, vector_json, dimension, model, normalized, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			id = excluded.id,
			vector = excluded.vector,
			vector_json = excluded.vector_json,
			dimension = excluded.dimension,
			model = excluded.model,
			normalized = excluded.normalized,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range embeddings {
		e := &embeddings[i]

		var exists int
		err := check.QueryRowContext(ctx, e.ChunkID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("embedding for chunk %s: %w", e.ChunkID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking chunk: %w", err)
		}

		vectorJSON, err := vectorToJSON(e.Vector)
		if err != nil {
			return err
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.ChunkID, float32SliceToBytes(e.Vector),
			vectorJSON, len(e.Vector), e.Model, e.Normalized, createdAt); err != nil {
			return fmt.Errorf("saving embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetEmbeddings returns the embeddings of a document's chunks keyed by chunk ID.
func (s *embeddingStore) GetEmbeddings(ctx context.Context, documentID string) (map[string]domain.Embedding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.id, e.chunk_id, e.vector, e.vector_json, e.model, e.normalized, e.created_at
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE c.document_id = ?
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.Embedding)
	for rows.Next() {
		var e domain.Embedding
		var blob []byte
		var vectorJSON string
		if err := rows.Scan(&e.ID, &e.ChunkID, &blob, &vectorJSON, &e.Model, &e.Normalized, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if e.Vector, err = decodeVector(blob, vectorJSON); err != nil {
			return nil, err
		}
		result[e.ChunkID] = e
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	return result, nil
}

// DeleteEmbeddings removes every embedding of a document's chunks.
func (s *embeddingStore) DeleteEmbeddings(ctx context.Context, documentID string) (int, error) {
	result, err := s.store.db.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)
	`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted embeddings: %w", err)
	}
	return int(n), nil
}

// ListEmbeddedChunks returns embedded chunks of ready documents, ordered
// by document ID and chunk index. A nil slice means every ready document;
// an empty one means none.
func (s *embeddingStore) ListEmbeddedChunks(
	ctx context.Context, documentIDs []string,
) ([]domain.EmbeddedChunk, error) {
	if documentIDs != nil && len(documentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.start_char, c.end_char, c.text, c.page_num,
			c.heading_path, c.section, c.timestamp_start, c.timestamp_end, c.extra, c.created_at,
			d.title, e.vector, e.vector_json
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		JOIN embeddings e ON e.chunk_id = c.id
		WHERE d.status = ?`
	args := []any{string(domain.DocumentStatusReady)}

	if documentIDs != nil {
		query += " AND d.id IN (?" + strings.Repeat(", ?", len(documentIDs)-1) + ")"
		for _, id := range documentIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY c.document_id, c.chunk_index"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embedded chunks: %w", err)
	}
	defer rows.Close()

	var result []domain.EmbeddedChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var ec domain.EmbeddedChunk
		var blob []byte
		var vectorJSON string
		if err := scanChunkInto(rows, &ec.Chunk, &ec.DocumentTitle, &blob, &vectorJSON); err != nil {
			return nil, err
		}
		if ec.Vector, err = decodeVector(blob, vectorJSON); err != nil {
			return nil, err
		}
		result = append(result, ec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedded chunks: %w", err)
	}

	return result, nil
}

// BumpEmbeddingGeneration moves the document to a generation it has never
// had. The clock keeps generations increasing across delete and re-create.
func (s *embeddingStore) BumpEmbeddingGeneration(ctx context.Context, documentID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET embedding_generation = MAX(embedding_generation + 1, ?)
		WHERE id = ?
	`, time.Now().UnixNano(), documentID)
	if err != nil {
		return fmt.Errorf("bumping embedding generation: %w", err)
	}
	return nil
}

// EmbeddingGenerations returns the generation of each stored document.
func (s *embeddingStore) EmbeddingGenerations(ctx context.Context, documentIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(documentIDs))
	if len(documentIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(documentIDs))
	for i, id := range documentIDs {
		args[i] = id
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, embedding_generation FROM documents
		WHERE id IN (?`+strings.Repeat(", ?", len(documentIDs)-1)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embedding generations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var gen int64
		if err := rows.Scan(&id, &gen); err != nil {
			return nil, fmt.Errorf("scanning embedding generation: %w", err)
		}
		result[id] = gen
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedding generations: %w", err)
	}
	return result, nil
}

// CountEmbeddings returns the total and the per-document embedding counts.
func (s *embeddingStore) CountEmbeddings(ctx context.Context) (int, map[string]int, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.document_id, COUNT(*)
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		GROUP BY c.document_id
	`)
	if err != nil {
		return 0, nil, fmt.Errorf("counting embeddings: %w", err)
	}
	defer rows.Close()

	total := 0
	per := make(map[string]int)
	for rows.Next() {
		var docID string
		var n int
		if err := rows.Scan(&docID, &n); err != nil {
			return 0, nil, fmt.Errorf("scanning embedding count: %w", err)
		}
		per[docID] = n
		total += n
	}

	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterating embedding counts: %w", err)
	}

	return total, per, nil
}

// ==================== Project Store ====================

// projectStore implements driven.ProjectStore.
type projectStore struct {
	store *Store
}

var _ driven.ProjectStore = (*projectStore)(nil)

// SaveProject stores or updates a project.
func (s *projectStore) SaveProject(ctx context.Context, project *domain.Project) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, project.ID, project.Name, project.Description, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *projectStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *projectStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at FROM projects
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}

	return projects, nil
}

// DeleteProject removes a project. Memberships, conversations and
// messages are removed by ON DELETE CASCADE.
func (s *projectStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return requireAffected(result, "project", id)
}

// AddDocument links a document to a project. Linking twice is a no-op.
func (s *projectStore) AddDocument(ctx context.Context, projectID, documentID string) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO project_documents (project_id, document_id, added_at)
		VALUES (?, ?, ?)
	`, projectID, documentID, time.Now())
	if err != nil {
		return fmt.Errorf("adding document to project: %w", err)
	}
	return nil
}

// RemoveDocument unlinks a document from a project.
func (s *projectStore) RemoveDocument(ctx context.Context, projectID, documentID string) error {
	result, err := s.store.db.ExecContext(ctx, `
		DELETE FROM project_documents WHERE project_id = ? AND document_id = ?
	`, projectID, documentID)
	if err != nil {
		return fmt.Errorf("removing document from project: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking removed rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s in project %s: %w", documentID, projectID, domain.ErrNotFound)
	}
	return nil
}

// ListDocumentIDs returns the IDs of documents linked to a project in
// the order they were added.
func (s *projectStore) ListDocumentIDs(ctx context.Context, projectID string) ([]string, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id FROM project_documents
		WHERE project_id = ?
		ORDER BY rowid
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying project documents: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// ProjectsForDocument returns the IDs of projects containing a document.
func (s *projectStore) ProjectsForDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT project_id FROM project_documents
		WHERE document_id = ?
		ORDER BY project_id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying document projects: %w", err)
	}
	defer rows.Close()

	ids, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// ==================== Conversation Store ====================

// conversationStore implements driven.ConversationStore.
type conversationStore struct {
	store *Store
}

var _ driven.ConversationStore = (*conversationStore)(nil)

// SaveConversation stores or updates a conversation.
func (s *conversationStore) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO conversations (id, project_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at
	`, conv.ID, conv.ProjectID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *conversationStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, created_at, updated_at FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &c, nil
}

// ListConversations returns a project's conversations, newest first.
func (s *conversationStore) ListConversations(ctx context.Context, projectID string) ([]domain.Conversation, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, project_id, title, created_at, updated_at FROM conversations
		WHERE project_id = ?
		ORDER BY updated_at DESC, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var result []domain.Conversation //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	return result, nil
}

// AddMessage appends a message to its conversation.
func (s *conversationStore) AddMessage(ctx context.Context, msg *domain.Message) error {
	if _, err := s.GetConversation(ctx, msg.ConversationID); err != nil {
		return err
	}

	citations := msg.Citations
	if citations == nil {
		citations = []domain.Source{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, citations, model, tokens_used, created_at)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?
		FROM messages WHERE conversation_id = ?
	`, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(citationsJSON),
		msg.Model, msg.TokensUsed, createdAt, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the latest messages, oldest first.
// A limit of zero or less returns every message.
func (s *conversationStore) RecentMessages(
	ctx context.Context, conversationID string, limit int,
) ([]domain.Message, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, citations, model, tokens_used, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.Message
		var role, citationsJSON string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &citationsJSON,
			&m.Model, &m.TokensUsed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = domain.Role(role)
		if citationsJSON != "" && citationsJSON != jsonNull && citationsJSON != "[]" {
			if err := json.Unmarshal([]byte(citationsJSON), &m.Citations); err != nil {
				return nil, fmt.Errorf("unmarshaling citations: %w", err)
			}
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	// Fetched newest first for LIMIT; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ==================== Encoding ====================

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// float32SliceToBytes packs a vector as little-endian float32s.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice is the inverse of float32SliceToBytes.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// vectorToJSON renders a vector as a JSON array. float32 components are
// formatted with 32-bit precision, so parsing them back is exact.
func vectorToJSON(v []float32) (string, error) {
	if v == nil {
		v = []float32{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling vector: %w", err)
	}
	return string(data), nil
}

// decodeVector prefers the binary column and falls back to the JSON one.
func decodeVector(blob []byte, vectorJSON string) ([]float32, error) {
	if len(blob) > 0 {
		return bytesToFloat32Slice(blob), nil
	}
	if vectorJSON == "" || vectorJSON == jsonNull || vectorJSON == "[]" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(vectorJSON), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling vector: %w", err)
	}
	return v, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// requireAffected maps an update or delete that touched nothing to ErrNotFound.
func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var sourceType, status, sourceJSON string

	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &sourceType, &doc.URI,
		&sourceJSON, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.SourceType = domain.SourceType(sourceType)
	doc.Status = domain.DocumentStatus(status)

	if sourceJSON != "" && sourceJSON != jsonNull {
		if err := json.Unmarshal([]byte(sourceJSON), &doc.Source); err != nil {
			return nil, fmt.Errorf("unmarshaling source metadata: %w", err)
		}
	}

	return &doc, nil
}

// scanChunk scans a single chunk row.
func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	if err := scanChunkInto(row, &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// scanChunkInto scans the chunk columns followed by any extra destinations.
func scanChunkInto(row rowScanner, chunk *domain.Chunk, extra ...any) error {
	var pageNum sql.NullInt64
	var tsStart, tsEnd sql.NullFloat64
	var extraJSON string

	dest := []any{&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.StartChar, &chunk.EndChar,
		&chunk.Text, &pageNum, &chunk.HeadingPath, &chunk.Section, &tsStart, &tsEnd,
		&extraJSON, &chunk.CreatedAt}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("scanning chunk: %w", err)
	}

	if pageNum.Valid {
		chunk.PageNum = domain.IntPtr(int(pageNum.Int64))
	}
	if tsStart.Valid {
		chunk.TimestampStart = domain.Float64Ptr(tsStart.Float64)
	}
	if tsEnd.Valid {
		chunk.TimestampEnd = domain.Float64Ptr(tsEnd.Float64)
	}

	if extraJSON != "" && extraJSON != jsonNull && extraJSON != "{}" {
		if err := json.Unmarshal([]byte(extraJSON), &chunk.Extra); err != nil {
			return fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
	}

	return nil
}

// scanStrings collects a single string column.
func scanStrings(rows *sql.Rows) ([]string, error) {
	result := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ids: %w", err)
	}
	return result, nil
}
