package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/loader"
	"github.com/custodia-labs/docqa/internal/normalisers"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [path...]", ingestCmd.Use)
	for _, name := range []string{"project", "title", "text", "wait", "watch"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), name)
	}
}

func TestIngestCmd_NothingToIngest(t *testing.T) {
	defer setupTestServices()()

	_, err := execute(t, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ingest")
}

func TestIngestCmd_Text(t *testing.T) {
	defer setupTestServices()()

	out, err := execute(t, "ingest", "--title", "Meeting", "--text", "We agreed to ship on Friday.", "-p", "proj-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued doc-1 (Meeting)")

	require.Len(t, mocks.ingest.submitted, 1)
	req := mocks.ingest.submitted[0]
	assert.Equal(t, "We agreed to ship on Friday.", req.Content)
	assert.Equal(t, "proj-1", req.ProjectID)
}

func TestIngestCmd_TextWait(t *testing.T) {
	defer setupTestServices()()

	out, err := execute(t, "ingest", "--text", "Short note.", "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "  doc-1 ready")
	assert.Contains(t, out, "1 ready, 0 failed")
}

func TestIngestCmd_WaitReportsFailures(t *testing.T) {
	defer setupTestServices()()
	mocks.ingest.statuses["doc-1"] = &domain.Document{
		ID:     "doc-1",
		Status: domain.DocumentStatusError,
		Error:  "no chunks produced",
	}

	out, err := execute(t, "ingest", "--text", "x", "-w")
	require.NoError(t, err)
	assert.Contains(t, out, "doc-1 error: no chunks produced")
	assert.Contains(t, out, "0 ready, 1 failed")
}

func TestIngestCmd_Directory(t *testing.T) {
	defer setupTestServices()()
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.txt", "Plain notes.")
	writeTestFile(t, dir, "guide/setup.md", "# Setup\n\nRun the installer.")
	writeTestFile(t, dir, ".hidden.txt", "Not for ingestion.")

	out, err := execute(t, "ingest", "-p", "proj-1", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "setup.md")
	assert.NotContains(t, out, ".hidden.txt")

	require.Len(t, mocks.ingest.submitted, 2)
	for _, req := range mocks.ingest.submitted {
		assert.Equal(t, "proj-1", req.ProjectID)
		assert.True(t, filepath.IsAbs(req.URI))
	}
}

func TestIngestCmd_TitleOverridesSingleFile(t *testing.T) {
	defer setupTestServices()()
	path := writeTestFile(t, t.TempDir(), "one.txt", "Only file.")

	_, err := execute(t, "ingest", "--title", "Custom", path)
	require.NoError(t, err)
	require.Len(t, mocks.ingest.submitted, 1)
	assert.Equal(t, "Custom", mocks.ingest.submitted[0].Title)
}

func TestIngestCmd_SubmitError(t *testing.T) {
	defer setupTestServices()()
	mocks.ingest.err = domain.ErrInvalidInput

	_, err := execute(t, "ingest", "--text", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ingest text")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestCmd_ServiceNotConfigured(t *testing.T) {
	SetServices(nil)

	_, err := execute(t, "ingest", "--text", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest service not configured")
}

func TestIngestCmd_LoaderNotConfigured(t *testing.T) {
	defer setupTestServices()()
	newLoader = nil

	_, err := execute(t, "ingest", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loader service not configured")
}

func TestMergeChange(t *testing.T) {
	tests := []struct {
		name     string
		prev     loader.ChangeType
		next     loader.ChangeType
		expected loader.ChangeType
	}{
		{name: "first event", prev: "", next: loader.ChangeUpdated, expected: loader.ChangeUpdated},
		{name: "created then written", prev: loader.ChangeCreated, next: loader.ChangeUpdated, expected: loader.ChangeCreated},
		{name: "created then deleted", prev: loader.ChangeCreated, next: loader.ChangeDeleted, expected: loader.ChangeDeleted},
		{name: "deleted then created", prev: loader.ChangeDeleted, next: loader.ChangeCreated, expected: loader.ChangeCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mergeChange(tt.prev, tt.next))
		})
	}
}

func newTestWatchSync(t *testing.T) *watchSync {
	t.Helper()
	s, err := newWatchSync(context.Background(), mocks.documents, mocks.ingest, loader.New(normalisers.Defaults()))
	require.NoError(t, err)
	return s
}

func TestWatchSync_IndexesExistingDocuments(t *testing.T) {
	defer setupTestServices()()

	s := newTestWatchSync(t)
	assert.Equal(t, map[string]string{filepath.Clean("/notes/one.txt"): "doc-1"}, s.byPath)
}

func TestWatchSync_ListError(t *testing.T) {
	defer setupTestServices()()
	mocks.documents.err = errMock

	_, err := newWatchSync(context.Background(), mocks.documents, mocks.ingest, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errMock)
}

func TestWatchSync_CreateThenUpdate(t *testing.T) {
	defer setupTestServices()()
	s := newTestWatchSync(t)
	ctx := context.Background()
	path := writeTestFile(t, t.TempDir(), "new.txt", "First version.")

	msg, err := s.apply(ctx, loader.Change{Type: loader.ChangeCreated, Path: path})
	require.NoError(t, err)
	assert.Equal(t, "Queued doc-1 (created "+path+")", msg)
	assert.Equal(t, "doc-1", s.byPath[path])

	require.NoError(t, os.WriteFile(path, []byte("Second version."), 0o600))
	msg, err = s.apply(ctx, loader.Change{Type: loader.ChangeUpdated, Path: path})
	require.NoError(t, err)
	assert.Equal(t, "Queued doc-2 (updated "+path+")", msg)

	// The previous version is removed before the new one is queued.
	assert.Equal(t, []string{"doc-1"}, mocks.documents.deleted)
	require.Len(t, mocks.ingest.submitted, 2)
	assert.Equal(t, "Second version.", mocks.ingest.submitted[1].Content)
	assert.Equal(t, "doc-2", s.byPath[path])
}

func TestWatchSync_Delete(t *testing.T) {
	defer setupTestServices()()
	s := newTestWatchSync(t)
	path := filepath.Clean("/notes/one.txt")

	msg, err := s.apply(context.Background(), loader.Change{Type: loader.ChangeDeleted, Path: path})
	require.NoError(t, err)
	assert.Equal(t, "Removed doc-1 ("+path+")", msg)
	assert.Equal(t, []string{"doc-1"}, mocks.documents.deleted)
	assert.NotContains(t, s.byPath, path)
	assert.Empty(t, mocks.ingest.submitted)
}

func TestWatchSync_DeleteUnknownPath(t *testing.T) {
	defer setupTestServices()()
	s := newTestWatchSync(t)

	msg, err := s.apply(context.Background(), loader.Change{Type: loader.ChangeDeleted, Path: "/elsewhere/x.txt"})
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Empty(t, mocks.documents.deleted)
}

func TestWatchSync_SkipsUnsupportedFiles(t *testing.T) {
	defer setupTestServices()()
	s := newTestWatchSync(t)
	path := writeTestFile(t, t.TempDir(), "blob.bin", "\x00\x01\x02\x03")

	msg, err := s.apply(context.Background(), loader.Change{Type: loader.ChangeCreated, Path: path})
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Empty(t, mocks.ingest.submitted)
}
