package sqlite

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite/migrations"
)

func script(sql string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(sql)}
}

func TestLoadMigrations_OrdersByVersion(t *testing.T) {
	got, err := loadMigrations(fstest.MapFS{
		"010_tags.up.sql":    script("CREATE TABLE tags (id TEXT);"),
		"002_notes.up.sql":   script("CREATE TABLE notes (id TEXT);"),
		"002_notes.down.sql": script("DROP TABLE notes;"),
		"README.md":          script("ignored"),
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, migration{version: 2, name: "002_notes.up.sql", script: "CREATE TABLE notes (id TEXT);"}, got[0])
	assert.Equal(t, 10, got[1].version, "10 sorts after 2 numerically")
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"no version":        {"initial.up.sql": script("")},
		"zero version":      {"000_initial.up.sql": script("")},
		"duplicate version": {"001_a.up.sql": script(""), "1_b.up.sql": script("")},
	}

	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrations(fsys)
			assert.Error(t, err)
		})
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	got, err := loadMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 1, got[0].version)
}

func TestMigrate_AppliesOnlyNewer(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Positive(t, base)

	next := fstest.MapFS{
		"001_initial.up.sql": script("THIS IS NOT SQL"),
		"900_labels.up.sql":  script("CREATE TABLE labels (name TEXT PRIMARY KEY);"),
	}
	require.NoError(t, store.migrate(ctx, next), "applied versions are skipped")

	v, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 900, v)

	_, err = store.db.ExecContext(ctx, "INSERT INTO labels (name) VALUES ('x')")
	assert.NoError(t, err)
}

func TestMigrate_FailedScriptIsNotRecorded(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.migrate(ctx, fstest.MapFS{
		"950_broken.up.sql": script("CREATE TABLE half (id TEXT); NOT SQL;"),
	})
	require.ErrorContains(t, err, "950_broken.up.sql")

	v, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Less(t, v, 950)

	var tables int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'").Scan(&tables))
	assert.Zero(t, tables, "the transaction rolled back")
}
