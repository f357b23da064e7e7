package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"m/001_create_items.up.sql":   {Data: []byte(`CREATE TABLE items (id INTEGER PRIMARY KEY)`)},
	"m/001_create_items.down.sql": {Data: []byte(`DROP TABLE items`)},
	"m/002_add_name.up.sql":       {Data: []byte(`ALTER TABLE items ADD COLUMN name TEXT`)},
	"m/002_add_name.down.sql":     {Data: []byte(`ALTER TABLE items DROP COLUMN name`)},
	"m/README":                    {Data: []byte(`ignored`)},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFSProviderGetMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testMigrations, "m", "").GetMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	byVersion := map[int]Migration{}
	for _, m := range migrations {
		byVersion[m.Version] = m
	}
	assert.Equal(t, "create items", byVersion[1].Name)
	assert.Contains(t, byVersion[2].Up, "ADD COLUMN name")
	assert.Contains(t, byVersion[2].Down, "DROP COLUMN name")
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "m", "test_migrations"), nil)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, m.MigrateUp(ctx))
	v, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = db.Exec(`INSERT INTO items (id, name) VALUES (1, 'a')`)
	require.NoError(t, err)

	// Applying again is a no-op
	require.NoError(t, m.MigrateUp(ctx))

	require.NoError(t, m.MigrateDown(ctx, 1))
	v, err = m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = db.Exec(`INSERT INTO items (id, name) VALUES (2, 'b')`)
	assert.Error(t, err)

	require.NoError(t, m.MigrateTo(ctx, 0))
	v, err = m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestMigrationWithoutDownFails(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"m/001_only_up.up.sql": {Data: []byte(`CREATE TABLE t (id INTEGER)`)},
	}
	m := NewMigrator(openDB(t), NewFSProvider(fsys, "m", ""), nil)
	require.NoError(t, m.MigrateUp(ctx))
	assert.ErrorContains(t, m.MigrateDown(ctx, 0), "has no down SQL")
}
