package database

import (
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "r.db")

	db, err := OpenAndMigrate(Config{Path: path})
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO recipes (id, title, title_key) VALUES ('torta', 'Torta', 'torta')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenAndMigrate(Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM recipes`).Scan(&n))
	assert.Equal(t, 1, n, "migrating again keeps existing rows")
}

func TestMigrateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS recipes").WillReturnError(assert.AnError)
	assert.ErrorIs(t, Migrate(db), assert.AnError)
}

func TestDefaultConfigEnv(t *testing.T) {
	t.Setenv("RICETTARIO_DB_PATH", "")
	assert.Equal(t, DefaultPath, DefaultConfig().Path)

	t.Setenv("RICETTARIO_DB_PATH", "/tmp/x.db")
	assert.Equal(t, "/tmp/x.db", DefaultConfig().Path)
}

func TestSchemaHasBothTables(t *testing.T) {
	assert.Contains(t, Schema(), "CREATE TABLE IF NOT EXISTS recipes")
	assert.Contains(t, Schema(), "CREATE TABLE IF NOT EXISTS video_index")
}
