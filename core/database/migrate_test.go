package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/menubot/core/config"
)

func TestListMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.up.sql"), 0o700))

	files := listMigrationFiles(dir)
	assert.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, files)
	assert.Nil(t, listMigrationFiles(filepath.Join(dir, "missing")))
}

func TestCountApplied(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	assert.Equal(t, 3, countApplied(files, 0, 3))
	assert.Equal(t, 1, countApplied(files, 2, 3))
	assert.Equal(t, 2, countApplied(files, 3, 1))
	assert.Equal(t, 0, countApplied(files, 2, 2))
}

func TestDSNAndURL(t *testing.T) {
	cfg := coreconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "menubot", SSLMode: "disable",
	}
	assert.Equal(t, "user=bot password=p@ss host=db port=5432 dbname=menubot sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/menubot?sslmode=disable", URL(cfg))
}

func TestResolveDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "m")
	got, err := resolveDir(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	got, err = resolveDir("")
	require.NoError(t, err)
	assert.Equal(t, "migrations", filepath.Base(got))
}
