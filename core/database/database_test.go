package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalizePostgresDefaults(t *testing.T) {
	cfg := Config{Host: "db", Name: "members", User: "bot", Password: "p@ss"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/members?sslmode=disable", cfg.MigrateURL())
}

func TestConfigNormalizeSQLite(t *testing.T) {
	cfg := Config{Driver: "SQLite", Path: "/var/lib/membergate/members.db", MaxConnections: 8}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, 1, cfg.MaxConnections)
	assert.Equal(t, "sqlite:///var/lib/membergate/members.db", cfg.MigrateURL())

	assert.Error(t, (&Config{Driver: "sqlite"}).Normalize())
	assert.Error(t, (&Config{Driver: "mysql"}).Normalize())
}

func TestUpFilesAndPending(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_index.up.sql":    {Data: []byte("SELECT 1;")},
		"000001_create.up.sql":   {Data: []byte("SELECT 1;")},
		"000001_create.down.sql": {Data: []byte("SELECT 1;")},
	}
	files := upFiles(fsys)
	assert.Equal(t, []string{"000001_create.up.sql", "000002_index.up.sql"}, files)
	assert.Equal(t, []string{"000002_index.up.sql"}, pending(files, 1, 2))
	assert.Nil(t, pending(files, 2, 2))
	assert.Equal(t, uint64(12), version("000012_members.up.sql"))
}

func TestRunMigrationsSQLite(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "members.db")}
	fsys := fstest.MapFS{
		"000001_things.up.sql":   {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
		"000001_things.down.sql": {Data: []byte("DROP TABLE things;")},
	}
	require.NoError(t, RunMigrations(cfg, fsys))
	// second run is a no-op
	require.NoError(t, RunMigrations(cfg, fsys))

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM things"))
	assert.Equal(t, 0, n)
}
