package database

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	require.NoError(t, configureGoose(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, int64(1), migrations[0].Version)

	body, err := migrationFiles.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	sql := string(body)
	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "-- +goose Down")
	for _, table := range []string{"madrasahs", "students", "transactions", "system_settings", "sms_ledger_entries"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestGooseLogger(t *testing.T) {
	var buf bytes.Buffer
	l := gooseLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Printf("OK   %s (%v)\n", "0001_init.sql", "12ms")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), `msg="OK   0001_init.sql (12ms)"`)

	buf.Reset()
	l.Fatalf("failed to run %s", "0002_x.sql")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "failed to run 0002_x.sql")
}
