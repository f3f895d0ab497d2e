package sink

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresQueries_QuoteTable(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		expected string
	}{
		{name: "simple", table: "earthquakes", expected: `"earthquakes"`},
		{name: "with spaces", table: "my quakes", expected: `"my quakes"`},
		{name: "with quotes", table: `quake"s`, expected: `"quake""s"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, schemaQuery(tt.table), "CREATE TABLE IF NOT EXISTS "+tt.expected+" (")
			assert.Contains(t, insertQuery(tt.table), "INSERT INTO "+tt.expected+" (")
		})
	}
}

func TestPostgresQueries_Idempotent(t *testing.T) {
	q := insertQuery("earthquakes")

	assert.Contains(t, q, "ON CONFLICT (id) DO NOTHING")
	assert.Equal(t, 6, strings.Count(q, "$"), "one placeholder per column")
}

func TestPostgresSink_NotStarted(t *testing.T) {
	s := NewPostgresSink(testLogger(), PostgresConfig{TableName: "earthquakes"})

	err := s.Deliver(context.Background(), testBatch(`{"id":"us1"}`))
	require.Error(t, err)
	require.NoError(t, s.Stop())
}

// Runs against a real database when QUAKE_TEST_POSTGRES_DSN is set.
func TestPostgresSink_Integration(t *testing.T) {
	dsn := os.Getenv("QUAKE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUAKE_TEST_POSTGRES_DSN not set")
	}

	table := "quake_test_" + time.Now().UTC().Format("20060102150405")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := NewPostgresSink(testLogger(), PostgresConfig{ConnectionString: dsn, TableName: table})
	require.NoError(t, s.Start(ctx))

	t.Cleanup(func() {
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			_, _ = db.Exec("DROP TABLE IF EXISTS " + table)
			_ = db.Close()
		}
	})

	batch := testBatch(`{"id":"us1"}`, `{"id":"us2"}`)
	require.NoError(t, s.Deliver(ctx, batch))

	// Redelivery of the same events is absorbed by the primary key.
	require.NoError(t, s.Deliver(ctx, testBatch(`{"id":"us2"}`, `{"id":"us3"}`)))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count))
	assert.Equal(t, 3, count)

	require.NoError(t, s.Stop())
}
