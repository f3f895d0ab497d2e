package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/record"
)

var _ Sink = (*PostgresSink)(nil)

// PostgresSink inserts events into a table keyed by event id. Redelivered
// events are ignored by the primary key.
type PostgresSink struct {
	log logrus.FieldLogger
	cfg PostgresConfig
	db  *sql.DB
}

// NewPostgresSink creates a postgres sink. The connection is opened on Start.
func NewPostgresSink(log logrus.FieldLogger, cfg PostgresConfig) *PostgresSink {
	return &PostgresSink{
		log: log.WithField("component", "sink_postgres"),
		cfg: cfg,
	}
}

func (s *PostgresSink) Start(ctx context.Context) error {
	db, err := sql.Open("postgres", s.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaQuery(s.cfg.TableName)); err != nil {
		_ = db.Close()

		return fmt.Errorf("init schema: %w", err)
	}

	s.db = db

	s.log.WithField("table", s.cfg.TableName).Info("Postgres sink started")

	return nil
}

func (s *PostgresSink) Stop() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func (s *PostgresSink) Deliver(ctx context.Context, batch record.Batch) error {
	if s.db == nil {
		return fmt.Errorf("postgres sink not started")
	}

	events := Events(batch)
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertQuery(s.cfg.TableName))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0

	for _, ev := range events {
		res, err := stmt.ExecContext(
			ctx,
			ev.ID,
			ev.BatchID,
			ev.WindowStart,
			ev.WindowEnd,
			ev.SourceURL,
			[]byte(ev.Record),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}

		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"events":     len(events),
		"inserted":   inserted,
		"duplicates": len(events) - inserted,
	}).Debug("Inserted batch")

	return nil
}

func schemaQuery(table string) string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		batch_id UUID NOT NULL,
		window_start TIMESTAMPTZ NOT NULL,
		window_end TIMESTAMPTZ NOT NULL,
		source_url TEXT NOT NULL,
		record JSONB NOT NULL,
		harvested_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pq.QuoteIdentifier(table))
}

func insertQuery(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (id, batch_id, window_start, window_end, source_url, record)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, pq.QuoteIdentifier(table))
}
