package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/record"
	"github.com/ethpandaops/quake-harvester/internal/redis"
)

var _ Sink = (*RedisSink)(nil)

// RedisSink appends events to a Redis stream, one entry per record.
// The client lifecycle is owned by the caller.
type RedisSink struct {
	log    logrus.FieldLogger
	cfg    RedisConfig
	client redis.Client
}

// NewRedisSink creates a stream sink on an already started client.
func NewRedisSink(log logrus.FieldLogger, cfg RedisConfig, client redis.Client) *RedisSink {
	return &RedisSink{
		log:    log.WithField("component", "sink_redis"),
		cfg:    cfg,
		client: client,
	}
}

func (s *RedisSink) Start(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	s.log.WithField("stream", s.cfg.Stream).Info("Redis stream sink started")

	return nil
}

func (s *RedisSink) Stop() error {
	return nil
}

func (s *RedisSink) Deliver(ctx context.Context, batch record.Batch) error {
	events := Events(batch)
	if len(events) == 0 {
		return nil
	}

	ids, err := s.client.XAddBatch(ctx, s.cfg.Stream, s.cfg.MaxLen, streamEntries(events))
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"stream":  s.cfg.Stream,
		"entries": len(ids),
	}).Debug("Appended batch to stream")

	return nil
}

func streamEntries(events []Event) []map[string]any {
	entries := make([]map[string]any, 0, len(events))

	for _, ev := range events {
		entries = append(entries, map[string]any{
			"id":           ev.ID,
			"batch_id":     ev.BatchID,
			"window_start": ev.WindowStart.Format(time.RFC3339Nano),
			"window_end":   ev.WindowEnd.Format(time.RFC3339Nano),
			"source_url":   ev.SourceURL,
			"record":       string(ev.Record),
		})
	}

	return entries
}
