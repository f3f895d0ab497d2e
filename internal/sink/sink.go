package sink

//go:generate mockgen -package mocks -destination mocks/mock_sink.go github.com/ethpandaops/quake-harvester/internal/sink Sink

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/record"
	"github.com/ethpandaops/quake-harvester/internal/redis"
)

// Sink receives accepted batches. Delivery is at-least-once: a batch whose
// Deliver call failed is fetched and delivered again on a later cycle.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	Deliver(ctx context.Context, batch record.Batch) error
}

// New builds the sink selected by cfg.Type. redisClient is only used by the
// redis sink and may be nil otherwise.
func New(log logrus.FieldLogger, cfg Config, redisClient redis.Client) (Sink, error) {
	switch cfg.Type {
	case TypeLog:
		return NewLogSink(log, nil), nil
	case TypeRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis sink requires a redis client")
		}

		return NewRedisSink(log, cfg.Redis, redisClient), nil
	case TypeKafka:
		return NewKafkaSink(log, cfg.Kafka), nil
	case TypePostgres:
		return NewPostgresSink(log, cfg.Postgres), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
