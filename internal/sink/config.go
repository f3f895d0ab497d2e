//nolint:tagliatelle // superior snake-case yo.
package sink

import (
	"fmt"
)

// Sink types.
const (
	TypeLog      = "log"
	TypeRedis    = "redis"
	TypeKafka    = "kafka"
	TypePostgres = "postgres"
)

// Config selects and configures the downstream sink.
type Config struct {
	Type     string         `yaml:"type"` // log, redis, kafka or postgres
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig configures the redis stream sink.
type RedisConfig struct {
	Stream string `yaml:"stream"`
	MaxLen int64  `yaml:"max_len"` // Approximate stream trim length (0 = unbounded)
}

// KafkaConfig configures the kafka sink.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// PostgresConfig configures the postgres sink.
type PostgresConfig struct {
	ConnectionString string `yaml:"connection_string"` //nolint:gosec // Config field, not a hardcoded secret.
	TableName        string `yaml:"table_name"`
}

// Validate validates and sets defaults for Config.
func (c *Config) Validate() error {
	if c.Type == "" {
		c.Type = TypeLog
	}

	switch c.Type {
	case TypeLog:
		return nil
	case TypeRedis:
		if c.Redis.Stream == "" {
			c.Redis.Stream = "quake:events"
		}

		if c.Redis.MaxLen < 0 {
			return fmt.Errorf("redis.max_len cannot be negative, got %d", c.Redis.MaxLen)
		}
	case TypeKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required")
		}

		if c.Kafka.Topic == "" {
			c.Kafka.Topic = "earthquakes"
		}

		if c.Kafka.ClientID == "" {
			c.Kafka.ClientID = "quake-harvester"
		}
	case TypePostgres:
		if c.Postgres.ConnectionString == "" {
			return fmt.Errorf("postgres.connection_string is required")
		}

		if c.Postgres.TableName == "" {
			c.Postgres.TableName = "earthquakes"
		}
	default:
		return fmt.Errorf("unknown type %q", c.Type)
	}

	return nil
}
