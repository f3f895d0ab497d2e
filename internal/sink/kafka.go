package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ethpandaops/quake-harvester/internal/record"
)

var _ Sink = (*KafkaSink)(nil)

// producer is the subset of *kgo.Client the sink uses.
type producer interface {
	Ping(ctx context.Context) error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink produces one message per event, keyed by event id so
// redeliveries of the same event land on the same partition.
type KafkaSink struct {
	log    logrus.FieldLogger
	cfg    KafkaConfig
	client producer
}

// NewKafkaSink creates a kafka sink. The client is created on Start.
func NewKafkaSink(log logrus.FieldLogger, cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{
		log: log.WithField("component", "sink_kafka"),
		cfg: cfg,
	}
}

func (s *KafkaSink) Start(ctx context.Context) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.DefaultProduceTopic(s.cfg.Topic),
		kgo.ClientID(s.cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()

		return fmt.Errorf("ping kafka: %w", err)
	}

	s.client = client

	s.log.WithFields(logrus.Fields{
		"brokers": s.cfg.Brokers,
		"topic":   s.cfg.Topic,
	}).Info("Kafka sink started")

	return nil
}

func (s *KafkaSink) Stop() error {
	if s.client != nil {
		s.client.Close()
	}

	return nil
}

func (s *KafkaSink) Deliver(ctx context.Context, batch record.Batch) error {
	if s.client == nil {
		return fmt.Errorf("kafka sink not started")
	}

	records, err := kafkaRecords(Events(batch))
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", s.cfg.Topic, err)
	}

	return nil
}

func kafkaRecords(events []Event) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, len(events))

	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}

		records = append(records, &kgo.Record{
			Key:   []byte(ev.ID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "batch_id", Value: []byte(ev.BatchID)},
			},
		})
	}

	return records, nil
}
