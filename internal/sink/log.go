package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/record"
)

var _ Sink = (*LogSink)(nil)

// LogSink writes each event as one JSON line.
type LogSink struct {
	log logrus.FieldLogger

	mu  sync.Mutex
	enc *json.Encoder
}

// NewLogSink creates a sink writing to w, or stdout when w is nil.
func NewLogSink(log logrus.FieldLogger, w io.Writer) *LogSink {
	if w == nil {
		w = os.Stdout
	}

	return &LogSink{
		log: log.WithField("component", "sink_log"),
		enc: json.NewEncoder(w),
	}
}

func (s *LogSink) Start(_ context.Context) error {
	s.log.Info("Log sink started")

	return nil
}

func (s *LogSink) Stop() error {
	return nil
}

func (s *LogSink) Deliver(ctx context.Context, batch record.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range Events(batch) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
	}

	return nil
}
