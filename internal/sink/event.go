//nolint:tagliatelle // superior snake-case yo.
package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethpandaops/quake-harvester/internal/record"
)

// Event is one delivered record plus the window it was harvested from.
type Event struct {
	ID          string          `json:"id"`
	BatchID     string          `json:"batch_id"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	SourceURL   string          `json:"source_url"`
	Record      json.RawMessage `json:"record"`
}

// Events splits a batch into per-record events, in batch order. Records
// without an id get one derived from the batch id and their position.
func Events(batch record.Batch) []Event {
	events := make([]Event, 0, batch.Len())

	for i, rec := range batch.Records {
		id := record.ID(rec)
		if id == "" {
			id = fmt.Sprintf("%s-%d", batch.ID, i)
		}

		events = append(events, Event{
			ID:          id,
			BatchID:     batch.ID.String(),
			WindowStart: batch.Start.UTC(),
			WindowEnd:   batch.End.UTC(),
			SourceURL:   batch.SourceURL,
			Record:      rec,
		})
	}

	return events
}
