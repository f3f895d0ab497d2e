//nolint:tagliatelle // superior snake-case yo.
package record

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Page is one query response from the catalog.
type Page struct {
	Count     int               // Record count reported by the server metadata
	SourceURL string            // Request URL echoed back by the server
	Records   []json.RawMessage // Opaque records, in server order
}

// Batch is the unit handed to a sink: the records of one accepted window.
type Batch struct {
	ID        uuid.UUID         `json:"id"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	SourceURL string            `json:"source_url"`
	FloorHit  bool              `json:"floor_hit"` // Window exceeded the count bound at the bisection floor
	Records   []json.RawMessage `json:"records"`
}

// NewBatch builds a batch for the window [start, end].
func NewBatch(start, end time.Time, page *Page, floorHit bool) Batch {
	return Batch{
		ID:        uuid.New(),
		Start:     start,
		End:       end,
		SourceURL: page.SourceURL,
		FloorHit:  floorHit,
		Records:   page.Records,
	}
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}

// ID extracts the top-level "id" member of a record, or "" if absent.
// Catalog features carry a stable event id there, which sinks use for keys
// and deduplication.
func ID(rec json.RawMessage) string {
	var head struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(rec, &head); err != nil {
		return ""
	}

	return head.ID
}
