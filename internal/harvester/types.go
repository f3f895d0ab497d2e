//nolint:tagliatelle // superior snake-case yo.
package harvester

import (
	"context"
	"errors"
	"time"

	"github.com/ethpandaops/quake-harvester/internal/record"
	"github.com/ethpandaops/quake-harvester/internal/window"
)

var (
	// ErrFetch wraps transport or decode failures of the record query.
	ErrFetch = errors.New("record fetch failed")
	// ErrSink wraps delivery failures.
	ErrSink = errors.New("sink delivery failed")
)

// Status is the outcome of one cycle.
type Status string

const (
	// StatusReady means a batch was delivered and the cursor advanced.
	StatusReady Status = "READY"
	// StatusBackoff means there was nothing new; the cursor is unchanged.
	StatusBackoff Status = "BACKOFF"
	// StatusError means the cycle aborted; the cursor is unchanged.
	StatusError Status = "ERROR"
)

// RecordFetcher returns every record in [start, end], in server order.
type RecordFetcher interface {
	Fetch(ctx context.Context, start, end time.Time) (*record.Page, error)
}

// Sink receives delivered batches.
type Sink interface {
	Deliver(ctx context.Context, batch record.Batch) error
}

// State is threaded from one cycle to the next. Cursor only moves forward.
type State struct {
	Cursor      time.Time `json:"cursor"`
	EmptyCycles int       `json:"empty_cycles"` // Consecutive cycles without records
	LastChecked time.Time `json:"last_checked"` // Last scheduler tick
	LastFetch   time.Time `json:"last_fetch"`   // Last cycle attempt
}

// NewState returns the state for a fresh run starting at cursor.
func NewState(cursor time.Time) State {
	return State{Cursor: cursor.UTC()}
}

// Result describes one completed cycle.
type Result struct {
	Status     Status
	Window     window.Window
	Records    int
	Resolution window.Resolution
}

// Observer is notified of cycle outcomes. Implementations must not block.
type Observer interface {
	CycleCompleted(res Result, state State)
	CycleFailed(err error, state State)
	WindowFloorHit(w window.Window, res window.Resolution)
}

type nopObserver struct{}

func (nopObserver) CycleCompleted(Result, State) {}

func (nopObserver) CycleFailed(error, State) {}

func (nopObserver) WindowFloorHit(window.Window, window.Resolution) {}

// Snapshot is a read-only view of a runner for status reporting.
type Snapshot struct {
	Mode          Mode      `json:"mode"`
	Running       bool      `json:"running"`
	Leader        bool      `json:"leader"`
	Cursor        time.Time `json:"cursor"`
	LastStatus    Status    `json:"last_status,omitempty"`
	EmptyCycles   int       `json:"empty_cycles"`
	LastChecked   time.Time `json:"last_checked"`
	LastFetch     time.Time `json:"last_fetch"`
	NextPoll      time.Time `json:"next_poll"`
	LastError     string    `json:"last_error,omitempty"`
	Cycles        uint64    `json:"cycles"`
	RecordsTotal  uint64    `json:"records_total"`
	FloorHitTotal uint64    `json:"floor_hit_total"`
}
