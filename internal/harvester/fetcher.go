package harvester

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/record"
	"github.com/ethpandaops/quake-harvester/internal/window"
)

// Fetcher runs single harvest cycles: count, resolve, fetch, deliver, advance.
// It holds no cursor of its own; state is passed in and returned.
type Fetcher struct {
	log      logrus.FieldLogger
	resolver *window.Resolver
	oracle   window.CountOracle
	records  RecordFetcher
	sink     Sink
	observer Observer
	now      func() time.Time
}

// NewFetcher creates a cycle runner. observer may be nil.
func NewFetcher(
	log logrus.FieldLogger,
	resolver *window.Resolver,
	oracle window.CountOracle,
	records RecordFetcher,
	sink Sink,
	observer Observer,
) *Fetcher {
	if observer == nil {
		observer = nopObserver{}
	}

	return &Fetcher{
		log:      log.WithField("component", "harvester"),
		resolver: resolver,
		oracle:   oracle,
		records:  records,
		sink:     sink,
		observer: observer,
		now:      time.Now,
	}
}

// Process runs one cycle from state.Cursor up to now and returns the next
// state. On error the returned state is the input state with the cursor
// unchanged, and the result status is StatusError.
func (f *Fetcher) Process(ctx context.Context, state State) (State, Result, error) {
	next, res, err := f.cycle(ctx, state)
	if err != nil {
		f.log.WithError(err).WithField("cursor", formatTime(state.Cursor)).Error("Harvest cycle failed")
		f.observer.CycleFailed(err, state)

		return state, Result{Status: StatusError, Window: res.Window, Resolution: res.Resolution}, err
	}

	f.observer.CycleCompleted(res, next)

	return next, res, nil
}

func (f *Fetcher) cycle(ctx context.Context, state State) (State, Result, error) {
	now := f.now().UTC()

	// Clock behind the cursor or no time elapsed: nothing can be new yet.
	if !now.After(state.Cursor) {
		state.EmptyCycles++

		f.log.WithField("cursor", formatTime(state.Cursor)).Debug("Cursor is not behind the clock, backing off")

		return state, Result{Status: StatusBackoff, Window: window.Window{Start: state.Cursor, End: now}}, nil
	}

	resolution, err := f.resolver.Resolve(ctx, state.Cursor, now, f.oracle)
	if err != nil {
		return state, Result{}, err
	}

	w := window.Window{Start: state.Cursor, End: resolution.End}
	res := Result{Window: w, Resolution: resolution}

	if resolution.FloorHit {
		f.observer.WindowFloorHit(w, resolution)
	}

	page, err := f.records.Fetch(ctx, w.Start, w.End)
	if err != nil {
		return state, res, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	res.Records = len(page.Records)

	if res.Records == 0 {
		state.EmptyCycles++
		res.Status = StatusBackoff

		f.log.WithFields(logrus.Fields{
			"start":        formatTime(w.Start),
			"end":          formatTime(w.End),
			"empty_cycles": state.EmptyCycles,
		}).Debug("No new records")

		return state, res, nil
	}

	batch := record.NewBatch(w.Start, w.End, page, resolution.FloorHit)

	if err := f.sink.Deliver(ctx, batch); err != nil {
		return state, res, fmt.Errorf("%w: %w", ErrSink, err)
	}

	state.Cursor = w.End
	state.EmptyCycles = 0
	res.Status = StatusReady

	f.log.WithFields(logrus.Fields{
		"start":        formatTime(w.Start),
		"end":          formatTime(w.End),
		"records":      res.Records,
		"server_count": page.Count,
		"oracle_calls": resolution.OracleCalls,
		"batch_id":     batch.ID.String(),
	}).Debug("Delivered batch")

	return state, res, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
