package harvester

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ethpandaops/quake-harvester/internal/record"
	sinkmocks "github.com/ethpandaops/quake-harvester/internal/sink/mocks"
	"github.com/ethpandaops/quake-harvester/internal/window"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fetchFunc func(ctx context.Context, start, end time.Time) (*record.Page, error)

func (f fetchFunc) Fetch(ctx context.Context, start, end time.Time) (*record.Page, error) {
	return f(ctx, start, end)
}

type recordingObserver struct {
	mu        sync.Mutex
	completed []Result
	failed    []error
	floorHits []window.Window
}

func (o *recordingObserver) CycleCompleted(res Result, _ State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.completed = append(o.completed, res)
}

func (o *recordingObserver) CycleFailed(err error, _ State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.failed = append(o.failed, err)
}

func (o *recordingObserver) WindowFloorHit(w window.Window, _ window.Resolution) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.floorHits = append(o.floorHits, w)
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

func fixedCount(count, maxAllowed int) window.CountOracle {
	return window.CountOracleFunc(func(_ context.Context, _, _ time.Time) (window.CountResult, error) {
		return window.CountResult{Count: count, MaxAllowed: maxAllowed}, nil
	})
}

func pageOf(n int) *record.Page {
	page := &record.Page{Count: n, SourceURL: "https://example.test/query"}

	for i := 0; i < n; i++ {
		page.Records = append(page.Records, json.RawMessage(`{"id":"us`+string(rune('a'+i))+`"}`))
	}

	return page
}

func staticFetch(n int) RecordFetcher {
	return fetchFunc(func(_ context.Context, _, _ time.Time) (*record.Page, error) {
		return pageOf(n), nil
	})
}

func newTestFetcher(
	t *testing.T,
	oracle window.CountOracle,
	records RecordFetcher,
	sink Sink,
	observer Observer,
	now time.Time,
) *Fetcher {
	t.Helper()

	resolver, err := window.NewResolver(testLogger(), window.Config{
		MinWindow: 500 * time.Millisecond,
		SafetyCap: window.DefaultSafetyCap,
	})
	require.NoError(t, err)

	f := NewFetcher(testLogger(), resolver, oracle, records, sink, observer)
	f.now = func() time.Time { return now }

	return f
}

func TestFetcher_Process_Delivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSink := sinkmocks.NewMockSink(ctrl)
	obs := &recordingObserver{}

	now := t0.Add(time.Hour)

	var delivered record.Batch

	mockSink.EXPECT().
		Deliver(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b record.Batch) error {
			delivered = b

			return nil
		}).
		Times(1)

	f := newTestFetcher(t, fixedCount(2, 300), staticFetch(2), mockSink, obs, now)

	state := NewState(t0)
	state.EmptyCycles = 3

	next, res, err := f.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Resolution.OracleCalls, "within bounds needs a single count")
	assert.Equal(t, now, next.Cursor)
	assert.Zero(t, next.EmptyCycles, "non-empty cycle resets backoff")

	assert.Equal(t, t0, delivered.Start)
	assert.Equal(t, now, delivered.End)
	assert.Equal(t, 2, delivered.Len())
	assert.False(t, delivered.FloorHit)

	require.Len(t, obs.completed, 1)
	assert.Empty(t, obs.failed)
	assert.Empty(t, obs.floorHits)
}

func TestFetcher_Process_BisectsBeforeFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSink := sinkmocks.NewMockSink(ctrl)

	now := t0.Add(time.Hour)

	// 1000 records over the full hour, 100 in any narrower window.
	oracle := window.CountOracleFunc(func(_ context.Context, start, end time.Time) (window.CountResult, error) {
		if end.Sub(start) >= time.Hour {
			return window.CountResult{Count: 1000, MaxAllowed: 20000}, nil
		}

		return window.CountResult{Count: 100, MaxAllowed: 20000}, nil
	})

	var fetchedEnd time.Time

	records := fetchFunc(func(_ context.Context, _, end time.Time) (*record.Page, error) {
		fetchedEnd = end

		return pageOf(3), nil
	})

	mockSink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(nil)

	f := newTestFetcher(t, oracle, records, mockSink, nil, now)

	next, res, err := f.Process(context.Background(), NewState(t0))
	require.NoError(t, err)

	half := t0.Add(30 * time.Minute)
	assert.Equal(t, half, fetchedEnd, "fetch uses the resolved window")
	assert.Equal(t, half, next.Cursor)
	assert.Equal(t, 1, res.Resolution.Iterations)
	assert.Equal(t, 2, res.Resolution.OracleCalls)
}

func TestFetcher_Process_EmptyFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSink := sinkmocks.NewMockSink(ctrl)

	// No Deliver expected.
	f := newTestFetcher(t, fixedCount(0, 300), staticFetch(0), mockSink, nil, t0.Add(time.Minute))

	backoff := Backoff{Increment: time.Minute, MaxMultiple: 10}

	state := NewState(t0)
	state.EmptyCycles = 1
	before := backoff.Delay(state.EmptyCycles)

	next, res, err := f.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StatusBackoff, res.Status)
	assert.Equal(t, t0, next.Cursor, "cursor must not move on an empty cycle")
	assert.Equal(t, 2, next.EmptyCycles)
	assert.Equal(t, before+time.Minute, backoff.Delay(next.EmptyCycles), "delay grows by one increment")
}

func TestFetcher_Process_ClockNotAhead(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSink := sinkmocks.NewMockSink(ctrl)

	oracle := window.CountOracleFunc(func(_ context.Context, _, _ time.Time) (window.CountResult, error) {
		t.Fatal("oracle must not be called when the cursor is not behind the clock")

		return window.CountResult{}, nil
	})

	f := newTestFetcher(t, oracle, staticFetch(1), mockSink, nil, t0)

	next, res, err := f.Process(context.Background(), NewState(t0))
	require.NoError(t, err)

	assert.Equal(t, StatusBackoff, res.Status)
	assert.Equal(t, t0, next.Cursor)
	assert.Equal(t, 1, next.EmptyCycles)
}

func TestFetcher_Process_Errors(t *testing.T) {
	now := t0.Add(time.Hour)

	tests := []struct {
		name      string
		oracle    window.CountOracle
		records   RecordFetcher
		sinkErr   error
		expectDlv bool
		wantErr   error
	}{
		{
			name: "oracle transport failure",
			oracle: window.CountOracleFunc(func(_ context.Context, _, _ time.Time) (window.CountResult, error) {
				return window.CountResult{}, errors.New("connection refused")
			}),
			records: staticFetch(1),
			wantErr: window.ErrOracle,
		},
		{
			name:    "oracle reports no maximum",
			oracle:  fixedCount(1, 0),
			records: staticFetch(1),
			wantErr: window.ErrOracle,
		},
		{
			name:   "fetch failure",
			oracle: fixedCount(1, 300),
			records: fetchFunc(func(_ context.Context, _, _ time.Time) (*record.Page, error) {
				return nil, errors.New("unexpected status 503")
			}),
			wantErr: ErrFetch,
		},
		{
			name:      "sink failure",
			oracle:    fixedCount(1, 300),
			records:   staticFetch(1),
			sinkErr:   errors.New("broker unavailable"),
			expectDlv: true,
			wantErr:   ErrSink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockSink := sinkmocks.NewMockSink(ctrl)
			obs := &recordingObserver{}

			if tt.expectDlv {
				mockSink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(tt.sinkErr)
			}

			f := newTestFetcher(t, tt.oracle, tt.records, mockSink, obs, now)

			state := NewState(t0)
			state.EmptyCycles = 2

			next, res, err := f.Process(context.Background(), state)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, StatusError, res.Status)
			assert.Equal(t, state, next, "failed cycle leaves state untouched")
			require.Len(t, obs.failed, 1)
			assert.Empty(t, obs.completed)
		})
	}
}

func TestFetcher_Process_FloorHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSink := sinkmocks.NewMockSink(ctrl)
	obs := &recordingObserver{}

	var delivered record.Batch

	mockSink.EXPECT().
		Deliver(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b record.Batch) error {
			delivered = b

			return nil
		})

	f := newTestFetcher(t, fixedCount(1000, 300), staticFetch(5), mockSink, obs, t0.Add(time.Hour))

	next, res, err := f.Process(context.Background(), NewState(t0))
	require.NoError(t, err)

	floorEnd := t0.Add(439453125 * time.Nanosecond)

	assert.Equal(t, StatusReady, res.Status)
	assert.True(t, res.Resolution.FloorHit)
	assert.Equal(t, floorEnd, next.Cursor, "oversized window is still used")
	assert.True(t, delivered.FloorHit)

	require.Len(t, obs.floorHits, 1)
	assert.Equal(t, window.Window{Start: t0, End: floorEnd}, obs.floorHits[0])
}

func TestFetcher_CursorMonotonic(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSink := sinkmocks.NewMockSink(ctrl)

	mockSink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	// Alternate empty and non-empty pages, with an occasional failure.
	calls := 0
	records := fetchFunc(func(_ context.Context, _, _ time.Time) (*record.Page, error) {
		calls++

		switch calls % 3 {
		case 0:
			return nil, errors.New("timeout")
		case 1:
			return pageOf(0), nil
		default:
			return pageOf(4), nil
		}
	})

	now := t0
	f := newTestFetcher(t, fixedCount(4, 300), records, mockSink, nil, now)
	f.now = func() time.Time { return now }

	state := NewState(t0)

	for i := 0; i < 30; i++ {
		now = now.Add(time.Duration(i%4) * time.Minute)
		before := state.Cursor

		next, res, _ := f.Process(context.Background(), state)

		assert.False(t, next.Cursor.Before(before), "cycle %d moved the cursor backward", i)

		if res.Status == StatusReady {
			assert.True(t, next.Cursor.After(before), "cycle %d delivered without advancing", i)
		} else {
			assert.Equal(t, before, next.Cursor, "cycle %d advanced without delivering", i)
		}

		state = next
	}
}
