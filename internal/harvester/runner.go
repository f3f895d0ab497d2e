package harvester

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/leader"
)

// leaderSettle gives leader election a moment after boot before the first cycle.
const leaderSettle = 100 * time.Millisecond

// Runner drives a Fetcher on a schedule. Only the elected leader harvests.
// One goroutine owns the cursor; the status snapshot is the only shared state.
type Runner struct {
	log     logrus.FieldLogger
	cfg     Config
	fetcher *Fetcher
	elector leader.Elector
	backoff Backoff
	now     func() time.Time

	running atomic.Bool

	mu       sync.RWMutex
	snapshot Snapshot
}

// Handle controls a started run.
type Handle struct {
	runner *Runner
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a runner. cfg must already be validated.
func NewRunner(
	log logrus.FieldLogger,
	cfg Config,
	fetcher *Fetcher,
	elector leader.Elector,
) *Runner {
	return &Runner{
		log:      log.WithField("component", "harvester_runner"),
		cfg:      cfg,
		fetcher:  fetcher,
		elector:  elector,
		backoff:  cfg.Backoff(),
		now:      time.Now,
		snapshot: Snapshot{Mode: cfg.Mode},
	}
}

// Start begins harvesting from cursor in the background. Cancelling ctx
// aborts in-flight network calls; Handle.Stop lets the current cycle finish.
func (r *Runner) Start(ctx context.Context, cursor time.Time) (*Handle, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("harvester already running")
	}

	state := NewState(cursor)

	r.mu.Lock()
	r.snapshot = Snapshot{Mode: r.cfg.Mode, Cursor: state.Cursor}
	r.mu.Unlock()

	h := &Handle{
		runner: r,
		done:   make(chan struct{}),
	}

	r.log.WithFields(logrus.Fields{
		"mode":          r.cfg.Mode,
		"cursor":        formatTime(state.Cursor),
		"poll_interval": r.cfg.PollInterval,
	}).Info("Starting harvester")

	h.wg.Add(1)

	switch r.cfg.Mode {
	case ModeScheduled:
		go r.scheduledLoop(ctx, h, state)
	default:
		go r.demandLoop(ctx, h, state)
	}

	return h, nil
}

// Stop requests cancellation and waits for the loop to exit. No delivery is
// initiated after Stop returns. Safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.runner.log.Info("Stopping harvester")
		close(h.done)
		h.wg.Wait()
	})
}

// Running reports whether a loop is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Snapshot returns the current status.
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.snapshot
	s.Running = r.running.Load()

	return s
}

// demandLoop polls again immediately after a delivery, sleeps the backoff
// delay after an empty cycle and the ceiling delay after an error.
func (r *Runner) demandLoop(ctx context.Context, h *Handle, state State) {
	defer h.wg.Done()
	defer r.running.Store(false)

	if !wait(ctx, h.done, leaderSettle) {
		return
	}

	for {
		now := r.now()
		delay := r.cfg.PollInterval

		if r.elector.IsLeader() {
			state.LastChecked = now
			state.LastFetch = now

			next, res, err := r.fetcher.Process(ctx, state)
			state = next

			delay = r.demandDelay(res.Status, state)
			r.recordCycle(state, res, err, now.Add(delay))
		} else {
			r.recordFollower(now, now.Add(delay))
		}

		if !wait(ctx, h.done, delay) {
			return
		}
	}
}

func (r *Runner) demandDelay(status Status, state State) time.Duration {
	switch status {
	case StatusReady:
		return 0
	case StatusBackoff:
		return r.backoff.Delay(state.EmptyCycles)
	default:
		return r.backoff.Ceiling()
	}
}

// scheduledLoop ticks at PollInterval. A tick fetches only when
// MinFetchInterval plus the current backoff delay has passed since the last
// fetch attempt.
func (r *Runner) scheduledLoop(ctx context.Context, h *Handle, state State) {
	defer h.wg.Done()
	defer r.running.Store(false)

	if !wait(ctx, h.done, leaderSettle) {
		return
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	state = r.tick(ctx, state)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			state = r.tick(ctx, state)
		}
	}
}

func (r *Runner) tick(ctx context.Context, state State) State {
	now := r.now()
	nextTick := now.Add(r.cfg.PollInterval)

	state.LastChecked = now

	if !r.elector.IsLeader() {
		r.recordFollower(now, nextTick)

		return state
	}

	if due := r.nextFetch(state); now.Before(due) {
		r.log.WithField("next_fetch", formatTime(due)).Trace("Fetch not due yet")
		r.recordSkip(state, laterOf(nextTick, due))

		return state
	}

	state.LastFetch = now

	next, res, err := r.fetcher.Process(ctx, state)
	r.recordCycle(next, res, err, laterOf(nextTick, r.nextFetch(next)))

	return next
}

func (r *Runner) nextFetch(state State) time.Time {
	if state.LastFetch.IsZero() {
		return time.Time{}
	}

	return state.LastFetch.Add(r.cfg.MinFetchInterval + r.backoff.Delay(state.EmptyCycles))
}

func (r *Runner) recordCycle(state State, res Result, err error, nextPoll time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.snapshot
	s.Leader = true
	s.Cursor = state.Cursor
	s.EmptyCycles = state.EmptyCycles
	s.LastChecked = state.LastChecked
	s.LastFetch = state.LastFetch
	s.NextPoll = nextPoll
	s.LastStatus = res.Status
	s.Cycles++

	if res.Status == StatusReady {
		s.RecordsTotal += uint64(res.Records) //nolint:gosec // record counts are non-negative
	}

	if res.Resolution.FloorHit {
		s.FloorHitTotal++
	}

	s.LastError = ""
	if err != nil {
		s.LastError = err.Error()
	}
}

func (r *Runner) recordSkip(state State, nextPoll time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot.Leader = true
	r.snapshot.LastChecked = state.LastChecked
	r.snapshot.NextPoll = nextPoll
}

func (r *Runner) recordFollower(now, nextPoll time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot.Leader {
		r.log.Info("Lost leadership, pausing harvest")
	}

	r.snapshot.Leader = false
	r.snapshot.LastChecked = now
	r.snapshot.NextPoll = nextPoll
}

// wait sleeps for d and reports false if the run was stopped meanwhile.
func wait(ctx context.Context, done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-done:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}

	return a
}
