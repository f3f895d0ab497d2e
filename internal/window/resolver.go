package window

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Resolver finds the widest window starting at a cursor whose record count
// the server will return in a single call.
type Resolver struct {
	cfg Config
	log logrus.FieldLogger
}

// NewResolver creates a new window resolver.
func NewResolver(log logrus.FieldLogger, cfg Config) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Resolver{
		cfg: cfg,
		log: log.WithField("component", "window"),
	}, nil
}

// Config returns the validated resolver configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve queries the oracle for [start, provisionalEnd] and bisects the end
// towards start until the count fits, or the minimum window is reached.
func (r *Resolver) Resolve(
	ctx context.Context,
	start, provisionalEnd time.Time,
	oracle CountOracle,
) (Resolution, error) {
	if !provisionalEnd.After(start) {
		return Resolution{}, invalidWindow(start, provisionalEnd)
	}

	seed, err := query(ctx, oracle, start, provisionalEnd)
	if err != nil {
		return Resolution{}, err
	}

	return r.bisect(ctx, start, provisionalEnd, seed, 1, oracle)
}

// ResolveFrom is Resolve with the first oracle answer already known, so the
// caller's own count for [start, provisionalEnd] is not repeated.
func (r *Resolver) ResolveFrom(
	ctx context.Context,
	start, provisionalEnd time.Time,
	seed CountResult,
	oracle CountOracle,
) (Resolution, error) {
	if !provisionalEnd.After(start) {
		return Resolution{}, invalidWindow(start, provisionalEnd)
	}

	if err := checkResult(seed); err != nil {
		return Resolution{}, err
	}

	return r.bisect(ctx, start, provisionalEnd, seed, 0, oracle)
}

// WithinBounds reports whether a count fits both the server maximum and the
// configured safety cap.
func (r *Resolver) WithinBounds(res CountResult) bool {
	if res.Count > res.MaxAllowed {
		return false
	}

	return r.cfg.SafetyCap == 0 || res.Count <= r.cfg.SafetyCap
}

func (r *Resolver) bisect(
	ctx context.Context,
	start, end time.Time,
	seed CountResult,
	calls int,
	oracle CountOracle,
) (Resolution, error) {
	out := Resolution{
		End:         end,
		OracleCalls: calls,
		Last:        seed,
	}

	limit := MaxIterationsFor(end.Sub(start), r.cfg.MinWindow)
	if r.cfg.MaxIterations > 0 && r.cfg.MaxIterations < limit {
		limit = r.cfg.MaxIterations
	}

	for !r.WithinBounds(out.Last) {
		if out.Iterations >= limit {
			out.FloorHit = true

			break
		}

		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}

		candidate := start.Add(out.End.Sub(start) / 2)

		res, err := query(ctx, oracle, start, candidate)
		out.OracleCalls++

		if err != nil {
			return Resolution{}, err
		}

		out.End = candidate
		out.Last = res
		out.Iterations++

		r.log.WithFields(logrus.Fields{
			"start":       start.UTC().Format(time.RFC3339Nano),
			"candidate":   candidate.UTC().Format(time.RFC3339Nano),
			"count":       res.Count,
			"max_allowed": res.MaxAllowed,
			"iteration":   out.Iterations,
		}).Debug("Bisected window")

		if candidate.Sub(start) < r.cfg.MinWindow {
			out.FloorHit = !r.WithinBounds(res)

			break
		}
	}

	if out.FloorHit {
		r.log.WithFields(logrus.Fields{
			"start":       start.UTC().Format(time.RFC3339Nano),
			"end":         out.End.UTC().Format(time.RFC3339Nano),
			"count":       out.Last.Count,
			"max_allowed": out.Last.MaxAllowed,
			"iterations":  out.Iterations,
		}).Warn("Unable to reduce window further, using minimal window")
	}

	return out, nil
}

// MaxIterationsFor returns the bisection bound ceil(log2(span/minWindow)),
// or 0 when the span is already at or below the floor.
func MaxIterationsFor(span, minWindow time.Duration) int {
	if minWindow <= 0 || span <= minWindow {
		return 0
	}

	return int(math.Ceil(math.Log2(float64(span) / float64(minWindow))))
}

func query(ctx context.Context, oracle CountOracle, start, end time.Time) (CountResult, error) {
	res, err := oracle.Count(ctx, start, end)
	if err != nil {
		return CountResult{}, fmt.Errorf("%w: %w", ErrOracle, err)
	}

	if err := checkResult(res); err != nil {
		return CountResult{}, err
	}

	return res, nil
}

func checkResult(res CountResult) error {
	if res.MaxAllowed <= 0 {
		return fmt.Errorf("%w: non-positive maxAllowed %d", ErrOracle, res.MaxAllowed)
	}

	if res.Count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrOracle, res.Count)
	}

	return nil
}

func invalidWindow(start, end time.Time) error {
	return fmt.Errorf(
		"%w: end %s is not after start %s",
		ErrInvalidWindow,
		end.UTC().Format(time.RFC3339Nano),
		start.UTC().Format(time.RFC3339Nano),
	)
}
