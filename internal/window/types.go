package window

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidWindow is returned when the provisional end is not after the start.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrOracle is returned when the count oracle fails or reports a non-positive maximum.
	ErrOracle = errors.New("count oracle error")
	// ErrWindowFloorHit marks a resolution that stopped at the minimum window
	// while still over the count bound. It is a warning, not a failure.
	ErrWindowFloorHit = errors.New("window floor hit")
)

// CountResult is the oracle's answer for a single candidate window.
type CountResult struct {
	Count      int `json:"count"`
	MaxAllowed int `json:"maxAllowed"`
}

// CountOracle reports how many records exist between two times and how many
// the server is willing to return in one call.
type CountOracle interface {
	Count(ctx context.Context, start, end time.Time) (CountResult, error)
}

// CountOracleFunc adapts a plain function to CountOracle.
type CountOracleFunc func(ctx context.Context, start, end time.Time) (CountResult, error)

// Count calls f.
func (f CountOracleFunc) Count(ctx context.Context, start, end time.Time) (CountResult, error) {
	return f(ctx, start, end)
}

// Window is a [Start, End] interval proposed for a single fetch.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Span returns the window width.
func (w Window) Span() time.Duration {
	return w.End.Sub(w.Start)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	End time.Time
	// FloorHit is set when bisection stopped at the minimum window (or the
	// iteration cap) with Last still over the bound.
	FloorHit bool
	// Iterations counts bisection steps, OracleCalls counts every oracle query.
	Iterations  int
	OracleCalls int
	// Last is the oracle answer for the returned window.
	Last CountResult
}
