//nolint:tagliatelle // superior snake-case yo.
package harvester

import (
	"fmt"
	"time"

	"github.com/ethpandaops/quake-harvester/internal/window"
)

// Mode selects how cycles are scheduled.
type Mode string

const (
	// ModeDemand polls again as soon as a cycle delivered data and sleeps the
	// backoff delay otherwise.
	ModeDemand Mode = "demand"
	// ModeScheduled ticks at a fixed interval and gates fetches behind a
	// minimum inter-fetch duration.
	ModeScheduled Mode = "scheduled"
)

// DefaultStartTime is the initial cursor when none is configured.
var DefaultStartTime = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Config holds harvester configuration.
type Config struct {
	Mode               Mode          `yaml:"mode"`
	StartTime          time.Time     `yaml:"start_time"`           // Initial cursor
	PollInterval       time.Duration `yaml:"poll_interval"`        // Scheduled tick, and follower re-check in both modes
	MinFetchInterval   time.Duration `yaml:"min_fetch_interval"`   // Scheduled mode only
	BackoffIncrement   time.Duration `yaml:"backoff_increment"`    // Added per consecutive empty cycle
	BackoffMaxMultiple int           `yaml:"backoff_max_multiple"` // Ceiling as a multiple of the increment
	MinWindow          time.Duration `yaml:"min_window"`           // Bisection floor
	SafetyCap          *int          `yaml:"safety_cap"`           // Max records per batch (0 = server bound only)
	MaxIterations      int           `yaml:"max_iterations"`       // Optional lower bisection cap
}

// Validate validates and sets defaults for Config.
func (c *Config) Validate() error {
	// Set defaults
	if c.Mode == "" {
		c.Mode = ModeDemand
	}

	if c.StartTime.IsZero() {
		c.StartTime = DefaultStartTime
	}

	if c.PollInterval == 0 {
		c.PollInterval = 60 * time.Second
	}

	if c.BackoffIncrement == 0 {
		c.BackoffIncrement = 60 * time.Second
	}

	if c.BackoffMaxMultiple == 0 {
		c.BackoffMaxMultiple = 10
	}

	if c.MinWindow == 0 {
		c.MinWindow = window.DefaultMinWindow
	}

	if c.SafetyCap == nil {
		capacity := window.DefaultSafetyCap
		c.SafetyCap = &capacity
	}

	// Validate
	if c.Mode != ModeDemand && c.Mode != ModeScheduled {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDemand, ModeScheduled, c.Mode)
	}

	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1 second, got %v", c.PollInterval)
	}

	if c.MinFetchInterval < 0 {
		return fmt.Errorf("min_fetch_interval cannot be negative, got %v", c.MinFetchInterval)
	}

	if c.BackoffIncrement < time.Second {
		return fmt.Errorf("backoff_increment must be at least 1 second, got %v", c.BackoffIncrement)
	}

	if c.BackoffMaxMultiple < 1 {
		return fmt.Errorf("backoff_max_multiple must be at least 1, got %d", c.BackoffMaxMultiple)
	}

	if c.StartTime.After(time.Now()) {
		return fmt.Errorf("start_time %s is in the future", c.StartTime.Format(time.RFC3339))
	}

	wc := c.WindowConfig()

	return wc.Validate()
}

// WindowConfig returns the resolver settings.
func (c *Config) WindowConfig() window.Config {
	wc := window.Config{
		MinWindow:     c.MinWindow,
		MaxIterations: c.MaxIterations,
	}

	if c.SafetyCap != nil {
		wc.SafetyCap = *c.SafetyCap
	}

	return wc
}

// Backoff returns the empty-cycle backoff policy.
func (c *Config) Backoff() Backoff {
	return Backoff{
		Increment:   c.BackoffIncrement,
		MaxMultiple: c.BackoffMaxMultiple,
	}
}
