package window

import (
	"fmt"
	"time"
)

const (
	// DefaultMinWindow is the narrowest window bisection will produce.
	DefaultMinWindow = 500 * time.Millisecond
	// DefaultSafetyCap bounds batch size independently of the server maximum.
	DefaultSafetyCap = 300
)

// Config holds window resolution settings.
type Config struct {
	MinWindow time.Duration
	// SafetyCap is an absolute record bound applied alongside the server's
	// maxAllowed (0 = server bound only).
	SafetyCap int
	// MaxIterations optionally lowers the derived bisection cap (0 = derived only).
	MaxIterations int
}

// Validate validates and sets defaults for Config.
func (c *Config) Validate() error {
	if c.MinWindow == 0 {
		c.MinWindow = DefaultMinWindow
	}

	if c.MinWindow < time.Millisecond {
		return fmt.Errorf("min_window must be at least 1ms, got %v", c.MinWindow)
	}

	if c.SafetyCap < 0 {
		return fmt.Errorf("safety_cap cannot be negative, got %d", c.SafetyCap)
	}

	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations cannot be negative, got %d", c.MaxIterations)
	}

	return nil
}
