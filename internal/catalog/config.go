//nolint:tagliatelle // superior snake-case yo.
package catalog

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1"

// reservedParams are set by the client on every request.
var reservedParams = map[string]bool{
	"format":    true,
	"starttime": true,
	"endtime":   true,
}

// Config holds catalog client configuration.
type Config struct {
	BaseURL        string            `yaml:"base_url"`        // FDSN event service root
	RequestTimeout time.Duration     `yaml:"request_timeout"` // HTTP request timeout
	Params         map[string]string `yaml:"params"`          // Extra filters sent to both count and query (e.g. minmagnitude)
}

// Validate validates and sets defaults for Config.
func (c *Config) Validate() error {
	// Set defaults
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}

	if c.RequestTimeout < 1*time.Second {
		return fmt.Errorf("request_timeout must be at least 1 second, got %v", c.RequestTimeout)
	}

	for key := range c.Params {
		if reservedParams[key] {
			return fmt.Errorf("params cannot override %q", key)
		}
	}

	return nil
}

// HTTPClient creates an HTTP client with configured timeout.
func (c *Config) HTTPClient() *http.Client {
	return &http.Client{
		Timeout: c.RequestTimeout,
	}
}
