package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/record"
	"github.com/ethpandaops/quake-harvester/internal/version"
	"github.com/ethpandaops/quake-harvester/internal/window"
)

// Compile-time interface compliance check.
var _ window.CountOracle = (*Service)(nil)

// Service is a stateless client for the FDSN event count and query endpoints.
type Service struct {
	config     *Config
	logger     logrus.FieldLogger
	httpClient *http.Client
}

// New creates a new catalog service.
func New(cfg *Config, logger logrus.FieldLogger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		config:     cfg,
		logger:     logger.WithField("component", "catalog"),
		httpClient: cfg.HTTPClient(),
	}, nil
}

// FormatTimestamp renders t the way the catalog expects starttime/endtime.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Count returns the number of events in [start, end] and the server's
// per-request maximum.
func (s *Service) Count(
	ctx context.Context,
	start, end time.Time,
) (window.CountResult, error) {
	reqURL := s.buildURL("count", start, end)

	body, status, err := s.get(ctx, reqURL)
	if err != nil {
		return window.CountResult{}, err
	}

	if status == http.StatusNoContent {
		return window.CountResult{}, fmt.Errorf("count returned no content")
	}

	var resp CountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return window.CountResult{}, fmt.Errorf("parse JSON: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"start":       FormatTimestamp(start),
		"end":         FormatTimestamp(end),
		"count":       resp.Count,
		"max_allowed": resp.MaxAllowed,
	}).Debug("Fetched event count")

	return window.CountResult{
		Count:      resp.Count,
		MaxAllowed: resp.MaxAllowed,
	}, nil
}

// Fetch returns the events in [start, end] in server order.
func (s *Service) Fetch(
	ctx context.Context,
	start, end time.Time,
) (*record.Page, error) {
	reqURL := s.buildURL("query", start, end)

	body, status, err := s.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	// FDSN services may answer an empty result with 204.
	if status == http.StatusNoContent {
		return &record.Page{SourceURL: reqURL}, nil
	}

	var collection FeatureCollection
	if err := json.Unmarshal(body, &collection); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	sourceURL := collection.Metadata.URL
	if sourceURL == "" {
		sourceURL = reqURL
	}

	s.logger.WithFields(logrus.Fields{
		"count":    collection.Metadata.Count,
		"features": len(collection.Features),
	}).Debug("Fetched events")
	s.logger.WithField("url", sourceURL).Trace("Event URL")

	return &record.Page{
		Count:     collection.Metadata.Count,
		SourceURL: sourceURL,
		Records:   collection.Features,
	}, nil
}

// buildURL composes an endpoint URL with the window and configured filters.
func (s *Service) buildURL(endpoint string, start, end time.Time) string {
	params := url.Values{}
	for key, value := range s.config.Params {
		params.Set(key, value)
	}

	params.Set("format", "geojson")
	params.Set("starttime", FormatTimestamp(start))
	params.Set("endtime", FormatTimestamp(end))

	return fmt.Sprintf(
		"%s/%s?%s",
		strings.TrimRight(s.config.BaseURL, "/"),
		endpoint,
		params.Encode(),
	)
}

// get performs a GET and returns the body of any 2xx response.
func (s *Service) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, resp.StatusCode, nil
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n]) + "..."
	}

	return string(body)
}
