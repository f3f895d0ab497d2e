//nolint:tagliatelle // superior snake-case yo.
package api

//go:generate mockgen -package mocks -destination mocks/mock_status_provider.go github.com/ethpandaops/quake-harvester/internal/api StatusProvider

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/harvester"
)

// Verify interface compliance at compile time.
var (
	_ http.Handler   = (*StatusHandler)(nil)
	_ StatusProvider = (*harvester.Runner)(nil)
)

// StatusProvider exposes the harvester's current status.
type StatusProvider interface {
	Snapshot() harvester.Snapshot
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	InstanceID string             `json:"instance_id"`
	Harvester  harvester.Snapshot `json:"harvester"`
}

// StatusHandler handles GET /api/v1/status requests.
type StatusHandler struct {
	provider   StatusProvider
	instanceID string
	logger     logrus.FieldLogger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(provider StatusProvider, instanceID string, logger logrus.FieldLogger) *StatusHandler {
	return &StatusHandler{
		provider:   provider,
		instanceID: instanceID,
		logger:     logger.WithField("handler", "status"),
	}
}

// ServeHTTP handles the status request.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h.provider == nil {
		h.logger.Error("Status provider not available")
		http.Error(w, "harvester unavailable", http.StatusServiceUnavailable)

		return
	}

	resp := StatusResponse{
		InstanceID: h.instanceID,
		Harvester:  h.provider.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	h.logger.WithFields(logrus.Fields{
		"cursor": resp.Harvester.Cursor,
		"leader": resp.Harvester.Leader,
	}).Debug("Served status request")
}
