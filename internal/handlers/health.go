package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ethpandaops/quake-harvester/internal/version"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health returns an HTTP handler for the health check endpoint. It reports
// 503 once running returns false, i.e. the harvest loop has exited.
func Health(running func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := HealthResponse{
			Status:  "healthy",
			Version: version.Short(),
		}

		code := http.StatusOK

		if running != nil && !running() {
			response.Status = "stopped"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)

			return
		}
	}
}
