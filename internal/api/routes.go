package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/stacklok/davsync/internal/versions"
)

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// readinessHandler reports ready once the latest check or cycle succeeded
func readinessHandler(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !provider.Ready() {
			s := provider.Status()
			message := "sync loop not ready: " + string(s.Phase)
			if s.Message != "" {
				message += ": " + s.Message
			}
			writeJSONResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: message})
			return
		}
		writeJSONResponse(w, http.StatusOK, ReadinessResponse{Status: "ready"})
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()
	writeJSONResponse(w, http.StatusOK, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		Modified:  info.Modified,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	})
}

// statusHandler returns the outcome of the latest cycle
func statusHandler(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, provider.Status())
	}
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
