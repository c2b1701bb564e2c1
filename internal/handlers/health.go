package handlers

import (
	"net/http"
	"time"
)

// HealthResponse reports liveness and process uptime in seconds.
type HealthResponse struct {
	OK     bool    `json:"ok"`
	Uptime float64 `json:"uptime"`
}

// Health returns a liveness handler measuring uptime from started.
func Health(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{OK: true, Uptime: time.Since(started).Seconds()})
	}
}
