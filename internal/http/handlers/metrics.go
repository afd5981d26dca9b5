package handlers

import (
	"net/http"

	"aigc/internal/metrics"
)

// Metrics exposes the Prometheus registry.
func (a *App) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}
