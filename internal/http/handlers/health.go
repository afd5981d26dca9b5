package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Health pings every registered dependency and reports 503 when any fails.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(a.Pingers))
	for name := range a.Pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := a.Pingers[name](ctx); err != nil {
			a.Logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			checks[name] = "down"
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	a.json(w, code, map[string]any{"status": status, "checks": checks})
}
