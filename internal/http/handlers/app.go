package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"aigc/internal/auth"
	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/middleware"
	"aigc/internal/storage"
	"aigc/internal/submission"
)

// Pinger checks one dependency for the health endpoint.
type Pinger func(ctx context.Context) error

type App struct {
	Config     *infra.Config
	Store      domain.Store
	Files      *storage.FileStore
	Submission *submission.Service
	Tokens     *auth.TokenManager
	Logger     infra.Logger
	Pingers    map[string]Pinger
	Now        func() time.Time
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	middleware.WriteError(r.Context(), w, status, code, detail)
}

// fail maps a domain error onto a status and code. Anything unrecognized is
// logged and reported as internal.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, middleware.CodeInternal
	detail := ""
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, code, detail = http.StatusBadRequest, middleware.CodeBadRequest, err.Error()
	case errors.Is(err, domain.ErrInsufficientCredits):
		status, code = http.StatusPaymentRequired, middleware.CodeInsufficientCredits
	case errors.Is(err, domain.ErrServiceNotFound):
		status, code = http.StatusNotFound, middleware.CodeServiceNotFound
	case errors.Is(err, domain.ErrServiceInactive):
		status, code = http.StatusServiceUnavailable, middleware.CodeServiceInactive
	case errors.Is(err, domain.ErrJobInFlight):
		status, code = http.StatusConflict, middleware.CodeJobInFlight
	case errors.Is(err, domain.ErrAccountDisabled):
		status, code = http.StatusForbidden, middleware.CodeAccountDisabled
	case errors.Is(err, domain.ErrConflict):
		status, code, detail = http.StatusConflict, middleware.CodeConflict, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, middleware.CodeNotFound
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, middleware.CodeForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, middleware.CodeUnauthorized
	default:
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
	}
	a.error(w, r, status, code, detail)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "invalid payload")
		return false
	}
	return true
}

func paging(r *http.Request, fallback, max int) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = fallback
	}
	if limit > max {
		limit = max
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
