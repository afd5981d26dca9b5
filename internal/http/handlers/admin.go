package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aigc/internal/domain"
	"aigc/internal/metrics"
	"aigc/internal/middleware"
)

type grantRequest struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	Note   string `json:"note" validate:"max=200"`
}

type serviceUpdateRequest struct {
	Cost        *int64  `json:"cost" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// GrantCredits adds credits to any account and records an admin_grant entry.
func (a *App) GrantCredits(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "amount must be positive")
		return
	}
	target := chi.URLParam(r, "id")
	balance, err := a.Store.Ledger().Credit(r.Context(), target, req.Amount, domain.LedgerRef{
		Type: domain.LedgerAdminGrant,
		Note: req.Note,
	})
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, r, http.StatusNotFound, middleware.CodeNotFound, "user not found")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	metrics.CreditsGranted.WithLabelValues(string(domain.LedgerAdminGrant)).Add(float64(req.Amount))
	a.Logger.Info().
		Str("admin_id", a.currentUserID(r)).
		Str("user_id", target).
		Int64("amount", req.Amount).
		Msg("credits granted")
	a.json(w, http.StatusOK, map[string]any{"user_id": target, "credits": balance})
}

// UpdateService edits price, description or availability. Jobs already
// created keep the cost they were charged.
func (a *App) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req serviceUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, err.Error())
		return
	}
	svc, err := a.Store.Services().Update(r.Context(), chi.URLParam(r, "id"), domain.ServiceUpdate{
		Cost:        req.Cost,
		IsActive:    req.IsActive,
		Description: req.Description,
	})
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrServiceNotFound) {
		a.error(w, r, http.StatusNotFound, middleware.CodeServiceNotFound, "")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toServiceDTO(*svc))
}
