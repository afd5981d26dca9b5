package handlers

import (
	"net/http"
	"time"

	"aigc/internal/domain"
)

type ledgerEntryDTO struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	JobID        string    `json:"job_id,omitempty"`
	PaymentID    string    `json:"payment_id,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.Store.Users().GetByID(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUserDTO(user))
}

func (a *App) MyCredits(w http.ResponseWriter, r *http.Request) {
	balance, err := a.Store.Ledger().Balance(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"credits": balance})
}

func (a *App) MyLedger(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, 50, 200)
	entries, err := a.Store.Ledger().Entries(r.Context(), a.currentUserID(r), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]ledgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, toLedgerEntryDTO(e))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func toLedgerEntryDTO(e domain.LedgerEntry) ledgerEntryDTO {
	return ledgerEntryDTO{
		ID:           e.ID,
		Type:         string(e.Type),
		Amount:       e.Amount,
		BalanceAfter: e.BalanceAfter,
		JobID:        e.JobID,
		PaymentID:    e.PaymentID,
		Note:         e.Note,
		CreatedAt:    e.CreatedAt,
	}
}
