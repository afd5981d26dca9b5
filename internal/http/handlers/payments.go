package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aigc/internal/domain"
	"aigc/internal/metrics"
	"aigc/internal/middleware"
)

type paymentRequest struct {
	Amount  float64 `json:"amount" validate:"gt=0"`
	Credits int64   `json:"credits" validate:"gt=0"`
	Method  string  `json:"payment_method" validate:"max=50"`
}

type paymentDTO struct {
	ID            string     `json:"id"`
	Amount        float64    `json:"amount"`
	Credits       int64      `json:"credits"`
	Status        string     `json:"status"`
	Method        string     `json:"payment_method"`
	TransactionID string     `json:"transaction_id"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toPaymentDTO(p domain.Payment) paymentDTO {
	return paymentDTO{
		ID:            p.ID,
		Amount:        p.Amount,
		Credits:       p.Credits,
		Status:        string(p.Status),
		Method:        p.Method,
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

// transactionID builds PAY_/PKG_ style references: prefix, timestamp and
// eight random hex digits.
func transactionID(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s_%s_%s", prefix, at.Format("20060102150405"), suffix)
}

func (a *App) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, 20, 100)
	payments, err := a.Store.Payments().List(r.Context(), a.currentUserID(r), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPaymentDTO(p))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "amount and credits must be positive")
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "simulated"
	}
	a.createPayment(w, r, &domain.Payment{
		UserID:        a.currentUserID(r),
		Amount:        req.Amount,
		Credits:       req.Credits,
		Method:        method,
		TransactionID: transactionID("PAY", a.now()),
	})
}

func (a *App) ListPackages(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": domain.CreditPackages})
}

func (a *App) BuyPackage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, r, http.StatusNotFound, middleware.CodePackageNotFound, "")
		return
	}
	pkg, ok := domain.FindCreditPackage(id)
	if !ok {
		a.error(w, r, http.StatusNotFound, middleware.CodePackageNotFound, "")
		return
	}
	a.createPayment(w, r, &domain.Payment{
		UserID:        a.currentUserID(r),
		Amount:        pkg.Price,
		Credits:       pkg.Total(),
		Method:        "package",
		TransactionID: transactionID("PKG", a.now()),
	})
}

func (a *App) createPayment(w http.ResponseWriter, r *http.Request, p *domain.Payment) {
	if err := a.Store.Payments().Create(r.Context(), p); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toPaymentDTO(*p))
}

// ConfirmPayment settles a pending payment and grants its credits in one
// transaction. There is no gateway behind it.
func (a *App) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	paymentID := chi.URLParam(r, "id")
	var (
		payment *domain.Payment
		balance int64
	)
	err := a.Store.WithinTx(r.Context(), func(tx domain.Store) error {
		p, err := tx.Payments().MarkSucceeded(r.Context(), paymentID, userID, a.now())
		if err != nil {
			return err
		}
		after, err := tx.Ledger().Credit(r.Context(), userID, p.Credits, domain.LedgerRef{
			Type:      domain.LedgerPaymentCredit,
			PaymentID: p.ID,
			Note:      p.TransactionID,
		})
		if err != nil {
			return err
		}
		payment, balance = p, after
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, middleware.CodePaymentNotFound, "")
		return
	case errors.Is(err, domain.ErrConflict):
		a.error(w, r, http.StatusBadRequest, middleware.CodePaymentState, "")
		return
	case err != nil:
		a.fail(w, r, err)
		return
	}
	metrics.CreditsGranted.WithLabelValues(string(domain.LedgerPaymentCredit)).Add(float64(payment.Credits))
	a.Logger.Info().Str("user_id", userID).Str("payment_id", payment.ID).Int64("credits", payment.Credits).Msg("payment confirmed")
	a.json(w, http.StatusOK, map[string]any{
		"payment": toPaymentDTO(*payment),
		"credits": balance,
	})
}
