package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/sqlinline"
)

// PaymentRepositoryPG implements domain.PaymentRepository.
type PaymentRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPaymentRepository(sql infra.SQLExecutor) *PaymentRepositoryPG {
	return &PaymentRepositoryPG{sql: sql}
}

func (r *PaymentRepositoryPG) Create(ctx context.Context, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertPayment, p.ID, p.UserID, p.Amount, p.Credits, p.Method, p.TransactionID)
	if err := row.Scan(&p.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate transaction id", domain.ErrConflict)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	p.Status = domain.PaymentStatusPending
	return nil
}

func (r *PaymentRepositoryPG) Get(ctx context.Context, id, ownerID string) (*domain.Payment, error) {
	if !validID(id, ownerID) {
		return nil, domain.ErrNotFound
	}
	return scanPayment(r.sql.QueryRow(ctx, sqlinline.QSelectPaymentForOwner, id, ownerID))
}

func (r *PaymentRepositoryPG) List(ctx context.Context, ownerID string, limit, offset int) ([]domain.Payment, error) {
	if !validID(ownerID) {
		return nil, domain.ErrNotFound
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListPaymentsForOwner, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// MarkSucceeded moves a pending payment to success. A payment that is not
// pending yields domain.ErrConflict.
func (r *PaymentRepositoryPG) MarkSucceeded(ctx context.Context, id, ownerID string, completedAt time.Time) (*domain.Payment, error) {
	if !validID(id, ownerID) {
		return nil, domain.ErrNotFound
	}
	p, err := scanPayment(r.sql.QueryRow(ctx, sqlinline.QMarkPaymentSucceeded, id, ownerID, completedAt))
	if err == domain.ErrNotFound {
		if _, getErr := r.Get(ctx, id, ownerID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: payment is not pending", domain.ErrConflict)
	}
	return p, err
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Credits, &status, &p.Method, &p.TransactionID, &p.CreatedAt, &p.CompletedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}
