package repo

import (
	"context"
	"fmt"

	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.CreditLedger. Each mutation is one
// statement that updates users.credits and appends to credit_ledger.
type LedgerRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewLedgerRepository(sql infra.SQLExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql}
}

func (r *LedgerRepositoryPG) Debit(ctx context.Context, userID string, amount int64, ref domain.LedgerRef) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", domain.ErrInvalidInput)
	}
	if !validID(userID) {
		return 0, domain.ErrNotFound
	}
	if ref.Type == "" {
		ref.Type = domain.LedgerJobDebit
	}
	var balance int64
	err := r.sql.QueryRow(ctx, sqlinline.QDebitCredits,
		userID, amount, nullableID(ref.JobID), nullableID(ref.PaymentID), string(ref.Type), ref.Note,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !infra.IsNoRows(err) {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	// Nothing updated: either the balance is short or the user is gone.
	if _, err := r.Balance(ctx, userID); err != nil {
		return 0, err
	}
	return 0, domain.ErrInsufficientCredits
}

func (r *LedgerRepositoryPG) Credit(ctx context.Context, userID string, amount int64, ref domain.LedgerRef) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", domain.ErrInvalidInput)
	}
	if !validID(userID) {
		return 0, domain.ErrNotFound
	}
	var balance int64
	err := r.sql.QueryRow(ctx, sqlinline.QCreditCredits,
		userID, amount, nullableID(ref.JobID), nullableID(ref.PaymentID), string(ref.Type), ref.Note,
	).Scan(&balance)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("credit credits: %w", err)
	}
	return balance, nil
}

// Record appends a zero-amount entry, used to document a forfeit.
func (r *LedgerRepositoryPG) Record(ctx context.Context, userID string, ref domain.LedgerRef) error {
	if !validID(userID) {
		return domain.ErrNotFound
	}
	var id string
	err := r.sql.QueryRow(ctx, sqlinline.QRecordLedgerEntry,
		userID, nullableID(ref.JobID), nullableID(ref.PaymentID), string(ref.Type), ref.Note,
	).Scan(&id)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepositoryPG) Balance(ctx context.Context, userID string) (int64, error) {
	if !validID(userID) {
		return 0, domain.ErrNotFound
	}
	var balance int64
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectUserBalance, userID).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (r *LedgerRepositoryPG) Entries(ctx context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, error) {
	if !validID(userID) {
		return nil, domain.ErrNotFound
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListLedgerEntries, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.UserID, &e.JobID, &e.PaymentID, &entryType, &e.Amount, &e.BalanceAfter, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.LedgerEntryType(entryType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
