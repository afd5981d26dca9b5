// Package repo implements the domain repositories on PostgreSQL through the
// marker-enforcing infra.SQLExecutor.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"aigc/internal/domain"
	"aigc/internal/infra"
)

// Store binds every repository to one executor. When the executor can open
// transactions, WithinTx runs the callback against a transaction-bound Store.
type Store struct {
	sql infra.SQLExecutor
	tx  infra.TxRunner
}

// NewStore creates a Store on top of sql.
func NewStore(sql infra.SQLExecutor) *Store {
	s := &Store{sql: sql}
	if tx, ok := sql.(infra.TxRunner); ok {
		s.tx = tx
	}
	return s
}

func (s *Store) Users() domain.UserRepository       { return NewUserRepository(s.sql) }
func (s *Store) Ledger() domain.CreditLedger        { return NewLedgerRepository(s.sql) }
func (s *Store) Jobs() domain.JobRepository         { return NewJobRepository(s.sql) }
func (s *Store) Services() domain.ServiceRepository { return NewServiceRepository(s.sql) }
func (s *Store) Payments() domain.PaymentRepository { return NewPaymentRepository(s.sql) }

// WithinTx runs fn inside one transaction. Without transaction support the
// callback runs directly on the current executor.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	if s.tx == nil {
		return fn(s)
	}
	return s.tx.InTx(ctx, func(exec infra.SQLExecutor) error {
		return fn(&Store{sql: exec})
	})
}

var _ domain.Store = (*Store)(nil)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// validID keeps malformed identifiers from reaching a ::uuid cast, which would
// surface as a server error instead of not found.
func validID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
