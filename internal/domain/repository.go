package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
}

// CreditLedger mutates balances. Debit is a single conditional update and
// never drives a balance below zero; every call appends one ledger entry.
type CreditLedger interface {
	Debit(ctx context.Context, userID string, amount int64, ref LedgerRef) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, ref LedgerRef) (int64, error)
	Record(ctx context.Context, userID string, ref LedgerRef) error
	Balance(ctx context.Context, userID string) (int64, error)
	Entries(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error)
}

// JobRepository persists jobs. Status updates are conditional on the
// expected source status and report ErrInvalidTransition otherwise.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id, ownerID string) (*Job, error)
	GetByID(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, ownerID string, filter JobFilter) ([]Job, error)
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id string, output *JobOutput, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, completedAt time.Time) error
	Delete(ctx context.Context, id, ownerID string) error
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// ServiceRepository reads and edits the catalog.
type ServiceRepository interface {
	FindByName(ctx context.Context, name string) (*Service, error)
	GetByID(ctx context.Context, id string) (*Service, error)
	List(ctx context.Context, filter ServiceFilter) ([]Service, error)
	ListTags(ctx context.Context) ([]ServiceTag, error)
	Update(ctx context.Context, id string, update ServiceUpdate) (*Service, error)
}

// PaymentRepository persists top-ups.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id, ownerID string) (*Payment, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]Payment, error)
	MarkSucceeded(ctx context.Context, id, ownerID string, completedAt time.Time) (*Payment, error)
}

// Store groups the repositories and runs them inside one transaction.
type Store interface {
	Users() UserRepository
	Ledger() CreditLedger
	Jobs() JobRepository
	Services() ServiceRepository
	Payments() PaymentRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}
