package domain

import "time"

// LedgerEntryType classifies a balance mutation.
type LedgerEntryType string

const (
	LedgerJobDebit      LedgerEntryType = "job_debit"
	LedgerJobRefund     LedgerEntryType = "job_refund"
	LedgerJobForfeit    LedgerEntryType = "job_forfeit"
	LedgerPaymentCredit LedgerEntryType = "payment_credit"
	LedgerAdminGrant    LedgerEntryType = "admin_grant"
)

// LedgerRef ties a balance mutation to the event that caused it.
type LedgerRef struct {
	Type      LedgerEntryType
	JobID     string
	PaymentID string
	Note      string
}

// LedgerEntry is one append-only record of a balance mutation. Amount is
// signed: debits are negative.
type LedgerEntry struct {
	ID           string
	UserID       string
	JobID        string
	PaymentID    string
	Type         LedgerEntryType
	Amount       int64
	BalanceAfter int64
	Note         string
	CreatedAt    time.Time
}

// FailurePolicy decides the fate of credits spent on a failed job.
type FailurePolicy string

const (
	FailurePolicyRefund  FailurePolicy = "refund"
	FailurePolicyForfeit FailurePolicy = "forfeit"
)
