package domain

import "time"

// PaymentStatus enumerates payment states.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment records a credit top-up. No gateway settles it; confirmation is
// explicit.
type Payment struct {
	ID            string
	UserID        string
	Amount        float64
	Credits       int64
	Status        PaymentStatus
	Method        string
	TransactionID string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// CreditPackage is a fixed top-up offer.
type CreditPackage struct {
	ID      int     `json:"id"`
	Credits int64   `json:"credits"`
	Price   float64 `json:"price"`
	Bonus   int64   `json:"bonus"`
}

// Total is the number of credits granted when the package is paid.
func (p CreditPackage) Total() int64 {
	return p.Credits + p.Bonus
}

// CreditPackages lists the offers in display order.
var CreditPackages = []CreditPackage{
	{ID: 1, Credits: 100, Price: 10.0, Bonus: 0},
	{ID: 2, Credits: 500, Price: 45.0, Bonus: 50},
	{ID: 3, Credits: 1000, Price: 80.0, Bonus: 200},
	{ID: 4, Credits: 5000, Price: 350.0, Bonus: 1500},
}

// FindCreditPackage looks a package up by id.
func FindCreditPackage(id int) (CreditPackage, bool) {
	for _, p := range CreditPackages {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}
