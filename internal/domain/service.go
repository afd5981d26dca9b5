package domain

import "time"

// ServiceTag groups catalogued services.
type ServiceTag struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Service is a catalogued, priced capability.
type Service struct {
	ID          string
	Name        string
	Description string
	TagID       string
	TagName     string
	Cost        int64
	IsActive    bool
	Endpoint    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ServiceFilter narrows catalog listings.
type ServiceFilter struct {
	TagID      string
	Search     string
	ActiveOnly bool
}

// ServiceUpdate carries admin edits; nil fields are left untouched.
type ServiceUpdate struct {
	Cost        *int64
	IsActive    *bool
	Description *string
}
