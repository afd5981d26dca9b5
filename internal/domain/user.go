package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User represents an account holding a credit balance.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         UserRole
	Credits      int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user may call admin endpoints.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}
