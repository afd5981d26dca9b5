package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// Create inserts the user; ID is assigned when empty. Duplicate username or
// email is reported as domain.ErrConflict.
func (r *UserRepositoryPG) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.UserRoleUser
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertUser,
		user.ID,
		strings.TrimSpace(user.Username),
		strings.TrimSpace(user.Email),
		user.PasswordHash,
		string(user.Role),
		user.Credits,
	)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already registered", domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.IsActive = true
	return nil
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id))
}

// GetByLogin fetches a user by username or email.
func (r *UserRepositoryPG) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, domain.ErrNotFound
	}
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByLogin, login))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.Credits, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.Role = domain.UserRole(role)
	return &u, nil
}
