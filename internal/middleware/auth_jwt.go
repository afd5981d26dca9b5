package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"aigc/internal/auth"
	"aigc/internal/domain"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// UserLookup loads the account behind a verified token.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type userKey string

const (
	userIDKey   userKey = "user_id"
	userRoleKey userKey = "user_role"
)

// AuthJWT rejects requests without a valid bearer token. When users is set
// the account must still exist and be active.
func AuthJWT(verifier TokenVerifier, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteError(r.Context(), w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				WriteError(r.Context(), w, http.StatusUnauthorized, CodeUnauthorized, "invalid authorization")
				return
			}
			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				WriteError(r.Context(), w, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
				return
			}
			role := claims.Role
			if users != nil {
				user, err := users.GetByID(r.Context(), claims.UserID)
				switch {
				case errors.Is(err, domain.ErrNotFound):
					WriteError(r.Context(), w, http.StatusUnauthorized, CodeUnauthorized, "unknown user")
					return
				case err != nil:
					WriteError(r.Context(), w, http.StatusInternalServerError, CodeInternal, "")
					return
				case !user.IsActive:
					WriteError(r.Context(), w, http.StatusForbidden, CodeAccountDisabled, "")
					return
				}
				role = user.Role
			}
			ctx := ContextWithUserID(r.Context(), claims.UserID)
			ctx = context.WithValue(ctx, userRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets only admin callers through. It runs after AuthJWT.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != domain.UserRoleAdmin {
			WriteError(r.Context(), w, http.StatusForbidden, CodeForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) domain.UserRole {
	if v, ok := ctx.Value(userRoleKey).(domain.UserRole); ok {
		return v
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if strings.TrimSpace(userID) == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// ContextWithRole stores role; tests use it to skip token plumbing.
func ContextWithRole(ctx context.Context, role domain.UserRole) context.Context {
	return context.WithValue(ctx, userRoleKey, role)
}
