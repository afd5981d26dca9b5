// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"aigc/internal/domain"
)

// ErrInvalidToken covers malformed, forged and expired tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID   string
	Username string
	Role     domain.UserRole
}

// TokenManager issues signed JWTs for authenticated users.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (t *TokenManager) TTL() time.Duration {
	return t.ttl
}

// Generate issues a signed JWT string for the provided user.
func (t *TokenManager) Generate(user *domain.User) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"iss":      t.issuer,
		"sub":      user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses raw and returns its claims when signature, issuer and
// lifetime check out.
func (t *TokenManager) Verify(raw string) (*Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = string(domain.UserRoleUser)
	}
	return &Claims{UserID: sub, Username: username, Role: domain.UserRole(role)}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
