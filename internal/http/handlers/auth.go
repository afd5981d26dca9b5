package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"aigc/internal/auth"
	"aigc/internal/domain"
	"aigc/internal/middleware"
)

var validate = validator.New()

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string  `json:"access_token"`
	TokenType string  `json:"token_type"`
	ExpiresIn int64   `json:"expires_in"`
	User      userDTO `json:"user"`
}

type userDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Credits   int64     `json:"credits"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		Credits:   u.Credits,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
		Credits:      a.Config.DefaultCredits,
		IsActive:     true,
	}
	if err := a.Store.Users().Create(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			a.error(w, r, http.StatusConflict, middleware.CodeAlreadyExists, "")
			return
		}
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Str("user_id", user.ID).Msg("user registered")
	a.issueToken(w, r, http.StatusCreated, user)
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, err.Error())
		return
	}
	user, err := a.Store.Users().GetByLogin(r.Context(), req.Username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.fail(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		a.error(w, r, http.StatusUnauthorized, middleware.CodeInvalidCredentials, "")
		return
	}
	if !user.IsActive {
		a.error(w, r, http.StatusForbidden, middleware.CodeAccountDisabled, "")
		return
	}
	a.issueToken(w, r, http.StatusOK, user)
}

func (a *App) issueToken(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	token, err := a.Tokens.Generate(user)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, status, tokenResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int64(a.Tokens.TTL().Seconds()),
		User:      toUserDTO(user),
	})
}
