package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aigc/internal/domain"
	"aigc/internal/middleware"
)

type serviceDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TagID       string    `json:"tag_id,omitempty"`
	TagName     string    `json:"tag_name,omitempty"`
	Cost        int64     `json:"cost"`
	IsActive    bool      `json:"is_active"`
	Endpoint    string    `json:"endpoint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type tagDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func toServiceDTO(s domain.Service) serviceDTO {
	return serviceDTO{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		TagID:       s.TagID,
		TagName:     s.TagName,
		Cost:        s.Cost,
		IsActive:    s.IsActive,
		Endpoint:    s.Endpoint,
		CreatedAt:   s.CreatedAt,
	}
}

func (a *App) ListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ServiceFilter{TagID: q.Get("tag_id"), Search: q.Get("search"), ActiveOnly: true}
	if raw := q.Get("active_only"); raw != "" {
		activeOnly, err := strconv.ParseBool(raw)
		if err != nil {
			a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "active_only must be a boolean")
			return
		}
		filter.ActiveOnly = activeOnly
	}
	services, err := a.Store.Services().List(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]serviceDTO, 0, len(services))
	for _, s := range services {
		items = append(items, toServiceDTO(s))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := a.Store.Services().GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrServiceNotFound) {
		a.error(w, r, http.StatusNotFound, middleware.CodeServiceNotFound, "")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toServiceDTO(*svc))
}

func (a *App) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := a.Store.Services().ListTags(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]tagDTO, 0, len(tags))
	for _, t := range tags {
		items = append(items, tagDTO{ID: t.ID, Name: t.Name, Description: t.Description})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
