package repo

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/sqlinline"
)

// ServiceRepositoryPG implements domain.ServiceRepository.
type ServiceRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewServiceRepository(sql infra.SQLExecutor) *ServiceRepositoryPG {
	return &ServiceRepositoryPG{sql: sql}
}

// FindByName resolves a catalog entry by its exact name.
func (r *ServiceRepositoryPG) FindByName(ctx context.Context, name string) (*domain.Service, error) {
	svc, err := scanService(r.sql.QueryRow(ctx, sqlinline.QSelectServiceByName, name))
	if err == domain.ErrNotFound {
		return nil, domain.ErrServiceNotFound
	}
	return svc, err
}

func (r *ServiceRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanService(r.sql.QueryRow(ctx, sqlinline.QSelectServiceByID, id))
}

func (r *ServiceRepositoryPG) List(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	tagID := strings.TrimSpace(filter.TagID)
	if tagID != "" && !validID(tagID) {
		return []domain.Service{}, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListServices, tagID, strings.TrimSpace(filter.Search), filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	services := []domain.Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}
	return services, rows.Err()
}

func (r *ServiceRepositoryPG) ListTags(ctx context.Context) ([]domain.ServiceTag, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListServiceTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tags := []domain.ServiceTag{}
	for rows.Next() {
		var t domain.ServiceTag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Update applies admin edits. Existing jobs keep their credits_used snapshot.
func (r *ServiceRepositoryPG) Update(ctx context.Context, id string, update domain.ServiceUpdate) (*domain.Service, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanService(r.sql.QueryRow(ctx, sqlinline.QUpdateService, id, update.Cost, update.IsActive, update.Description))
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.TagID, &s.TagName, &s.Cost, &s.IsActive, &s.Endpoint, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
