package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a pending job. ID is assigned when empty.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Input.Validate(); err != nil {
		return err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	input, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("encode job input: %w", err)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob, job.ID, job.UserID, job.ServiceID, input, job.CreditsUsed)
	if err := row.Scan(&job.CreatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	job.Status = domain.JobStatusPending
	return nil
}

// Get fetches a job owned by ownerID.
func (r *JobRepositoryPG) Get(ctx context.Context, id, ownerID string) (*domain.Job, error) {
	if !validID(id, ownerID) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobForOwner, id, ownerID))
}

// GetByID fetches a job regardless of owner; the processor uses it.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, id))
}

// List returns the owner's jobs, newest first.
func (r *JobRepositoryPG) List(ctx context.Context, ownerID string, filter domain.JobFilter) ([]domain.Job, error) {
	if !validID(ownerID) {
		return nil, domain.ErrNotFound
	}
	filter = filter.Normalize()
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsForOwner, ownerID, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0, filter.Limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepositoryPG) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	return r.transition(ctx, sqlinline.QMarkJobProcessing, id, startedAt)
}

func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, id string, output *domain.JobOutput, completedAt time.Time) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode job output: %w", err)
	}
	return r.transition(ctx, sqlinline.QMarkJobCompleted, id, payload, completedAt)
}

func (r *JobRepositoryPG) MarkFailed(ctx context.Context, id, message string, completedAt time.Time) error {
	return r.transition(ctx, sqlinline.QMarkJobFailed, id, message, completedAt)
}

func (r *JobRepositoryPG) transition(ctx context.Context, query, id string, args ...any) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// Delete removes a terminal job. A pending or processing job yields
// domain.ErrJobInFlight and stays untouched.
func (r *JobRepositoryPG) Delete(ctx context.Context, id, ownerID string) error {
	if !validID(id, ownerID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteTerminalJob, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var status string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectJobStatusForOwner, id, ownerID).Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return domain.ErrJobInFlight
}

// ListPendingBefore returns ids of jobs still pending that were created before
// the cutoff.
func (r *JobRepositoryPG) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPendingJobsBefore, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
		input  []byte
		output []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ServiceID,
		&job.ServiceName,
		&status,
		&input,
		&output,
		&job.ErrorMessage,
		&job.CreditsUsed,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	// A malformed input must not hide the job from the processor, which
	// claims it first and then decodes RawInput.
	job.RawInput = input
	if err := json.Unmarshal(input, &job.Input); err != nil {
		job.Input = domain.JobInput{}
	}
	if len(output) > 0 {
		var out domain.JobOutput
		if err := json.Unmarshal(output, &out); err != nil {
			return nil, fmt.Errorf("decode job %s output: %w", job.ID, err)
		}
		job.Output = &out
	}
	return &job, nil
}
