// Package memory implements domain.Store in process memory. It mirrors the
// PostgreSQL repositories closely enough to back unit tests and local runs
// without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"aigc/internal/domain"
)

type state struct {
	users    map[string]domain.User
	services map[string]domain.Service
	tags     map[string]domain.ServiceTag
	jobs     map[string]domain.Job
	payments map[string]domain.Payment
	ledger   []domain.LedgerEntry
}

func (s *state) clone() *state {
	c := &state{
		users:    make(map[string]domain.User, len(s.users)),
		services: make(map[string]domain.Service, len(s.services)),
		tags:     make(map[string]domain.ServiceTag, len(s.tags)),
		jobs:     make(map[string]domain.Job, len(s.jobs)),
		payments: make(map[string]domain.Payment, len(s.payments)),
		ledger:   append([]domain.LedgerEntry(nil), s.ledger...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// Store is a mutex-guarded domain.Store. WithinTx snapshots the state and
// restores it when the callback fails.
type Store struct {
	mu   *sync.Mutex
	st   *state
	now  func() time.Time
	inTx bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		st: &state{
			users:    map[string]domain.User{},
			services: map[string]domain.Service{},
			tags:     map[string]domain.ServiceTag{},
			jobs:     map[string]domain.Job{},
			payments: map[string]domain.Payment{},
		},
		now: time.Now,
	}
}

// lock acquires the store mutex unless the caller already holds it through
// WithinTx.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() domain.UserRepository       { return userRepo{s} }
func (s *Store) Ledger() domain.CreditLedger        { return ledgerRepo{s} }
func (s *Store) Jobs() domain.JobRepository         { return jobRepo{s} }
func (s *Store) Services() domain.ServiceRepository { return serviceRepo{s} }
func (s *Store) Payments() domain.PaymentRepository { return paymentRepo{s} }

// WithinTx serialises fn against every other store call and rolls back all
// of its writes when it returns an error or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	tx := &Store{mu: s.mu, st: s.st, now: s.now, inTx: true}
	defer func() {
		if p := recover(); p != nil {
			*s.st = *snapshot
			panic(p)
		}
		if err != nil {
			*s.st = *snapshot
		}
	}()
	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(tx)
}

var _ domain.Store = (*Store)(nil)

// SeedService adds a catalog entry and returns it with its assigned id.
func (s *Store) SeedService(svc domain.Service) domain.Service {
	unlock := s.lock()
	defer unlock()
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if svc.TagID != "" {
		if tag, ok := s.st.tags[svc.TagID]; ok {
			svc.TagName = tag.Name
		}
	}
	now := s.now()
	svc.CreatedAt, svc.UpdatedAt = now, now
	s.st.services[svc.ID] = svc
	return svc
}

// SetRawInput overwrites the stored input bytes of job id, standing in for a
// row written by another version of the schema.
func (s *Store) SetRawInput(id string, raw []byte) error {
	unlock := s.lock()
	defer unlock()
	job, ok := s.st.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.RawInput = append([]byte(nil), raw...)
	s.st.jobs[id] = job
	return nil
}

// SeedTag adds a service tag.
func (s *Store) SeedTag(tag domain.ServiceTag) domain.ServiceTag {
	unlock := s.lock()
	defer unlock()
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	tag.CreatedAt = s.now()
	s.st.tags[tag.ID] = tag
	return tag
}

// SetJobStatus forces a job into a status; tests use it to build fixtures.
func (s *Store) SetJobStatus(id string, status domain.JobStatus) {
	unlock := s.lock()
	defer unlock()
	if job, ok := s.st.jobs[id]; ok {
		job.Status = status
		s.st.jobs[id] = job
	}
}

// ---- users ----

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	unlock := r.s.lock()
	defer unlock()
	for _, u := range r.s.st.users {
		if strings.EqualFold(u.Username, user.Username) || (user.Email != "" && strings.EqualFold(u.Email, user.Email)) {
			return fmt.Errorf("%w: username or email already registered", domain.ErrConflict)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.UserRoleUser
	}
	if user.Credits < 0 {
		return fmt.Errorf("%w: negative balance", domain.ErrInvalidInput)
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	user.IsActive = true
	r.s.st.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	unlock := r.s.lock()
	defer unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	unlock := r.s.lock()
	defer unlock()
	login = strings.TrimSpace(login)
	for _, u := range r.s.st.users {
		if u.Username == login || strings.EqualFold(u.Email, login) {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- ledger ----

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) apply(userID string, delta int64, ref domain.LedgerRef) (int64, error) {
	u, ok := r.s.st.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if u.Credits+delta < 0 {
		return 0, domain.ErrInsufficientCredits
	}
	u.Credits += delta
	u.UpdatedAt = r.s.now()
	r.s.st.users[userID] = u
	r.s.st.ledger = append(r.s.st.ledger, domain.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		JobID:        ref.JobID,
		PaymentID:    ref.PaymentID,
		Type:         ref.Type,
		Amount:       delta,
		BalanceAfter: u.Credits,
		Note:         ref.Note,
		CreatedAt:    r.s.now(),
	})
	return u.Credits, nil
}

func (r ledgerRepo) Debit(_ context.Context, userID string, amount int64, ref domain.LedgerRef) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", domain.ErrInvalidInput)
	}
	if ref.Type == "" {
		ref.Type = domain.LedgerJobDebit
	}
	unlock := r.s.lock()
	defer unlock()
	return r.apply(userID, -amount, ref)
}

func (r ledgerRepo) Credit(_ context.Context, userID string, amount int64, ref domain.LedgerRef) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", domain.ErrInvalidInput)
	}
	unlock := r.s.lock()
	defer unlock()
	return r.apply(userID, amount, ref)
}

func (r ledgerRepo) Record(_ context.Context, userID string, ref domain.LedgerRef) error {
	unlock := r.s.lock()
	defer unlock()
	_, err := r.apply(userID, 0, ref)
	return err
}

func (r ledgerRepo) Balance(_ context.Context, userID string) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	u, ok := r.s.st.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return u.Credits, nil
}

func (r ledgerRepo) Entries(_ context.Context, userID string, limit, offset int) ([]domain.LedgerEntry, error) {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := r.s.st.users[userID]; !ok {
		return nil, domain.ErrNotFound
	}
	var entries []domain.LedgerEntry
	for i := len(r.s.st.ledger) - 1; i >= 0; i-- {
		if e := r.s.st.ledger[i]; e.UserID == userID {
			entries = append(entries, e)
		}
	}
	return page(entries, limit, offset), nil
}

// ---- jobs ----

type jobRepo struct{ s *Store }

func (r jobRepo) Create(_ context.Context, job *domain.Job) error {
	if err := job.Input.Validate(); err != nil {
		return err
	}
	unlock := r.s.lock()
	defer unlock()
	if _, ok := r.s.st.users[job.UserID]; !ok {
		return domain.ErrNotFound
	}
	svc, ok := r.s.st.services[job.ServiceID]
	if !ok {
		return domain.ErrServiceNotFound
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	raw, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("encode job input: %w", err)
	}
	job.ServiceName = svc.Name
	job.Status = domain.JobStatusPending
	job.CreatedAt = r.s.now()
	stored := *job
	stored.RawInput = raw
	r.s.st.jobs[job.ID] = stored
	return nil
}

func (r jobRepo) Get(_ context.Context, id, ownerID string) (*domain.Job, error) {
	unlock := r.s.lock()
	defer unlock()
	job, ok := r.s.st.jobs[id]
	if !ok || job.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (r jobRepo) GetByID(_ context.Context, id string) (*domain.Job, error) {
	unlock := r.s.lock()
	defer unlock()
	job, ok := r.s.st.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (r jobRepo) List(_ context.Context, ownerID string, filter domain.JobFilter) ([]domain.Job, error) {
	filter = filter.Normalize()
	unlock := r.s.lock()
	defer unlock()
	var jobs []domain.Job
	for _, job := range r.s.st.jobs {
		if job.UserID != ownerID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	out := page(jobs, filter.Limit, filter.Offset)
	if out == nil {
		out = []domain.Job{}
	}
	return out, nil
}

func (r jobRepo) update(id string, allowed func(domain.Job) bool, fn func(*domain.Job)) error {
	unlock := r.s.lock()
	defer unlock()
	job, ok := r.s.st.jobs[id]
	if !ok || !allowed(job) {
		return domain.ErrInvalidTransition
	}
	fn(&job)
	r.s.st.jobs[id] = job
	return nil
}

func (r jobRepo) MarkProcessing(_ context.Context, id string, startedAt time.Time) error {
	return r.update(id, func(j domain.Job) bool {
		return j.Status == domain.JobStatusPending && j.StartedAt == nil
	}, func(j *domain.Job) {
		j.Status = domain.JobStatusProcessing
		j.StartedAt = &startedAt
	})
}

func (r jobRepo) MarkCompleted(_ context.Context, id string, output *domain.JobOutput, completedAt time.Time) error {
	return r.update(id, func(j domain.Job) bool {
		return j.Status == domain.JobStatusProcessing
	}, func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
		out := *output
		j.Output = &out
		j.CompletedAt = &completedAt
	})
}

func (r jobRepo) MarkFailed(_ context.Context, id, message string, completedAt time.Time) error {
	return r.update(id, func(j domain.Job) bool {
		return j.Status == domain.JobStatusProcessing && j.CompletedAt == nil
	}, func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.ErrorMessage = message
		j.CompletedAt = &completedAt
	})
}

func (r jobRepo) Delete(_ context.Context, id, ownerID string) error {
	unlock := r.s.lock()
	defer unlock()
	job, ok := r.s.st.jobs[id]
	if !ok || job.UserID != ownerID {
		return domain.ErrNotFound
	}
	if !job.Status.Terminal() {
		return domain.ErrJobInFlight
	}
	delete(r.s.st.jobs, id)
	for i := range r.s.st.ledger {
		if r.s.st.ledger[i].JobID == id {
			r.s.st.ledger[i].JobID = ""
		}
	}
	return nil
}

func (r jobRepo) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]string, error) {
	unlock := r.s.lock()
	defer unlock()
	var jobs []domain.Job
	for _, job := range r.s.st.jobs {
		if job.Status == domain.JobStatusPending && job.CreatedAt.Before(before) {
			jobs = append(jobs, job)
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return ids, nil
}

// ---- services ----

type serviceRepo struct{ s *Store }

func (r serviceRepo) FindByName(_ context.Context, name string) (*domain.Service, error) {
	unlock := r.s.lock()
	defer unlock()
	for _, svc := range r.s.st.services {
		if svc.Name == name {
			return &svc, nil
		}
	}
	return nil, domain.ErrServiceNotFound
}

func (r serviceRepo) GetByID(_ context.Context, id string) (*domain.Service, error) {
	unlock := r.s.lock()
	defer unlock()
	svc, ok := r.s.st.services[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &svc, nil
}

func (r serviceRepo) List(_ context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	unlock := r.s.lock()
	defer unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	services := []domain.Service{}
	for _, svc := range r.s.st.services {
		if filter.ActiveOnly && !svc.IsActive {
			continue
		}
		if filter.TagID != "" && svc.TagID != filter.TagID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(svc.Name), search) && !strings.Contains(strings.ToLower(svc.Description), search) {
			continue
		}
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}

func (r serviceRepo) ListTags(_ context.Context) ([]domain.ServiceTag, error) {
	unlock := r.s.lock()
	defer unlock()
	tags := []domain.ServiceTag{}
	for _, t := range r.s.st.tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (r serviceRepo) Update(_ context.Context, id string, update domain.ServiceUpdate) (*domain.Service, error) {
	unlock := r.s.lock()
	defer unlock()
	svc, ok := r.s.st.services[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if update.Cost != nil {
		svc.Cost = *update.Cost
	}
	if update.IsActive != nil {
		svc.IsActive = *update.IsActive
	}
	if update.Description != nil {
		svc.Description = *update.Description
	}
	svc.UpdatedAt = r.s.now()
	r.s.st.services[id] = svc
	return &svc, nil
}

// ---- payments ----

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	unlock := r.s.lock()
	defer unlock()
	for _, existing := range r.s.st.payments {
		if existing.TransactionID == p.TransactionID {
			return fmt.Errorf("%w: duplicate transaction id", domain.ErrConflict)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = domain.PaymentStatusPending
	p.CreatedAt = r.s.now()
	r.s.st.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Get(_ context.Context, id, ownerID string) (*domain.Payment, error) {
	unlock := r.s.lock()
	defer unlock()
	p, ok := r.s.st.payments[id]
	if !ok || p.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r paymentRepo) List(_ context.Context, ownerID string, limit, offset int) ([]domain.Payment, error) {
	unlock := r.s.lock()
	defer unlock()
	payments := []domain.Payment{}
	for _, p := range r.s.st.payments {
		if p.UserID == ownerID {
			payments = append(payments, p)
		}
	}
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	out := page(payments, limit, offset)
	if out == nil {
		out = []domain.Payment{}
	}
	return out, nil
}

func (r paymentRepo) MarkSucceeded(_ context.Context, id, ownerID string, completedAt time.Time) (*domain.Payment, error) {
	unlock := r.s.lock()
	defer unlock()
	p, ok := r.s.st.payments[id]
	if !ok || p.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("%w: payment is not pending", domain.ErrConflict)
	}
	p.Status = domain.PaymentStatusSuccess
	p.CompletedAt = &completedAt
	r.s.st.payments[id] = p
	return &p, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
