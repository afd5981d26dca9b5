package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigc/internal/domain"
)

func seed(t *testing.T, credits int64) (*Store, *domain.User, domain.Service) {
	t.Helper()
	s := NewStore()
	user := &domain.User{Username: "alice", Email: "alice@example.com", Credits: credits}
	require.NoError(t, s.Users().Create(context.Background(), user))
	svc := s.SeedService(domain.Service{Name: domain.ServiceNameAgeTransform, Cost: 10, IsActive: true})
	return s, user, svc
}

func ageJob(userID, serviceID string) *domain.Job {
	return &domain.Job{
		UserID:      userID,
		ServiceID:   serviceID,
		CreditsUsed: 10,
		Input: domain.JobInput{
			Kind:         domain.JobKindAgeTransform,
			SourceImage:  "uploads/x.png",
			AgeTransform: &domain.AgeTransformParams{TargetAge: 70},
		},
	}
}

func TestDebitNeverGoesNegative(t *testing.T) {
	s, user, _ := seed(t, 15)
	ctx := context.Background()

	balance, err := s.Ledger().Debit(ctx, user.ID, 10, domain.LedgerRef{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	_, err = s.Ledger().Debit(ctx, user.ID, 10, domain.LedgerRef{})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	balance, err = s.Ledger().Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	entries, err := s.Ledger().Entries(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LedgerJobDebit, entries[0].Type)
	assert.Equal(t, int64(-10), entries[0].Amount)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s, user, svc := seed(t, 100)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx domain.Store) error {
		require.NoError(t, tx.Jobs().Create(ctx, ageJob(user.ID, svc.ID)))
		if _, err := tx.Ledger().Debit(ctx, user.ID, 10, domain.LedgerRef{}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := s.Ledger().Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	jobs, err := s.Jobs().List(ctx, user.ID, domain.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJobTransitions(t *testing.T) {
	s, user, svc := seed(t, 100)
	ctx := context.Background()
	job := ageJob(user.ID, svc.ID)
	require.NoError(t, s.Jobs().Create(ctx, job))
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, svc.Name, job.ServiceName)

	assert.ErrorIs(t, s.Jobs().MarkCompleted(ctx, job.ID, &domain.JobOutput{}, time.Now()), domain.ErrInvalidTransition)
	assert.ErrorIs(t, s.Jobs().MarkFailed(ctx, job.ID, "x", time.Now()), domain.ErrInvalidTransition)

	require.NoError(t, s.Jobs().MarkProcessing(ctx, job.ID, time.Now()))
	assert.ErrorIs(t, s.Jobs().MarkProcessing(ctx, job.ID, time.Now()), domain.ErrInvalidTransition)
	assert.ErrorIs(t, s.Jobs().Delete(ctx, job.ID, user.ID), domain.ErrJobInFlight)

	require.NoError(t, s.Jobs().MarkCompleted(ctx, job.ID, &domain.JobOutput{ResultImagePath: "results/r.png"}, time.Now()))
	assert.ErrorIs(t, s.Jobs().MarkFailed(ctx, job.ID, "late", time.Now()), domain.ErrInvalidTransition)

	got, err := s.Jobs().Get(ctx, job.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "results/r.png", got.Output.ResultImagePath)

	_, err = s.Jobs().Get(ctx, job.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Jobs().Delete(ctx, job.ID, user.ID))
	_, err = s.Jobs().Get(ctx, job.ID, user.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListJobsNewestFirstWithStatusFilter(t *testing.T) {
	s, user, svc := seed(t, 100)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		job := ageJob(user.ID, svc.ID)
		require.NoError(t, s.Jobs().Create(ctx, job))
		ids = append(ids, job.ID)
	}
	s.SetJobStatus(ids[1], domain.JobStatusFailed)

	jobs, err := s.Jobs().List(ctx, user.ID, domain.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[0], jobs[2].ID)

	failed, err := s.Jobs().List(ctx, user.ID, domain.JobFilter{Status: domain.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ids[1], failed[0].ID)

	pending, err := s.Jobs().ListPendingBefore(ctx, base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2]}, pending)
}

func TestPaymentConfirmOnlyOnce(t *testing.T) {
	s, user, _ := seed(t, 0)
	ctx := context.Background()
	p := &domain.Payment{UserID: user.ID, Amount: 10, Credits: 100, Method: "alipay", TransactionID: "PAY_1"}
	require.NoError(t, s.Payments().Create(ctx, p))
	assert.ErrorIs(t, s.Payments().Create(ctx, &domain.Payment{UserID: user.ID, TransactionID: "PAY_1"}), domain.ErrConflict)

	done, err := s.Payments().MarkSucceeded(ctx, p.ID, user.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, done.Status)

	_, err = s.Payments().MarkSucceeded(ctx, p.ID, user.ID, time.Now())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDuplicateUserRejected(t *testing.T) {
	s, _, _ := seed(t, 0)
	err := s.Users().Create(context.Background(), &domain.User{Username: "ALICE", Email: "other@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}
