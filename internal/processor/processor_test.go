package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigc/internal/adapter/memory"
	"aigc/internal/domain"
	"aigc/internal/imagegen"
	"aigc/internal/infra"
	"aigc/internal/providers/volc"
	"aigc/internal/storage"
	"aigc/internal/submission"
)

type fakeTransformer struct {
	mu    sync.Mutex
	calls int
	fn    func(in domain.JobInput, src imagegen.SourceImage) (*imagegen.Result, error)
}

func (f *fakeTransformer) Transform(_ context.Context, in domain.JobInput, src imagegen.SourceImage) (*imagegen.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(in, src)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

type fixture struct {
	store     *memory.Store
	files     *storage.FileStore
	user      *domain.User
	service   domain.Service
	uploadKey string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	user := &domain.User{Username: "bob", Email: "bob@example.com", Credits: 90}
	require.NoError(t, store.Users().Create(context.Background(), user))
	svc := store.SeedService(domain.Service{Name: domain.ServiceNameAgeTransform, Cost: 10, IsActive: true})

	key, err := files.Write(context.Background(), storage.UploadKey(user.ID, ".png", time.Now()), pngBytes(t))
	require.NoError(t, err)
	return &fixture{store: store, files: files, user: user, service: svc, uploadKey: key}
}

func (f *fixture) submit(t *testing.T, source string) *domain.Job {
	t.Helper()
	job := &domain.Job{
		UserID:      f.user.ID,
		ServiceID:   f.service.ID,
		CreditsUsed: 10,
		Input: domain.JobInput{
			Kind:         domain.JobKindAgeTransform,
			SourceImage:  source,
			AgeTransform: &domain.AgeTransformParams{TargetAge: 70},
		},
	}
	require.NoError(t, f.store.Jobs().Create(context.Background(), job))
	return job
}

func (f *fixture) processor(tr imagegen.Transformer, opts Options) *Processor {
	return New(f.store, f.files, tr, opts, infra.NopLogger())
}

func (f *fixture) reload(t *testing.T, id string) *domain.Job {
	t.Helper()
	job, err := f.store.Jobs().GetByID(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.store.Ledger().Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	return b
}

func TestProcessSuccessStoresResult(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	result := pngBytes(t)
	tr := &fakeTransformer{fn: func(in domain.JobInput, src imagegen.SourceImage) (*imagegen.Result, error) {
		assert.Equal(t, 70, in.AgeTransform.TargetAge)
		assert.NotEmpty(t, src.Base64)
		return &imagegen.Result{PNG: result, Base64: base64.StdEncoding.EncodeToString(result)}, nil
	}}

	require.NoError(t, f.processor(tr, Options{}).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Output)
	assert.False(t, got.Output.Simulated)
	assert.Equal(t, f.uploadKey, got.Output.OriginalImagePath)
	require.NotNil(t, got.Output.TargetAge)
	assert.Equal(t, 70, *got.Output.TargetAge)
	assert.True(t, strings.HasPrefix(got.Output.ResultImagePath, "results/result_"+job.ID+"_"))
	assert.True(t, strings.HasSuffix(got.Output.ResultImagePath, ".png"))

	stored, err := f.files.Read(context.Background(), got.Output.ResultImagePath)
	require.NoError(t, err)
	assert.Equal(t, result, stored)
	assert.Equal(t, int64(90), f.balance(t))
}

func TestProcessProviderErrorRefunds(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return nil, &volc.APIError{Code: "50411", Message: "Pre Img Risk Not Pass"}
	}}

	require.NoError(t, f.processor(tr, Options{FailurePolicy: domain.FailurePolicyRefund}).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "Pre Img Risk Not Pass")
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.Output)
	assert.Equal(t, int64(100), f.balance(t))

	entries, err := f.store.Ledger().Entries(context.Background(), f.user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LedgerJobRefund, entries[0].Type)
	assert.Equal(t, int64(10), entries[0].Amount)
	assert.Equal(t, job.ID, entries[0].JobID)
}

func TestProcessForfeitKeepsCreditsAndRecordsEntry(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return nil, errors.New("connection reset")
	}}

	require.NoError(t, f.processor(tr, Options{FailurePolicy: domain.FailurePolicyForfeit}).Process(context.Background(), job.ID))

	assert.Equal(t, domain.JobStatusFailed, f.reload(t, job.ID).Status)
	assert.Equal(t, int64(90), f.balance(t))
	entries, err := f.store.Ledger().Entries(context.Background(), f.user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LedgerJobForfeit, entries[0].Type)
	assert.Equal(t, int64(0), entries[0].Amount)
}

func TestProcessMissingCredentialsSimulates(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return nil, imagegen.ErrCredentialsNotConfigured
	}}

	require.NoError(t, f.processor(tr, Options{Simulation: true}).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Output)
	assert.True(t, got.Output.Simulated)
	assert.Equal(t, SimulatedNote, got.Output.Note)
	assert.Equal(t, "https://example.com/result_"+job.ID+".jpg", got.Output.ResultImageURL)
	assert.Empty(t, got.Output.ResultImagePath)
	assert.Equal(t, int64(90), f.balance(t))
}

func TestProcessMissingCredentialsWithoutSimulationFails(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return nil, imagegen.ErrCredentialsNotConfigured
	}}

	require.NoError(t, f.processor(tr, Options{Simulation: false}).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, int64(100), f.balance(t))
}

func TestProcessMissingArtifactFails(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, "uploads/gone.png")
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		t.Fatal("provider must not be called without a source")
		return nil, nil
	}}

	require.NoError(t, f.processor(tr, Options{Simulation: true}).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, domain.ErrArtifactMissing.Error())
}

func TestProcessSkipsNonPendingJobs(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return nil, errors.New("unexpected call")
	}}
	p := f.processor(tr, Options{})

	for _, status := range []domain.JobStatus{domain.JobStatusProcessing, domain.JobStatusCompleted, domain.JobStatusFailed} {
		job := f.submit(t, f.uploadKey)
		f.store.SetJobStatus(job.ID, status)
		require.NoError(t, p.Process(context.Background(), job.ID))
		assert.Equal(t, status, f.reload(t, job.ID).Status)
	}
	assert.Zero(t, tr.calls)
	require.NoError(t, p.Process(context.Background(), "00000000-0000-0000-0000-000000000000"))
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	result := pngBytes(t)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return &imagegen.Result{PNG: result}, nil
	}}
	p := f.processor(tr, Options{})

	require.NoError(t, p.Process(context.Background(), job.ID))
	require.NoError(t, p.Process(context.Background(), job.ID))
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, domain.JobStatusCompleted, f.reload(t, job.ID).Status)
}

func TestProcessConcurrentDeliveriesCallProviderOnce(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	result := pngBytes(t)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return &imagegen.Result{PNG: result}, nil
	}}
	p := f.processor(tr, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Process(context.Background(), job.ID))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, domain.JobStatusCompleted, f.reload(t, job.ID).Status)
}

func TestProcessPanicMarksFailed(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		panic("boom")
	}}

	err := f.processor(tr, Options{}).Process(context.Background(), job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "boom")
	assert.Equal(t, int64(100), f.balance(t))
}

func TestProcessTimeoutFailsJob(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	tr := &fakeTransformer{}
	tr.fn = func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}

	require.NoError(t, f.processor(tr, Options{JobTimeout: 10 * time.Millisecond}).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "deadline exceeded")
}

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, string) error { return nil }

func TestRefundUsesCostSnapshotAfterPriceChange(t *testing.T) {
	f := newFixture(t)
	sub := submission.New(f.store, f.files, discardQueue{}, submission.Options{}, infra.NopLogger())
	res, err := sub.SubmitAgeTransform(context.Background(), f.user.ID, submission.AgeTransformRequest{TargetAge: 70},
		submission.Upload{Filename: "face.png", ContentType: "image/png", Data: pngBytes(t)})
	require.NoError(t, err)
	assert.Equal(t, int64(80), res.CreditsRemaining)

	cost := int64(25)
	_, err = f.store.Services().Update(context.Background(), f.service.ID, domain.ServiceUpdate{Cost: &cost})
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.reload(t, res.JobID).CreditsUsed)

	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		return nil, errors.New("provider unavailable")
	}}
	require.NoError(t, f.processor(tr, Options{FailurePolicy: domain.FailurePolicyRefund}).Process(context.Background(), res.JobID))

	got := f.reload(t, res.JobID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, int64(10), got.CreditsUsed)
	assert.Equal(t, int64(90), f.balance(t))

	entries, err := f.store.Ledger().Entries(context.Background(), f.user.ID, 10, 0)
	require.NoError(t, err)
	var refunds []domain.LedgerEntry
	for _, e := range entries {
		if e.Type == domain.LedgerJobRefund {
			refunds = append(refunds, e)
		}
	}
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(10), refunds[0].Amount)
}

func TestProcessMalformedStoredInputFailsAndRefunds(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, f.uploadKey)
	require.NoError(t, f.store.SetRawInput(job.ID, []byte(`{"kind":"age_transform","age_transform":`)))
	tr := &fakeTransformer{fn: func(domain.JobInput, imagegen.SourceImage) (*imagegen.Result, error) {
		t.Fatalf("provider must not be called for an undecodable input")
		return nil, nil
	}}

	require.NoError(t, f.processor(tr, Options{FailurePolicy: domain.FailurePolicyRefund}).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Contains(t, got.ErrorMessage, "decode job input")
	assert.Equal(t, 0, tr.calls)
	assert.Equal(t, int64(100), f.balance(t))
}
