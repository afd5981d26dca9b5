package submission

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigc/internal/adapter/memory"
	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/storage"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, jobID)
	return nil
}

type env struct {
	store *memory.Store
	files *storage.FileStore
	root  string
	queue *recordingQueue
	svc   *Service
	user  *domain.User
}

func newEnv(t *testing.T, credits int64) *env {
	t.Helper()
	root := t.TempDir()
	files, err := storage.NewFileStore(root)
	require.NoError(t, err)
	store := memory.NewStore()
	store.SeedService(domain.Service{Name: domain.ServiceNameAgeTransform, Cost: 10, IsActive: true})
	store.SeedService(domain.Service{Name: domain.ServiceNameHairStyle, Cost: 10, IsActive: true})
	user := &domain.User{Username: "carol", Email: "carol@example.com", Credits: credits}
	require.NoError(t, store.Users().Create(context.Background(), user))
	queue := &recordingQueue{}
	return &env{
		store: store,
		files: files,
		root:  root,
		queue: queue,
		svc:   New(store, files, queue, Options{MaxUploadBytes: 1 << 20}, infra.NopLogger()),
		user:  user,
	}
}

func (e *env) uploads(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(e.root, storage.UploadsPrefix))
	require.NoError(t, err)
	return entries
}

func pngUpload(t *testing.T) Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return Upload{Filename: "face.png", ContentType: "image/png", Data: buf.Bytes()}
}

func TestSubmitAgeTransform(t *testing.T) {
	e := newEnv(t, 25)
	res, err := e.svc.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 70}, pngUpload(t))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, res.Status)
	assert.Equal(t, int64(15), res.CreditsRemaining)
	assert.Equal(t, []string{res.JobID}, e.queue.ids)

	job, err := e.store.Jobs().Get(context.Background(), res.JobID, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), job.CreditsUsed)
	assert.Equal(t, domain.JobKindAgeTransform, job.Input.Kind)
	assert.Equal(t, "face.png", job.Input.OriginalFilename)
	assert.True(t, e.files.Exists(job.Input.SourceImage))
	assert.Regexp(t, `^uploads/\d{8}_\d{6}_`+e.user.ID+`_[0-9a-f]{8}\.png$`, job.Input.SourceImage)

	entries, err := e.store.Ledger().Entries(context.Background(), e.user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.JobID, entries[0].JobID)
	assert.Equal(t, int64(-10), entries[0].Amount)
}

func TestSubmitHairStyle(t *testing.T) {
	e := newEnv(t, 10)
	res, err := e.svc.SubmitHairStyle(context.Background(), e.user.ID, HairStyleRequest{HairStyle: "401", AddWatermark: true}, pngUpload(t))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.CreditsRemaining)

	job, err := e.store.Jobs().Get(context.Background(), res.JobID, e.user.ID)
	require.NoError(t, err)
	require.NotNil(t, job.Input.HairStyle)
	assert.Equal(t, "401", job.Input.HairStyle.HairStyle)
	assert.True(t, job.Input.HairStyle.AddWatermark)
}

func TestSubmitRejectsBadParameters(t *testing.T) {
	e := newEnv(t, 100)
	_, err := e.svc.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 30}, pngUpload(t))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.svc.SubmitHairStyle(context.Background(), e.user.ID, HairStyleRequest{HairStyle: "999"}, pngUpload(t))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, e.uploads(t))
	assert.Empty(t, e.queue.ids)
	balance, _ := e.store.Ledger().Balance(context.Background(), e.user.ID)
	assert.Equal(t, int64(100), balance)
}

func TestSubmitRejectsBadUploads(t *testing.T) {
	e := newEnv(t, 100)
	good := pngUpload(t)
	cases := map[string]Upload{
		"empty":              {Filename: "a.png", ContentType: "image/png"},
		"declared not image": {Filename: "a.png", ContentType: "text/plain", Data: good.Data},
		"content not image":  {Filename: "a.png", ContentType: "image/png", Data: []byte("hello, world")},
		"too large":          {Filename: "a.png", ContentType: "image/png", Data: append(append([]byte{}, good.Data...), make([]byte, 1<<20)...)},
	}
	for name, up := range cases {
		_, err := e.svc.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 5}, up)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}
	assert.Empty(t, e.uploads(t))
}

// pngHeader is the signature and IHDR chunk of an 8-bit gray PNG of the
// given size; header inspection never needs the pixel data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8
	chunk := append([]byte("IHDR"), ihdr...)
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestSubmitRejectsUnprocessableImagesBeforeCharging(t *testing.T) {
	e := newEnv(t, 100)
	cases := map[string]Upload{
		"huge raster": {Filename: "bomb.png", ContentType: "image/png", Data: pngHeader(20000, 20000)},
		"bmp":         {Filename: "a.bmp", ContentType: "image/bmp", Data: append([]byte("BM"), make([]byte, 64)...)},
	}
	for name, up := range cases {
		_, err := e.svc.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 70}, up)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}
	assert.Empty(t, e.uploads(t))
	assert.Empty(t, e.queue.ids)
	balance, err := e.store.Ledger().Balance(context.Background(), e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestSubmitInsufficientCreditsCreatesNothing(t *testing.T) {
	e := newEnv(t, 5)
	_, err := e.svc.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 5}, pngUpload(t))
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)

	jobs, err := e.store.Jobs().List(context.Background(), e.user.ID, domain.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, e.uploads(t))
	assert.Empty(t, e.queue.ids)
}

func TestSubmitServiceMissingOrInactive(t *testing.T) {
	e := newEnv(t, 100)
	svc, err := e.store.Services().FindByName(context.Background(), domain.ServiceNameHairStyle)
	require.NoError(t, err)
	inactive := false
	_, err = e.store.Services().Update(context.Background(), svc.ID, domain.ServiceUpdate{IsActive: &inactive})
	require.NoError(t, err)

	_, err = e.svc.SubmitHairStyle(context.Background(), e.user.ID, HairStyleRequest{HairStyle: "101"}, pngUpload(t))
	assert.ErrorIs(t, err, domain.ErrServiceInactive)

	empty := memory.NewStore()
	require.NoError(t, empty.Users().Create(context.Background(), e.user))
	bare := New(empty, e.files, e.queue, Options{}, infra.NopLogger())
	_, err = bare.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 5}, pngUpload(t))
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)
}

func TestSubmitEnqueueFailureKeepsPendingJob(t *testing.T) {
	e := newEnv(t, 100)
	e.queue.err = errors.New("redis down")
	res, err := e.svc.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 70}, pngUpload(t))
	require.NoError(t, err)

	job, err := e.store.Jobs().Get(context.Background(), res.JobID, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, int64(90), res.CreditsRemaining)
}

func TestConcurrentSubmissionsNeverOverdraw(t *testing.T) {
	e := newEnv(t, 30)
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.svc.SubmitAgeTransform(context.Background(), e.user.ID, AgeTransformRequest{TargetAge: 5}, pngUpload(t)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	balance, err := e.store.Ledger().Balance(context.Background(), e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, accepted)
	assert.Equal(t, int64(0), balance)
}
