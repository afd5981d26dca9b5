package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"aigc/internal/domain"
	"aigc/internal/middleware"
	"aigc/internal/storage"
	"aigc/internal/submission"
	"aigc/pkg/zip"
)

const multipartOverhead = 1 << 20

type jobDTO struct {
	ID           string            `json:"id"`
	ServiceID    string            `json:"service_id"`
	ServiceName  string            `json:"service_name,omitempty"`
	Status       domain.JobStatus  `json:"status"`
	InputData    domain.JobInput   `json:"input_data"`
	OutputData   *domain.JobOutput `json:"output_data,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreditsUsed  int64             `json:"credits_used"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// toJobDTO renders a job; listings leave the inline result encoding out.
func toJobDTO(j domain.Job, withBase64 bool) jobDTO {
	out := j.Output
	if out != nil && !withBase64 && out.ResultImageBase64 != "" {
		trimmed := *out
		trimmed.ResultImageBase64 = ""
		out = &trimmed
	}
	return jobDTO{
		ID:           j.ID,
		ServiceID:    j.ServiceID,
		ServiceName:  j.ServiceName,
		Status:       j.Status,
		InputData:    j.Input,
		OutputData:   out,
		ErrorMessage: j.ErrorMessage,
		CreditsUsed:  j.CreditsUsed,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

// readUpload pulls the "image" part out of a multipart submission.
func (a *App) readUpload(w http.ResponseWriter, r *http.Request) (submission.Upload, bool) {
	limit := a.Submission.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, r, http.StatusRequestEntityTooLarge, middleware.CodePayloadTooLarge, "")
			return submission.Upload{}, false
		}
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "multipart form expected")
		return submission.Upload{}, false
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "image file is required")
		return submission.Upload{}, false
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "unreadable image")
		return submission.Upload{}, false
	}
	return submission.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func (a *App) SubmitAgeTransform(w http.ResponseWriter, r *http.Request) {
	up, ok := a.readUpload(w, r)
	if !ok {
		return
	}
	age, err := strconv.Atoi(strings.TrimSpace(r.FormValue("target_age")))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "target_age must be an integer")
		return
	}
	res, err := a.Submission.SubmitAgeTransform(r.Context(), a.currentUserID(r), submission.AgeTransformRequest{TargetAge: age}, up)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, res)
}

func (a *App) SubmitHairStyle(w http.ResponseWriter, r *http.Request) {
	up, ok := a.readUpload(w, r)
	if !ok {
		return
	}
	watermark := false
	if raw := strings.TrimSpace(r.FormValue("add_watermark")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			a.error(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "add_watermark must be a boolean")
			return
		}
		watermark = parsed
	}
	req := submission.HairStyleRequest{HairStyle: r.FormValue("hair_style"), AddWatermark: watermark}
	res, err := a.Submission.SubmitHairStyle(r.Context(), a.currentUserID(r), req, up)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, res)
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, domain.DefaultJobListLimit, domain.MaxJobListLimit)
	filter := domain.JobFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseJobStatus(raw)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		filter.Status = status
	}
	jobs, err := a.Store.Jobs().List(r.Context(), a.currentUserID(r), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobDTO(j, false))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJobForUser(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toJobDTO(*job, true))
}

func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	err := a.Store.Jobs().Delete(r.Context(), chi.URLParam(r, "id"), a.currentUserID(r))
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, r, http.StatusNotFound, middleware.CodeJobNotFound, "")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JobResult streams the stored result image of a completed job. Jobs that
// have not completed answer 409; completed jobs without a stored file
// (simulated results) answer 404.
func (a *App) JobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJobForUser(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusCompleted {
		a.error(w, r, http.StatusConflict, middleware.CodeResultNotReady, string(job.Status))
		return
	}
	if job.Output == nil || job.Output.ResultImagePath == "" {
		a.error(w, r, http.StatusNotFound, middleware.CodeNotFound, "job has no stored result file")
		return
	}
	rc, err := a.Files.Open(job.Output.ResultImagePath)
	if errors.Is(err, storage.ErrNotExist) {
		a.error(w, r, http.StatusNotFound, middleware.CodeNotFound, "job has no stored result file")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s", path.Base(job.Output.ResultImagePath)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// JobBundle zips the source upload and, when present, the result.
func (a *App) JobBundle(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJobForUser(w, r)
	if !ok {
		return
	}
	keys := []string{job.Input.SourceImage}
	if job.Output != nil && job.Output.ResultImagePath != "" {
		keys = append(keys, job.Output.ResultImagePath)
	}
	var assets []zip.Asset
	for _, key := range keys {
		data, err := a.Files.Read(r.Context(), key)
		if errors.Is(err, storage.ErrNotExist) {
			continue
		}
		if err != nil {
			a.fail(w, r, err)
			return
		}
		assets = append(assets, zip.Asset{Filename: key, Data: data, Modified: job.CreatedAt})
	}
	var buf bytes.Buffer
	if err := zip.ArchiveAssets(&buf, assets); err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *App) loadJobForUser(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	job, err := a.Store.Jobs().Get(r.Context(), chi.URLParam(r, "id"), a.currentUserID(r))
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, r, http.StatusNotFound, middleware.CodeJobNotFound, "")
		return nil, false
	}
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return job, true
}
