// Package submission accepts paid job requests: it validates the upload,
// charges the caller and hands the job to the queue.
package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"aigc/internal/domain"
	"aigc/internal/imagegen"
	"aigc/internal/infra"
	"aigc/internal/metrics"
	"aigc/internal/storage"
)

// DefaultMaxUploadBytes applies when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// Enqueuer hands a committed job id to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Artifacts is the part of the artifact store submission needs.
type Artifacts interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Remove(key string) error
}

// AgeTransformRequest are the parameters of an age transform submission.
type AgeTransformRequest struct {
	TargetAge int `json:"target_age" validate:"required,oneof=5 70"`
}

// HairStyleRequest are the parameters of a hairstyle submission.
type HairStyleRequest struct {
	HairStyle    string `json:"hair_style" validate:"required,oneof=101 201 301 401 501"`
	AddWatermark bool   `json:"add_watermark"`
}

// Upload is the source image as received.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result is returned to the caller right after the job is accepted.
type Result struct {
	JobID            string           `json:"job_id"`
	Status           domain.JobStatus `json:"status"`
	CreditsRemaining int64            `json:"credits_remaining"`
}

// Options tune submission.
type Options struct {
	MaxUploadBytes int64
	Now            func() time.Time
}

// Service accepts submissions.
type Service struct {
	store     domain.Store
	artifacts Artifacts
	queue     Enqueuer
	validate  *validator.Validate
	maxUpload int64
	now       func() time.Time
	logger    infra.Logger
}

func New(store domain.Store, artifacts Artifacts, queue Enqueuer, opts Options, logger infra.Logger) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		artifacts: artifacts,
		queue:     queue,
		validate:  validator.New(),
		maxUpload: opts.MaxUploadBytes,
		now:       opts.Now,
		logger:    infra.Component(logger, "submission"),
	}
}

// MaxUploadBytes is the accepted upload size limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxUpload
}

// SubmitAgeTransform charges the caller for an age transform of up.
func (s *Service) SubmitAgeTransform(ctx context.Context, userID string, req AgeTransformRequest, up Upload) (*Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.reject("params", fmt.Errorf("%w: target_age must be one of %v", domain.ErrInvalidInput, domain.AllowedTargetAges))
	}
	return s.submit(ctx, userID, domain.ServiceNameAgeTransform, up, func(source, filename string) domain.JobInput {
		return domain.JobInput{
			Kind:             domain.JobKindAgeTransform,
			SourceImage:      source,
			OriginalFilename: filename,
			AgeTransform:     &domain.AgeTransformParams{TargetAge: req.TargetAge},
		}
	})
}

// SubmitHairStyle charges the caller for a hairstyle edit of up.
func (s *Service) SubmitHairStyle(ctx context.Context, userID string, req HairStyleRequest, up Upload) (*Result, error) {
	req.HairStyle = strings.TrimSpace(req.HairStyle)
	if err := s.validate.Struct(req); err != nil {
		return nil, s.reject("params", fmt.Errorf("%w: hair_style must be one of %v", domain.ErrInvalidInput, domain.AllowedHairStyles))
	}
	return s.submit(ctx, userID, domain.ServiceNameHairStyle, up, func(source, filename string) domain.JobInput {
		return domain.JobInput{
			Kind:             domain.JobKindHairStyle,
			SourceImage:      source,
			OriginalFilename: filename,
			HairStyle:        &domain.HairStyleParams{HairStyle: req.HairStyle, AddWatermark: req.AddWatermark},
		}
	})
}

func (s *Service) submit(ctx context.Context, userID, serviceName string, up Upload, build func(source, filename string) domain.JobInput) (*Result, error) {
	ext, err := s.checkUpload(up)
	if err != nil {
		return nil, s.reject("upload", err)
	}

	svc, err := s.store.Services().FindByName(ctx, serviceName)
	if err != nil {
		if errors.Is(err, domain.ErrServiceNotFound) {
			return nil, s.reject("service", err)
		}
		return nil, err
	}
	if !svc.IsActive {
		return nil, s.reject("service", fmt.Errorf("%w: %s", domain.ErrServiceInactive, svc.Name))
	}

	balance, err := s.store.Ledger().Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < svc.Cost {
		return nil, s.reject("credits", domain.ErrInsufficientCredits)
	}

	key, err := s.artifacts.Write(ctx, storage.UploadKey(userID, ext, s.now()), up.Data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	job := &domain.Job{
		UserID:      userID,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		CreditsUsed: svc.Cost,
		Input:       build(key, filepath.Base(strings.TrimSpace(up.Filename))),
	}
	var remaining int64
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		if err := tx.Jobs().Create(ctx, job); err != nil {
			return err
		}
		after, err := tx.Ledger().Debit(ctx, userID, svc.Cost, domain.LedgerRef{
			Type:  domain.LedgerJobDebit,
			JobID: job.ID,
			Note:  svc.Name,
		})
		if err != nil {
			return err
		}
		remaining = after
		return nil
	})
	if err != nil {
		if rmErr := s.artifacts.Remove(key); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("key", key).Msg("remove orphaned upload")
		}
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return nil, s.reject("credits", err)
		}
		return nil, err
	}

	metrics.JobsSubmittedCount.WithLabelValues(svc.Name).Inc()
	metrics.CreditsDebited.Add(float64(svc.Cost))

	log := s.logger.With().Str("job_id", job.ID).Str("user_id", userID).Str("service", svc.Name).Logger()
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("enqueue failed, job stays pending until requeued")
	} else {
		log.Info().Int64("credits_used", svc.Cost).Int64("credits_remaining", remaining).Msg("job submitted")
	}

	return &Result{JobID: job.ID, Status: domain.JobStatusPending, CreditsRemaining: remaining}, nil
}

// checkUpload validates size, both declared and sniffed types, and the image
// header, and returns the extension to store the file under. Formats the
// worker cannot decode and oversized rasters are refused before any charge.
func (s *Service) checkUpload(up Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", fmt.Errorf("%w: image file is required", domain.ErrInvalidInput)
	}
	if int64(len(up.Data)) > s.maxUpload {
		return "", fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, s.maxUpload)
	}
	declared := strings.ToLower(strings.TrimSpace(up.ContentType))
	if !strings.HasPrefix(declared, "image/") {
		return "", fmt.Errorf("%w: file must be an image", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(http.DetectContentType(up.Data), "image/") {
		return "", fmt.Errorf("%w: file content is not an image", domain.ErrInvalidInput)
	}
	_, format, err := imagegen.Inspect(up.Data)
	if errors.Is(err, imagegen.ErrImageTooLarge) {
		return "", fmt.Errorf("%w: image exceeds %d pixels", domain.ErrInvalidInput, imagegen.MaxSourcePixels)
	}
	if err != nil {
		return "", fmt.Errorf("%w: image must be jpeg, png, gif or webp", domain.ErrInvalidInput)
	}
	return imagegen.SupportedFormats[format], nil
}

func (s *Service) reject(reason string, err error) error {
	metrics.SubmissionRejectedCount.WithLabelValues(reason).Inc()
	return err
}
