// Package processor runs queued jobs: it claims a pending job, calls the
// visual provider and records the terminal outcome together with its credit
// consequences.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aigc/internal/domain"
	"aigc/internal/imagegen"
	"aigc/internal/infra"
	"aigc/internal/jobstate"
	"aigc/internal/metrics"
	"aigc/internal/storage"
)

// persistTimeout bounds terminal writes, which run detached from the job
// deadline so a timed-out job can still be recorded.
const persistTimeout = 15 * time.Second

// SimulatedNote annotates placeholder results produced without credentials.
const SimulatedNote = "simulated result: provider credentials are not configured"

// Artifacts is the part of the artifact store the processor needs.
type Artifacts interface {
	Exists(key string) bool
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Options tune processing.
type Options struct {
	Simulation    bool
	FailurePolicy domain.FailurePolicy
	JobTimeout    time.Duration
	Now           func() time.Time
}

// Processor executes jobs by id.
type Processor struct {
	store       domain.Store
	artifacts   Artifacts
	transformer imagegen.Transformer
	opts        Options
	logger      infra.Logger
}

// New wires a processor. A zero FailurePolicy means refund.
func New(store domain.Store, artifacts Artifacts, transformer imagegen.Transformer, opts Options, logger infra.Logger) *Processor {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = domain.FailurePolicyRefund
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{
		store:       store,
		artifacts:   artifacts,
		transformer: transformer,
		opts:        opts,
		logger:      infra.Component(logger, "processor"),
	}
}

// Process runs job jobID once. Deliveries for unknown or non-pending jobs are
// acknowledged without effect. Job-level failures are recorded on the job and
// are not returned; only panics and storage errors reach the caller.
func (p *Processor) Process(ctx context.Context, jobID string) (err error) {
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}
	started := p.opts.Now()
	defer func() { metrics.JobDuration.Observe(p.opts.Now().Sub(started).Seconds()) }()

	log := p.logger.With().Str("job_id", jobID).Logger()

	job, err := p.store.Jobs().GetByID(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("job not found, dropping delivery")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	log = log.With().Str("user_id", job.UserID).Str("service", job.ServiceName).Logger()

	if job.Status != domain.JobStatusPending {
		metrics.JobsSkippedCount.Inc()
		log.Info().Str("status", string(job.Status)).Msg("job is not pending, skipping")
		return nil
	}

	machine := jobstate.New(job.Status)
	if err := machine.Start(); err != nil {
		return err
	}
	if err := p.store.Jobs().MarkProcessing(ctx, job.ID, p.opts.Now()); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			metrics.JobsSkippedCount.Inc()
			log.Info().Msg("job claimed by another worker, skipping")
			return nil
		}
		return fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	log.Info().Str("status", string(domain.JobStatusProcessing)).Msg("job started")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
			p.fail(ctx, job, machine, fmt.Sprintf("internal error: %v", r), log)
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()

	output, simulated, runErr := p.run(ctx, job)
	if runErr != nil {
		log.Warn().Err(runErr).Msg("job failed")
		p.fail(ctx, job, machine, runErr.Error(), log)
		return nil
	}
	if err := p.complete(ctx, job, machine, output); err != nil {
		log.Error().Err(err).Msg("persist completion")
		p.fail(ctx, job, machine, "persist result: "+err.Error(), log)
		return nil
	}
	metrics.ObserveJobFinished(string(domain.JobStatusCompleted), simulated)
	log.Info().Str("status", string(domain.JobStatusCompleted)).Bool("simulated", simulated).Msg("job completed")
	return nil
}

// run performs the provider work and returns the output to persist.
func (p *Processor) run(ctx context.Context, job *domain.Job) (*domain.JobOutput, bool, error) {
	in, err := job.DecodeInput()
	if err != nil {
		return nil, false, err
	}
	if !p.artifacts.Exists(in.SourceImage) {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrArtifactMissing, in.SourceImage)
	}
	data, err := p.artifacts.Read(ctx, in.SourceImage)
	if err != nil {
		return nil, false, fmt.Errorf("read source image: %w", err)
	}
	source, err := imagegen.Prepare(data)
	if err != nil {
		return nil, false, err
	}

	callStarted := p.opts.Now()
	res, err := p.transformer.Transform(ctx, in, source)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderCallDuration.WithLabelValues(string(in.Kind), outcome).Observe(p.opts.Now().Sub(callStarted).Seconds())

	now := p.opts.Now()
	if errors.Is(err, imagegen.ErrCredentialsNotConfigured) && p.opts.Simulation {
		return simulatedOutput(job, now), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	key, err := p.artifacts.Write(ctx, storage.ResultKey(job.ID, now), res.PNG)
	if err != nil {
		return nil, false, fmt.Errorf("store result image: %w", err)
	}
	out := &domain.JobOutput{
		ResultImagePath:   key,
		ResultImageBase64: res.Base64,
		ProcessedAt:       now.UTC(),
	}
	out.EchoParams(in)
	return out, false, nil
}

func simulatedOutput(job *domain.Job, now time.Time) *domain.JobOutput {
	out := &domain.JobOutput{
		ResultImageURL: fmt.Sprintf("https://example.com/result_%s.jpg", job.ID),
		Simulated:      true,
		Note:           SimulatedNote,
		ProcessedAt:    now.UTC(),
	}
	out.EchoParams(job.Input)
	return out
}

func (p *Processor) complete(ctx context.Context, job *domain.Job, machine *jobstate.Machine, output *domain.JobOutput) error {
	if err := machine.Complete(); err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return p.store.Jobs().MarkCompleted(wctx, job.ID, output, p.opts.Now())
}

// fail records the failure and applies the failure policy in one
// transaction. Errors are logged; the job stays processing if the write
// itself fails.
func (p *Processor) fail(ctx context.Context, job *domain.Job, machine *jobstate.Machine, message string, log infra.Logger) {
	if machine.Current() == domain.JobStatusCompleted {
		// The completed write failed; the persisted row is still processing.
		machine = jobstate.New(domain.JobStatusProcessing)
	}
	if err := machine.Fail(); err != nil {
		log.Error().Err(err).Msg("fail transition rejected")
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var refunded int64
	err := p.store.WithinTx(wctx, func(tx domain.Store) error {
		if err := tx.Jobs().MarkFailed(wctx, job.ID, message, p.opts.Now()); err != nil {
			return err
		}
		switch {
		case p.opts.FailurePolicy == domain.FailurePolicyForfeit:
			return tx.Ledger().Record(wctx, job.UserID, domain.LedgerRef{
				Type:  domain.LedgerJobForfeit,
				JobID: job.ID,
				Note:  fmt.Sprintf("%d credits forfeited", job.CreditsUsed),
			})
		case job.CreditsUsed > 0:
			if _, err := tx.Ledger().Credit(wctx, job.UserID, job.CreditsUsed, domain.LedgerRef{
				Type:  domain.LedgerJobRefund,
				JobID: job.ID,
				Note:  "refund for failed job",
			}); err != nil {
				return err
			}
			refunded = job.CreditsUsed
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("persist failure")
		return
	}
	if refunded > 0 {
		metrics.CreditsRefunded.Add(float64(refunded))
	}
	metrics.ObserveJobFinished(string(domain.JobStatusFailed), false)
	log.Info().
		Str("status", string(domain.JobStatusFailed)).
		Str("policy", string(p.opts.FailurePolicy)).
		Int64("refunded", refunded).
		Msg("job failed")
}
