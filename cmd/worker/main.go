package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"aigc/internal/adapter/repo"
	"aigc/internal/domain"
	"aigc/internal/imagegen"
	"aigc/internal/infra"
	"aigc/internal/infra/credentials"
	"aigc/internal/metrics"
	"aigc/internal/processor"
	"aigc/internal/providers/volc"
	"aigc/internal/queue"
	"aigc/internal/storage"
)

const consumerTag = "aigc_worker"

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	storagePath := cfg.StoragePath
	if abs, err := filepath.Abs(storagePath); err == nil {
		storagePath = abs
	}
	files, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	creds := credentials.VolcCredentials{
		AccessKey: cfg.VolcAccessKey,
		SecretKey: cfg.VolcSecretKey,
		Region:    cfg.VolcRegion,
	}
	if !creds.Complete() {
		stored, err := credentials.NewStore(runner).VolcCredentials(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load provider credentials from store")
		} else if stored.Complete() {
			creds = stored
		}
	}

	client, err := volc.NewClient(volc.Options{
		AccessKey:      creds.AccessKey,
		SecretKey:      creds.SecretKey,
		Region:         creds.Region,
		BaseURL:        cfg.VolcBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure provider client")
	}
	if !client.HasCredentials() {
		logger.Warn().Bool("simulation", cfg.ProviderSimulation).Msg("worker: provider credentials missing")
	}

	store := repo.NewStore(runner)
	proc := processor.New(store, files, imagegen.NewVolcTransformer(client), processor.Options{
		Simulation:    cfg.ProviderSimulation,
		FailurePolicy: domain.FailurePolicy(cfg.FailurePolicy),
		JobTimeout:    cfg.JobTimeout,
	}, logger)

	jobs, err := queue.New(ctx, queue.Config{RedisURL: cfg.RedisURL, QueueName: cfg.QueueName}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure queue")
	}
	if err := jobs.RegisterProcessor(proc.Process); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to register tasks")
	}

	metricsServer := infra.NewMetricsServer(cfg, metrics.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Int("concurrency", cfg.WorkerConcurrency).Str("queue", cfg.QueueName).Msg("worker: started")
		return jobs.LaunchWorker(consumerTag, cfg.WorkerConcurrency)
	})
	g.Go(func() error {
		logger.Info().Str("addr", metricsServer.Addr()).Msg("worker: metrics listening")
		return metricsServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		jobs.Quit()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker: stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("worker: stopped")
}
