package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"aigc/internal/adapter/repo"
	"aigc/internal/infra"
	"aigc/internal/queue"
)

func main() {
	_ = godotenv.Load()

	var (
		olderThanFlag time.Duration
		limitFlag     int
		dryRunFlag    bool
	)
	flag.DurationVar(&olderThanFlag, "older-than", 5*time.Minute, "requeue pending jobs created before now minus this duration")
	flag.IntVar(&limitFlag, "limit", 500, "maximum number of jobs to requeue")
	flag.BoolVar(&dryRunFlag, "dry-run", false, "list the jobs without enqueueing them")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "requeue").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	store := repo.NewStore(infra.NewSQLRunner(pool, logger))
	ids, err := store.Jobs().ListPendingBefore(ctx, time.Now().Add(-olderThanFlag), limitFlag)
	if err != nil {
		exitWithError(fmt.Errorf("list pending jobs: %w", err))
	}
	if len(ids) == 0 {
		fmt.Println("no stale pending jobs")
		return
	}
	if dryRunFlag {
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	jobs, err := queue.New(ctx, queue.Config{RedisURL: cfg.RedisURL, QueueName: cfg.QueueName}, logger)
	if err != nil {
		exitWithError(fmt.Errorf("configure queue: %w", err))
	}
	failed := 0
	for _, id := range ids {
		if err := jobs.Enqueue(ctx, id); err != nil {
			logger.Error().Err(err).Str("job_id", id).Msg("enqueue failed")
			failed++
		}
	}
	fmt.Printf("requeued %d of %d pending jobs\n", len(ids)-failed, len(ids))
	if failed > 0 {
		os.Exit(1)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
