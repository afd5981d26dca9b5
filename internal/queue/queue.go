// Package queue carries job ids from the API to the worker pool over a
// machinery broker backed by redis.
package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/RichardKnop/machinery/v1"
	machineryv1config "github.com/RichardKnop/machinery/v1/config"
	machineryv1log "github.com/RichardKnop/machinery/v1/log"
	machineryv1tasks "github.com/RichardKnop/machinery/v1/tasks"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"aigc/internal/infra"
)

// ProcessJobTask is the registered task name for job processing.
const ProcessJobTask = "process_job"

const (
	DefaultResultsExpireIn     = 3600
	DefaultRedisMaxIdle        = 30
	DefaultRedisIdleTimeout    = 30
	DefaultRedisReadTimeout    = 60
	DefaultRedisWriteTimeout   = 60
	DefaultRedisConnectTimeout = 60
)

// Config locates the broker.
type Config struct {
	RedisURL  string
	QueueName string
}

// Queue wraps a machinery server.
type Queue struct {
	Server *machinery.Server
	Worker *machinery.Worker
	name   string
	logger infra.Logger
}

// New connects to the broker and returns a queue bound to cfg.QueueName.
func New(ctx context.Context, cfg Config, logger infra.Logger) (*Queue, error) {
	logger = infra.Component(logger, "queue")
	machineryv1log.Set(NewMachineryLogger(logger))

	if strings.TrimSpace(cfg.QueueName) == "" {
		return nil, errors.New("queue: name is required")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	if err := ping(ctx, opts); err != nil {
		return nil, fmt.Errorf("queue: ping redis: %w", err)
	}

	server, err := machinery.NewServer(&machineryv1config.Config{
		Broker:          brokerURL(opts),
		DefaultQueue:    cfg.QueueName,
		ResultBackend:   brokerURL(opts),
		ResultsExpireIn: DefaultResultsExpireIn,
		Redis: &machineryv1config.RedisConfig{
			MaxIdle:        DefaultRedisMaxIdle,
			IdleTimeout:    DefaultRedisIdleTimeout,
			ReadTimeout:    DefaultRedisReadTimeout,
			WriteTimeout:   DefaultRedisWriteTimeout,
			ConnectTimeout: DefaultRedisConnectTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: new server: %w", err)
	}

	return &Queue{Server: server, name: cfg.QueueName, logger: logger}, nil
}

func brokerURL(opts *redis.Options) string {
	return fmt.Sprintf("redis://%s@%s/%d", url.QueryEscape(opts.Password), opts.Addr, opts.DB)
}

func ping(ctx context.Context, opts *redis.Options) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client := redis.NewClient(opts)
	defer client.Close()
	return client.Ping(ctx).Err()
}

// Enqueue publishes one processing task for jobID. Delivery is at least
// once; the processor tolerates duplicates.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	if _, err := q.Server.SendTaskWithContext(ctx, Signature(q.name, jobID)); err != nil {
		return fmt.Errorf("queue: send task: %w", err)
	}
	q.logger.Debug().Str("job_id", jobID).Msg("job enqueued")
	return nil
}

// Signature builds the task message for jobID on queue.
func Signature(queue, jobID string) *machineryv1tasks.Signature {
	return &machineryv1tasks.Signature{
		UUID:       "task_" + uuid.NewString(),
		Name:       ProcessJobTask,
		RoutingKey: queue,
		Args: []machineryv1tasks.Arg{{
			Type:  "string",
			Value: jobID,
		}},
		RetryCount: 0,
	}
}

// ProcessFunc handles one delivered job id.
type ProcessFunc func(ctx context.Context, jobID string) error

// RegisterProcessor binds fn to the processing task.
func (q *Queue) RegisterProcessor(fn ProcessFunc) error {
	return q.Server.RegisterTasks(map[string]any{
		ProcessJobTask: TaskFunc(fn),
	})
}

// TaskFunc adapts fn to the signature machinery invokes.
func TaskFunc(fn ProcessFunc) func(ctx context.Context, jobID string) error {
	return func(ctx context.Context, jobID string) error {
		if strings.TrimSpace(jobID) == "" {
			return errors.New("queue: empty job id")
		}
		return fn(ctx, jobID)
	}
}

// LaunchWorker blocks consuming tasks until the worker quits. A graceful
// quit returns nil.
func (q *Queue) LaunchWorker(consumerTag string, concurrency int) error {
	q.Worker = q.Server.NewWorker(consumerTag, concurrency)
	if err := q.Worker.Launch(); err != nil && !errors.Is(err, machinery.ErrWorkerQuitGracefully) {
		return err
	}
	return nil
}

// Quit stops a launched worker.
func (q *Queue) Quit() {
	if q.Worker != nil {
		q.Worker.Quit()
	}
}
