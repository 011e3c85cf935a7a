package worker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hibiken/asynq"

	"github.com/renewalpoint/scheduler/internal/config"
)

// parseRedisURL parses a Redis URL and returns asynq.RedisClientOpt.
// Supports formats: redis://host:port, redis://:pass@host:port, host:port
func parseRedisURL(redisURL string, fallbackPassword string) asynq.RedisClientOpt {
	addr := "localhost:6379"
	password := fallbackPassword

	if u, err := url.Parse(redisURL); err == nil && u.Host != "" {
		addr = u.Host
		if u.User != nil {
			if p, ok := u.User.Password(); ok {
				password = p
			}
		}
	} else {
		addr = redisURL
	}

	return asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       0,
	}
}

// Worker manages the asynq server and the scheduler-run handler.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	cfg    *config.Config
}

// NewWorker creates a new worker instance. Concurrency stays low: runs for
// distinct organizations may overlap, runs for one org are serialized by the
// redis lock in the handler.
func NewWorker(cfg *config.Config) *Worker {
	redisOpt := parseRedisURL(cfg.RedisURL, cfg.RedisPassword)

	concurrency := cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("Task %s failed: %v\n", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		cfg:    cfg,
	}
}

// RegisterHandlers registers all task handlers.
func (w *Worker) RegisterHandlers() {
	runHandler := NewRunHandler(w.cfg)
	w.mux.HandleFunc(TypeSchedulerRun, runHandler.HandleSchedulerRun)

	fmt.Println("Registered task handlers:")
	fmt.Printf("  - %s\n", TypeSchedulerRun)
}

// Start starts the worker server.
func (w *Worker) Start() error {
	fmt.Println("Starting worker server...")
	w.RegisterHandlers()
	return w.server.Start(w.mux)
}

// Shutdown gracefully shuts down the worker.
func (w *Worker) Shutdown() {
	fmt.Println("Shutting down worker...")
	w.server.Shutdown()
}

// QueueClient is a client for enqueuing scheduler runs.
type QueueClient struct {
	client *asynq.Client
}

// NewQueueClient creates a new queue client.
func NewQueueClient(cfg *config.Config) (*QueueClient, error) {
	redisOpt := parseRedisURL(cfg.RedisURL, cfg.RedisPassword)
	return &QueueClient{client: asynq.NewClient(redisOpt)}, nil
}

// Close closes the queue client.
func (c *QueueClient) Close() error {
	return c.client.Close()
}

// EnqueueSchedulerRun enqueues an on-demand scheduling run.
func (c *QueueClient) EnqueueSchedulerRun(payload *SchedulerRunPayload) (*asynq.TaskInfo, error) {
	data, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeSchedulerRun, data)

	return c.client.Enqueue(task,
		asynq.Queue("default"),
		asynq.MaxRetry(1),
		asynq.Timeout(6*time.Hour),
	)
}
