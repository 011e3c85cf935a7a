package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/renewalpoint/scheduler/internal/config"
	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/scheduler"
)

// runLockTTL bounds how long a run lock can outlive a crashed worker.
const runLockTTL = 8 * time.Hour

// RunHandler executes scheduler runs dispatched through the queue.
type RunHandler struct {
	cfg   *config.Config
	locks *redis.Client
}

// NewRunHandler creates a new run handler.
func NewRunHandler(cfg *config.Config) *RunHandler {
	opt := parseRedisURL(cfg.RedisURL, cfg.RedisPassword)
	return &RunHandler{
		cfg: cfg,
		locks: redis.NewClient(&redis.Options{
			Addr:     opt.Addr,
			Password: opt.Password,
			DB:       opt.DB,
		}),
	}
}

// HandleSchedulerRun runs the scheduling engine for one organization
// database. A redis lock refuses overlapping runs for the same database:
// the engine is single-writer per organization.
func (h *RunHandler) HandleSchedulerRun(ctx context.Context, task *asynq.Task) error {
	payload, err := UnmarshalSchedulerRunPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.DBPath == "" {
		return fmt.Errorf("scheduler run payload has no database path")
	}

	lockKey := "scheduler:run-lock:" + payload.DBPath
	acquired, err := h.locks.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), runLockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		g.Log().Warningf(ctx, "run for %s already in flight, skipping", payload.DBPath)
		return nil
	}
	defer h.locks.Del(context.Background(), lockKey)

	opts := scheduler.Options{
		HorizonDays:         h.cfg.HorizonDays,
		CheckpointRetention: time.Duration(h.cfg.CheckpointRetentionDays) * 24 * time.Hour,
	}
	if h.cfg.RunBudgetMinutes > 0 {
		opts.Budget = time.Duration(h.cfg.RunBudgetMinutes) * time.Minute
	}
	if payload.Today != "" {
		today, err := dates.Parse(payload.Today)
		if err != nil {
			return fmt.Errorf("invalid today override: %w", err)
		}
		opts.Today = today
	}

	summary, err := scheduler.RunScheduler(ctx, payload.DBPath, opts)
	if err != nil {
		return fmt.Errorf("scheduler run for %s failed: %w", payload.DBPath, err)
	}

	g.Log().Infof(ctx, "run %s for %s: %d contacts, %d scheduled, %d skipped, %d diagnostics",
		summary.RunID, payload.DBPath, summary.ContactsProcessed,
		summary.EmailsScheduled, summary.EmailsSkipped, len(summary.Diagnostics))
	return nil
}
