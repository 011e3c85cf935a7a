package worker

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/renewalpoint/scheduler/internal/config"
)

// PeriodicScheduler registers the nightly scheduling run for every
// configured organization database.
type PeriodicScheduler struct {
	scheduler *asynq.Scheduler
	cfg       *config.Config
}

// NewPeriodicScheduler creates a new periodic scheduler.
func NewPeriodicScheduler(cfg *config.Config) (*PeriodicScheduler, error) {
	redisOpt := parseRedisURL(cfg.RedisURL, cfg.RedisPassword)
	return &PeriodicScheduler{
		scheduler: asynq.NewScheduler(redisOpt, nil),
		cfg:       cfg,
	}, nil
}

// RegisterScheduledTasks registers one cron entry per organization database.
func (s *PeriodicScheduler) RegisterScheduledTasks() error {
	if len(s.cfg.OrgDatabases) == 0 {
		return fmt.Errorf("no organization databases configured (ORG_DATABASES)")
	}

	for _, dbPath := range s.cfg.OrgDatabases {
		payload := &SchedulerRunPayload{DBPath: dbPath}
		data, err := payload.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal payload for %s: %w", dbPath, err)
		}

		_, err = s.scheduler.Register(s.cfg.RunCron,
			asynq.NewTask(TypeSchedulerRun, data),
			asynq.MaxRetry(1),
			asynq.Timeout(6*time.Hour),
		)
		if err != nil {
			return fmt.Errorf("failed to register run for %s: %w", dbPath, err)
		}
	}

	fmt.Println("Registered scheduled tasks:")
	for _, dbPath := range s.cfg.OrgDatabases {
		fmt.Printf("  - scheduler run for %s (%s)\n", dbPath, s.cfg.RunCron)
	}

	return nil
}

// Start starts the scheduler.
func (s *PeriodicScheduler) Start() error {
	return s.scheduler.Start()
}

// Shutdown stops the scheduler.
func (s *PeriodicScheduler) Shutdown() {
	s.scheduler.Shutdown()
}
