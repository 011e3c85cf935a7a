package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/renewalpoint/scheduler/internal/config"
	"github.com/renewalpoint/scheduler/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Starting scheduler worker...")
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Organization databases: %d\n", len(cfg.OrgDatabases))

	w := worker.NewWorker(cfg)
	go func() {
		if err := w.Start(); err != nil {
			fmt.Printf("Worker failed: %v\n", err)
			os.Exit(1)
		}
	}()
	fmt.Println("Worker started (asynq job queue)")

	sched, err := worker.NewPeriodicScheduler(cfg)
	if err != nil {
		fmt.Printf("Failed to create periodic scheduler: %v\n", err)
		os.Exit(1)
	}
	if err := sched.RegisterScheduledTasks(); err != nil {
		fmt.Printf("Warning: failed to register scheduled tasks: %v\n", err)
	} else {
		go func() {
			if err := sched.Start(); err != nil {
				fmt.Printf("Periodic scheduler failed: %v\n", err)
			}
		}()
		fmt.Println("Periodic scheduler started (nightly runs)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("\nShutting down worker...")
	sched.Shutdown()
	w.Shutdown()
}
