package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/scheduler"
)

func main() {
	dbPath := flag.String("db", "", "path to the organization SQLite database (required)")
	todayFlag := flag.String("today", "", "business date override, YYYY-MM-DD (default: now in the org timezone)")
	horizon := flag.Int("horizon", 0, "planning window in days (default 90)")
	budget := flag.Duration("budget", 0, "wall-clock budget for the run (default unlimited)")
	retentionDays := flag.Int("checkpoint-retention", 90, "prune checkpoints older than this many days (0 disables)")
	verbose := flag.Bool("verbose", false, "print per-contact diagnostics")
	flag.Parse()

	if *dbPath == "" {
		fmt.Println("Usage: scheduler -db <org.sqlite3> [-today YYYY-MM-DD] [-horizon days]")
		os.Exit(2)
	}

	opts := scheduler.Options{
		HorizonDays:         *horizon,
		Budget:              *budget,
		CheckpointRetention: time.Duration(*retentionDays) * 24 * time.Hour,
	}
	if *todayFlag != "" {
		today, err := dates.Parse(*todayFlag)
		if err != nil {
			fmt.Printf("Invalid -today value: %v\n", err)
			os.Exit(2)
		}
		opts.Today = today
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting scheduler run for %s...\n", *dbPath)

	summary, err := scheduler.RunScheduler(ctx, *dbPath, opts)
	if err != nil {
		fmt.Printf("Scheduler run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s completed in %s\n", summary.RunID, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Printf("  Contacts processed: %d\n", summary.ContactsProcessed)
	fmt.Printf("  Emails scheduled:   %d\n", summary.EmailsScheduled)
	fmt.Printf("  Emails skipped:     %d\n", summary.EmailsSkipped)
	fmt.Printf("  Diagnostics:        %d\n", len(summary.Diagnostics))

	if *verbose {
		for _, d := range summary.Diagnostics {
			fmt.Printf("    contact %d %s: %s\n", d.ContactID, d.Field, d.Message)
		}
	}
}
