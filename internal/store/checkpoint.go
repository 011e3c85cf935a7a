package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Checkpoint statuses.
const (
	CheckpointRunning   = "running"
	CheckpointCompleted = "completed"
	CheckpointFailed    = "failed"
	CheckpointCancelled = "cancelled"
)

// Checkpoint is one scheduler run's audit row.
type Checkpoint struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        *time.Time
	ContactsProcessed int
	EmailsScheduled   int
	EmailsSkipped     int
	Status            string
}

// UpsertCheckpoint writes or refreshes the run's checkpoint row.
func (s *Store) UpsertCheckpoint(ctx context.Context, cp *Checkpoint) error {
	var finished any
	if cp.FinishedAt != nil {
		finished = cp.FinishedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduler_checkpoints (
			run_id, started_at, finished_at, contacts_processed,
			emails_scheduled, emails_skipped, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			contacts_processed = excluded.contacts_processed,
			emails_scheduled = excluded.emails_scheduled,
			emails_skipped = excluded.emails_skipped,
			status = excluded.status
	`, cp.RunID, cp.StartedAt.UTC().Format(time.RFC3339), finished,
		cp.ContactsProcessed, cp.EmailsScheduled, cp.EmailsSkipped, cp.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert checkpoint %s: %w", cp.RunID, err)
	}
	return nil
}

// LoadCheckpoint reads one checkpoint row by run id.
func (s *Store) LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, contacts_processed,
			emails_scheduled, emails_skipped, status
		FROM scheduler_checkpoints
		WHERE run_id = ?
	`, runID)

	var cp Checkpoint
	var started string
	var finished sql.NullString
	err := row.Scan(&cp.RunID, &started, &finished, &cp.ContactsProcessed,
		&cp.EmailsScheduled, &cp.EmailsSkipped, &cp.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", runID, err)
	}

	if cp.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return nil, fmt.Errorf("checkpoint %s started_at: %w", runID, err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339, finished.String)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s finished_at: %w", runID, err)
		}
		cp.FinishedAt = &t
	}
	return &cp, nil
}

// PruneCheckpoints deletes checkpoint rows that started before the cutoff.
// Called at the end of a successful run.
func (s *Store) PruneCheckpoints(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scheduler_checkpoints WHERE started_at < ?
	`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
