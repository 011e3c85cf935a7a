package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewalpoint/scheduler/internal/database"
	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.InitSchema(db))
	return New(db)
}

func birthdaySchedule(contactID int64, date string) *model.EmailSchedule {
	return &model.EmailSchedule{
		ContactID:     contactID,
		Type:          model.AnniversaryType(model.KindBirthday),
		ScheduledDate: dates.MustParse(date),
		ScheduledTime: "08:30:00",
		Status:        model.StatusPreScheduled,
		Priority:      model.PriorityBirthday,
		EventYear:     2024, EventMonth: 12, EventDay: 1,
	}
}

func readRunID(t *testing.T, s *Store, contactID int64, wire, date string) (int64, string) {
	t.Helper()
	var id int64
	var runID string
	err := s.DB().QueryRow(`
		SELECT id, scheduler_run_id FROM email_schedules
		WHERE contact_id = ? AND email_type = ? AND scheduled_date = ?
	`, contactID, wire, date).Scan(&id, &runID)
	require.NoError(t, err)
	return id, runID
}

func TestSmartDiffInsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stats, err := s.ApplyScheduleBatch(ctx, "run_a", []int64{1}, []*model.EmailSchedule{
		birthdaySchedule(1, "2024-11-17"),
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Inserted: 1}, stats)

	_, runID := readRunID(t, s, 1, "birthday", "2024-11-17")
	assert.Equal(t, "run_a", runID)
}

func TestSmartDiffIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rows := []*model.EmailSchedule{
		birthdaySchedule(1, "2024-11-17"),
		birthdaySchedule(2, "2024-11-20"),
	}
	_, err := s.ApplyScheduleBatch(ctx, "run_a", []int64{1, 2}, rows, time.Now())
	require.NoError(t, err)

	firstID, _ := readRunID(t, s, 1, "birthday", "2024-11-17")

	// A second run with identical content touches nothing and keeps the
	// original run id on every row.
	stats, err := s.ApplyScheduleBatch(ctx, "run_b", []int64{1, 2}, rows, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Unchanged: 2}, stats)

	id, runID := readRunID(t, s, 1, "birthday", "2024-11-17")
	assert.Equal(t, firstID, id)
	assert.Equal(t, "run_a", runID)
}

func TestSmartDiffUpdateOnContentChange(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyScheduleBatch(ctx, "run_a", []int64{1}, []*model.EmailSchedule{
		birthdaySchedule(1, "2024-11-17"),
	}, time.Now())
	require.NoError(t, err)
	firstID, _ := readRunID(t, s, 1, "birthday", "2024-11-17")

	// Same natural key, different content: the row is updated in place and
	// picks up the new run id.
	changed := birthdaySchedule(1, "2024-11-17")
	changed.Status = model.StatusSkipped
	changed.SkipReason = "Birthday exclusion window for CA"

	stats, err := s.ApplyScheduleBatch(ctx, "run_b", []int64{1}, []*model.EmailSchedule{changed}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Updated: 1}, stats)

	id, runID := readRunID(t, s, 1, "birthday", "2024-11-17")
	assert.Equal(t, firstID, id)
	assert.Equal(t, "run_b", runID)
}

func TestSmartDiffDeletesStaleRows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyScheduleBatch(ctx, "run_a", []int64{1}, []*model.EmailSchedule{
		birthdaySchedule(1, "2024-11-17"),
	}, time.Now())
	require.NoError(t, err)

	// The next run produces nothing for the contact: the old row goes away.
	stats, err := s.ApplyScheduleBatch(ctx, "run_b", []int64{1}, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Deleted: 1}, stats)

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM email_schedules`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestSmartDiffLeavesSentRowsAlone(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// A delivered row belongs to the delivery side, not the scheduler.
	_, err := s.DB().Exec(`
		INSERT INTO email_schedules (contact_id, email_type, scheduled_date, scheduled_time,
			status, priority, scheduler_run_id, created_at, updated_at)
		VALUES (1, 'birthday', '2024-01-10', '08:30:00', 'sent', 10, 'run_old', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`)
	require.NoError(t, err)

	stats, err := s.ApplyScheduleBatch(ctx, "run_a", []int64{1}, []*model.EmailSchedule{
		birthdaySchedule(1, "2024-11-17"),
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Inserted: 1}, stats)

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM email_schedules WHERE status = 'sent'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSmartDiffScopedToBatchContacts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyScheduleBatch(ctx, "run_a", []int64{1}, []*model.EmailSchedule{
		birthdaySchedule(1, "2024-11-17"),
	}, time.Now())
	require.NoError(t, err)

	// A batch for contact 2 must not disturb contact 1's rows.
	stats, err := s.ApplyScheduleBatch(ctx, "run_b", []int64{2}, []*model.EmailSchedule{
		birthdaySchedule(2, "2024-11-20"),
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Inserted: 1}, stats)

	_, runID := readRunID(t, s, 1, "birthday", "2024-11-17")
	assert.Equal(t, "run_a", runID)
}

func TestCheckpointLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 10, 1, 2, 30, 0, 0, time.UTC)
	cp := &Checkpoint{RunID: "run_x", StartedAt: started, Status: CheckpointRunning}
	require.NoError(t, s.UpsertCheckpoint(ctx, cp))

	finished := started.Add(5 * time.Minute)
	cp.FinishedAt = &finished
	cp.ContactsProcessed = 100
	cp.EmailsScheduled = 80
	cp.EmailsSkipped = 20
	cp.Status = CheckpointCompleted
	require.NoError(t, s.UpsertCheckpoint(ctx, cp))

	loaded, err := s.LoadCheckpoint(ctx, "run_x")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, CheckpointCompleted, loaded.Status)
	assert.Equal(t, 100, loaded.ContactsProcessed)
	assert.Equal(t, 80, loaded.EmailsScheduled)
	require.NotNil(t, loaded.FinishedAt)
	assert.True(t, loaded.FinishedAt.Equal(finished))

	missing, err := s.LoadCheckpoint(ctx, "run_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPruneCheckpoints(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	old := &Checkpoint{RunID: "run_old", StartedAt: time.Now().Add(-100 * 24 * time.Hour), Status: CheckpointCompleted}
	recent := &Checkpoint{RunID: "run_recent", StartedAt: time.Now(), Status: CheckpointCompleted}
	require.NoError(t, s.UpsertCheckpoint(ctx, old))
	require.NoError(t, s.UpsertCheckpoint(ctx, recent))

	pruned, err := s.PruneCheckpoints(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	loaded, err := s.LoadCheckpoint(ctx, "run_old")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
