package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/renewalpoint/scheduler/internal/model"
)

// DiffStats summarizes one smart-diff application.
type DiffStats struct {
	Inserted  int
	Updated   int
	Deleted   int
	Unchanged int
}

// Add accumulates another batch's stats.
func (d *DiffStats) Add(other DiffStats) {
	d.Inserted += other.Inserted
	d.Updated += other.Updated
	d.Deleted += other.Deleted
	d.Unchanged += other.Unchanged
}

// ApplyScheduleBatch atomically replaces the scheduler-owned rows
// (pre-scheduled and skipped) for one batch of contacts. Rows whose content
// is unchanged keep their surrogate id and scheduler_run_id, so audit
// identity survives no-op reruns. The transaction acquires the write lock up
// front (the connection is opened with _txlock=immediate).
func (s *Store) ApplyScheduleBatch(ctx context.Context, runID string, contactIDs []int64, schedules []*model.EmailSchedule, now time.Time) (DiffStats, error) {
	var stats DiffStats
	if len(contactIDs) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin schedule transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.readExisting(ctx, tx, contactIDs)
	if err != nil {
		return stats, err
	}

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO email_schedules (
			contact_id, email_type, scheduled_date, scheduled_time, status,
			skip_reason, priority, template_id, sms_template_id,
			campaign_instance_id, event_year, event_month, event_day,
			scheduler_run_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertStmt.Close()

	updateStmt, err := tx.PrepareContext(ctx, `
		UPDATE email_schedules SET
			scheduled_time = ?, status = ?, skip_reason = ?, priority = ?,
			template_id = ?, sms_template_id = ?, campaign_instance_id = ?,
			event_year = ?, event_month = ?, event_day = ?,
			scheduler_run_id = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer updateStmt.Close()

	timestamp := now.UTC().Format(time.RFC3339)
	seen := make(map[string]bool, len(schedules))
	for _, schedule := range schedules {
		key := schedule.NaturalKey()
		seen[key] = true

		old, ok := existing[key]
		if !ok {
			_, err := insertStmt.ExecContext(ctx,
				schedule.ContactID, schedule.Type.Wire(), schedule.ScheduledDate.String(),
				schedule.ScheduledTime, string(schedule.Status), nullIfEmpty(schedule.SkipReason),
				schedule.Priority, nullIfEmpty(schedule.TemplateID), nullIfEmpty(schedule.SMSTemplateID),
				nullIfZero(schedule.CampaignInstanceID),
				nullIfZeroInt(schedule.EventYear), nullIfZeroInt(schedule.EventMonth), nullIfZeroInt(schedule.EventDay),
				runID, timestamp, timestamp,
			)
			if err != nil {
				return stats, fmt.Errorf("failed to insert schedule for contact %d: %w", schedule.ContactID, err)
			}
			stats.Inserted++
			continue
		}

		if old.ContentKey() == schedule.ContentKey() {
			stats.Unchanged++
			continue
		}

		_, err := updateStmt.ExecContext(ctx,
			schedule.ScheduledTime, string(schedule.Status), nullIfEmpty(schedule.SkipReason),
			schedule.Priority, nullIfEmpty(schedule.TemplateID), nullIfEmpty(schedule.SMSTemplateID),
			nullIfZero(schedule.CampaignInstanceID),
			nullIfZeroInt(schedule.EventYear), nullIfZeroInt(schedule.EventMonth), nullIfZeroInt(schedule.EventDay),
			runID, timestamp, old.ID,
		)
		if err != nil {
			return stats, fmt.Errorf("failed to update schedule %d: %w", old.ID, err)
		}
		stats.Updated++
	}

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM email_schedules WHERE id = ?`)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer deleteStmt.Close()

	for key, old := range existing {
		if seen[key] {
			continue
		}
		if _, err := deleteStmt.ExecContext(ctx, old.ID); err != nil {
			return stats, fmt.Errorf("failed to delete schedule %d: %w", old.ID, err)
		}
		stats.Deleted++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit schedule batch: %w", err)
	}
	return stats, nil
}

// readExisting loads the scheduler-owned rows for the batch's contacts,
// keyed by natural key. Rows whose email_type this scheduler cannot decode
// are left alone rather than deleted.
func (s *Store) readExisting(ctx context.Context, tx *sql.Tx, contactIDs []int64) (map[string]*model.EmailSchedule, error) {
	placeholders := strings.Repeat("?,", len(contactIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(contactIDs)+2)
	args = append(args, string(model.StatusPreScheduled), string(model.StatusSkipped))
	for _, id := range contactIDs {
		args = append(args, id)
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, contact_id, email_type, scheduled_date, scheduled_time, status,
			skip_reason, priority, template_id, sms_template_id,
			campaign_instance_id, scheduler_run_id
		FROM email_schedules
		WHERE status IN (?, ?) AND contact_id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing schedules: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]*model.EmailSchedule)
	for rows.Next() {
		var row model.EmailSchedule
		var wire, date string
		var skipReason, templateID, smsTemplateID sql.NullString
		var instanceID sql.NullInt64
		var status string
		if err := rows.Scan(&row.ID, &row.ContactID, &wire, &date, &row.ScheduledTime, &status,
			&skipReason, &row.Priority, &templateID, &smsTemplateID,
			&instanceID, &row.SchedulerRunID); err != nil {
			return nil, err
		}
		row.Status = model.ScheduleStatus(status)
		row.SkipReason = skipReason.String
		row.TemplateID = templateID.String
		row.SMSTemplateID = smsTemplateID.String
		row.CampaignInstanceID = instanceID.Int64

		parsed, err := parseScheduleRow(&row, wire, date)
		if err != nil {
			continue
		}
		existing[parsed.NaturalKey()] = parsed
	}
	return existing, rows.Err()
}

func parseScheduleRow(row *model.EmailSchedule, wire, date string) (*model.EmailSchedule, error) {
	emailType, err := model.ParseEmailType(wire, row.CampaignInstanceID)
	if err != nil {
		return nil, err
	}
	scheduledDate, err := parseOptionalDate(sql.NullString{String: date, Valid: true})
	if err != nil {
		return nil, err
	}
	row.Type = emailType
	row.ScheduledDate = scheduledDate
	return row, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullIfZeroInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
