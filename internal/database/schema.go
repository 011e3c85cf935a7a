package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InitSchema creates all required tables and indexes if they don't exist.
// Called on startup so a fresh organization database is usable immediately.
func InitSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

const schemaSQL = `
-- Contacts (read-only input to the scheduler)
CREATE TABLE IF NOT EXISTS contacts (
	id INTEGER PRIMARY KEY,
	email TEXT NOT NULL,
	zip_code TEXT,
	state TEXT,
	birth_date TEXT,
	effective_date TEXT,
	carrier TEXT,
	failed_underwriting INTEGER NOT NULL DEFAULT 0
);

-- Campaign behavior templates
CREATE TABLE IF NOT EXISTS campaign_types (
	name TEXT PRIMARY KEY,
	priority INTEGER NOT NULL DEFAULT 30,
	active INTEGER NOT NULL DEFAULT 1,
	respect_exclusion_windows INTEGER NOT NULL DEFAULT 1,
	enable_followups INTEGER NOT NULL DEFAULT 0,
	days_before_event INTEGER NOT NULL DEFAULT 0,
	target_all_contacts INTEGER NOT NULL DEFAULT 0,
	spread_evenly INTEGER NOT NULL DEFAULT 0,
	skip_failed_underwriting INTEGER NOT NULL DEFAULT 0
);

-- Configured campaign occurrences
CREATE TABLE IF NOT EXISTS campaign_instances (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_type TEXT NOT NULL REFERENCES campaign_types(name),
	instance_name TEXT NOT NULL,
	email_template TEXT,
	sms_template TEXT,
	active_start_date TEXT,
	active_end_date TEXT,
	spread_start_date TEXT,
	spread_end_date TEXT,
	target_states TEXT,
	target_carriers TEXT,
	metadata TEXT
);

-- Per-contact campaign enrollment
CREATE TABLE IF NOT EXISTS contact_campaigns (
	contact_id INTEGER NOT NULL REFERENCES contacts(id),
	campaign_instance_id INTEGER NOT NULL REFERENCES campaign_instances(id),
	trigger_date TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	PRIMARY KEY (contact_id, campaign_instance_id)
);

-- Organization row: hybrid config columns plus a JSON override blob
CREATE TABLE IF NOT EXISTS organizations (
	id INTEGER PRIMARY KEY,
	name TEXT,
	birthday_days_before INTEGER,
	effective_date_days_before INTEGER,
	send_time TEXT,
	timezone TEXT,
	pre_window_exclusion_days INTEGER,
	effective_date_first_email_months INTEGER,
	enable_post_window_emails INTEGER,
	exclude_failed_underwriting INTEGER,
	send_without_zipcode_for_universal INTEGER,
	daily_send_percentage_cap REAL,
	ed_daily_soft_limit INTEGER,
	ed_smoothing_window_days INTEGER,
	catch_up_spread_days INTEGER,
	overage_threshold REAL,
	config_overrides TEXT,
	size_profile TEXT
);

-- Per-state pre-window buffer overrides
CREATE TABLE IF NOT EXISTS organization_state_buffers (
	org_id INTEGER NOT NULL REFERENCES organizations(id),
	state_code TEXT NOT NULL,
	pre_exclusion_buffer_days INTEGER NOT NULL,
	PRIMARY KEY (org_id, state_code)
);

-- Scheduler output
CREATE TABLE IF NOT EXISTS email_schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	contact_id INTEGER NOT NULL,
	email_type TEXT NOT NULL,
	scheduled_date TEXT NOT NULL,
	scheduled_time TEXT NOT NULL DEFAULT '08:30:00',
	status TEXT NOT NULL,
	skip_reason TEXT,
	priority INTEGER NOT NULL DEFAULT 30,
	template_id TEXT,
	sms_template_id TEXT,
	campaign_instance_id INTEGER,
	event_year INTEGER,
	event_month INTEGER,
	event_day INTEGER,
	scheduler_run_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_email_schedules_natural
	ON email_schedules(contact_id, email_type, scheduled_date);
CREATE INDEX IF NOT EXISTS idx_email_schedules_status
	ON email_schedules(status);
CREATE INDEX IF NOT EXISTS idx_email_schedules_date
	ON email_schedules(scheduled_date);
CREATE INDEX IF NOT EXISTS idx_email_schedules_contact_type
	ON email_schedules(contact_id, email_type);

-- One audit row per scheduler run
CREATE TABLE IF NOT EXISTS scheduler_checkpoints (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	contacts_processed INTEGER NOT NULL DEFAULT 0,
	emails_scheduled INTEGER NOT NULL DEFAULT 0,
	emails_skipped INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL
);
`
