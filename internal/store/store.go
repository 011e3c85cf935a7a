package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

// Store wraps an organization's SQLite database with the typed reads and
// writes the scheduler needs.
type Store struct {
	db *sql.DB
}

// New creates a store over an open organization database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for schema bootstrap and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// OrgRow is the organizations table row with nullable hybrid config columns.
// Null means "not set at this layer"; the resolver fills the gaps.
type OrgRow struct {
	ID                             int64
	Name                           sql.NullString
	BirthdayDaysBefore             sql.NullInt64
	EffectiveDateDaysBefore        sql.NullInt64
	SendTime                       sql.NullString
	Timezone                       sql.NullString
	PreWindowExclusionDays         sql.NullInt64
	EffectiveDateFirstEmailMonths  sql.NullInt64
	EnablePostWindowEmails         sql.NullBool
	ExcludeFailedUnderwriting      sql.NullBool
	SendWithoutZipcodeForUniversal sql.NullBool
	DailySendPercentageCap         sql.NullFloat64
	EDDailySoftLimit               sql.NullInt64
	EDSmoothingWindowDays          sql.NullInt64
	CatchUpSpreadDays              sql.NullInt64
	OverageThreshold               sql.NullFloat64
	ConfigOverrides                sql.NullString
	SizeProfile                    sql.NullString
}

// LoadOrganization reads the single organizations row. A missing row is not
// an error: the org runs on defaults.
func (s *Store) LoadOrganization(ctx context.Context) (*OrgRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, birthday_days_before, effective_date_days_before,
			send_time, timezone, pre_window_exclusion_days,
			effective_date_first_email_months, enable_post_window_emails,
			exclude_failed_underwriting, send_without_zipcode_for_universal,
			daily_send_percentage_cap, ed_daily_soft_limit,
			ed_smoothing_window_days, catch_up_spread_days, overage_threshold,
			config_overrides, size_profile
		FROM organizations
		ORDER BY id
		LIMIT 1
	`)

	var org OrgRow
	err := row.Scan(
		&org.ID, &org.Name, &org.BirthdayDaysBefore, &org.EffectiveDateDaysBefore,
		&org.SendTime, &org.Timezone, &org.PreWindowExclusionDays,
		&org.EffectiveDateFirstEmailMonths, &org.EnablePostWindowEmails,
		&org.ExcludeFailedUnderwriting, &org.SendWithoutZipcodeForUniversal,
		&org.DailySendPercentageCap, &org.EDDailySoftLimit,
		&org.EDSmoothingWindowDays, &org.CatchUpSpreadDays, &org.OverageThreshold,
		&org.ConfigOverrides, &org.SizeProfile,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	return &org, nil
}

// LoadStateBuffers reads per-state pre-window buffer overrides.
func (s *Store) LoadStateBuffers(ctx context.Context, orgID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state_code, pre_exclusion_buffer_days
		FROM organization_state_buffers
		WHERE org_id = ?
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state buffers: %w", err)
	}
	defer rows.Close()

	buffers := make(map[string]int)
	for rows.Next() {
		var state string
		var days int
		if err := rows.Scan(&state, &days); err != nil {
			return nil, err
		}
		buffers[strings.ToUpper(strings.TrimSpace(state))] = days
	}
	return buffers, rows.Err()
}

// CountContacts returns the organization's total contact count, used for
// size-profile detection and the daily cap.
func (s *Store) CountContacts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

// ContactBatch reads up to limit contacts with id > afterID, ordered by id.
// Contacts with malformed dates are reported as diagnostics and dropped;
// the batch keeps going.
func (s *Store) ContactBatch(ctx context.Context, afterID int64, limit int) ([]model.Contact, []model.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, zip_code, state, birth_date, effective_date, carrier, failed_underwriting
		FROM contacts
		WHERE id > ?
		ORDER BY id
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read contacts: %w", err)
	}
	defer rows.Close()

	var contacts []model.Contact
	var diags []model.Diagnostic
	for rows.Next() {
		var c model.Contact
		var zip, state, birth, effective, carrier sql.NullString
		var failedUW int
		if err := rows.Scan(&c.ID, &c.Email, &zip, &state, &birth, &effective, &carrier, &failedUW); err != nil {
			return nil, nil, err
		}
		c.ZipCode = zip.String
		c.State = strings.ToUpper(strings.TrimSpace(state.String))
		c.Carrier = carrier.String
		c.FailedUnderwriting = failedUW != 0

		bad := false
		if birth.Valid && birth.String != "" {
			d, err := dates.Parse(birth.String)
			if err != nil {
				diags = append(diags, model.Diagnostic{ContactID: c.ID, Field: "birth_date", Message: err.Error()})
				bad = true
			} else {
				c.Birthday = d
			}
		}
		if effective.Valid && effective.String != "" {
			d, err := dates.Parse(effective.String)
			if err != nil {
				diags = append(diags, model.Diagnostic{ContactID: c.ID, Field: "effective_date", Message: err.Error()})
				bad = true
			} else {
				c.EffectiveDate = d
			}
		}
		if bad {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, diags, rows.Err()
}

// LoadCampaignTypes reads all campaign behavior templates keyed by name.
func (s *Store) LoadCampaignTypes(ctx context.Context) (map[string]model.CampaignType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, priority, active, respect_exclusion_windows, enable_followups,
			days_before_event, target_all_contacts, spread_evenly, skip_failed_underwriting
		FROM campaign_types
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign types: %w", err)
	}
	defer rows.Close()

	types := make(map[string]model.CampaignType)
	for rows.Next() {
		var t model.CampaignType
		var active, respect, followups, targetAll, spread, skipUW int
		if err := rows.Scan(&t.Name, &t.Priority, &active, &respect, &followups,
			&t.DaysBeforeEvent, &targetAll, &spread, &skipUW); err != nil {
			return nil, err
		}
		t.Active = active != 0
		t.RespectsExclusionWindows = respect != 0
		t.EnableFollowups = followups != 0
		t.TargetAllContacts = targetAll != 0
		t.SpreadEvenly = spread != 0
		t.SkipFailedUnderwriting = skipUW != 0
		types[t.Name] = t
	}
	return types, rows.Err()
}

// LoadCampaignInstances reads all configured campaign instances. Date
// parsing failures surface as errors: instances are operator-managed config,
// not per-contact data.
func (s *Store) LoadCampaignInstances(ctx context.Context) ([]model.CampaignInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_type, instance_name, email_template, sms_template,
			active_start_date, active_end_date, spread_start_date, spread_end_date,
			target_states, target_carriers, metadata
		FROM campaign_instances
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign instances: %w", err)
	}
	defer rows.Close()

	var instances []model.CampaignInstance
	for rows.Next() {
		var inst model.CampaignInstance
		var emailTpl, smsTpl, activeStart, activeEnd, spreadStart, spreadEnd, states, carriers, metadata sql.NullString
		if err := rows.Scan(&inst.ID, &inst.CampaignType, &inst.InstanceName, &emailTpl, &smsTpl,
			&activeStart, &activeEnd, &spreadStart, &spreadEnd, &states, &carriers, &metadata); err != nil {
			return nil, err
		}
		inst.EmailTemplate = emailTpl.String
		inst.SMSTemplate = smsTpl.String
		inst.TargetStates = states.String
		inst.TargetCarriers = carriers.String
		if metadata.Valid && metadata.String != "" {
			inst.Metadata = json.RawMessage(metadata.String)
		}

		var err error
		if inst.ActiveStartDate, err = parseOptionalDate(activeStart); err != nil {
			return nil, fmt.Errorf("campaign instance %d active_start_date: %w", inst.ID, err)
		}
		if inst.ActiveEndDate, err = parseOptionalDate(activeEnd); err != nil {
			return nil, fmt.Errorf("campaign instance %d active_end_date: %w", inst.ID, err)
		}
		if inst.SpreadStartDate, err = parseOptionalDate(spreadStart); err != nil {
			return nil, fmt.Errorf("campaign instance %d spread_start_date: %w", inst.ID, err)
		}
		if inst.SpreadEndDate, err = parseOptionalDate(spreadEnd); err != nil {
			return nil, fmt.Errorf("campaign instance %d spread_end_date: %w", inst.ID, err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func parseOptionalDate(v sql.NullString) (dates.Date, error) {
	if !v.Valid || v.String == "" {
		return dates.Date{}, nil
	}
	return dates.Parse(v.String)
}

// LoadEnrollments reads contact_campaigns rows for a batch of contacts,
// keyed by contact id.
func (s *Store) LoadEnrollments(ctx context.Context, contactIDs []int64) (map[int64][]model.ContactCampaign, error) {
	if len(contactIDs) == 0 {
		return map[int64][]model.ContactCampaign{}, nil
	}

	placeholders := strings.Repeat("?,", len(contactIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(contactIDs))
	for i, id := range contactIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT contact_id, campaign_instance_id, trigger_date, status
		FROM contact_campaigns
		WHERE contact_id IN (%s)
		ORDER BY contact_id, campaign_instance_id
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make(map[int64][]model.ContactCampaign)
	for rows.Next() {
		var cc model.ContactCampaign
		var trigger sql.NullString
		if err := rows.Scan(&cc.ContactID, &cc.CampaignInstanceID, &trigger, &cc.Status); err != nil {
			return nil, err
		}
		if cc.TriggerDate, err = parseOptionalDate(trigger); err != nil {
			// A malformed trigger date disables this enrollment only.
			continue
		}
		enrollments[cc.ContactID] = append(enrollments[cc.ContactID], cc)
	}
	return enrollments, rows.Err()
}
