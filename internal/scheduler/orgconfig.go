package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/renewalpoint/scheduler/internal/model"
	"github.com/renewalpoint/scheduler/internal/store"
)

// Hard-coded configuration defaults, overridden in order by the
// organizations row, the JSON override blob, and size-profile fill-ins.
const (
	DefaultBirthdayDaysBefore            = 14
	DefaultEffectiveDateDaysBefore       = 30
	DefaultSendTime                      = "08:30:00"
	DefaultTimezone                      = "America/Chicago"
	DefaultPreWindowExclusionDays        = 60
	DefaultEffectiveDateFirstEmailMonths = 11
	DefaultEDSmoothingWindowDays         = 5
	DefaultCatchUpSpreadDays             = 7
	DefaultOverageThreshold              = 1.20
)

// sizeDefaults carries the per-profile load-balancer and batching defaults.
type sizeDefaults struct {
	DailyCapPct float64
	EDSoftLimit int
	BatchSize   int
}

var profileDefaults = map[model.SizeProfile]sizeDefaults{
	model.ProfileSmall:      {DailyCapPct: 0.10, EDSoftLimit: 50, BatchSize: 1000},
	model.ProfileMedium:     {DailyCapPct: 0.07, EDSoftLimit: 200, BatchSize: 5000},
	model.ProfileLarge:      {DailyCapPct: 0.07, EDSoftLimit: 500, BatchSize: 10000},
	model.ProfileEnterprise: {DailyCapPct: 0.05, EDSoftLimit: 1000, BatchSize: 25000},
}

// DetectSizeProfile classifies an organization by contact count.
func DetectSizeProfile(contactCount int) model.SizeProfile {
	switch {
	case contactCount < 10_000:
		return model.ProfileSmall
	case contactCount < 100_000:
		return model.ProfileMedium
	case contactCount < 500_000:
		return model.ProfileLarge
	default:
		return model.ProfileEnterprise
	}
}

// configOverrides mirrors the config_overrides JSON blob. Pointers so that
// absent keys leave the lower layers alone.
type configOverrides struct {
	BirthdayDaysBefore             *int             `json:"birthday_days_before"`
	EffectiveDateDaysBefore        *int             `json:"effective_date_days_before"`
	SendTime                       *string          `json:"send_time"`
	Timezone                       *string          `json:"timezone"`
	AEPDates                       []model.MonthDay `json:"aep_dates"`
	PreWindowExclusionDays         *int             `json:"pre_window_exclusion_days"`
	EffectiveDateFirstEmailMonths  *int             `json:"effective_date_first_email_months"`
	EnablePostWindowEmails         *bool            `json:"enable_post_window_emails"`
	ExcludeFailedUnderwriting      *bool            `json:"exclude_failed_underwriting"`
	SendWithoutZipcodeForUniversal *bool            `json:"send_without_zipcode_for_universal"`
	DailySendPercentageCap         *float64         `json:"daily_send_percentage_cap"`
	EDDailySoftLimit               *int             `json:"ed_daily_soft_limit"`
	EDSmoothingWindowDays          *int             `json:"ed_smoothing_window_days"`
	CatchUpSpreadDays              *int             `json:"catch_up_spread_days"`
	OverageThreshold               *float64         `json:"overage_threshold"`
	SizeProfile                    *string          `json:"size_profile"`
	BatchSize                      *int             `json:"batch_size"`
}

// ResolveOrgConfig layers defaults, the organizations row, the JSON override
// blob, and size-profile fill-ins into the final configuration. A nil row
// means the organization runs entirely on defaults.
func ResolveOrgConfig(row *store.OrgRow, stateBuffers map[string]int, contactCount int) (*model.OrgConfig, error) {
	cfg := &model.OrgConfig{
		BirthdayDaysBefore:              DefaultBirthdayDaysBefore,
		EffectiveDateDaysBefore:         DefaultEffectiveDateDaysBefore,
		SendTime:                        DefaultSendTime,
		Timezone:                        DefaultTimezone,
		AEPDates:                        []model.MonthDay{{Month: 9, Day: 15}},
		PreWindowExclusionDays:          DefaultPreWindowExclusionDays,
		StateBufferDays:                 stateBuffers,
		EffectiveDateFirstEmailMonths:   DefaultEffectiveDateFirstEmailMonths,
		EnablePostWindowEmails:          true,
		ExcludeFailedUnderwritingGlobal: false,
		SendWithoutZipcodeForUniversal:  true,
		EDSmoothingWindowDays:           DefaultEDSmoothingWindowDays,
		CatchUpSpreadDays:               DefaultCatchUpSpreadDays,
		OverageThreshold:                DefaultOverageThreshold,
		TotalContacts:                   contactCount,
	}
	if cfg.StateBufferDays == nil {
		cfg.StateBufferDays = map[string]int{}
	}

	// Track which profile-backed fields an explicit layer has pinned.
	capSet, softSet, batchSet := false, false, false

	if row != nil {
		cfg.OrgID = row.ID
		if row.BirthdayDaysBefore.Valid {
			cfg.BirthdayDaysBefore = int(row.BirthdayDaysBefore.Int64)
		}
		if row.EffectiveDateDaysBefore.Valid {
			cfg.EffectiveDateDaysBefore = int(row.EffectiveDateDaysBefore.Int64)
		}
		if row.SendTime.Valid && row.SendTime.String != "" {
			cfg.SendTime = row.SendTime.String
		}
		if row.Timezone.Valid && row.Timezone.String != "" {
			cfg.Timezone = row.Timezone.String
		}
		if row.PreWindowExclusionDays.Valid {
			cfg.PreWindowExclusionDays = int(row.PreWindowExclusionDays.Int64)
		}
		if row.EffectiveDateFirstEmailMonths.Valid {
			cfg.EffectiveDateFirstEmailMonths = int(row.EffectiveDateFirstEmailMonths.Int64)
		}
		if row.EnablePostWindowEmails.Valid {
			cfg.EnablePostWindowEmails = row.EnablePostWindowEmails.Bool
		}
		if row.ExcludeFailedUnderwriting.Valid {
			cfg.ExcludeFailedUnderwritingGlobal = row.ExcludeFailedUnderwriting.Bool
		}
		if row.SendWithoutZipcodeForUniversal.Valid {
			cfg.SendWithoutZipcodeForUniversal = row.SendWithoutZipcodeForUniversal.Bool
		}
		if row.DailySendPercentageCap.Valid {
			cfg.DailySendPercentageCap = row.DailySendPercentageCap.Float64
			capSet = true
		}
		if row.EDDailySoftLimit.Valid {
			cfg.EDDailySoftLimit = int(row.EDDailySoftLimit.Int64)
			softSet = true
		}
		if row.EDSmoothingWindowDays.Valid {
			cfg.EDSmoothingWindowDays = int(row.EDSmoothingWindowDays.Int64)
		}
		if row.CatchUpSpreadDays.Valid {
			cfg.CatchUpSpreadDays = int(row.CatchUpSpreadDays.Int64)
		}
		if row.OverageThreshold.Valid {
			cfg.OverageThreshold = row.OverageThreshold.Float64
		}
		if row.SizeProfile.Valid && row.SizeProfile.String != "" {
			cfg.SizeProfile = model.SizeProfile(strings.ToLower(row.SizeProfile.String))
		}

		if row.ConfigOverrides.Valid && row.ConfigOverrides.String != "" {
			var overrides configOverrides
			if err := json.Unmarshal([]byte(row.ConfigOverrides.String), &overrides); err != nil {
				return nil, &ConfigError{Field: "config_overrides", Reason: err.Error()}
			}
			applyOverrides(cfg, &overrides, &capSet, &softSet, &batchSet)
		}
	}

	if cfg.SizeProfile == "" {
		cfg.SizeProfile = DetectSizeProfile(contactCount)
	}
	defaults, ok := profileDefaults[cfg.SizeProfile]
	if !ok {
		return nil, &ConfigError{Field: "size_profile", Reason: fmt.Sprintf("unknown profile %q", cfg.SizeProfile)}
	}
	if !capSet {
		cfg.DailySendPercentageCap = defaults.DailyCapPct
	}
	if !softSet {
		cfg.EDDailySoftLimit = defaults.EDSoftLimit
	}
	if !batchSet {
		cfg.BatchSize = defaults.BatchSize
	}

	if err := validateOrgConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *model.OrgConfig, o *configOverrides, capSet, softSet, batchSet *bool) {
	if o.BirthdayDaysBefore != nil {
		cfg.BirthdayDaysBefore = *o.BirthdayDaysBefore
	}
	if o.EffectiveDateDaysBefore != nil {
		cfg.EffectiveDateDaysBefore = *o.EffectiveDateDaysBefore
	}
	if o.SendTime != nil {
		cfg.SendTime = *o.SendTime
	}
	if o.Timezone != nil {
		cfg.Timezone = *o.Timezone
	}
	// nil means the key was absent; an explicit empty list disables AEP
	// anniversary emission entirely.
	if o.AEPDates != nil {
		cfg.AEPDates = o.AEPDates
	}
	if o.PreWindowExclusionDays != nil {
		cfg.PreWindowExclusionDays = *o.PreWindowExclusionDays
	}
	if o.EffectiveDateFirstEmailMonths != nil {
		cfg.EffectiveDateFirstEmailMonths = *o.EffectiveDateFirstEmailMonths
	}
	if o.EnablePostWindowEmails != nil {
		cfg.EnablePostWindowEmails = *o.EnablePostWindowEmails
	}
	if o.ExcludeFailedUnderwriting != nil {
		cfg.ExcludeFailedUnderwritingGlobal = *o.ExcludeFailedUnderwriting
	}
	if o.SendWithoutZipcodeForUniversal != nil {
		cfg.SendWithoutZipcodeForUniversal = *o.SendWithoutZipcodeForUniversal
	}
	if o.DailySendPercentageCap != nil {
		cfg.DailySendPercentageCap = *o.DailySendPercentageCap
		*capSet = true
	}
	if o.EDDailySoftLimit != nil {
		cfg.EDDailySoftLimit = *o.EDDailySoftLimit
		*softSet = true
	}
	if o.EDSmoothingWindowDays != nil {
		cfg.EDSmoothingWindowDays = *o.EDSmoothingWindowDays
	}
	if o.CatchUpSpreadDays != nil {
		cfg.CatchUpSpreadDays = *o.CatchUpSpreadDays
	}
	if o.OverageThreshold != nil {
		cfg.OverageThreshold = *o.OverageThreshold
	}
	if o.SizeProfile != nil {
		cfg.SizeProfile = model.SizeProfile(strings.ToLower(*o.SizeProfile))
	}
	if o.BatchSize != nil {
		cfg.BatchSize = *o.BatchSize
		*batchSet = true
	}
}

func validateOrgConfig(cfg *model.OrgConfig) error {
	if cfg.BirthdayDaysBefore < 0 || cfg.BirthdayDaysBefore > 365 {
		return &ConfigError{Field: "birthday_days_before", Reason: fmt.Sprintf("out of range: %d", cfg.BirthdayDaysBefore)}
	}
	if cfg.EffectiveDateDaysBefore < 0 || cfg.EffectiveDateDaysBefore > 365 {
		return &ConfigError{Field: "effective_date_days_before", Reason: fmt.Sprintf("out of range: %d", cfg.EffectiveDateDaysBefore)}
	}
	if cfg.EffectiveDateFirstEmailMonths < 11 || cfg.EffectiveDateFirstEmailMonths > 35 {
		return &ConfigError{Field: "effective_date_first_email_months", Reason: fmt.Sprintf("must be 11-35, got %d", cfg.EffectiveDateFirstEmailMonths)}
	}
	if cfg.PreWindowExclusionDays < 0 || cfg.PreWindowExclusionDays > 365 {
		return &ConfigError{Field: "pre_window_exclusion_days", Reason: fmt.Sprintf("out of range: %d", cfg.PreWindowExclusionDays)}
	}
	if cfg.DailySendPercentageCap <= 0 || cfg.DailySendPercentageCap > 1 {
		return &ConfigError{Field: "daily_send_percentage_cap", Reason: fmt.Sprintf("must be in (0,1], got %g", cfg.DailySendPercentageCap)}
	}
	if cfg.EDSmoothingWindowDays < 1 {
		return &ConfigError{Field: "ed_smoothing_window_days", Reason: fmt.Sprintf("must be positive, got %d", cfg.EDSmoothingWindowDays)}
	}
	if cfg.CatchUpSpreadDays < 1 {
		return &ConfigError{Field: "catch_up_spread_days", Reason: fmt.Sprintf("must be positive, got %d", cfg.CatchUpSpreadDays)}
	}
	if cfg.OverageThreshold < 1 {
		return &ConfigError{Field: "overage_threshold", Reason: fmt.Sprintf("must be >= 1, got %g", cfg.OverageThreshold)}
	}
	if cfg.BatchSize < 1 {
		return &ConfigError{Field: "batch_size", Reason: fmt.Sprintf("must be positive, got %d", cfg.BatchSize)}
	}
	if _, err := time.Parse(time.TimeOnly, cfg.SendTime); err != nil {
		return &ConfigError{Field: "send_time", Reason: fmt.Sprintf("not HH:MM:SS: %q", cfg.SendTime)}
	}
	for _, md := range cfg.AEPDates {
		if md.Month < 1 || md.Month > 12 || md.Day < 1 || md.Day > 31 {
			return &ConfigError{Field: "aep_dates", Reason: fmt.Sprintf("invalid month/day %d-%d", md.Month, md.Day)}
		}
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return &ConfigError{Field: "timezone", Reason: err.Error()}
	}
	return nil
}
