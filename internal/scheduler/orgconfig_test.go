package scheduler

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewalpoint/scheduler/internal/model"
	"github.com/renewalpoint/scheduler/internal/store"
)

func TestResolveDefaultsWithoutOrgRow(t *testing.T) {
	cfg, err := ResolveOrgConfig(nil, nil, 5000)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.BirthdayDaysBefore)
	assert.Equal(t, 30, cfg.EffectiveDateDaysBefore)
	assert.Equal(t, "08:30:00", cfg.SendTime)
	assert.Equal(t, 60, cfg.PreWindowExclusionDays)
	assert.Equal(t, 11, cfg.EffectiveDateFirstEmailMonths)
	assert.True(t, cfg.EnablePostWindowEmails)
	assert.Equal(t, []model.MonthDay{{Month: 9, Day: 15}}, cfg.AEPDates)

	// 5k contacts: small profile defaults.
	assert.Equal(t, model.ProfileSmall, cfg.SizeProfile)
	assert.Equal(t, 0.10, cfg.DailySendPercentageCap)
	assert.Equal(t, 1000, cfg.BatchSize)
}

func TestDetectSizeProfile(t *testing.T) {
	assert.Equal(t, model.ProfileSmall, DetectSizeProfile(9_999))
	assert.Equal(t, model.ProfileMedium, DetectSizeProfile(10_000))
	assert.Equal(t, model.ProfileMedium, DetectSizeProfile(99_999))
	assert.Equal(t, model.ProfileLarge, DetectSizeProfile(100_000))
	assert.Equal(t, model.ProfileLarge, DetectSizeProfile(499_999))
	assert.Equal(t, model.ProfileEnterprise, DetectSizeProfile(500_000))
	assert.Equal(t, model.ProfileEnterprise, DetectSizeProfile(3_000_000))
}

func TestOrgRowOverridesDefaults(t *testing.T) {
	row := &store.OrgRow{
		ID:                     42,
		BirthdayDaysBefore:     sql.NullInt64{Int64: 21, Valid: true},
		DailySendPercentageCap: sql.NullFloat64{Float64: 0.05, Valid: true},
		Timezone:               sql.NullString{String: "America/New_York", Valid: true},
	}

	cfg, err := ResolveOrgConfig(row, nil, 50_000)
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.OrgID)
	assert.Equal(t, 21, cfg.BirthdayDaysBefore)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	// Row value beats the medium-profile default.
	assert.Equal(t, 0.05, cfg.DailySendPercentageCap)
	// Fields the row leaves alone still come from the profile.
	assert.Equal(t, 5000, cfg.BatchSize)
	assert.Equal(t, 200, cfg.EDDailySoftLimit)
}

func TestJSONOverridesBeatOrgRow(t *testing.T) {
	row := &store.OrgRow{
		ID:                 42,
		BirthdayDaysBefore: sql.NullInt64{Int64: 21, Valid: true},
		ConfigOverrides: sql.NullString{
			String: `{
				"birthday_days_before": 7,
				"enable_post_window_emails": false,
				"aep_dates": [{"month": 10, "day": 1}],
				"batch_size": 250
			}`,
			Valid: true,
		},
	}

	cfg, err := ResolveOrgConfig(row, nil, 1000)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.BirthdayDaysBefore)
	assert.False(t, cfg.EnablePostWindowEmails)
	assert.Equal(t, []model.MonthDay{{Month: 10, Day: 1}}, cfg.AEPDates)
	assert.Equal(t, 250, cfg.BatchSize)
}

func TestJSONOverrideClearsAEPDates(t *testing.T) {
	// An org migrating AEP to a campaign instance empties aep_dates; the
	// explicit empty list must not fall back to the Sep 15 default.
	row := &store.OrgRow{
		ID:              42,
		ConfigOverrides: sql.NullString{String: `{"aep_dates": []}`, Valid: true},
	}

	cfg, err := ResolveOrgConfig(row, nil, 1000)
	require.NoError(t, err)
	assert.Empty(t, cfg.AEPDates)
}

func TestMalformedOverridesIsConfigError(t *testing.T) {
	row := &store.OrgRow{
		ID:              1,
		ConfigOverrides: sql.NullString{String: `{not json`, Valid: true},
	}
	_, err := ResolveOrgConfig(row, nil, 1000)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config_overrides", cfgErr.Field)
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := []struct {
		name      string
		overrides string
	}{
		{"negative birthday lead", `{"birthday_days_before": -1}`},
		{"cap over one", `{"daily_send_percentage_cap": 1.5}`},
		{"cap zero", `{"daily_send_percentage_cap": 0}`},
		{"first email months too low", `{"effective_date_first_email_months": 6}`},
		{"first email months too high", `{"effective_date_first_email_months": 48}`},
		{"bad send time", `{"send_time": "8:30"}`},
		{"bad timezone", `{"timezone": "Not/AZone"}`},
		{"bad aep date", `{"aep_dates": [{"month": 13, "day": 1}]}`},
		{"unknown profile", `{"size_profile": "galactic"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := &store.OrgRow{ID: 1, ConfigOverrides: sql.NullString{String: tc.overrides, Valid: true}}
			_, err := ResolveOrgConfig(row, nil, 1000)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestStateBuffersCarriedThrough(t *testing.T) {
	cfg, err := ResolveOrgConfig(nil, map[string]int{"CA": 30}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.BufferDaysFor("CA"))
	assert.Equal(t, 60, cfg.BufferDaysFor("KY"))
}
