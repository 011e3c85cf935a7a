package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

func birthdayCandidate(contact *model.Contact, date, event string) *Candidate {
	return &Candidate{
		Contact:  contact,
		Type:     model.AnniversaryType(model.KindBirthday),
		Date:     dates.MustParse(date),
		Priority: model.PriorityBirthday,
		Event:    dates.MustParse(event),
		Status:   model.StatusPreScheduled,
	}
}

func TestWindowedExclusionSynthesizesPostWindow(t *testing.T) {
	cfg := testOrgConfig()
	f := NewExclusionFilter(cfg)

	contact := &model.Contact{ID: 1, Email: "a@example.com", State: "CA", Birthday: dates.MustParse("2024-12-01")}
	out := f.Apply([]*Candidate{birthdayCandidate(contact, "2024-11-17", "2024-12-01")})

	require.Len(t, out, 2)

	skipped := out[0]
	assert.Equal(t, model.StatusSkipped, skipped.Status)
	assert.Equal(t, "Birthday exclusion window for CA", skipped.SkipReason)

	recovery := out[1]
	assert.Equal(t, model.KindPostWindow, recovery.Type.Kind)
	assert.Equal(t, model.StatusPreScheduled, recovery.Status)
	assert.Equal(t, "2025-01-31", recovery.Date.String())
	assert.Equal(t, model.PriorityPostWindow, recovery.Priority)
	assert.Equal(t, "2024-12-01", recovery.Event.String())
}

func TestYearRoundExclusionNoPostWindow(t *testing.T) {
	cfg := testOrgConfig()
	f := NewExclusionFilter(cfg)

	contact := &model.Contact{ID: 1, Email: "a@example.com", State: "NY", Birthday: dates.MustParse("1970-06-01")}
	out := f.Apply([]*Candidate{birthdayCandidate(contact, "2024-05-18", "2024-06-01")})

	require.Len(t, out, 1)
	assert.Equal(t, model.StatusSkipped, out[0].Status)
	assert.Equal(t, "Year-round exclusion for NY", out[0].SkipReason)
}

func TestPostWindowDisabled(t *testing.T) {
	cfg := testOrgConfig()
	cfg.EnablePostWindowEmails = false
	f := NewExclusionFilter(cfg)

	contact := &model.Contact{ID: 1, Email: "a@example.com", State: "CA", Birthday: dates.MustParse("2024-12-01")}
	out := f.Apply([]*Candidate{birthdayCandidate(contact, "2024-11-17", "2024-12-01")})

	require.Len(t, out, 1)
	assert.Equal(t, model.StatusSkipped, out[0].Status)
}

func TestNotExcludedKept(t *testing.T) {
	cfg := testOrgConfig()
	f := NewExclusionFilter(cfg)

	contact := &model.Contact{ID: 1, Email: "a@example.com", State: "TX", Birthday: dates.MustParse("1980-12-01")}
	out := f.Apply([]*Candidate{birthdayCandidate(contact, "2024-11-17", "2024-12-01")})

	require.Len(t, out, 1)
	assert.Equal(t, model.StatusPreScheduled, out[0].Status)
}

func TestAtMostOnePostWindowPerContact(t *testing.T) {
	cfg := testOrgConfig()
	f := NewExclusionFilter(cfg)

	// Missouri: effective-date window suppresses both the effective-date
	// send and a birthday send that falls inside it.
	contact := &model.Contact{
		ID: 1, Email: "a@example.com", State: "MO",
		Birthday:      dates.MustParse("1960-07-20"),
		EffectiveDate: dates.MustParse("2020-07-01"),
	}
	ed := &Candidate{
		Contact:  contact,
		Type:     model.AnniversaryType(model.KindEffectiveDate),
		Date:     dates.MustParse("2024-06-01"),
		Priority: model.PriorityEffectiveDate,
		Event:    dates.MustParse("2024-07-01"),
		Status:   model.StatusPreScheduled,
	}
	bd := birthdayCandidate(contact, "2024-07-06", "2024-07-20")

	out := f.Apply([]*Candidate{ed, bd})

	var recoveries []*Candidate
	for _, c := range out {
		if c.Type.Kind == model.KindPostWindow {
			recoveries = append(recoveries, c)
		}
	}
	require.Len(t, recoveries, 1)
	// Window end Aug 3, recovery the day after.
	assert.Equal(t, "2024-08-04", recoveries[0].Date.String())
}

func TestCampaignRespectsExclusions(t *testing.T) {
	cfg := testOrgConfig()
	f := NewExclusionFilter(cfg)

	contact := &model.Contact{ID: 1, Email: "a@example.com", State: "NY"}
	respecting := &Candidate{
		Contact:            contact,
		Type:               model.CampaignEmailType("rate_increase", 7),
		Date:               dates.MustParse("2024-09-10"),
		Priority:           30,
		CampaignInstanceID: 7,
		RespectsExclusions: true,
		Status:             model.StatusPreScheduled,
	}
	ignoring := &Candidate{
		Contact:            contact,
		Type:               model.CampaignEmailType("compliance_notice", 8),
		Date:               dates.MustParse("2024-09-10"),
		Priority:           5,
		CampaignInstanceID: 8,
		RespectsExclusions: false,
		Status:             model.StatusPreScheduled,
	}

	out := f.Apply([]*Candidate{respecting, ignoring})
	require.Len(t, out, 2)

	assert.Equal(t, model.StatusSkipped, out[0].Status)
	assert.Equal(t, model.StatusPreScheduled, out[1].Status)

	// Suppressed campaigns never get post-window recovery.
	for _, c := range out {
		assert.NotEqual(t, model.KindPostWindow, c.Type.Kind)
	}
}
