package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewalpoint/scheduler/internal/dates"
)

func TestEmailTypeWireRoundTrip(t *testing.T) {
	cases := []struct {
		emailType  EmailType
		wire       string
		instanceID int64
	}{
		{AnniversaryType(KindBirthday), "birthday", 0},
		{AnniversaryType(KindEffectiveDate), "effective_date", 0},
		{AnniversaryType(KindAEP), "aep", 0},
		{AnniversaryType(KindPostWindow), "post_window", 0},
		{CampaignEmailType("rate_increase", 7), "rate_increase", 7},
		{EmailType{Kind: KindFollowup, FollowupSubtype: "no_open"}, "followup_no_open", 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.wire, tc.emailType.Wire())
		parsed, err := ParseEmailType(tc.wire, tc.instanceID)
		require.NoError(t, err)
		assert.Equal(t, tc.emailType, parsed)
	}
}

func TestParseEmailTypeUnknownWithoutInstance(t *testing.T) {
	_, err := ParseEmailType("mystery_blast", 0)
	assert.Error(t, err)
}

func TestContentKeyIgnoresRunIDAndTimestamps(t *testing.T) {
	a := &EmailSchedule{
		ContactID:     1,
		Type:          AnniversaryType(KindBirthday),
		ScheduledDate: dates.MustParse("2024-11-17"),
		ScheduledTime: "08:30:00",
		Status:        StatusPreScheduled,
		Priority:      PriorityBirthday,
	}
	b := *a
	b.ID = 99
	b.SchedulerRunID = "run_other"

	assert.Equal(t, a.ContentKey(), b.ContentKey())
	assert.Equal(t, a.NaturalKey(), b.NaturalKey())

	b.Status = StatusSkipped
	b.SkipReason = "Year-round exclusion for NY"
	assert.NotEqual(t, a.ContentKey(), b.ContentKey())
	assert.Equal(t, a.NaturalKey(), b.NaturalKey())
}

func TestInstanceTargeting(t *testing.T) {
	inst := &CampaignInstance{TargetStates: "TX, fl", TargetCarriers: "ALL"}
	assert.True(t, inst.TargetsState("TX"))
	assert.True(t, inst.TargetsState("fl"))
	assert.False(t, inst.TargetsState("CA"))
	assert.True(t, inst.TargetsCarrier("anything"))
	assert.False(t, inst.TargetsEveryone())

	open := &CampaignInstance{}
	assert.True(t, open.TargetsState("CA"))
	assert.True(t, open.TargetsEveryone())

	all := &CampaignInstance{TargetStates: "ALL", TargetCarriers: ""}
	assert.True(t, all.TargetsEveryone())
}

func TestInstanceActiveOn(t *testing.T) {
	inst := &CampaignInstance{
		ActiveStartDate: dates.MustParse("2024-08-01"),
		ActiveEndDate:   dates.MustParse("2024-12-31"),
	}
	assert.True(t, inst.ActiveOn(dates.MustParse("2024-08-01")))
	assert.True(t, inst.ActiveOn(dates.MustParse("2024-12-31")))
	assert.False(t, inst.ActiveOn(dates.MustParse("2024-07-31")))
	assert.False(t, inst.ActiveOn(dates.MustParse("2025-01-01")))

	unbounded := &CampaignInstance{}
	assert.False(t, unbounded.ActiveOn(dates.MustParse("2024-08-01")))
}

func TestSendable(t *testing.T) {
	assert.True(t, (&Contact{Email: "a@example.com"}).Sendable())
	assert.False(t, (&Contact{}).Sendable())
	assert.True(t, (&Contact{State: "TX"}).HasLocation())
	assert.True(t, (&Contact{ZipCode: "78701"}).HasLocation())
	assert.False(t, (&Contact{}).HasLocation())
}
