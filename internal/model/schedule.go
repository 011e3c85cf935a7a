package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/renewalpoint/scheduler/internal/dates"
)

// ScheduleStatus is the lifecycle state of an email_schedules row. The
// scheduler only ever writes pre-scheduled and skipped; sent and failed are
// owned by the delivery side.
type ScheduleStatus string

const (
	StatusPreScheduled ScheduleStatus = "pre-scheduled"
	StatusSkipped      ScheduleStatus = "skipped"
	StatusSent         ScheduleStatus = "sent"
	StatusFailed       ScheduleStatus = "failed"
)

// EmailKind discriminates the email_type union.
type EmailKind int

const (
	KindBirthday EmailKind = iota
	KindEffectiveDate
	KindAEP
	KindPostWindow
	KindCampaign
	KindFollowup
)

// Anniversary priorities. Lower number wins under the daily cap.
const (
	PriorityBirthday      = 10
	PriorityEffectiveDate = 20
	PriorityAEP           = 30
	PriorityPostWindow    = 40
)

// Wire names for the anniversary kinds.
const (
	TypeBirthday      = "birthday"
	TypeEffectiveDate = "effective_date"
	TypeAEP           = "aep"
	TypePostWindow    = "post_window"

	followupPrefix = "followup_"
)

// EmailType is the closed internal form of the string-typed email_type
// column. Campaign variants carry the type name and instance id; followups
// carry a subtype and are declared for wire compatibility only.
type EmailType struct {
	Kind            EmailKind
	CampaignType    string // set when Kind == KindCampaign
	InstanceID      int64  // set when Kind == KindCampaign
	FollowupSubtype string // set when Kind == KindFollowup
}

// AnniversaryType builds an EmailType for one of the anniversary kinds.
func AnniversaryType(kind EmailKind) EmailType {
	return EmailType{Kind: kind}
}

// CampaignEmailType builds the campaign variant.
func CampaignEmailType(typeName string, instanceID int64) EmailType {
	return EmailType{Kind: KindCampaign, CampaignType: typeName, InstanceID: instanceID}
}

// Wire returns the string stored in the email_type column.
func (t EmailType) Wire() string {
	switch t.Kind {
	case KindBirthday:
		return TypeBirthday
	case KindEffectiveDate:
		return TypeEffectiveDate
	case KindAEP:
		return TypeAEP
	case KindPostWindow:
		return TypePostWindow
	case KindCampaign:
		return t.CampaignType
	case KindFollowup:
		return followupPrefix + t.FollowupSubtype
	}
	return ""
}

// IsAnniversary reports whether the type is one of the anniversary kinds.
func (t EmailType) IsAnniversary() bool {
	switch t.Kind {
	case KindBirthday, KindEffectiveDate, KindAEP, KindPostWindow:
		return true
	}
	return false
}

// ParseEmailType decodes a wire string plus the campaign_instance_id column
// back into the closed form. An unknown name with no instance id is a data
// error: the row came from a writer this scheduler does not know about.
func ParseEmailType(wire string, instanceID int64) (EmailType, error) {
	switch wire {
	case TypeBirthday:
		return EmailType{Kind: KindBirthday}, nil
	case TypeEffectiveDate:
		return EmailType{Kind: KindEffectiveDate}, nil
	case TypeAEP:
		return EmailType{Kind: KindAEP}, nil
	case TypePostWindow:
		return EmailType{Kind: KindPostWindow}, nil
	}
	if strings.HasPrefix(wire, followupPrefix) {
		return EmailType{Kind: KindFollowup, FollowupSubtype: strings.TrimPrefix(wire, followupPrefix)}, nil
	}
	if instanceID > 0 {
		return EmailType{Kind: KindCampaign, CampaignType: wire, InstanceID: instanceID}, nil
	}
	return EmailType{}, fmt.Errorf("unknown email type %q without campaign instance", wire)
}

// EmailSchedule is one planned (or suppressed) send. It is the scheduler's
// sole output entity.
type EmailSchedule struct {
	ID                 int64          `json:"id"`
	ContactID          int64          `json:"contactId"`
	Type               EmailType      `json:"type"`
	ScheduledDate      dates.Date     `json:"scheduledDate"`
	ScheduledTime      string         `json:"scheduledTime"` // HH:MM:SS
	Status             ScheduleStatus `json:"status"`
	SkipReason         string         `json:"skipReason,omitempty"`
	Priority           int            `json:"priority"`
	TemplateID         string         `json:"templateId,omitempty"`
	SMSTemplateID      string         `json:"smsTemplateId,omitempty"`
	CampaignInstanceID int64          `json:"campaignInstanceId,omitempty"`
	EventYear          int            `json:"eventYear,omitempty"`
	EventMonth         int            `json:"eventMonth,omitempty"`
	EventDay           int            `json:"eventDay,omitempty"`
	SchedulerRunID     string         `json:"schedulerRunId"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// NaturalKey identifies the row independent of content: one schedule per
// (contact, email type, date).
func (s *EmailSchedule) NaturalKey() string {
	return fmt.Sprintf("%d|%s|%s", s.ContactID, s.Type.Wire(), s.ScheduledDate)
}

// ContentKey covers every field that makes two schedules materially
// different. Run id and timestamps are deliberately excluded so an unchanged
// schedule keeps its audit identity across runs.
func (s *EmailSchedule) ContentKey() string {
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s|%d|%s|%d",
		s.ContactID, s.Type.Wire(), s.ScheduledDate, s.ScheduledTime,
		s.Status, s.SkipReason, s.Priority, s.TemplateID, s.CampaignInstanceID)
}
