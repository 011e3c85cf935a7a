package model

import (
	"encoding/json"
	"strings"

	"github.com/renewalpoint/scheduler/internal/dates"
)

// Enrollment statuses for contact_campaigns rows.
const (
	EnrollmentPending   = "pending"
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentSkipped   = "skipped"
)

// CampaignType is the behavior template a campaign instance references.
type CampaignType struct {
	Name                     string `json:"name"`
	Priority                 int    `json:"priority"` // lower = higher precedence
	Active                   bool   `json:"active"`
	RespectsExclusionWindows bool   `json:"respectsExclusionWindows"`
	EnableFollowups          bool   `json:"enableFollowups"`
	DaysBeforeEvent          int    `json:"daysBeforeEvent"`
	TargetAllContacts        bool   `json:"targetAllContacts"`
	SpreadEvenly             bool   `json:"spreadEvenly"`
	SkipFailedUnderwriting   bool   `json:"skipFailedUnderwriting"`
}

// CampaignInstance is a configured occurrence of a campaign type.
type CampaignInstance struct {
	ID              int64           `json:"id"`
	CampaignType    string          `json:"campaignType"`
	InstanceName    string          `json:"instanceName"`
	EmailTemplate   string          `json:"emailTemplate,omitempty"`
	SMSTemplate     string          `json:"smsTemplate,omitempty"`
	ActiveStartDate dates.Date      `json:"activeStartDate"`
	ActiveEndDate   dates.Date      `json:"activeEndDate"`
	SpreadStartDate dates.Date      `json:"spreadStartDate,omitempty"`
	SpreadEndDate   dates.Date      `json:"spreadEndDate,omitempty"`
	TargetStates    string          `json:"targetStates,omitempty"`   // "ALL", comma list, or empty (= all)
	TargetCarriers  string          `json:"targetCarriers,omitempty"` // same convention
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// ActiveOn reports whether the instance is visible on the given date.
func (i *CampaignInstance) ActiveOn(today dates.Date) bool {
	if i.ActiveStartDate.IsZero() || i.ActiveEndDate.IsZero() {
		return false
	}
	return !today.Before(i.ActiveStartDate) && !today.After(i.ActiveEndDate)
}

// TargetsState reports whether the instance's state targeting admits the
// given state. Empty and "ALL" admit everything.
func (i *CampaignInstance) TargetsState(state string) bool {
	return targetListMatches(i.TargetStates, state)
}

// TargetsCarrier reports whether the instance's carrier targeting admits the
// given carrier.
func (i *CampaignInstance) TargetsCarrier(carrier string) bool {
	return targetListMatches(i.TargetCarriers, carrier)
}

// TargetsEveryone reports whether both targeting lists are open.
func (i *CampaignInstance) TargetsEveryone() bool {
	return isOpenTargetList(i.TargetStates) && isOpenTargetList(i.TargetCarriers)
}

func isOpenTargetList(list string) bool {
	trimmed := strings.TrimSpace(list)
	return trimmed == "" || strings.EqualFold(trimmed, "ALL")
}

func targetListMatches(list, value string) bool {
	if isOpenTargetList(list) {
		return true
	}
	for _, entry := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(entry), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

// ContactCampaign is an enrollment row linking a contact to a campaign
// instance.
type ContactCampaign struct {
	ContactID          int64      `json:"contactId"`
	CampaignInstanceID int64      `json:"campaignInstanceId"`
	TriggerDate        dates.Date `json:"triggerDate"`
	Status             string     `json:"status"`
}

// Enrolled reports whether the enrollment still produces sends.
func (cc *ContactCampaign) Enrolled() bool {
	return cc.Status == EnrollmentPending || cc.Status == EnrollmentActive
}
