package scheduler

import (
	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

// Candidate is one proposed (contact, email kind, date) send flowing through
// the pipeline. It starts pre-scheduled; the exclusion filter may flip it to
// skipped, and the load balancer may move its date.
type Candidate struct {
	Contact            *model.Contact
	Type               model.EmailType
	Date               dates.Date
	Priority           int
	TemplateID         string
	SMSTemplateID      string
	CampaignInstanceID int64
	RespectsExclusions bool
	Event              dates.Date // the anchoring anniversary or trigger date
	Status             model.ScheduleStatus
	SkipReason         string
}

// Schedule materializes the candidate into the output entity.
func (c *Candidate) Schedule(cfg *model.OrgConfig) *model.EmailSchedule {
	return &model.EmailSchedule{
		ContactID:          c.Contact.ID,
		Type:               c.Type,
		ScheduledDate:      c.Date,
		ScheduledTime:      cfg.SendTime,
		Status:             c.Status,
		SkipReason:         c.SkipReason,
		Priority:           c.Priority,
		TemplateID:         c.TemplateID,
		SMSTemplateID:      c.SMSTemplateID,
		CampaignInstanceID: c.CampaignInstanceID,
		EventYear:          c.Event.Year,
		EventMonth:         c.Event.Month,
		EventDay:           c.Event.Day,
	}
}
