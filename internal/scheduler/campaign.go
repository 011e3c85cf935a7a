package scheduler

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

// CampaignScheduler materializes active campaign instances into per-contact
// candidates.
type CampaignScheduler struct {
	cfg       *model.OrgConfig
	types     map[string]model.CampaignType
	instances []model.CampaignInstance // active today, in id order
}

// NewCampaignScheduler validates the campaign catalog and keeps the
// instances visible today. An active instance referencing an unknown type is
// a configuration error: it would silently drop sends. Instances of an
// inactive type are left out without error.
func NewCampaignScheduler(cfg *model.OrgConfig, types map[string]model.CampaignType, instances []model.CampaignInstance, today dates.Date) (*CampaignScheduler, error) {
	var active []model.CampaignInstance
	for _, inst := range instances {
		if !inst.ActiveOn(today) {
			continue
		}
		t, ok := types[inst.CampaignType]
		if !ok {
			return nil, &ConfigError{
				Field:  "campaign_instances",
				Reason: fmt.Sprintf("instance %d references unknown campaign type %q", inst.ID, inst.CampaignType),
			}
		}
		if !t.Active {
			continue
		}
		if t.SpreadEvenly && (inst.SpreadStartDate.IsZero() || inst.SpreadEndDate.IsZero() || inst.SpreadEndDate.Before(inst.SpreadStartDate)) {
			return nil, &ConfigError{
				Field:  "campaign_instances",
				Reason: fmt.Sprintf("instance %d of spread type %q has no usable spread window", inst.ID, inst.CampaignType),
			}
		}
		active = append(active, inst)
	}
	return &CampaignScheduler{cfg: cfg, types: types, instances: active}, nil
}

// ActiveInstances returns the instances visible today.
func (s *CampaignScheduler) ActiveInstances() []model.CampaignInstance {
	return s.instances
}

// Candidates returns campaign candidates for one contact. enrollments are
// the contact's contact_campaigns rows keyed by instance id.
func (s *CampaignScheduler) Candidates(contact *model.Contact, enrollments []model.ContactCampaign, today, horizon dates.Date) []*Candidate {
	byInstance := make(map[int64]*model.ContactCampaign, len(enrollments))
	for i := range enrollments {
		byInstance[enrollments[i].CampaignInstanceID] = &enrollments[i]
	}

	var out []*Candidate
	for i := range s.instances {
		inst := &s.instances[i]
		t := s.types[inst.CampaignType]

		if !s.admits(contact, inst, &t) {
			continue
		}

		enrollment := byInstance[inst.ID]
		if !t.TargetAllContacts {
			if enrollment == nil || !enrollment.Enrolled() {
				continue
			}
		}

		sendDate, ok := s.sendDate(contact, inst, &t, enrollment)
		if !ok || !inWindow(sendDate, today, horizon) {
			continue
		}

		event := sendDate
		if enrollment != nil && !enrollment.TriggerDate.IsZero() {
			event = enrollment.TriggerDate
		}

		out = append(out, &Candidate{
			Contact:            contact,
			Type:               model.CampaignEmailType(t.Name, inst.ID),
			Date:               sendDate,
			Priority:           t.Priority,
			TemplateID:         inst.EmailTemplate,
			SMSTemplateID:      inst.SMSTemplate,
			CampaignInstanceID: inst.ID,
			RespectsExclusions: t.RespectsExclusionWindows,
			Event:              event,
			Status:             model.StatusPreScheduled,
		})
	}
	return out
}

// admits applies targeting and per-type preconditions.
func (s *CampaignScheduler) admits(contact *model.Contact, inst *model.CampaignInstance, t *model.CampaignType) bool {
	if t.SkipFailedUnderwriting && contact.FailedUnderwriting {
		return false
	}

	// Location policy: targeted campaigns require location data; universal
	// campaigns keep location-less contacts only when the org allows it.
	if !contact.HasLocation() {
		if !inst.TargetsEveryone() {
			return false
		}
		if !s.cfg.SendWithoutZipcodeForUniversal {
			return false
		}
	}

	return inst.TargetsState(contact.State) && inst.TargetsCarrier(contact.Carrier)
}

// sendDate computes the instance's send date for the contact.
func (s *CampaignScheduler) sendDate(contact *model.Contact, inst *model.CampaignInstance, t *model.CampaignType, enrollment *model.ContactCampaign) (dates.Date, bool) {
	if t.SpreadEvenly {
		return spreadDate(contact.ID, inst.ID, inst.SpreadStartDate, inst.SpreadEndDate), true
	}
	if enrollment == nil || enrollment.TriggerDate.IsZero() {
		return dates.Date{}, false
	}
	return enrollment.TriggerDate.AddDays(-t.DaysBeforeEvent), true
}

// spreadDate deterministically places a contact inside the spread window.
// The hash input is fixed so re-runs land the contact on the same day.
func spreadDate(contactID, instanceID int64, start, end dates.Date) dates.Date {
	width := dates.DaysBetween(start, end) + 1
	if width < 1 {
		width = 1
	}
	h := xxhash.Sum64String(fmt.Sprintf("%d:%d", contactID, instanceID))
	return start.AddDays(int(h % uint64(width)))
}
