package scheduler

import (
	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

// AnniversaryScheduler emits the recurring per-contact candidates: birthday,
// effective date, and AEP. Post-window recovery candidates are synthesized
// later by the exclusion filter.
type AnniversaryScheduler struct {
	cfg *model.OrgConfig
}

// NewAnniversaryScheduler creates an anniversary scheduler for a resolved
// org configuration.
func NewAnniversaryScheduler(cfg *model.OrgConfig) *AnniversaryScheduler {
	return &AnniversaryScheduler{cfg: cfg}
}

// Candidates returns the contact's anniversary candidates inside the
// planning window [today, horizon]. Missing anchors simply omit the
// corresponding kind.
func (s *AnniversaryScheduler) Candidates(contact *model.Contact, today, horizon dates.Date) []*Candidate {
	var out []*Candidate

	underwritingBlocked := contact.FailedUnderwriting && s.cfg.ExcludeFailedUnderwritingGlobal

	if !contact.Birthday.IsZero() && !underwritingBlocked {
		anniversary := dates.NextAnniversary(today, contact.Birthday)
		sendDate := anniversary.AddDays(-s.cfg.BirthdayDaysBefore)
		if inWindow(sendDate, today, horizon) {
			out = append(out, &Candidate{
				Contact:  contact,
				Type:     model.AnniversaryType(model.KindBirthday),
				Date:     sendDate,
				Priority: model.PriorityBirthday,
				Event:    anniversary,
				Status:   model.StatusPreScheduled,
			})
		}
	}

	if !contact.EffectiveDate.IsZero() && !underwritingBlocked && s.pastFirstEmailThreshold(contact, today) {
		anniversary := dates.NextAnniversary(today, contact.EffectiveDate)
		sendDate := anniversary.AddDays(-s.cfg.EffectiveDateDaysBefore)
		if inWindow(sendDate, today, horizon) {
			out = append(out, &Candidate{
				Contact:  contact,
				Type:     model.AnniversaryType(model.KindEffectiveDate),
				Date:     sendDate,
				Priority: model.PriorityEffectiveDate,
				Event:    anniversary,
				Status:   model.StatusPreScheduled,
			})
		}
	}

	// AEP is exempt from the global underwriting exclusion: enrollment
	// period notices go to everyone.
	for _, md := range s.cfg.AEPDates {
		aepDate := dates.New(today.Year, md.Month, md.Day)
		if aepDate.Before(today) {
			aepDate = dates.New(today.Year+1, md.Month, md.Day)
		}
		if inWindow(aepDate, today, horizon) {
			out = append(out, &Candidate{
				Contact:  contact,
				Type:     model.AnniversaryType(model.KindAEP),
				Date:     aepDate,
				Priority: model.PriorityAEP,
				Event:    aepDate,
				Status:   model.StatusPreScheduled,
			})
		}
	}

	return out
}

// pastFirstEmailThreshold suppresses effective-date emails for contacts whose
// policy is newer than the configured number of months (30-day months).
func (s *AnniversaryScheduler) pastFirstEmailThreshold(contact *model.Contact, today dates.Date) bool {
	tenureDays := dates.DaysBetween(contact.EffectiveDate, today)
	return tenureDays >= s.cfg.EffectiveDateFirstEmailMonths*30
}

func inWindow(d, today, horizon dates.Date) bool {
	return !d.Before(today) && !d.After(horizon)
}
