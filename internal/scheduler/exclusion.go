package scheduler

import (
	"sort"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
	"github.com/renewalpoint/scheduler/internal/rules"
)

// ExclusionFilter resolves every candidate against the state rule engine and
// synthesizes post-window recovery sends for suppressed anniversaries.
type ExclusionFilter struct {
	cfg *model.OrgConfig
}

// NewExclusionFilter creates a filter for a resolved org configuration.
func NewExclusionFilter(cfg *model.OrgConfig) *ExclusionFilter {
	return &ExclusionFilter{cfg: cfg}
}

// postWindowSeed tracks the longest suppression window seen per contact, so
// at most one recovery send is emitted per contact per filter pass.
type postWindowSeed struct {
	candidate *Candidate
	windowEnd dates.Date
}

// Apply classifies candidates as kept or skipped and appends any synthesized
// post-window candidates. Skipped candidates stay in the result: they are
// persisted for audit.
func (f *ExclusionFilter) Apply(candidates []*Candidate) []*Candidate {
	out := make([]*Candidate, 0, len(candidates))
	seeds := make(map[int64]*postWindowSeed)

	for _, c := range candidates {
		if !f.subjectToExclusions(c) {
			out = append(out, c)
			continue
		}

		res := rules.CheckExclusion(f.cfg, c.Contact, c.Date)
		if !res.Excluded {
			out = append(out, c)
			continue
		}

		c.Status = model.StatusSkipped
		c.SkipReason = res.Reason
		out = append(out, c)

		// Year-round bans get no recovery; windowed suppressions of
		// anniversary kinds queue one.
		if res.WindowEnd == nil || !c.Type.IsAnniversary() || c.Type.Kind == model.KindPostWindow {
			continue
		}
		seed, ok := seeds[c.Contact.ID]
		if !ok || res.WindowEnd.After(seed.windowEnd) {
			seeds[c.Contact.ID] = &postWindowSeed{candidate: c, windowEnd: *res.WindowEnd}
		}
	}

	if f.cfg.EnablePostWindowEmails {
		for _, contactID := range sortedSeedIDs(seeds) {
			seed := seeds[contactID]
			if pw := f.synthesizePostWindow(seed); pw != nil {
				out = append(out, pw)
			}
		}
	}
	return out
}

// synthesizePostWindow builds the recovery candidate the day after the
// window closes. Its date is definitionally outside the windowed rule that
// suppressed the original, so it is re-checked only against year-round bans.
func (f *ExclusionFilter) synthesizePostWindow(seed *postWindowSeed) *Candidate {
	original := seed.candidate
	if rules.RuleFor(original.Contact.State).Kind == rules.YearRound {
		return nil
	}
	return &Candidate{
		Contact:  original.Contact,
		Type:     model.AnniversaryType(model.KindPostWindow),
		Date:     seed.windowEnd.AddDays(1),
		Priority: model.PriorityPostWindow,
		Event:    original.Event,
		Status:   model.StatusPreScheduled,
	}
}

// subjectToExclusions reports whether the rule engine applies to a
// candidate: all anniversary kinds, plus campaigns whose type opts in.
func (f *ExclusionFilter) subjectToExclusions(c *Candidate) bool {
	if c.Type.IsAnniversary() {
		return true
	}
	return c.Type.Kind == model.KindCampaign && c.RespectsExclusions
}

func sortedSeedIDs(seeds map[int64]*postWindowSeed) []int64 {
	ids := make([]int64, 0, len(seeds))
	for id := range seeds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
