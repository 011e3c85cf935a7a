package rules

import (
	"fmt"
	"strings"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

// Kind discriminates the per-state exclusion rule variants.
type Kind int

const (
	None Kind = iota
	BirthdayWindow
	EffectiveDateWindow
	YearRound
)

// Rule is one state's marketing exclusion policy.
type Rule struct {
	Kind          Kind
	DaysBefore    int
	DaysAfter     int
	UseMonthStart bool // Nevada anchors the window at the start of the birthday month
}

// stateRules maps a state code to its statutory exclusion rule. States not
// listed have no exclusion.
var stateRules = map[string]Rule{
	"CA": {Kind: BirthdayWindow, DaysBefore: 30, DaysAfter: 60},
	"ID": {Kind: BirthdayWindow, DaysAfter: 63},
	"KY": {Kind: BirthdayWindow, DaysAfter: 60},
	"OK": {Kind: BirthdayWindow, DaysAfter: 60},
	"MD": {Kind: BirthdayWindow, DaysAfter: 30},
	"VA": {Kind: BirthdayWindow, DaysAfter: 30},
	"NV": {Kind: BirthdayWindow, DaysAfter: 60, UseMonthStart: true},
	"OR": {Kind: BirthdayWindow, DaysAfter: 31},
	"MO": {Kind: EffectiveDateWindow, DaysBefore: 30, DaysAfter: 33},
	"CT": {Kind: YearRound},
	"MA": {Kind: YearRound},
	"NY": {Kind: YearRound},
	"WA": {Kind: YearRound},
}

// RuleFor returns the exclusion rule for a state code. Unknown states get
// the zero rule (no exclusion).
func RuleFor(state string) Rule {
	return stateRules[normalizeState(state)]
}

// Regulated reports whether the state carries any exclusion rule.
func Regulated(state string) bool {
	_, ok := stateRules[normalizeState(state)]
	return ok
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

// Result is the outcome of an exclusion check. The zero value means
// not excluded.
type Result struct {
	Excluded  bool
	Reason    string
	WindowEnd *dates.Date // nil for year-round exclusions
}

// CheckExclusion classifies a candidate send date for a contact under the
// contact's state rule. Windows extend backwards by the organization's
// pre-window buffer (overridable per state). A date inside the window
// computed for the previous, current, or next anniversary year is excluded;
// when more than one window covers the date, the one ending last wins so any
// recovery send lands after the longer ban.
func CheckExclusion(cfg *model.OrgConfig, contact *model.Contact, checkDate dates.Date) Result {
	state := normalizeState(contact.State)
	if state == "" {
		return Result{}
	}

	rule, ok := stateRules[state]
	if !ok {
		return Result{}
	}

	switch rule.Kind {
	case YearRound:
		return Result{
			Excluded: true,
			Reason:   fmt.Sprintf("Year-round exclusion for %s", state),
		}
	case BirthdayWindow:
		return checkWindow(rule, state, contact.Birthday, cfg.BufferDaysFor(state), checkDate,
			fmt.Sprintf("Birthday exclusion window for %s", state))
	case EffectiveDateWindow:
		return checkWindow(rule, state, contact.EffectiveDate, cfg.BufferDaysFor(state), checkDate,
			fmt.Sprintf("Effective date exclusion window for %s", state))
	}
	return Result{}
}

// checkWindow tests checkDate against the rule's window anchored at each
// nearby anniversary of anchor. Missing anchors never exclude.
func checkWindow(rule Rule, state string, anchor dates.Date, bufferDays int, checkDate dates.Date, reason string) Result {
	if anchor.IsZero() {
		return Result{}
	}

	var best *dates.Date
	for _, year := range []int{checkDate.Year - 1, checkDate.Year, checkDate.Year + 1} {
		anniversary := dates.Anniversary(anchor, year)
		if rule.UseMonthStart {
			anniversary = anniversary.MonthStart()
		}

		start := anniversary.AddDays(-(rule.DaysBefore + bufferDays))
		end := anniversary.AddDays(rule.DaysAfter)
		if checkDate.Before(start) || checkDate.After(end) {
			continue
		}
		if best == nil || end.After(*best) {
			e := end
			best = &e
		}
	}

	if best == nil {
		return Result{}
	}
	return Result{Excluded: true, Reason: reason, WindowEnd: best}
}
