package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
)

// LoadBalancer redistributes pre-scheduled candidates so no single day
// swamps the delivery pipeline. Two ordered passes: effective-date smoothing,
// then daily cap enforcement. Both are deterministic for a fixed input.
type LoadBalancer struct {
	cfg *model.OrgConfig
}

// NewLoadBalancer creates a balancer for a resolved org configuration.
func NewLoadBalancer(cfg *model.OrgConfig) *LoadBalancer {
	return &LoadBalancer{cfg: cfg}
}

// DailyCap is the hard per-day send budget for the organization.
func (b *LoadBalancer) DailyCap() int {
	// Round off float noise first: 0.07 * 100 is 7.000000000000001, which
	// would otherwise ceil to 8.
	raw := math.Round(b.cfg.DailySendPercentageCap*float64(b.cfg.TotalContacts)*1e6) / 1e6
	cap := int(math.Ceil(raw))
	if cap < 1 {
		cap = 1
	}
	return cap
}

// edSoftLimit bounds how many effective-date sends may share one day.
func (b *LoadBalancer) edSoftLimit() int {
	soft := int(0.3 * float64(b.DailyCap()))
	if b.cfg.EDDailySoftLimit > soft {
		soft = b.cfg.EDDailySoftLimit
	}
	if soft < 1 {
		soft = 1
	}
	return soft
}

// Balance runs both passes in place. Skipped candidates pass through
// untouched and consume no capacity.
func (b *LoadBalancer) Balance(candidates []*Candidate, today, horizon dates.Date) {
	b.smoothEffectiveDates(candidates, today)
	b.enforceDailyCap(candidates, today, horizon)
}

// smoothEffectiveDates jitters surplus effective-date sends within the
// smoothing window around their original day.
func (b *LoadBalancer) smoothEffectiveDates(candidates []*Candidate, today dates.Date) {
	soft := b.edSoftLimit()
	window := b.cfg.EDSmoothingWindowDays

	// Effective-date load per day, over kept candidates only.
	edByDate := make(map[dates.Date][]*Candidate)
	edCount := make(map[dates.Date]int)
	for _, c := range candidates {
		if c.Status != model.StatusPreScheduled || c.Type.Kind != model.KindEffectiveDate {
			continue
		}
		edByDate[c.Date] = append(edByDate[c.Date], c)
		edCount[c.Date]++
	}

	for _, day := range sortedDates(edByDate) {
		group := edByDate[day]
		if len(group) <= soft {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Contact.ID < group[j].Contact.ID })

		for _, c := range group[soft:] {
			jitter := int(xxhash.Sum64String(fmt.Sprintf("%d:ed:%d", c.Contact.ID, day.Year)) % uint64(window))
			target := day.AddDays(-window/2 + jitter)
			newDate, ok := b.pickSmoothedDate(target, day, today, window, soft, edCount)
			if !ok {
				continue
			}
			edCount[c.Date]--
			edCount[newDate]++
			c.Date = newDate
		}
	}
}

// pickSmoothedDate accepts the jittered target when it has headroom,
// otherwise falls back to the nearest under-limit day within the window.
// Dates before today are never produced.
func (b *LoadBalancer) pickSmoothedDate(target, origin, today dates.Date, window, soft int, edCount map[dates.Date]int) (dates.Date, bool) {
	usable := func(d dates.Date) bool {
		return !d.Before(today) && !d.Equal(origin) && edCount[d] < soft
	}
	if usable(target) {
		return target, true
	}
	for distance := 1; distance <= window; distance++ {
		for _, d := range []dates.Date{target.AddDays(-distance), target.AddDays(distance)} {
			if dates.DaysBetween(origin, d) < -window/2 || dates.DaysBetween(origin, d) > window/2 {
				continue
			}
			if usable(d) {
				return d, true
			}
		}
	}
	return dates.Date{}, false
}

// enforceDailyCap evicts overflow from days exceeding the hard cap, keeping
// the highest-priority sends in place and pushing the tail forward.
func (b *LoadBalancer) enforceDailyCap(candidates []*Candidate, today, horizon dates.Date) {
	cap := b.DailyCap()
	threshold := int(math.Ceil(float64(cap) * b.cfg.OverageThreshold))
	spread := b.cfg.CatchUpSpreadDays

	byDate := make(map[dates.Date][]*Candidate)
	count := make(map[dates.Date]int)
	for _, c := range candidates {
		if c.Status != model.StatusPreScheduled {
			continue
		}
		byDate[c.Date] = append(byDate[c.Date], c)
		count[c.Date]++
	}

	for _, day := range sortedDates(byDate) {
		group := byDate[day]
		if count[day] <= threshold {
			continue
		}

		// Lowest priority number wins the day; ties break on contact id so
		// reruns evict the same rows.
		sort.Slice(group, func(i, j int) bool {
			if group[i].Priority != group[j].Priority {
				return group[i].Priority < group[j].Priority
			}
			return group[i].Contact.ID < group[j].Contact.ID
		})

		for _, c := range group[cap:] {
			moved := false
			for offset := 1; offset <= spread; offset++ {
				target := day.AddDays(offset)
				if target.After(horizon) {
					break
				}
				if count[target] < cap {
					b.move(c, target, count, byDate)
					moved = true
					break
				}
			}
			if moved {
				continue
			}
			// No headroom anywhere in the catch-up range: spread the
			// remainder round-robin by contact id. This is the documented
			// bounded exception to the hard cap.
			offset := 1 + int(c.Contact.ID%int64(spread))
			target := day.AddDays(offset)
			for target.After(horizon) && offset > 1 {
				offset--
				target = day.AddDays(offset)
			}
			if target.After(horizon) {
				continue
			}
			b.move(c, target, count, byDate)
		}
		count[day] = cap
		byDate[day] = group[:cap]
	}
}

func (b *LoadBalancer) move(c *Candidate, target dates.Date, count map[dates.Date]int, byDate map[dates.Date][]*Candidate) {
	c.Date = target
	count[target]++
	byDate[target] = append(byDate[target], c)
}

func sortedDates(byDate map[dates.Date][]*Candidate) []dates.Date {
	out := make([]dates.Date, 0, len(byDate))
	for d := range byDate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
