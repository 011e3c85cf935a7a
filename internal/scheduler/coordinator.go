package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"

	"github.com/renewalpoint/scheduler/internal/dates"
	"github.com/renewalpoint/scheduler/internal/model"
	"github.com/renewalpoint/scheduler/internal/store"
)

// DefaultHorizonDays is the default planning window length.
const DefaultHorizonDays = 90

// storeRetryDelay is the backoff before the single batch-write retry.
const storeRetryDelay = 2 * time.Second

// Options tune one scheduler run.
type Options struct {
	// Today overrides the business-timezone clock (tests, backfills).
	Today dates.Date
	// HorizonDays is the planning window length; 0 means the default.
	HorizonDays int
	// Budget bounds the run's wall clock; 0 means unlimited. Expiry aborts
	// at the next batch boundary.
	Budget time.Duration
	// CheckpointRetention prunes checkpoint rows older than this after a
	// successful run; 0 disables pruning.
	CheckpointRetention time.Duration
}

// Coordinator drives one organization's scheduling run: stream contacts,
// generate candidates, filter, balance once globally, persist with the
// smart diff.
type Coordinator struct {
	st   *store.Store
	opts Options
}

// NewCoordinator builds a coordinator over an open organization database.
func NewCoordinator(db *sql.DB, opts Options) *Coordinator {
	return &Coordinator{st: store.New(db), opts: opts}
}

// Run executes one full scheduling pass and returns its summary. On error
// no partially written batch is visible: every batch commits atomically and
// the checkpoint row records how far the run got.
func (c *Coordinator) Run(ctx context.Context) (*model.RunSummary, error) {
	startedAt := time.Now()
	deadline := time.Time{}
	if c.opts.Budget > 0 {
		deadline = startedAt.Add(c.opts.Budget)
	}

	if err := c.checkBudget(ctx, deadline); err != nil {
		return nil, err
	}

	cfg, err := c.resolveConfig(ctx)
	if err != nil {
		return nil, err
	}

	clock, err := c.clock(cfg)
	if err != nil {
		return nil, err
	}
	today := clock.Today()
	horizonDays := c.opts.HorizonDays
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	horizon := today.AddDays(horizonDays)

	types, err := c.st.LoadCampaignTypes(ctx)
	if err != nil {
		return nil, &StoreError{Op: "load campaign types", Err: err}
	}
	instances, err := c.st.LoadCampaignInstances(ctx)
	if err != nil {
		return nil, &StoreError{Op: "load campaign instances", Err: err}
	}

	anniversaries := NewAnniversaryScheduler(cfg)
	campaigns, err := NewCampaignScheduler(cfg, types, instances, today)
	if err != nil {
		return nil, err
	}
	filter := NewExclusionFilter(cfg)
	balancer := NewLoadBalancer(cfg)

	runID := newRunID(startedAt)
	summary := &model.RunSummary{RunID: runID, StartedAt: startedAt}

	checkpoint := &store.Checkpoint{RunID: runID, StartedAt: startedAt, Status: store.CheckpointRunning}
	if err := c.st.UpsertCheckpoint(ctx, checkpoint); err != nil {
		return nil, &StoreError{Op: "write checkpoint", Err: err}
	}

	g.Log().Infof(ctx, "scheduler run %s starting: %d contacts, profile %s, horizon %s..%s",
		runID, cfg.TotalContacts, cfg.SizeProfile, today, horizon)

	// Phase 1: stream contacts, generate and filter candidates.
	var all []*Candidate
	var batches [][]int64
	afterID := int64(0)
	for {
		if err := c.checkBudget(ctx, deadline); err != nil {
			c.finishCheckpoint(ctx, checkpoint, summary, store.CheckpointCancelled)
			return nil, err
		}

		contacts, diags, err := c.st.ContactBatch(ctx, afterID, cfg.BatchSize)
		if err != nil {
			return nil, &StoreError{Op: "read contacts", Err: err}
		}
		summary.Diagnostics = append(summary.Diagnostics, diags...)
		if len(contacts) == 0 && len(diags) == 0 {
			break
		}

		ids := make([]int64, 0, len(contacts))
		for i := range contacts {
			ids = append(ids, contacts[i].ID)
			if contacts[i].ID > afterID {
				afterID = contacts[i].ID
			}
		}
		for _, d := range diags {
			if d.ContactID > afterID {
				afterID = d.ContactID
			}
		}
		if len(ids) > 0 {
			batches = append(batches, ids)
		}

		enrollments, err := c.st.LoadEnrollments(ctx, ids)
		if err != nil {
			return nil, &StoreError{Op: "read enrollments", Err: err}
		}

		var batchCandidates []*Candidate
		for i := range contacts {
			contact := &contacts[i]
			if !contact.Sendable() {
				summary.Diagnostics = append(summary.Diagnostics, model.Diagnostic{
					ContactID: contact.ID, Field: "email", Message: "contact has no email address",
				})
				continue
			}
			batchCandidates = append(batchCandidates, anniversaries.Candidates(contact, today, horizon)...)
			batchCandidates = append(batchCandidates, campaigns.Candidates(contact, enrollments[contact.ID], today, horizon)...)
		}

		all = append(all, filter.Apply(batchCandidates)...)
		summary.ContactsProcessed += len(contacts)

		if len(contacts) < cfg.BatchSize && len(diags) == 0 {
			break
		}
	}

	// Phase 2: merge duplicates, then one global balancing pass.
	all = mergeCandidates(all)
	balancer.Balance(all, today, horizon)

	schedules := materialize(all, cfg)
	for _, s := range schedules {
		s.SchedulerRunID = runID
		switch s.Status {
		case model.StatusPreScheduled:
			summary.EmailsScheduled++
		case model.StatusSkipped:
			summary.EmailsSkipped++
		}
	}

	// Phase 3: batched smart-diff persistence.
	byContact := make(map[int64][]*model.EmailSchedule)
	for _, s := range schedules {
		byContact[s.ContactID] = append(byContact[s.ContactID], s)
	}

	var stats store.DiffStats
	for _, ids := range batches {
		if err := c.checkBudget(ctx, deadline); err != nil {
			c.finishCheckpoint(ctx, checkpoint, summary, store.CheckpointCancelled)
			return nil, err
		}

		var rows []*model.EmailSchedule
		for _, id := range ids {
			rows = append(rows, byContact[id]...)
		}

		batchStats, err := c.applyWithRetry(ctx, runID, ids, rows)
		if err != nil {
			c.finishCheckpoint(ctx, checkpoint, summary, store.CheckpointFailed)
			return nil, err
		}
		stats.Add(batchStats)

		checkpoint.ContactsProcessed = summary.ContactsProcessed
		checkpoint.EmailsScheduled = summary.EmailsScheduled
		checkpoint.EmailsSkipped = summary.EmailsSkipped
		if err := c.st.UpsertCheckpoint(ctx, checkpoint); err != nil {
			return nil, &StoreError{Op: "write checkpoint", Err: err}
		}
	}

	summary.FinishedAt = time.Now()
	c.finishCheckpoint(ctx, checkpoint, summary, store.CheckpointCompleted)

	if c.opts.CheckpointRetention > 0 {
		if pruned, err := c.st.PruneCheckpoints(ctx, startedAt.Add(-c.opts.CheckpointRetention)); err != nil {
			g.Log().Warningf(ctx, "checkpoint prune failed: %v", err)
		} else if pruned > 0 {
			g.Log().Infof(ctx, "pruned %d old checkpoints", pruned)
		}
	}

	g.Log().Infof(ctx, "scheduler run %s finished: %d contacts, %d scheduled, %d skipped (%d inserted, %d updated, %d deleted, %d unchanged)",
		runID, summary.ContactsProcessed, summary.EmailsScheduled, summary.EmailsSkipped,
		stats.Inserted, stats.Updated, stats.Deleted, stats.Unchanged)

	return summary, nil
}

// resolveConfig loads the organization row and produces the final config.
func (c *Coordinator) resolveConfig(ctx context.Context) (*model.OrgConfig, error) {
	org, err := c.st.LoadOrganization(ctx)
	if err != nil {
		return nil, &StoreError{Op: "load organization", Err: err}
	}
	var buffers map[string]int
	if org != nil {
		if buffers, err = c.st.LoadStateBuffers(ctx, org.ID); err != nil {
			return nil, &StoreError{Op: "load state buffers", Err: err}
		}
	}
	count, err := c.st.CountContacts(ctx)
	if err != nil {
		return nil, &StoreError{Op: "count contacts", Err: err}
	}
	return ResolveOrgConfig(org, buffers, count)
}

func (c *Coordinator) clock(cfg *model.OrgConfig) (dates.Clock, error) {
	if !c.opts.Today.IsZero() {
		return dates.FixedClock{Date: c.opts.Today}, nil
	}
	clock, err := dates.NewZoneClock(cfg.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Reason: err.Error()}
	}
	return clock, nil
}

func (c *Coordinator) checkBudget(ctx context.Context, deadline time.Time) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		return fmt.Errorf("%w: wall-clock budget exhausted", ErrCancelled)
	}
	return nil
}

// applyWithRetry applies one persistence batch, retrying once with backoff
// before giving up on the run.
func (c *Coordinator) applyWithRetry(ctx context.Context, runID string, ids []int64, rows []*model.EmailSchedule) (store.DiffStats, error) {
	now := time.Now()
	stats, err := c.st.ApplyScheduleBatch(ctx, runID, ids, rows, now)
	if err == nil {
		return stats, nil
	}
	g.Log().Warningf(ctx, "schedule batch failed, retrying once: %v", err)

	select {
	case <-ctx.Done():
		return store.DiffStats{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	case <-time.After(storeRetryDelay):
	}

	stats, err = c.st.ApplyScheduleBatch(ctx, runID, ids, rows, now)
	if err != nil {
		return store.DiffStats{}, &StoreError{Op: "apply schedule batch", Err: err}
	}
	return stats, nil
}

func (c *Coordinator) finishCheckpoint(ctx context.Context, cp *store.Checkpoint, summary *model.RunSummary, status string) {
	finished := time.Now()
	cp.FinishedAt = &finished
	cp.ContactsProcessed = summary.ContactsProcessed
	cp.EmailsScheduled = summary.EmailsScheduled
	cp.EmailsSkipped = summary.EmailsSkipped
	cp.Status = status
	if err := c.st.UpsertCheckpoint(ctx, cp); err != nil {
		g.Log().Errorf(ctx, "failed to finalize checkpoint %s: %v", cp.RunID, err)
	}
}

// mergeCandidates resolves collisions before balancing: multiple campaigns
// landing on the same contact and day collapse to the minimum-priority one,
// and exact natural-key duplicates collapse deterministically.
func mergeCandidates(candidates []*Candidate) []*Candidate {
	// Campaign same-day conflict: keep the strongest campaign only.
	bestCampaign := make(map[string]*Candidate)
	for _, c := range candidates {
		if c.Type.Kind != model.KindCampaign || c.Status != model.StatusPreScheduled {
			continue
		}
		key := fmt.Sprintf("%d|%s", c.Contact.ID, c.Date)
		cur, ok := bestCampaign[key]
		if !ok || c.Priority < cur.Priority ||
			(c.Priority == cur.Priority && c.CampaignInstanceID < cur.CampaignInstanceID) {
			bestCampaign[key] = c
		}
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Type.Kind == model.KindCampaign && c.Status == model.StatusPreScheduled {
			key := fmt.Sprintf("%d|%s", c.Contact.ID, c.Date)
			if bestCampaign[key] != c {
				continue
			}
		}
		natural := fmt.Sprintf("%d|%s|%s", c.Contact.ID, c.Type.Wire(), c.Date)
		if seen[natural] {
			continue
		}
		seen[natural] = true
		out = append(out, c)
	}
	return out
}

// materialize converts surviving candidates into output rows in a stable
// order. The natural-key uniqueness of the output set is re-asserted here
// because balancing may move two kept candidates of the same contact and
// type onto the same day.
func materialize(candidates []*Candidate, cfg *model.OrgConfig) []*model.EmailSchedule {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Contact.ID != b.Contact.ID {
			return a.Contact.ID < b.Contact.ID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return strings.Compare(a.Type.Wire(), b.Type.Wire()) < 0
	})

	seen := make(map[string]bool, len(candidates))
	out := make([]*model.EmailSchedule, 0, len(candidates))
	for _, c := range candidates {
		s := c.Schedule(cfg)
		key := s.NaturalKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// newRunID builds the per-invocation audit identifier.
func newRunID(t time.Time) string {
	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("run_%s_%s", t.Format("20060102_150405"), nonce)
}
