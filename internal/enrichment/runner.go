package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/utils"
)

const DefaultDelay = 5 * time.Second

var waitFor = utils.WaitFor

// Status is the outcome of one company.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

const (
	ReasonDryRun    = "dry_run"
	ReasonLocked    = "locked"
	ReasonCancelled = "cancelled"
)

// Detail reports what happened to one company.
type Detail struct {
	Company     string          `json:"company"`
	JobsCount   int             `json:"jobs_count"`
	Score       int             `json:"score"`
	Status      Status          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Error       string          `json:"error,omitempty"`
	JobsUpdated int             `json:"jobs_updated,omitempty"`
	Suggestions []ai.Suggestion `json:"suggestions,omitempty"`
}

// Report summarizes one enrichment run.
type Report struct {
	Success   bool     `json:"success"`
	RunID     string   `json:"run_id"`
	Processed int      `json:"companies_processed"`
	Enriched  int      `json:"companies_enriched"`
	Failed    int      `json:"companies_failed"`
	Skipped   int      `json:"companies_skipped"`
	DryRun    bool     `json:"dry_run"`
	Message   string   `json:"message"`
	Details   []Detail `json:"details"`
}

func (r *Report) record(d Detail) {
	switch d.Status {
	case StatusSuccess:
		r.Enriched++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
	r.Details = append(r.Details, d)
}

// Options tune a single run.
type Options struct {
	TopK    int
	Force   bool
	DryRun  bool
	Profile matching.Profile
}

// Runner enriches the selected companies one at a time.
type Runner struct {
	selector    *Selector
	enricher    ai.Enricher
	jobEnricher ai.JobEnricher
	writer      store.Writer
	locker      Locker
	delay       time.Duration
	logger      *zap.Logger
}

// RunnerDeps are the collaborators of a Runner. Enricher and JobEnricher may
// be nil for dry runs only; a nil Locker disables locking.
type RunnerDeps struct {
	Selector    *Selector
	Enricher    ai.Enricher
	JobEnricher ai.JobEnricher
	Writer      store.Writer
	Locker      Locker
	Logger      *zap.Logger
}

// NewRunner builds a runner waiting delay between AI calls. A negative delay
// disables the wait; zero uses DefaultDelay.
func NewRunner(deps RunnerDeps, delay time.Duration) *Runner {
	if deps.Selector == nil {
		deps.Selector = NewSelector(nil)
	}
	if deps.Locker == nil {
		deps.Locker = NoopLocker{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if delay == 0 {
		delay = DefaultDelay
	}

	return &Runner{
		selector:    deps.Selector,
		enricher:    deps.Enricher,
		jobEnricher: deps.JobEnricher,
		writer:      deps.Writer,
		locker:      deps.Locker,
		delay:       delay,
		logger:      deps.Logger,
	}
}

// Run selects companies from corpus and enriches them. Per-company failures
// are recorded in the report; only missing collaborators abort the run.
func (r *Runner) Run(ctx context.Context, corpus *jobs.Jobs, opts Options) (*Report, error) {
	if !opts.DryRun && (r.enricher == nil || r.writer == nil) {
		return nil, fmt.Errorf("enrichment requires an ai enricher and a job writer")
	}

	profile := opts.Profile
	if len(profile.Skills) == 0 && profile.Objective == "" {
		profile = DefaultProfile
	}

	report := &Report{
		Success: true,
		RunID:   uuid.NewString(),
		DryRun:  opts.DryRun,
		Details: []Detail{},
	}
	log := logger.WithRun(r.logger, report.RunID)

	selected := r.selector.Select(corpus, profile, opts.TopK, opts.Force)
	report.Processed = len(selected)
	log.Info("enrichment started",
		zap.Int("companies", len(selected)),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("force", opts.Force),
	)

	pace := &pacer{delay: r.delay}
	for i, c := range selected {
		detail := Detail{Company: c.Company, JobsCount: len(c.Jobs), Score: c.Score}

		if opts.DryRun {
			detail.Status, detail.Reason = StatusSkipped, ReasonDryRun
			report.record(detail)
			continue
		}
		if ctx.Err() != nil {
			r.skipRemaining(report, selected[i:])
			break
		}

		detail, err := r.enrich(ctx, log, pace, profile, c, detail)
		report.record(detail)
		if err != nil {
			r.skipRemaining(report, selected[i+1:])
			log.Warn("enrichment cancelled", zap.Error(err), zap.Int("skipped", len(selected)-i))
			break
		}
	}

	report.Message = fmt.Sprintf("Lazy enrichment complete: %d enriched, %d failed, %d skipped",
		report.Enriched, report.Failed, report.Skipped)
	if corpus.Len() == 0 {
		report.Message = "No jobs with descriptions found"
	}
	log.Info("enrichment finished",
		zap.Int("enriched", report.Enriched),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

// enrich returns an error only when ctx ends while waiting for the next AI
// call slot.
func (r *Runner) enrich(ctx context.Context, log *zap.Logger, pace *pacer, profile matching.Profile, c Candidate, detail Detail) (Detail, error) {
	log = log.With(logger.Company(c.Company))

	release, err := r.locker.Acquire(ctx, c.Key())
	if errors.Is(err, ErrLocked) {
		log.Info("company locked by another run")
		detail.Status, detail.Reason = StatusSkipped, ReasonLocked
		return detail, nil
	}
	if err != nil {
		log.Warn("acquiring company lock failed", zap.Error(err))
		detail.Status, detail.Error = StatusFailed, err.Error()
		return detail, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("releasing company lock failed", zap.Error(err))
		}
	}()

	if err := pace.wait(ctx); err != nil {
		detail.Status, detail.Reason = StatusSkipped, ReasonCancelled
		return detail, err
	}

	enrichment, err := r.enricher.EnrichCompany(ctx, ai.CompanyRequest{
		Company:   c.Company,
		Objective: profile.Objective,
		Skills:    profile.Skills,
		Context:   c.Context(),
	})
	if err != nil {
		log.Warn("company enrichment failed", zap.Error(err))
		detail.Status, detail.Error = StatusFailed, err.Error()
		return detail, nil
	}

	updated, err := r.writer.UpdateJobs(ctx, c.ExternalIDs(), store.EnrichmentUpdate{
		SuggestedOutreachRoles: enrichment.RoleTitles(),
		Enrichment:             enrichment.Payload,
	})
	if err != nil {
		log.Warn("writing enrichment failed", zap.Error(err))
		detail.Status, detail.Error = StatusFailed, err.Error()
		return detail, nil
	}

	log.Info("company enriched",
		zap.Int("jobs_updated", updated),
		zap.Strings("roles", enrichment.RoleTitles()),
	)
	detail.Status = StatusSuccess
	detail.JobsUpdated = updated
	detail.Suggestions = enrichment.Suggestions
	return detail, nil
}

func (r *Runner) skipRemaining(report *Report, rest []Candidate) {
	for _, c := range rest {
		report.record(Detail{
			Company:   c.Company,
			JobsCount: len(c.Jobs),
			Score:     c.Score,
			Status:    StatusSkipped,
			Reason:    ReasonCancelled,
		})
	}
}

// pacer spaces consecutive AI calls of a run by delay.
type pacer struct {
	delay  time.Duration
	called bool
}

func (p *pacer) wait(ctx context.Context) error {
	if p.called {
		if err := waitFor(ctx, p.delay); err != nil {
			return err
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	p.called = true
	return nil
}
