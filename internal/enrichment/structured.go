package enrichment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/utils"
)

const (
	DefaultJobLimit = 30
	DefaultVersion  = 1

	maxErrorDetail = 500
)

// Failure kinds of a job detail.
const (
	ErrorValidation = "validation"
	ErrorRuntime    = "runtime"
)

// JobDetail reports what happened to one job.
type JobDetail struct {
	JobID       string       `json:"job_id"`
	Title       string       `json:"title"`
	Company     string       `json:"company"`
	Status      Status       `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	Error       string       `json:"error,omitempty"`
	Detail      string       `json:"detail,omitempty"`
	IsTech      *bool        `json:"is_tech,omitempty"`
	AIRelevance ai.Relevance `json:"ai_relevance,omitempty"`
	RoleLabels  []string     `json:"role_labels,omitempty"`
}

// JobReport summarizes one structured enrichment run.
type JobReport struct {
	Success   bool        `json:"success"`
	RunID     string      `json:"run_id"`
	Processed int         `json:"processed"`
	Succeeded int         `json:"success_count"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	DryRun    bool        `json:"dry_run"`
	Version   int         `json:"version"`
	Message   string      `json:"message"`
	Details   []JobDetail `json:"details"`
}

func (r *JobReport) record(d JobDetail) {
	switch d.Status {
	case StatusSuccess:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
	r.Details = append(r.Details, d)
}

// StructuredOptions tune a structured run.
type StructuredOptions struct {
	Limit   int
	Force   bool
	Version int
	DryRun  bool
}

// SelectJobs keeps the described jobs not yet classified at version, in
// corpus order, at most limit of them. force ignores the stored version.
func SelectJobs(corpus *jobs.Jobs, version, limit int, force bool) []*jobs.Record {
	if version <= 0 {
		version = DefaultVersion
	}
	if limit <= 0 {
		limit = DefaultJobLimit
	}

	var selected []*jobs.Record
	for _, job := range corpusItems(corpus) {
		if len(selected) == limit {
			break
		}
		if !job.HasDescription() {
			continue
		}
		if !force && job.EnrichmentVersion == version {
			continue
		}
		selected = append(selected, job)
	}
	return selected
}

// RunStructured classifies the selected jobs one at a time and stores the
// structured fields on each of them. Per-job failures are recorded in the
// report; only missing collaborators abort the run.
func (r *Runner) RunStructured(ctx context.Context, corpus *jobs.Jobs, opts StructuredOptions) (*JobReport, error) {
	if !opts.DryRun && (r.jobEnricher == nil || r.writer == nil) {
		return nil, fmt.Errorf("structured enrichment requires an ai job enricher and a job writer")
	}
	if opts.Version <= 0 {
		opts.Version = DefaultVersion
	}

	report := &JobReport{
		Success: true,
		RunID:   uuid.NewString(),
		DryRun:  opts.DryRun,
		Version: opts.Version,
		Details: []JobDetail{},
	}
	log := logger.WithRun(r.logger, report.RunID)

	selected := SelectJobs(corpus, opts.Version, opts.Limit, opts.Force)
	report.Processed = len(selected)
	log.Info("structured enrichment started",
		zap.Int("jobs", len(selected)),
		zap.Int("version", opts.Version),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("force", opts.Force),
	)

	pace := &pacer{delay: r.delay}
	for i, job := range selected {
		detail := JobDetail{JobID: job.ExternalID, Title: job.Title, Company: job.Company()}

		if opts.DryRun {
			detail.Status, detail.Reason = StatusSkipped, ReasonDryRun
			report.record(detail)
			continue
		}
		if ctx.Err() != nil {
			skipJobs(report, selected[i:])
			break
		}

		detail, err := r.enrichJob(ctx, log, pace, job, opts.Version, detail)
		report.record(detail)
		if err != nil {
			skipJobs(report, selected[i+1:])
			log.Warn("structured enrichment cancelled", zap.Error(err), zap.Int("skipped", len(selected)-i))
			break
		}
	}

	report.Message = fmt.Sprintf("Enrichment complete: %d success, %d failed", report.Succeeded, report.Failed)
	if corpus.Len() == 0 {
		report.Message = "No jobs with descriptions found"
	}
	log.Info("structured enrichment finished",
		zap.Int("success", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

func (r *Runner) enrichJob(ctx context.Context, log *zap.Logger, pace *pacer, job *jobs.Record, version int, detail JobDetail) (JobDetail, error) {
	log = log.With(logger.Company(detail.Company), logger.JobID(job.ExternalID))

	release, err := r.locker.Acquire(ctx, "job:"+job.ExternalID)
	if errors.Is(err, ErrLocked) {
		log.Info("job locked by another run")
		detail.Status, detail.Reason = StatusSkipped, ReasonLocked
		return detail, nil
	}
	if err != nil {
		log.Warn("acquiring job lock failed", zap.Error(err))
		return failJob(detail, ErrorRuntime, err), nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("releasing job lock failed", zap.Error(err))
		}
	}()

	if err := pace.wait(ctx); err != nil {
		detail.Status, detail.Reason = StatusSkipped, ReasonCancelled
		return detail, err
	}

	enrichment, err := r.jobEnricher.EnrichJob(ctx, ai.JobRequest{
		ID:          job.ExternalID,
		Title:       job.Title,
		Company:     detail.Company,
		Description: job.Description,
	})
	if err != nil {
		log.Warn("job enrichment failed", zap.Error(err))
		kind := ErrorRuntime
		if errors.Is(err, ai.ErrInvalidResponse) {
			kind = ErrorValidation
		}
		return failJob(detail, kind, err), nil
	}

	if _, err := r.writer.UpdateJobs(ctx, []string{job.ExternalID}, structuredUpdate(enrichment, version)); err != nil {
		log.Warn("writing job enrichment failed", zap.Error(err))
		return failJob(detail, ErrorRuntime, err), nil
	}

	log.Info("job enriched",
		zap.Bool("is_tech", enrichment.IsTech),
		zap.String("ai_relevance", string(enrichment.AIRelevance)),
		zap.Strings("role_labels", enrichment.RoleLabels),
	)
	isTech := enrichment.IsTech
	detail.Status = StatusSuccess
	detail.IsTech = &isTech
	detail.AIRelevance = enrichment.AIRelevance
	detail.RoleLabels = enrichment.RoleLabels
	return detail, nil
}

// structuredUpdate maps a classification onto the job columns.
func structuredUpdate(e *ai.JobEnrichment, version int) store.EnrichmentUpdate {
	return store.EnrichmentUpdate{
		SuggestedOutreachRoles: e.SuggestedOutreachRoles,
		Enrichment:             e.Payload,
		Fields: map[string]any{
			"is_tech":           e.IsTech,
			"job_family":        string(e.JobFamily),
			"role_labels":       e.RoleLabels,
			"ai_relevance":      string(e.AIRelevance),
			"ai_signals_strong": e.AISignalsStrong,
			"ai_signals_weak":   e.AISignalsWeak,
			"skills_norm":       e.SkillsNorm,
			"summary_1l":        e.Summary,
			"evidence":          e.Evidence,
			"confidence":        e.Confidence,
			jobs.FieldVersion:   version,
		},
	}
}

func failJob(detail JobDetail, kind string, err error) JobDetail {
	detail.Status = StatusFailed
	detail.Error = kind
	detail.Detail = utils.TruncateRunes(err.Error(), maxErrorDetail)
	return detail
}

func skipJobs(report *JobReport, rest []*jobs.Record) {
	for _, job := range rest {
		report.record(JobDetail{
			JobID:   job.ExternalID,
			Title:   job.Title,
			Company: job.Company(),
			Status:  StatusSkipped,
			Reason:  ReasonCancelled,
		})
	}
}

func corpusItems(corpus *jobs.Jobs) []*jobs.Record {
	if corpus == nil {
		return nil
	}
	return corpus.Items
}
