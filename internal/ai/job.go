package ai

import (
	"context"
	"fmt"
	"strings"
)

// JobFamily is the broad family a job belongs to.
type JobFamily string

const (
	FamilySoftware  JobFamily = "software"
	FamilyData      JobFamily = "data"
	FamilyMLAI      JobFamily = "ml_ai"
	FamilyDevOps    JobFamily = "devops"
	FamilyProduct   JobFamily = "product"
	FamilyDesign    JobFamily = "design"
	FamilyMarketing JobFamily = "marketing"
	FamilySales     JobFamily = "sales"
	FamilyOther     JobFamily = "other"
)

// Relevance tells how central AI is to a job.
type Relevance string

const (
	RelevanceCore     Relevance = "core"
	RelevanceAdjacent Relevance = "adjacent"
	RelevanceBuzzword Relevance = "buzzword"
	RelevanceNone     Relevance = "none"
)

var (
	jobFamilies = map[JobFamily]struct{}{
		FamilySoftware: {}, FamilyData: {}, FamilyMLAI: {}, FamilyDevOps: {}, FamilyProduct: {},
		FamilyDesign: {}, FamilyMarketing: {}, FamilySales: {}, FamilyOther: {},
	}
	relevances = map[Relevance]struct{}{
		RelevanceCore: {}, RelevanceAdjacent: {}, RelevanceBuzzword: {}, RelevanceNone: {},
	}
	// RoleLabels lists the labels a job may be tagged with.
	RoleLabels = []string{
		"frontend", "backend", "fullstack", "mobile", "devops", "sre",
		"data_engineer", "data_scientist", "ml_engineer", "llm_engineer",
		"security", "product", "design", "other",
	}
)

// JobEnrichment is the structured classification of one job.
type JobEnrichment struct {
	IsTech                 bool      `json:"is_tech"`
	JobFamily              JobFamily `json:"job_family"`
	RoleLabels             []string  `json:"role_labels"`
	AIRelevance            Relevance `json:"ai_relevance"`
	AISignalsStrong        []string  `json:"ai_signals_strong"`
	AISignalsWeak          []string  `json:"ai_signals_weak"`
	SkillsNorm             []string  `json:"skills_norm"`
	Summary                string    `json:"summary_1l"`
	SuggestedOutreachRoles []string  `json:"suggested_outreach_roles"`
	Evidence               []string  `json:"evidence"`
	Confidence             *float64  `json:"confidence"`

	// Payload is the decoded JSON object as returned by the model.
	Payload map[string]any `json:"-"`
	Raw     string         `json:"-"`
}

// Validate checks the classification against the allowed values and
// normalizes enums to lower case and absent lists to empty ones.
func (e *JobEnrichment) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: missing job enrichment", ErrInvalidResponse)
	}

	e.JobFamily = JobFamily(strings.ToLower(strings.TrimSpace(string(e.JobFamily))))
	if _, ok := jobFamilies[e.JobFamily]; !ok {
		return fmt.Errorf("%w: unknown job family %q", ErrInvalidResponse, e.JobFamily)
	}

	e.AIRelevance = Relevance(strings.ToLower(strings.TrimSpace(string(e.AIRelevance))))
	if _, ok := relevances[e.AIRelevance]; !ok {
		return fmt.Errorf("%w: unknown ai relevance %q", ErrInvalidResponse, e.AIRelevance)
	}

	labels := make([]string, 0, len(e.RoleLabels))
	for _, label := range e.RoleLabels {
		label = strings.ToLower(strings.TrimSpace(label))
		if !isRoleLabel(label) {
			return fmt.Errorf("%w: unknown role label %q", ErrInvalidResponse, label)
		}
		labels = append(labels, label)
	}
	e.RoleLabels = labels

	if c := e.Confidence; c != nil && (*c < 0 || *c > 1) {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidResponse, *c)
	}

	for _, list := range []*[]string{&e.AISignalsStrong, &e.AISignalsWeak, &e.SkillsNorm, &e.SuggestedOutreachRoles, &e.Evidence} {
		if *list == nil {
			*list = []string{}
		}
	}
	e.Summary = strings.TrimSpace(e.Summary)
	return nil
}

func isRoleLabel(label string) bool {
	for _, known := range RoleLabels {
		if label == known {
			return true
		}
	}
	return false
}

// JobRequest carries the job the model classifies.
type JobRequest struct {
	ID          string
	Title       string
	Company     string
	Description string
}

// JobEnricher classifies single jobs.
type JobEnricher interface {
	EnrichJob(ctx context.Context, req JobRequest) (*JobEnrichment, error)
}
