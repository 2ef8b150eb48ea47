package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "embed"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/logger"
)

//go:embed job_prompt.md
var jobPromptTemplate string

const jobSystemInstruction = "You answer with a single valid JSON object matching the requested schema."

// EnrichJob asks Gemini to classify one job.
func (e *Enricher) EnrichJob(ctx context.Context, req ai.JobRequest) (*ai.JobEnrichment, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("job description is required")
	}

	log := e.logger.With(logger.Company(req.Company), logger.JobID(req.ID))
	raw, err := e.generate(ctx, log, jobSystemInstruction, buildJobPrompt(req))
	if err != nil {
		return nil, err
	}

	enrichment, err := parseJobResponse(raw)
	if err != nil {
		e.reject(log, raw, err)
		return nil, err
	}
	return enrichment, nil
}

func buildJobPrompt(req ai.JobRequest) string {
	company := strings.TrimSpace(req.Company)
	if company == "" {
		company = "Unknown"
	}

	return strings.NewReplacer(
		"{{TITLE}}", strings.TrimSpace(req.Title),
		"{{COMPANY}}", company,
		"{{DESCRIPTION}}", req.Description,
	).Replace(jobPromptTemplate)
}

func parseJobResponse(raw string) (*ai.JobEnrichment, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: no json object found", ai.ErrInvalidResponse)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse gemini response: %v", ai.ErrInvalidResponse, err)
	}

	isTech, ok := coerceBool(data["is_tech"])
	if !ok {
		return nil, fmt.Errorf("%w: is_tech must be a boolean", ai.ErrInvalidResponse)
	}
	for _, key := range []string{"job_family", "ai_relevance"} {
		if coerceString(data[key]) == "" {
			return nil, fmt.Errorf("%w: %s is required", ai.ErrInvalidResponse, key)
		}
	}

	enrichment := &ai.JobEnrichment{
		IsTech:                 isTech,
		JobFamily:              ai.JobFamily(coerceString(data["job_family"])),
		RoleLabels:             coerceStrings(data["role_labels"]),
		AIRelevance:            ai.Relevance(coerceString(data["ai_relevance"])),
		AISignalsStrong:        coerceStrings(data["ai_signals_strong"]),
		AISignalsWeak:          coerceStrings(data["ai_signals_weak"]),
		SkillsNorm:             coerceStrings(data["skills_norm"]),
		Summary:                coerceString(data["summary_1l"]),
		SuggestedOutreachRoles: coerceStrings(data["suggested_outreach_roles"]),
		Evidence:               coerceStrings(data["evidence"]),
		Payload:                data,
		Raw:                    raw,
	}
	if v, present := data["confidence"]; present && v != nil {
		confidence := coerceFloat(v)
		if math.IsNaN(confidence) {
			return nil, fmt.Errorf("%w: confidence is not a number", ai.ErrInvalidResponse)
		}
		enrichment.Confidence = &confidence
	}

	if err := enrichment.Validate(); err != nil {
		return nil, err
	}
	return enrichment, nil
}

func coerceBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return b, err == nil
	default:
		return false, false
	}
}
