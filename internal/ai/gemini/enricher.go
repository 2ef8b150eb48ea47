package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	systemInstruction   = "Tu réponds uniquement avec un objet JSON valide qui respecte le format demandé."
)

// Enricher asks Gemini for outreach suggestions about one company and for
// the structured classification of single jobs.
type Enricher struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewEnricher(generator contentGenerator, maxLogLength int, log *zap.Logger) *Enricher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Enricher{
		generator: generator,
		logger:    logger.WithAI(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (e *Enricher) EnrichCompany(ctx context.Context, req ai.CompanyRequest) (*ai.CompanyEnrichment, error) {
	if strings.TrimSpace(req.Context) == "" {
		return nil, fmt.Errorf("company context is required")
	}

	log := e.logger.With(logger.Company(req.Company))
	raw, err := e.generate(ctx, log, systemInstruction, buildPrompt(req))
	if err != nil {
		return nil, err
	}

	enrichment, err := parseResponse(raw)
	if err != nil {
		e.reject(log, raw, err)
		return nil, err
	}

	return enrichment, nil
}

// generate sends prompt and logs previews of both sides of the exchange.
func (e *Enricher) generate(ctx context.Context, log *zap.Logger, system, prompt string) (string, error) {
	log.Debug("gemini enrichment request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, system, prompt)
	if err != nil {
		return "", err
	}

	log.Debug("gemini enrichment response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)
	return raw, nil
}

func (e *Enricher) reject(log *zap.Logger, raw string, err error) {
	log.Warn("enrichment response rejected",
		zap.Error(err),
		zap.String("raw_excerpt", utils.TruncateForLog(raw, e.maxLogLen)),
	)
}

func buildPrompt(req ai.CompanyRequest) string {
	objective := strings.TrimSpace(req.Objective)
	if objective == "" {
		objective = "non précisé"
	}
	skills := strings.Join(req.Skills, ", ")
	if strings.TrimSpace(skills) == "" {
		skills = "non précisées"
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Objectif: {{OBJECTIVE}}\nCompétences: {{SKILLS}}\n\n{{COMPANY_CONTEXT}}\n\nJSON:"
	}

	return strings.NewReplacer(
		"{{OBJECTIVE}}", objective,
		"{{SKILLS}}", skills,
		"{{COMPANY_CONTEXT}}", req.Context,
	).Replace(template)
}

func parseResponse(raw string) (*ai.CompanyEnrichment, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: no json object found", ai.ErrInvalidResponse)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse gemini response: %v", ai.ErrInvalidResponse, err)
	}

	enrichment := &ai.CompanyEnrichment{Payload: data, Raw: raw}

	if diag, ok := data["diagnostic"].(map[string]any); ok {
		enrichment.Diagnostic = &ai.Diagnostic{
			MainHiringAreas: coerceStrings(diag["main_hiring_areas"]),
			MatchLevel:      coerceString(diag["match_level"]),
		}
	}

	items, _ := data["suggestions"].([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: suggestion is not an object", ai.ErrInvalidResponse)
		}

		confidence := coerceFloat(obj["confidence"])
		if math.IsNaN(confidence) {
			confidence = 0
		}

		enrichment.Suggestions = append(enrichment.Suggestions, ai.Suggestion{
			RoleTitle:  coerceString(obj["role_title"]),
			FitType:    ai.FitType(coerceString(obj["fit_type"])),
			Rationale:  coerceString(obj["rationale"]),
			Confidence: int(math.Round(confidence)),
			KeyTasks:   coerceStrings(obj["key_tasks"]),
		})
	}

	if err := enrichment.Validate(); err != nil {
		return nil, err
	}
	return enrichment, nil
}

// extractJSON strips markdown fences and returns the outermost JSON object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}
