package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("empty ai response")
	// ErrInvalidResponse is returned when the response does not satisfy the enrichment schema.
	ErrInvalidResponse = errors.New("invalid ai response")
)

// FitType tells how directly a suggested role follows from the candidate objective.
type FitType string

const (
	FitDirect   FitType = "DIRECT"
	FitAdjacent FitType = "ADJACENT"
	FitBridge   FitType = "BRIDGE"
)

// Diagnostic summarizes where a company is hiring.
type Diagnostic struct {
	MainHiringAreas []string `json:"main_hiring_areas"`
	MatchLevel      string   `json:"match_level"`
}

// Suggestion is one outreach role proposed for a company.
type Suggestion struct {
	RoleTitle  string   `json:"role_title"`
	FitType    FitType  `json:"fit_type"`
	Rationale  string   `json:"rationale"`
	Confidence int      `json:"confidence"`
	KeyTasks   []string `json:"key_tasks"`
}

// CompanyEnrichment is the structured result of enriching one company.
type CompanyEnrichment struct {
	Diagnostic  *Diagnostic  `json:"diagnostic,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`

	// Payload is the decoded JSON object as returned by the model.
	Payload map[string]any `json:"-"`
	Raw     string         `json:"-"`
}

// RoleTitles lists the suggested role titles in ranked order.
func (e *CompanyEnrichment) RoleTitles() []string {
	titles := make([]string, 0, len(e.Suggestions))
	for _, s := range e.Suggestions {
		titles = append(titles, s.RoleTitle)
	}
	return titles
}

// Validate checks the enrichment against the expected schema and normalizes
// fit types to upper case.
func (e *CompanyEnrichment) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: missing enrichment", ErrInvalidResponse)
	}
	if len(e.Suggestions) == 0 {
		return fmt.Errorf("%w: no suggestions", ErrInvalidResponse)
	}

	for i := range e.Suggestions {
		s := &e.Suggestions[i]
		s.RoleTitle = strings.TrimSpace(s.RoleTitle)
		if s.RoleTitle == "" {
			return fmt.Errorf("%w: suggestion %d has no role title", ErrInvalidResponse, i+1)
		}

		s.FitType = FitType(strings.ToUpper(strings.TrimSpace(string(s.FitType))))
		switch s.FitType {
		case FitDirect, FitAdjacent, FitBridge:
		default:
			return fmt.Errorf("%w: suggestion %q has unknown fit type %q", ErrInvalidResponse, s.RoleTitle, s.FitType)
		}

		if s.Confidence < 0 || s.Confidence > 100 {
			return fmt.Errorf("%w: suggestion %q confidence %d out of range", ErrInvalidResponse, s.RoleTitle, s.Confidence)
		}
		if s.KeyTasks == nil {
			s.KeyTasks = []string{}
		}
	}
	return nil
}

// CompanyRequest carries what the model needs to enrich one company.
type CompanyRequest struct {
	Company   string
	Objective string
	Skills    []string
	Context   string
}

// Enricher produces outreach suggestions for a company.
type Enricher interface {
	EnrichCompany(ctx context.Context, req CompanyRequest) (*CompanyEnrichment, error)
}
