// Package filtering narrows the job corpus before it is scored.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/jobs"
)

// Filter represents a single step applied to the job corpus.
type Filter interface {
	Name() string
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error)
}

// SkillExtractor finds known skills in free text.
type SkillExtractor interface {
	ExtractSkills(text string) []string
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
	Skills SkillExtractor
}

func (d Deps) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains the settings consumed by the filters.
type Config struct {
	Sources           []string
	ExcludedCompanies []string
	ExcludeFile       string
	// DeriveSkills fills missing extracted skills from descriptions before scoring.
	DeriveSkills bool
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

type disabler interface {
	Disable(reason string)
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
// Filters that cannot be disabled are left untouched.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if d, ok := step.(disabler); ok && step.Name() == name {
			d.Disable(reason)
		}
	}
}

// Run validates the enabled filters, then applies them in order.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, v *jobs.Jobs) (*jobs.Jobs, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		v = next
	}

	return v, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Scoring is the default chain applied before ranking. Skill derivation
// stays disabled unless cfg asks for it.
func Scoring(cfg *Config) []Filter {
	steps := []Filter{NewSources(), NewExcludedCompanies(), NewExcludeFile(), NewDeriveSkills()}
	if cfg == nil || !cfg.DeriveSkills {
		DisableByName(steps, DeriveSkillsName, "filters.derive-skills is off")
	}
	return steps
}

// Enrichment is the chain applied before selecting jobs or companies to enrich.
func Enrichment(cfg *Config) []Filter {
	return append(Scoring(cfg), NewWithDescription())
}
