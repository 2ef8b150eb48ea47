package filtering

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/jobs"
)

type sourcesFilter struct {
	sources map[string]struct{}
	names   []string
}

// NewSources keeps only jobs from the configured sources. No sources keeps everything.
func NewSources() Filter {
	return &sourcesFilter{}
}

func (f *sourcesFilter) Name() string { return "sources" }

func (f *sourcesFilter) IsEnabled() bool { return true }

func (f *sourcesFilter) Validate(cfg *Config) error {
	f.sources, f.names = nil, nil
	if cfg == nil {
		return nil
	}
	f.sources, f.names = foldSet(cfg.Sources)
	return nil
}

func (f *sourcesFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	if len(f.sources) == 0 {
		return v, Step{Initial: initial, Left: v.Len()}, nil
	}

	dropped := v.Keep(func(r *jobs.Record) bool {
		_, ok := f.sources[strings.ToLower(strings.TrimSpace(r.Source))]
		return ok
	})
	if len(dropped) > 0 {
		deps.log().Debug("excluding jobs from other sources",
			zap.Strings("sources", f.names),
			zap.Int("jobs_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}, nil
}

func (f *sourcesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["sources"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type excludedCompaniesFilter struct {
	companies map[string]struct{}
	names     []string
}

// NewExcludedCompanies drops jobs of the configured companies, ignoring case.
func NewExcludedCompanies() Filter {
	return &excludedCompaniesFilter{}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) IsEnabled() bool { return true }

func (f *excludedCompaniesFilter) Validate(cfg *Config) error {
	f.companies, f.names = nil, nil
	if cfg == nil {
		return nil
	}
	f.companies, f.names = foldSet(cfg.ExcludedCompanies)
	return nil
}

func (f *excludedCompaniesFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	if len(f.companies) == 0 {
		return v, Step{Initial: initial, Left: v.Len()}, nil
	}

	dropped := v.Keep(func(r *jobs.Record) bool {
		_, excluded := f.companies[strings.ToLower(r.Company())]
		return !excluded
	})
	if len(dropped) > 0 {
		deps.log().Info("excluding jobs by company",
			zap.Strings("excluded_companies", f.names),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["companies"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile drops jobs whose external ids are listed in a file, either a
// JSON array or one id per line.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	if f.path == "" {
		return v, Step{Initial: initial, Left: v.Len()}, nil
	}

	ids, err := readExcludedIDs(f.path)
	if err != nil {
		return v, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	dropped := v.Keep(func(r *jobs.Record) bool {
		_, excluded := ids[r.ExternalID]
		return !excluded
	})
	if len(dropped) > 0 {
		deps.log().Info("excluding jobs based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

func readExcludedIDs(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode %q: %w", path, err)
		}
		for _, id := range list {
			if id = strings.TrimSpace(id); id != "" {
				ids[id] = struct{}{}
			}
		}
		return ids, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids[line] = struct{}{}
	}
	return ids, scanner.Err()
}

type withDescriptionFilter struct{}

// NewWithDescription drops jobs without a description.
func NewWithDescription() Filter {
	return &withDescriptionFilter{}
}

func (f *withDescriptionFilter) Name() string { return "with_description" }

func (f *withDescriptionFilter) IsEnabled() bool { return true }

func (f *withDescriptionFilter) Validate(*Config) error { return nil }

func (f *withDescriptionFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	dropped := v.Keep(func(r *jobs.Record) bool { return r.HasDescription() })
	if len(dropped) > 0 {
		deps.log().Debug("excluding jobs without description", zap.Int("jobs_left", v.Len()))
	}
	return v, Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}, nil
}

func (f *withDescriptionFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true}
}

type deriveSkillsFilter struct {
	disabled bool
	reason   string
	derived  int
}

// NewDeriveSkills fills missing extracted skills from the job description.
// It never drops jobs.
func NewDeriveSkills() Filter {
	return &deriveSkillsFilter{}
}

// DeriveSkillsName names the skill derivation step.
const DeriveSkillsName = "derive_skills"

func (f *deriveSkillsFilter) Name() string { return DeriveSkillsName }

func (f *deriveSkillsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *deriveSkillsFilter) IsEnabled() bool { return !f.disabled }

func (f *deriveSkillsFilter) Validate(*Config) error { return nil }

func (f *deriveSkillsFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	if deps.Skills == nil {
		return v, Step{}, fmt.Errorf("skill extractor is required")
	}

	f.derived = 0
	for _, r := range v.Items {
		if len(r.SkillsExtracted) > 0 || !r.HasDescription() {
			continue
		}
		if skills := deps.Skills.ExtractSkills(r.Description); len(skills) > 0 {
			r.SkillsExtracted = skills
			f.derived++
		}
	}
	deps.log().Debug("derived skills from descriptions", zap.Int("jobs", f.derived))

	return v, Step{Initial: initial, Left: v.Len()}, nil
}

func (f *deriveSkillsFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"derived": strconv.Itoa(f.derived)},
	}
}

func foldSet(values []string) (map[string]struct{}, []string) {
	set := make(map[string]struct{}, len(values))
	names := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := set[key]; ok {
			continue
		}
		set[key] = struct{}{}
		names = append(names, v)
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set, names
}
