// Package heuristics holds the keyword and synonym tables driving the match scorer.
package heuristics

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// Tables groups every fixed mapping the scorer relies on.
type Tables struct {
	SkillSynonyms       map[string]string   `yaml:"skill_synonyms"`
	RoleToSkills        map[string][]string `yaml:"role_to_skills"`
	RoleKeywords        map[string][]string `yaml:"role_keywords"`
	PreferenceRoles     map[string][]string `yaml:"preference_roles"`
	SeniorTerms         []string            `yaml:"senior_terms"`
	TargetContractTerms []string            `yaml:"target_contract_terms"`
	JuniorTerms         []string            `yaml:"junior_terms"`
	CommonSkills        []string            `yaml:"common_skills"`
}

var (
	defaultOnce   sync.Once
	defaultParsed *Tables
	defaultErr    error
)

// Default returns a fresh copy of the embedded tables.
func Default() *Tables {
	defaultOnce.Do(func() {
		defaultParsed, defaultErr = Parse(defaultTables)
	})
	if defaultErr != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(fmt.Sprintf("parse embedded heuristic tables: %v", defaultErr))
	}
	return defaultParsed.Clone()
}

// Parse decodes tables from YAML and normalizes keys and values to lower case.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	t.normalize()
	return &t, nil
}

// Load returns the default tables with every table present in the file at path
// replacing its default counterpart. An empty path yields the defaults.
func Load(path string) (*Tables, error) {
	tables := Default()

	path = strings.TrimSpace(path)
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file %q: %w", path, err)
	}

	overlay, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("tables file %q: %w", path, err)
	}

	tables.merge(overlay)

	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("tables file %q: %w", path, err)
	}

	return tables, nil
}

// Validate reports tables that would make scoring meaningless.
func (t *Tables) Validate() error {
	if t == nil {
		return errors.New("tables are nil")
	}
	if len(t.RoleKeywords) == 0 {
		return errors.New("role_keywords must not be empty")
	}
	for role, keywords := range t.RoleKeywords {
		if len(keywords) == 0 {
			return fmt.Errorf("role_keywords.%s has no keywords", role)
		}
	}
	for role, keywords := range t.PreferenceRoles {
		if len(keywords) == 0 {
			return fmt.Errorf("preference_roles.%s has no keywords", role)
		}
	}
	return nil
}

// RoleNames returns the broad role buckets in sorted order.
func (t *Tables) RoleNames() []string {
	return sortedKeys(t.RoleKeywords)
}

// PreferenceNames returns the strict role buckets in sorted order.
func (t *Tables) PreferenceNames() []string {
	return sortedKeys(t.PreferenceRoles)
}

// Clone returns a deep copy so callers can mutate tables safely.
func (t *Tables) Clone() *Tables {
	if t == nil {
		return nil
	}

	out := &Tables{
		SkillSynonyms:       make(map[string]string, len(t.SkillSynonyms)),
		RoleToSkills:        cloneListMap(t.RoleToSkills),
		RoleKeywords:        cloneListMap(t.RoleKeywords),
		PreferenceRoles:     cloneListMap(t.PreferenceRoles),
		SeniorTerms:         append([]string(nil), t.SeniorTerms...),
		TargetContractTerms: append([]string(nil), t.TargetContractTerms...),
		JuniorTerms:         append([]string(nil), t.JuniorTerms...),
		CommonSkills:        append([]string(nil), t.CommonSkills...),
	}
	for k, v := range t.SkillSynonyms {
		out.SkillSynonyms[k] = v
	}
	return out
}

func (t *Tables) merge(o *Tables) {
	if o.SkillSynonyms != nil {
		t.SkillSynonyms = o.SkillSynonyms
	}
	if o.RoleToSkills != nil {
		t.RoleToSkills = o.RoleToSkills
	}
	if o.RoleKeywords != nil {
		t.RoleKeywords = o.RoleKeywords
	}
	if o.PreferenceRoles != nil {
		t.PreferenceRoles = o.PreferenceRoles
	}
	if o.SeniorTerms != nil {
		t.SeniorTerms = o.SeniorTerms
	}
	if o.TargetContractTerms != nil {
		t.TargetContractTerms = o.TargetContractTerms
	}
	if o.JuniorTerms != nil {
		t.JuniorTerms = o.JuniorTerms
	}
	if o.CommonSkills != nil {
		t.CommonSkills = o.CommonSkills
	}
}

func (t *Tables) normalize() {
	if t.SkillSynonyms != nil {
		synonyms := make(map[string]string, len(t.SkillSynonyms))
		for k, v := range t.SkillSynonyms {
			synonyms[lower(k)] = lower(v)
		}
		t.SkillSynonyms = synonyms
	}
	t.RoleToSkills = normalizeListMap(t.RoleToSkills)
	t.RoleKeywords = normalizeListMap(t.RoleKeywords)
	t.PreferenceRoles = normalizeListMap(t.PreferenceRoles)
	t.SeniorTerms = normalizeList(t.SeniorTerms)
	t.TargetContractTerms = normalizeList(t.TargetContractTerms)
	t.JuniorTerms = normalizeList(t.JuniorTerms)
	t.CommonSkills = normalizeList(t.CommonSkills)
}

func normalizeListMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[lower(k)] = normalizeList(v)
	}
	return out
}

// normalizeList lowercases entries and drops blanks and duplicates, keeping order.
func normalizeList(list []string) []string {
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		item = lower(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func cloneListMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
