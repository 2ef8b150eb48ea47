package matching

import (
	"reflect"
	"testing"

	"github.com/spigell/jobmatch/internal/jobs"
)

func backendJob() *jobs.Record {
	return &jobs.Record{
		ExternalID:   "job-1",
		Title:        "Backend Engineer",
		CompanyName:  "Acme",
		Description:  "4 years experience required",
		ContractType: "CDI",
		Stack:        []string{"python", "django"},
	}
}

func backendProfile() Profile {
	return Profile{Skills: []string{"python", "react"}, Objective: "Backend Developer"}
}

func TestScoreBackendScenario(t *testing.T) {
	s := NewScorer(nil)

	result, ok := s.Score(backendProfile(), backendJob(), nil)
	if !ok {
		t.Fatalf("expected job to be kept")
	}

	if result.Details.Intent != 40 {
		t.Fatalf("expected intent 40, got %d", result.Details.Intent)
	}
	if result.Details.Skill != 15 {
		t.Fatalf("expected skill 15, got %d", result.Details.Skill)
	}
	if result.Details.Hiring != 5 {
		t.Fatalf("expected hiring 5, got %d", result.Details.Hiring)
	}
	if result.Details.TitleBonus != 15 {
		t.Fatalf("expected title bonus 15, got %d", result.Details.TitleBonus)
	}
	if result.Score != 75 {
		t.Fatalf("expected score 75, got %d", result.Score)
	}
	if result.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %q", result.Confidence)
	}
	if !reflect.DeepEqual(result.MatchedSkills, []string{"python"}) {
		t.Fatalf("unexpected matched skills: %v", result.MatchedSkills)
	}
	if result.MatchedIntent[0] != "backend" {
		t.Fatalf("expected title term first, got %v", result.MatchedIntent)
	}
	if len(result.MatchedIntent) > 5 {
		t.Fatalf("expected at most 5 intent keywords, got %v", result.MatchedIntent)
	}
	if result.Details.Penalties != (Penalties{}) {
		t.Fatalf("expected no penalties, got %+v", result.Details.Penalties)
	}
}

func TestScoreSeniorPenalty(t *testing.T) {
	s := NewScorer(nil)
	job := backendJob()
	job.ContractType = "Senior CDI, 5+ years"

	result, ok := s.Score(backendProfile(), job, nil)
	if !ok {
		t.Fatalf("expected job to be kept")
	}
	if !result.Details.Penalties.Senior {
		t.Fatalf("expected senior flag")
	}
	if result.Details.Hiring != 0 {
		t.Fatalf("expected hiring 0, got %d", result.Details.Hiring)
	}
	if result.Score != 35 {
		t.Fatalf("expected score 35, got %d", result.Score)
	}
}

func TestScoreHardFilters(t *testing.T) {
	s := NewScorer(nil)

	tests := []struct {
		name  string
		job   func() *jobs.Record
		prefs *Preferences
	}{
		{
			name: "exclude keyword",
			job: func() *jobs.Record {
				j := backendJob()
				j.Title = "Senior Backend Engineer"
				return j
			},
			prefs: &Preferences{ExcludeKeywords: []string{"senior"}},
		},
		{
			name:  "missing must-have",
			job:   backendJob,
			prefs: &Preferences{MustHaveKeywords: []string{"rust", "elixir"}},
		},
		{
			name: "enriched only without description",
			job: func() *jobs.Record {
				j := backendJob()
				j.Description = "  "
				return j
			},
			prefs: &Preferences{EnrichedOnly: true},
		},
		{
			name: "strict intent without bucket hit",
			job: func() *jobs.Record {
				return &jobs.Record{ExternalID: "x", Title: "Office Manager", Description: "Run the office", ContractType: "CDI"}
			},
			prefs: &Preferences{StrictIntent: true},
		},
		{
			name:  "below min score",
			job:   backendJob,
			prefs: &Preferences{MinScore: 76},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result, ok := s.Score(backendProfile(), tt.job(), tt.prefs); ok {
				t.Fatalf("expected exclusion, got score %d", result.Score)
			}
		})
	}
}

func TestScoreMinScoreBoundary(t *testing.T) {
	s := NewScorer(nil)
	job := backendJob()
	job.Description = ""

	prefs := &Preferences{ContractTypes: []string{"alternance"}}
	result, ok := s.Score(backendProfile(), job, prefs)
	if !ok {
		t.Fatalf("expected job to be kept")
	}
	if result.Score != 42 {
		t.Fatalf("expected 75*0.7*0.8 truncated to 42, got %d", result.Score)
	}
	if !result.Details.Penalties.WrongContract || !result.Details.Penalties.NoDescription {
		t.Fatalf("expected wrong contract and no description flags, got %+v", result.Details.Penalties)
	}

	prefs.MinScore = 50
	if _, ok := s.Score(backendProfile(), job, prefs); ok {
		t.Fatalf("expected exclusion with min_score 50")
	}

	prefs.MinScore = 42
	if _, ok := s.Score(backendProfile(), job, prefs); !ok {
		t.Fatalf("expected score equal to min_score to be kept")
	}
}

func TestScoreHiringSignals(t *testing.T) {
	s := NewScorer(nil)

	tests := []struct {
		contract string
		title    string
		hiring   int
	}{
		{contract: "Alternance", title: "Backend Engineer", hiring: 20},
		{contract: "Stage", title: "Backend Engineer", hiring: 10},
		{contract: "CDI", title: "Internal Tools Engineer", hiring: 5},
		{contract: "CDI", title: "Lead Backend Engineer", hiring: 0},
		{contract: "Alternance", title: "Senior Backend Engineer", hiring: 0},
	}

	for _, tt := range tests {
		t.Run(tt.contract+" "+tt.title, func(t *testing.T) {
			job := backendJob()
			job.ContractType = tt.contract
			job.Title = tt.title

			result, ok := s.Score(backendProfile(), job, nil)
			if !ok {
				t.Fatalf("expected job to be kept")
			}
			if result.Details.Hiring != tt.hiring {
				t.Fatalf("expected hiring %d, got %d", tt.hiring, result.Details.Hiring)
			}
		})
	}
}

func TestScoreExplicitTargetRolesUseStrictTable(t *testing.T) {
	s := NewScorer(nil)
	job := &jobs.Record{
		ExternalID:   "job-2",
		Title:        "Python Developer",
		Description:  "We write python every day",
		ContractType: "CDI",
	}
	profile := Profile{Objective: "Backend"}

	inferred, ok := s.Score(profile, job, nil)
	if !ok || inferred.Details.Intent == 0 {
		t.Fatalf("expected broad backend bucket to hit python, got %+v", inferred)
	}

	strict, ok := s.Score(profile, job, &Preferences{TargetRoles: []string{"backend"}})
	if !ok {
		t.Fatalf("expected job to be kept")
	}
	if strict.Details.Intent != 0 {
		t.Fatalf("strict backend bucket does not list python, got intent %d", strict.Details.Intent)
	}
}

func TestScoreRoleImpliedSkills(t *testing.T) {
	s := NewScorer(nil)
	job := &jobs.Record{ExternalID: "job-3", Title: "Engineer", Description: "desc", Stack: []string{"Frontend"}}

	result, ok := s.Score(Profile{Skills: []string{"React.js", "TypeScript"}}, job, nil)
	if !ok {
		t.Fatalf("expected job to be kept")
	}
	if !reflect.DeepEqual(result.MatchedSkills, []string{"react", "typescript"}) {
		t.Fatalf("unexpected matched skills: %v", result.MatchedSkills)
	}
	if result.Details.Skill != 20 {
		t.Fatalf("expected skill 20, got %d", result.Details.Skill)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	s := NewScorer(nil)
	prefs := &Preferences{ContractTypes: []string{"cdi"}}

	first, _ := s.Score(backendProfile(), backendJob(), prefs)
	second, _ := s.Score(backendProfile(), backendJob(), prefs)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestScoreMonotonicInSkills(t *testing.T) {
	s := NewScorer(nil)
	job := backendJob()
	job.Stack = []string{"python", "django", "sql", "docker", "react", "aws"}

	skills := []string{}
	prev := -1
	for _, skill := range []string{"python", "django", "sql", "docker", "react", "aws"} {
		skills = append(skills, skill)
		result, ok := s.Score(Profile{Skills: skills, Objective: "Backend Developer"}, job, nil)
		if !ok {
			t.Fatalf("expected job to be kept")
		}
		if result.Score < prev {
			t.Fatalf("score dropped from %d to %d after adding %q", prev, result.Score, skill)
		}
		if result.Details.Skill > 30 {
			t.Fatalf("skill score above cap: %d", result.Details.Skill)
		}
		prev = result.Score
	}
}

func TestScoreBounds(t *testing.T) {
	s := NewScorer(nil)
	job := &jobs.Record{
		ExternalID:   "job-4",
		Title:        "Fullstack Backend Frontend Data AI Developer Alternance",
		Description:  "react vue angular nextjs api fastapi django python sql etl llm rag genai docker aws",
		ContractType: "Alternance",
		Stack:        []string{"frontend", "backend"},
	}
	profile := Profile{
		Skills:    []string{"react", "python", "sql", "django", "fastapi", "typescript"},
		Objective: "Fullstack Backend Frontend Data AI Developer",
	}

	result, ok := s.Score(profile, job, nil)
	if !ok {
		t.Fatalf("expected job to be kept")
	}
	if result.Score < 0 || result.Score > 100 {
		t.Fatalf("score out of range: %d", result.Score)
	}
	if result.Details.Intent != 60 || result.Details.TitleBonus != 40 {
		t.Fatalf("expected capped sub-scores, got %+v", result.Details)
	}
	if result.Score != 100 {
		t.Fatalf("expected clamp to 100, got %d", result.Score)
	}
}

func TestScoreNilJob(t *testing.T) {
	if _, ok := NewScorer(nil).Score(backendProfile(), nil, nil); ok {
		t.Fatalf("nil job must be excluded")
	}
}
