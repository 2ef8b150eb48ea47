package matching

import (
	"reflect"
	"testing"

	"github.com/spigell/jobmatch/internal/jobs"
)

func TestRank(t *testing.T) {
	s := NewScorer(nil)
	senior := backendJob()
	senior.ExternalID = "senior"
	senior.ContractType = "Senior CDI"

	plain := backendJob()
	plain.ExternalID = "plain"

	excluded := backendJob()
	excluded.ExternalID = "excluded"
	excluded.Title = "Backend Engineer (PHP)"

	twin := backendJob()
	twin.ExternalID = "twin"

	corpus := &jobs.Jobs{Items: []*jobs.Record{senior, plain, excluded, twin}}
	prefs := &Preferences{ExcludeKeywords: []string{"php"}}

	ranking := s.Rank(backendProfile(), corpus, prefs, 0)

	if ranking.Total != 4 || ranking.Matched != 3 || ranking.Filtered != 1 {
		t.Fatalf("unexpected counts: %+v", ranking)
	}

	var ids []string
	for _, r := range ranking.Results {
		ids = append(ids, r.JobID)
	}
	if !reflect.DeepEqual(ids, []string{"plain", "twin", "senior"}) {
		t.Fatalf("expected descending stable order, got %v", ids)
	}

	limited := s.Rank(backendProfile(), corpus, prefs, 1)
	if len(limited.Results) != 1 || limited.Matched != 3 {
		t.Fatalf("limit must truncate results only, got %+v", limited)
	}
}

func TestMatchKeepsCorpusOrder(t *testing.T) {
	s := NewScorer(nil)
	weak := backendJob()
	weak.ExternalID = "weak"
	weak.ContractType = "Senior CDI"
	strong := backendJob()
	strong.ExternalID = "strong"

	ranking := s.Match(backendProfile(), &jobs.Jobs{Items: []*jobs.Record{weak, strong}}, nil)

	if len(ranking.Results) != 2 || ranking.Results[0].JobID != "weak" {
		t.Fatalf("expected corpus order, got %+v", ranking.Results)
	}
	if ranking.Results[0].Score >= ranking.Results[1].Score {
		t.Fatalf("expected the senior job to score lower")
	}
}

func TestRankEmpty(t *testing.T) {
	ranking := NewScorer(nil).Rank(backendProfile(), nil, nil, 10)
	if ranking.Total != 0 || ranking.Results == nil {
		t.Fatalf("expected empty non-nil results, got %+v", ranking)
	}
}

func TestGroupByCompany(t *testing.T) {
	results := []*Result{
		{JobID: "a1", Company: "Acme", Score: 40, Confidence: ConfidenceMedium, Location: "Paris", CompanySlug: "acme"},
		{JobID: "b1", Company: "Beta", Score: 55, LogoURL: "https://cdn.example.com/beta.png"},
		{JobID: "a2", Company: "Acme", Score: 90, Confidence: ConfidenceVeryHigh, Location: "Lyon", CompanySlug: "acme-sas"},
		{JobID: "u1", Company: "", Score: 55},
		{
			JobID:                  "c1",
			Company:                "élan",
			Score:                  10,
			SuggestedOutreachRoles: []string{"Data Analyst"},
			Enrichment: map[string]any{
				"suggestions": []any{map[string]any{"role_title": "Data Analyst", "rationale": "Strong data team"}},
			},
		},
	}

	companies := GroupByCompany(results, 0)

	var names []string
	for _, c := range companies {
		names = append(names, c.Name)
	}
	if !reflect.DeepEqual(names, []string{"Acme", "Beta", jobs.UnknownCompany, "élan"}) {
		t.Fatalf("unexpected company order: %v", names)
	}

	acme := companies[0]
	if acme.Score != 90 {
		t.Fatalf("expected max score 90, got %d", acme.Score)
	}
	if acme.JobCount != 2 || acme.Jobs[0].ID != "a2" || acme.Jobs[0].Tag != "Offre Officielle" {
		t.Fatalf("unexpected acme jobs: %+v", acme.Jobs)
	}
	if acme.Location != "Paris" || acme.Slug != "acme" {
		t.Fatalf("expected company fields from the first listed job, got %q %q", acme.Location, acme.Slug)
	}
	if acme.Logo != "AC" {
		t.Fatalf("expected initials logo, got %q", acme.Logo)
	}
	if acme.MatchReason != "Match basé sur 2 opportunité(s) détectée(s)." {
		t.Fatalf("unexpected match reason: %q", acme.MatchReason)
	}

	if companies[1].Logo != "https://cdn.example.com/beta.png" {
		t.Fatalf("expected logo url, got %q", companies[1].Logo)
	}

	elan := companies[3]
	if elan.Logo != "ÉL" {
		t.Fatalf("expected rune-aware initials, got %q", elan.Logo)
	}
	if elan.MatchReason != "Strong data team" || len(elan.AISuggestions) != 1 {
		t.Fatalf("expected AI rationale, got %+v", elan)
	}
	if !reflect.DeepEqual(elan.SuggestedRoles, []string{"Data Analyst"}) {
		t.Fatalf("unexpected suggested roles: %v", elan.SuggestedRoles)
	}

	if top := GroupByCompany(results, 2); len(top) != 2 {
		t.Fatalf("expected limit 2, got %d", len(top))
	}
}

func TestCompanyScoreIsMaxOfJobs(t *testing.T) {
	s := NewScorer(nil)
	junior := backendJob()
	junior.ExternalID = "junior"
	junior.ContractType = "Alternance"
	senior := backendJob()
	senior.ExternalID = "senior"
	senior.Title = "Lead Backend Engineer"

	ranking := s.Rank(backendProfile(), &jobs.Jobs{Items: []*jobs.Record{senior, junior}}, nil, 0)
	companies := GroupByCompany(ranking.Results, 0)

	if len(companies) != 1 {
		t.Fatalf("expected one company, got %d", len(companies))
	}
	best := 0
	for _, r := range ranking.Results {
		best = max(best, r.Score)
	}
	if companies[0].Score != best {
		t.Fatalf("expected company score %d, got %d", best, companies[0].Score)
	}
}

func TestCompanyIDHashesTrimmedName(t *testing.T) {
	groups := GroupByCompany([]*Result{{JobID: "x", Company: " Acme "}, {JobID: "y", Company: "ACME"}}, 0)
	if len(groups) != 2 {
		t.Fatalf("expected case to split companies, got %d", len(groups))
	}
	for _, g := range groups {
		if g.ID != companyID(g.Name) || g.ID >= 10000 {
			t.Fatalf("unexpected id %d for %q", g.ID, g.Name)
		}
	}
	if groups[0].ID == groups[1].ID {
		t.Fatalf("expected distinct ids for %q and %q", groups[0].Name, groups[1].Name)
	}
}
