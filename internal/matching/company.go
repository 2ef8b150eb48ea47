package matching

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/spigell/jobmatch/internal/jobs"
)

const offerTag = "Offre Officielle"

// CompanyJob is the compact view of a result inside a company aggregate.
type CompanyJob struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	Score         int        `json:"score"`
	Tag           string     `json:"tag"`
	URL           string     `json:"url,omitempty"`
	MatchedSkills []string   `json:"matched_skills"`
	Confidence    Confidence `json:"match_confidence"`
}

// CompanyAggregate groups the results of one company. Score is the best
// score among its jobs.
type CompanyAggregate struct {
	ID             uint32           `json:"id"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Logo           string           `json:"logo"`
	LogoURL        string           `json:"logo_url,omitempty"`
	Location       string           `json:"location"`
	Score          int              `json:"score"`
	JobCount       int              `json:"job_count"`
	MatchReason    string           `json:"matchReason"`
	Jobs           []CompanyJob     `json:"jobs"`
	SuggestedRoles []string         `json:"suggested_roles"`
	AISuggestions  []map[string]any `json:"ai_suggestions"`
}

// GroupByCompany buckets results by company name and orders companies by
// their best score. Ties keep first appearance. A limit <= 0 keeps all.
func GroupByCompany(results []*Result, limit int) []CompanyAggregate {
	index := make(map[string]int)
	companies := make([]CompanyAggregate, 0)
	enrichments := make([]map[string]any, 0)

	for _, r := range results {
		if r == nil {
			continue
		}
		name := strings.TrimSpace(r.Company)
		if name == "" {
			name = jobs.UnknownCompany
		}

		i, ok := index[name]
		if !ok {
			i = len(companies)
			index[name] = i
			companies = append(companies, CompanyAggregate{
				ID:             companyID(name),
				Name:           name,
				Slug:           r.CompanySlug,
				LogoURL:        r.LogoURL,
				Location:       r.Location,
				SuggestedRoles: nonNil(r.SuggestedOutreachRoles),
			})
			enrichments = append(enrichments, r.Enrichment)
		}

		c := &companies[i]
		c.Jobs = append(c.Jobs, CompanyJob{
			ID:            r.JobID,
			Title:         r.Title,
			Type:          r.ContractType,
			Score:         r.Score,
			Tag:           offerTag,
			URL:           r.URL,
			MatchedSkills: r.MatchedSkills,
			Confidence:    r.Confidence,
		})
		c.JobCount++
		if c.JobCount == 1 || r.Score > c.Score {
			c.Score = r.Score
		}
	}

	for i := range companies {
		c := &companies[i]
		sort.SliceStable(c.Jobs, func(a, b int) bool {
			return c.Jobs[a].Score > c.Jobs[b].Score
		})
		c.Logo = logoFor(c.Name, c.LogoURL)
		c.AISuggestions = Suggestions(enrichments[i])
		c.MatchReason = matchReason(c.AISuggestions, c.JobCount)
	}

	sort.SliceStable(companies, func(i, j int) bool {
		return companies[i].Score > companies[j].Score
	})
	if limit > 0 && len(companies) > limit {
		companies = companies[:limit]
	}
	return companies
}

// Suggestions returns the suggestion objects of an enrichment payload.
func Suggestions(enrichment map[string]any) []map[string]any {
	out := []map[string]any{}
	raw, ok := enrichment["suggestions"].([]any)
	if !ok {
		return out
	}
	for _, item := range raw {
		if s, ok := item.(map[string]any); ok {
			out = append(out, s)
		}
	}
	return out
}

func matchReason(suggestions []map[string]any, jobCount int) string {
	if len(suggestions) > 0 {
		if rationale, _ := suggestions[0]["rationale"].(string); strings.TrimSpace(rationale) != "" {
			return rationale
		}
	}
	return fmt.Sprintf("Match basé sur %d opportunité(s) détectée(s).", jobCount)
}

// logoFor prefers the logo URL and falls back to the first two letters of the name.
func logoFor(name, logoURL string) string {
	if logoURL != "" {
		return logoURL
	}
	runes := []rune(name)
	if len(runes) == 0 {
		return "??"
	}
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

func companyID(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32() % 10000
}
