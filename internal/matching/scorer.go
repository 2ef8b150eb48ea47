// Package matching scores job records against a candidate profile and ranks them.
package matching

import (
	"math"
	"strings"

	"github.com/spigell/jobmatch/internal/heuristics"
	"github.com/spigell/jobmatch/internal/jobs"
)

const (
	titleTermPoints = 15
	maxTitleBonus   = 40

	bucketKeywordPoints = 10
	maxBucketScore      = 30
	maxIntentScore      = 60

	skillBasePoints = 10
	skillPerMatch   = 5
	maxSkillScore   = 30

	hiringBase   = 5
	hiringJunior = 10
	// Above the nominal 10 point hiring range.
	hiringTarget = 20

	wrongContractFactor = 0.7
	seniorFactor        = 0.5
	noDescriptionFactor = 0.8

	maxScore            = 100
	maxReportedKeywords = 5
)

// Scorer computes deterministic match scores from a fixed set of tables.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	tables *heuristics.Tables
}

// NewScorer builds a scorer; nil tables select the embedded defaults.
func NewScorer(tables *heuristics.Tables) *Scorer {
	if tables == nil {
		tables = heuristics.Default()
	}
	return &Scorer{tables: tables}
}

// Score rates job for profile. The boolean is false when a hard filter of
// prefs excludes the job; prefs may be nil.
func (s *Scorer) Score(profile Profile, job *jobs.Record, prefs *Preferences) (*Result, bool) {
	if job == nil {
		return nil, false
	}

	fullText := strings.ToLower(strings.Join([]string{
		job.Title,
		job.Description,
		job.Sector,
		strings.Join(job.Stack, " "),
		strings.Join(job.SkillsExtracted, " "),
	}, " "))
	contractBlob := strings.ToLower(job.ContractType + " " + job.Title)
	hasDescription := job.HasDescription()

	if prefs != nil && excludedByKeywords(fullText, prefs) {
		return nil, false
	}
	if prefs != nil && prefs.EnrichedOnly && !hasDescription {
		return nil, false
	}

	intent := newKeywordTrail()
	titleBonus := s.titleBonus(profile.Objective, job.Title, intent)
	intentScore := s.intentScore(fullText, s.bucketKeywords(profile, prefs), intent)

	if prefs != nil && prefs.StrictIntent && intentScore == 0 {
		return nil, false
	}

	matchedSkills := s.matchedSkills(profile.Skills, job)
	skillScore := 0
	if n := len(matchedSkills); n > 0 {
		skillScore = min(maxSkillScore, skillBasePoints+n*skillPerMatch)
	}

	hiringScore, senior := s.hiringSignal(contractBlob)

	wrongContract := prefs != nil && len(prefs.ContractTypes) > 0 && !containsAny(contractBlob, prefs.ContractTypes)

	total := float64(intentScore + skillScore + hiringScore + titleBonus)
	if wrongContract {
		total *= wrongContractFactor
	}
	if senior {
		total *= seniorFactor
	}
	if !hasDescription {
		total *= noDescriptionFactor
	}
	score := clampScore(total)

	if prefs != nil && score < prefs.MinScore {
		return nil, false
	}

	return &Result{
		JobID:        job.ExternalID,
		Title:        job.Title,
		Company:      job.CompanyName,
		CompanySlug:  job.CompanySlug,
		LogoURL:      job.LogoURL,
		Location:     job.Location,
		PublishedAt:  job.PublishedAt,
		ContractType: job.ContractType,
		URL:          job.ApplyURL,
		Score:        score,
		Details: Details{
			Intent:     intentScore,
			Skill:      skillScore,
			Hiring:     hiringScore,
			TitleBonus: titleBonus,
			Penalties: Penalties{
				Senior:        senior,
				WrongContract: wrongContract,
				NoDescription: !hasDescription,
			},
		},
		MatchedSkills:          matchedSkills,
		MatchedIntent:          intent.first(maxReportedKeywords),
		Confidence:             ConfidenceFor(score),
		SuggestedOutreachRoles: nonNil(job.SuggestedOutreachRoles),
		Enrichment:             job.Enrichment,
	}, true
}

func excludedByKeywords(fullText string, prefs *Preferences) bool {
	if containsAny(fullText, prefs.ExcludeKeywords) {
		return true
	}
	return len(prefs.MustHaveKeywords) > 0 && !containsAny(fullText, prefs.MustHaveKeywords)
}

// titleBonus awards points for objective words found verbatim in the title.
func (s *Scorer) titleBonus(objective, title string, trail *keywordTrail) int {
	title = strings.ToLower(title)
	bonus := 0
	for _, term := range ObjectiveTerms(objective) {
		if strings.Contains(title, term) {
			bonus += titleTermPoints
			trail.add(term)
		}
	}
	return min(maxTitleBonus, bonus)
}

func (s *Scorer) intentScore(fullText string, buckets [][]string, trail *keywordTrail) int {
	total := 0
	for _, keywords := range buckets {
		hits := 0
		for _, kw := range keywords {
			if ContainsKeyword(fullText, kw) {
				hits += bucketKeywordPoints
				trail.add(kw)
			}
		}
		total += min(maxBucketScore, hits)
	}
	return min(maxIntentScore, total)
}

// matchedSkills intersects the candidate skills with the job skills expanded by
// role-implied skills; the result is sorted.
func (s *Scorer) matchedSkills(candidate []string, job *jobs.Record) []string {
	userSkills := make(map[string]struct{}, len(candidate))
	for _, skill := range candidate {
		if normalized := s.NormalizeSkill(skill); normalized != "" {
			userSkills[normalized] = struct{}{}
		}
	}
	if len(userSkills) == 0 {
		return []string{}
	}

	jobSkills := make(map[string]struct{}, len(job.Stack)+len(job.SkillsExtracted))
	addSkill := func(skill string) {
		if normalized := s.NormalizeSkill(skill); normalized != "" {
			jobSkills[normalized] = struct{}{}
		}
	}
	for _, tag := range job.Stack {
		addSkill(tag)
		for _, implied := range s.tables.RoleToSkills[strings.ToLower(strings.TrimSpace(tag))] {
			addSkill(implied)
		}
	}
	for _, skill := range job.SkillsExtracted {
		addSkill(skill)
	}

	matched := make(map[string]struct{})
	for skill := range userSkills {
		if _, ok := jobSkills[skill]; ok {
			matched[skill] = struct{}{}
		}
	}
	return sortedSet(matched)
}

// hiringSignal checks seniority first, then target contracts, then junior terms.
func (s *Scorer) hiringSignal(contractBlob string) (int, bool) {
	switch {
	case containsAny(contractBlob, s.tables.SeniorTerms):
		return 0, true
	case containsAny(contractBlob, s.tables.TargetContractTerms):
		return hiringTarget, false
	case containsAny(contractBlob, s.tables.JuniorTerms):
		return hiringJunior, false
	default:
		return hiringBase, false
	}
}

// clampScore truncates toward zero and bounds the score to [0, 100].
func clampScore(total float64) int {
	if math.IsNaN(total) || total <= 0 {
		return 0
	}
	return min(maxScore, int(total))
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// keywordTrail records matched intent keywords once, in discovery order.
type keywordTrail struct {
	seen  map[string]struct{}
	items []string
}

func newKeywordTrail() *keywordTrail {
	return &keywordTrail{seen: make(map[string]struct{})}
}

func (k *keywordTrail) add(kw string) {
	if _, ok := k.seen[kw]; ok {
		return
	}
	k.seen[kw] = struct{}{}
	k.items = append(k.items, kw)
}

func (k *keywordTrail) first(n int) []string {
	if len(k.items) <= n {
		return append([]string{}, k.items...)
	}
	return append([]string{}, k.items[:n]...)
}
