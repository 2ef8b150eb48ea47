// Package enrichment selects the companies worth an AI call and fans the
// resulting outreach suggestions out to their jobs.
package enrichment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/utils"
)

const (
	DefaultTopK = 50

	contextJobs             = 5
	contextDescriptionRunes = 2000
)

// DefaultProfile is scored against when the caller supplies no candidate.
var DefaultProfile = matching.Profile{
	Skills:    []string{"Python", "React", "Data"},
	Objective: "Développeur Fullstack",
}

// Candidate is a company eligible for enrichment.
type Candidate struct {
	Company  string
	Slug     string
	Score    int
	Enriched bool

	// Jobs are ordered by their own score, best first.
	Jobs []*jobs.Record
}

// ExternalIDs lists the ids of every job of the company.
func (c Candidate) ExternalIDs() []string {
	return (&jobs.Jobs{Items: c.Jobs}).ExternalIDs()
}

// Key identifies the company for locking.
func (c Candidate) Key() string {
	if slug := strings.TrimSpace(c.Slug); slug != "" {
		return strings.ToLower(slug)
	}
	return strings.ToLower(c.Company)
}

// Context renders the aggregated company context handed to the model.
func (c Candidate) Context() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ENTREPRISE: %s\n", c.Company)
	fmt.Fprintf(&b, "NOMBRE DE POSTES OUVERTS: %d\n", len(c.Jobs))
	b.WriteString("\nPOSTES DÉTECTÉS (CONTEXTE) :")

	for i, job := range c.Jobs {
		if i == contextJobs {
			break
		}
		title := strings.TrimSpace(job.Title)
		if title == "" {
			title = "Unknown"
		}
		fmt.Fprintf(&b, "\n\n--- Poste %d: %s ---\n", i+1, title)
		b.WriteString(utils.TruncateRunes(job.Description, contextDescriptionRunes))
	}
	return b.String()
}

// Selector groups the corpus by company and ranks companies by their best
// job score.
type Selector struct {
	scorer *matching.Scorer
}

func NewSelector(scorer *matching.Scorer) *Selector {
	if scorer == nil {
		scorer = matching.NewScorer(nil)
	}
	return &Selector{scorer: scorer}
}

// Candidates returns every company having at least one job with a
// description, best score first. Ties keep first appearance.
func (s *Selector) Candidates(corpus *jobs.Jobs, profile matching.Profile) []Candidate {
	if len(profile.Skills) == 0 && strings.TrimSpace(profile.Objective) == "" {
		profile = DefaultProfile
	}

	type scored struct {
		job   *jobs.Record
		score int
	}

	index := make(map[string]int)
	candidates := make([]Candidate, 0)
	scores := make([][]scored, 0)

	if corpus != nil {
		for _, job := range corpus.Items {
			if job == nil || !job.HasDescription() {
				continue
			}

			name := job.Company()
			i, ok := index[name]
			if !ok {
				i = len(candidates)
				index[name] = i
				candidates = append(candidates, Candidate{Company: name})
				scores = append(scores, nil)
			}

			score := 0
			if result, ok := s.scorer.Score(profile, job, nil); ok {
				score = result.Score
			}

			c := &candidates[i]
			if score > c.Score {
				c.Score = score
			}
			if job.IsEnriched() {
				c.Enriched = true
			}
			if c.Slug == "" {
				c.Slug = job.CompanySlug
			}
			scores[i] = append(scores[i], scored{job: job, score: score})
		}
	}

	for i := range candidates {
		group := scores[i]
		sort.SliceStable(group, func(a, b int) bool { return group[a].score > group[b].score })
		candidates[i].Jobs = make([]*jobs.Record, 0, len(group))
		for _, item := range group {
			candidates[i].Jobs = append(candidates[i].Jobs, item.job)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	return candidates
}

// Select returns the top K companies to enrich. Already enriched companies
// are dropped unless force is set. A topK <= 0 uses DefaultTopK.
func (s *Selector) Select(corpus *jobs.Jobs, profile matching.Profile, topK int, force bool) []Candidate {
	if topK <= 0 {
		topK = DefaultTopK
	}

	selected := make([]Candidate, 0, topK)
	for _, c := range s.Candidates(corpus, profile) {
		if c.Enriched && !force {
			continue
		}
		selected = append(selected, c)
		if len(selected) == topK {
			break
		}
	}
	return selected
}
