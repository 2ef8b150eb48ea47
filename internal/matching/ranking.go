package matching

import (
	"sort"

	"github.com/spigell/jobmatch/internal/jobs"
)

// Ranking is the ordered outcome of scoring a job collection.
type Ranking struct {
	Total    int       `json:"total_jobs"`
	Matched  int       `json:"matched"`
	Filtered int       `json:"filtered"`
	Results  []*Result `json:"matches"`
}

// Match scores every job and keeps the results in corpus order.
func (s *Scorer) Match(profile Profile, corpus *jobs.Jobs, prefs *Preferences) Ranking {
	ranking := Ranking{Results: []*Result{}}
	if corpus == nil {
		return ranking
	}

	ranking.Total = corpus.Len()
	for _, job := range corpus.Items {
		result, ok := s.Score(profile, job, prefs)
		if !ok {
			ranking.Filtered++
			continue
		}
		ranking.Results = append(ranking.Results, result)
	}
	ranking.Matched = len(ranking.Results)
	return ranking
}

// Rank scores every job and returns results ordered by score, best first.
// Ties keep input order. A limit <= 0 keeps all results.
func (s *Scorer) Rank(profile Profile, corpus *jobs.Jobs, prefs *Preferences, limit int) Ranking {
	ranking := s.Match(profile, corpus, prefs)
	sort.SliceStable(ranking.Results, func(i, j int) bool {
		return ranking.Results[i].Score > ranking.Results[j].Score
	})
	if limit > 0 && len(ranking.Results) > limit {
		ranking.Results = ranking.Results[:limit]
	}
	return ranking
}
