package matching

import (
	"sort"
	"strings"
)

// InferRoleBuckets returns, sorted, the broad role buckets whose keywords
// appear in the objective.
func (s *Scorer) InferRoleBuckets(objective string) []string {
	text := strings.ToLower(objective)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var buckets []string
	for _, role := range s.tables.RoleNames() {
		if containsAny(text, s.tables.RoleKeywords[role]) {
			buckets = append(buckets, role)
		}
	}
	return buckets
}

// PreferenceKeywords returns the strict keyword list of an explicitly selected
// bucket, falling back to the broad table for names only it knows.
func (s *Scorer) PreferenceKeywords(bucket string) []string {
	bucket = strings.ToLower(strings.TrimSpace(bucket))
	if keywords, ok := s.tables.PreferenceRoles[bucket]; ok {
		return keywords
	}
	return s.tables.RoleKeywords[bucket]
}

// bucketKeywords resolves which buckets and which table drive the intent
// score: explicit target roles use the strict table, otherwise buckets are
// inferred from the objective with the broad table.
func (s *Scorer) bucketKeywords(profile Profile, prefs *Preferences) [][]string {
	if prefs != nil && len(prefs.TargetRoles) > 0 {
		seen := make(map[string]struct{}, len(prefs.TargetRoles))
		lists := make([][]string, 0, len(prefs.TargetRoles))
		for _, role := range prefs.TargetRoles {
			role = strings.ToLower(strings.TrimSpace(role))
			if role == "" {
				continue
			}
			if _, ok := seen[role]; ok {
				continue
			}
			seen[role] = struct{}{}
			lists = append(lists, s.PreferenceKeywords(role))
		}
		return lists
	}

	buckets := s.InferRoleBuckets(profile.Objective)
	lists := make([][]string, 0, len(buckets))
	for _, role := range buckets {
		lists = append(lists, s.tables.RoleKeywords[role])
	}
	return lists
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for item := range set {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
