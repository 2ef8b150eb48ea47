package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxExtractedSkills = 30

// NormalizeSkill lowercases and trims a skill and folds known synonyms.
func (s *Scorer) NormalizeSkill(skill string) string {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if skill == "" {
		return ""
	}
	if canonical, ok := s.tables.SkillSynonyms[skill]; ok {
		return canonical
	}
	return skill
}

// ContainsKeyword reports whether keyword occurs in text, ignoring case.
// Phrases (keywords with a space) match as substrings; single tokens must sit
// on word boundaries so that "intern" does not match "internal".
func ContainsKeyword(text, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}

	text = strings.ToLower(text)
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}

	return containsWord(text, keyword)
}

// containsWord looks for word with regexp \b semantics on both ends, using
// Unicode letters and digits as word characters.
func containsWord(text, word string) bool {
	first, _ := utf8.DecodeRuneInString(word)
	last, _ := utf8.DecodeLastRuneInString(word)

	offset := 0
	for offset <= len(text)-len(word) {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return false
		}

		start := offset + idx
		end := start + len(word)

		before := rune(-1)
		if start > 0 {
			before, _ = utf8.DecodeLastRuneInString(text[:start])
		}
		after := rune(-1)
		if end < len(text) {
			after, _ = utf8.DecodeRuneInString(text[end:])
		}

		if isWordRune(before) != isWordRune(first) && isWordRune(after) != isWordRune(last) {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}

	return false
}

func isWordRune(r rune) bool {
	if r < 0 {
		return false
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ObjectiveTerms splits free text on non-word characters and returns the
// distinct lowercase words of at least two characters, in order.
func ObjectiveTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	terms := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, word)
	}
	return terms
}

// ExtractSkills finds known skills mentioned in text, normalized and deduplicated.
func (s *Scorer) ExtractSkills(text string) []string {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var found []string
	seen := make(map[string]struct{})
	for _, skill := range s.tables.CommonSkills {
		if !ContainsKeyword(text, skill) {
			continue
		}
		normalized := s.NormalizeSkill(skill)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		found = append(found, normalized)
		if len(found) == maxExtractedSkills {
			break
		}
	}
	return found
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if ContainsKeyword(text, kw) {
			return true
		}
	}
	return false
}
