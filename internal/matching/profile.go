package matching

// Profile describes the candidate a job is scored against.
type Profile struct {
	UserID    string   `json:"user_id,omitempty" mapstructure:"user-id"`
	Skills    []string `json:"skills" mapstructure:"skills"`
	Objective string   `json:"objective" mapstructure:"objective"`
}

// Preferences are optional hard and soft filters applied while scoring.
type Preferences struct {
	TargetRoles      []string `json:"target_roles" mapstructure:"target_roles" yaml:"target_roles"`
	ExcludeKeywords  []string `json:"exclude_keywords" mapstructure:"exclude_keywords" yaml:"exclude_keywords"`
	MustHaveKeywords []string `json:"must_have_keywords" mapstructure:"must_have_keywords" yaml:"must_have_keywords"`
	ContractTypes    []string `json:"contract_types" mapstructure:"contract_types" yaml:"contract_types"`
	StrictIntent     bool     `json:"strict_intent" mapstructure:"strict_intent" yaml:"strict_intent"`
	EnrichedOnly     bool     `json:"enriched_only" mapstructure:"enriched_only" yaml:"enriched_only"`
	MinScore         int      `json:"min_score" mapstructure:"min_score" yaml:"min_score"`
}

// Confidence is the coarse tier derived from a match score.
type Confidence string

const (
	ConfidenceVeryHigh Confidence = "very high"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

// ConfidenceFor maps a score to its tier.
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= 80:
		return ConfidenceVeryHigh
	case score >= 60:
		return ConfidenceHigh
	case score >= 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Penalties flags the multipliers applied to a score.
type Penalties struct {
	Senior        bool `json:"senior_penalty"`
	WrongContract bool `json:"wrong_contract"`
	NoDescription bool `json:"no_description"`
}

// Details exposes the sub-scores behind a total.
type Details struct {
	Intent     int       `json:"intent"`
	Skill      int       `json:"skill"`
	Hiring     int       `json:"hiring_score"`
	TitleBonus int       `json:"title_bonus"`
	Penalties  Penalties `json:"penalties"`
}

// Result is the score of one job for one candidate.
type Result struct {
	JobID        string `json:"job_id"`
	Title        string `json:"title"`
	Company      string `json:"company"`
	CompanySlug  string `json:"company_slug,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
	Location     string `json:"location,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	ContractType string `json:"contract_type"`
	URL          string `json:"url,omitempty"`

	Score         int        `json:"score"`
	Details       Details    `json:"details"`
	MatchedSkills []string   `json:"matched_skills"`
	MatchedIntent []string   `json:"matched_intent"`
	Confidence    Confidence `json:"match_confidence"`

	SuggestedOutreachRoles []string       `json:"suggested_outreach_roles"`
	Enrichment             map[string]any `json:"enrichment_json"`
}
