package jobs

import (
	"strings"
)

// UnknownCompany labels jobs whose company name is missing.
const UnknownCompany = "Unknown"

const (
	FieldExternalID  = "external_id"
	FieldCompanyName = "company_name"
	FieldDescription = "job_description"
	FieldSuggested   = "suggested_outreach_roles"
	FieldEnrichment  = "enrichment_json"
	FieldVersion     = "enrichment_version"
)

// Record is a single job posting as stored by the ingestion pipeline.
type Record struct {
	ExternalID         string   `json:"external_id" mapstructure:"external_id"`
	Title              string   `json:"title" mapstructure:"title"`
	CompanyName        string   `json:"company_name" mapstructure:"company_name"`
	CompanySlug        string   `json:"company_slug,omitempty" mapstructure:"company_slug"`
	Description        string   `json:"job_description,omitempty" mapstructure:"job_description"`
	CompanyDescription string   `json:"description,omitempty" mapstructure:"description"`
	Pitch              string   `json:"pitch,omitempty" mapstructure:"pitch"`
	ContractType       string   `json:"contract_type,omitempty" mapstructure:"contract_type"`
	Location           string   `json:"location,omitempty" mapstructure:"location"`
	ApplyURL           string   `json:"apply_url,omitempty" mapstructure:"apply_url"`
	LogoURL            string   `json:"logo_url,omitempty" mapstructure:"logo_url"`
	Source             string   `json:"source,omitempty" mapstructure:"source"`
	PublishedAt        string   `json:"published_at,omitempty" mapstructure:"published_at"`
	Sector             string   `json:"sector,omitempty" mapstructure:"sector"`
	Stack              []string `json:"stack,omitempty" mapstructure:"stack"`
	SkillsExtracted    []string `json:"skills_extracted,omitempty" mapstructure:"skills_extracted"`

	SuggestedOutreachRoles []string       `json:"suggested_outreach_roles,omitempty" mapstructure:"suggested_outreach_roles"`
	Enrichment             map[string]any `json:"enrichment_json,omitempty" mapstructure:"enrichment_json"`
	EnrichmentVersion      int            `json:"enrichment_version,omitempty" mapstructure:"enrichment_version"`
}

// Company returns the company name, falling back to UnknownCompany.
func (r *Record) Company() string {
	if name := strings.TrimSpace(r.CompanyName); name != "" {
		return name
	}
	return UnknownCompany
}

// HasDescription reports whether the job carries a non-blank description.
func (r *Record) HasDescription() bool {
	return strings.TrimSpace(r.Description) != ""
}

// IsEnriched reports whether outreach suggestions were already stored for the job.
func (r *Record) IsEnriched() bool {
	return len(r.SuggestedOutreachRoles) > 0
}

// Jobs is an in-memory collection of job records.
type Jobs struct {
	Items []*Record
}

func (j *Jobs) Len() int {
	if j == nil {
		return 0
	}
	return len(j.Items)
}

// Keep retains only the records for which keep returns true and returns the
// external ids of dropped records. Order of the retained records is preserved.
func (j *Jobs) Keep(keep func(*Record) bool) []string {
	var dropped []string
	kept := j.Items[:0]
	for _, record := range j.Items {
		if keep(record) {
			kept = append(kept, record)
			continue
		}
		dropped = append(dropped, record.ExternalID)
	}
	// Release references held by the tail of the reused backing array.
	for i := len(kept); i < len(j.Items); i++ {
		j.Items[i] = nil
	}
	j.Items = kept
	return dropped
}

// ExternalIDs lists the ids of the collection in order.
func (j *Jobs) ExternalIDs() []string {
	ids := make([]string, 0, j.Len())
	for _, record := range j.Items {
		ids = append(ids, record.ExternalID)
	}
	return ids
}
