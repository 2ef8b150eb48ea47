package heuristics

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTables(t *testing.T) {
	tables := Default()

	if got := tables.SkillSynonyms["js"]; got != "javascript" {
		t.Fatalf("expected js to map to javascript, got %q", got)
	}

	if got := tables.RoleToSkills["frontend"]; len(got) != 5 {
		t.Fatalf("expected 5 implied frontend skills, got %v", got)
	}

	if _, ok := tables.PreferenceRoles["ai_engineer"]; !ok {
		t.Fatalf("expected ai_engineer preference role")
	}

	if len(tables.SeniorTerms) == 0 || len(tables.TargetContractTerms) == 0 || len(tables.JuniorTerms) == 0 {
		t.Fatalf("expected contract term tables to be populated")
	}

	if err := tables.Validate(); err != nil {
		t.Fatalf("default tables must validate: %v", err)
	}
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	first := Default()
	first.RoleKeywords["backend"][0] = "mutated"
	first.SkillSynonyms["js"] = "mutated"

	second := Default()
	if second.RoleKeywords["backend"][0] != "backend" {
		t.Fatalf("mutation leaked into defaults: %v", second.RoleKeywords["backend"])
	}
	if second.SkillSynonyms["js"] != "javascript" {
		t.Fatalf("mutation leaked into synonyms")
	}
}

func TestBucketNamesAreSorted(t *testing.T) {
	tables := Default()
	for name, names := range map[string][]string{
		"role":       tables.RoleNames(),
		"preference": tables.PreferenceNames(),
	} {
		if len(names) == 0 {
			t.Fatalf("expected default %s buckets", name)
		}
		for i := 1; i < len(names); i++ {
			if names[i-1] > names[i] {
				t.Fatalf("%s names not sorted: %v", name, names)
			}
		}
	}
}

func TestLoadOverridesTablesSelectively(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := []byte(`
skill_synonyms:
  GoLang: " Go "
junior_terms: [Graduate, graduate, "  "]
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write tables file: %v", err)
	}

	tables, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tables.SkillSynonyms) != 1 || tables.SkillSynonyms["golang"] != "go" {
		t.Fatalf("expected synonyms to be replaced and normalized, got %v", tables.SkillSynonyms)
	}

	if len(tables.JuniorTerms) != 1 || tables.JuniorTerms[0] != "graduate" {
		t.Fatalf("expected deduplicated junior terms, got %v", tables.JuniorTerms)
	}

	if len(tables.RoleKeywords) == 0 {
		t.Fatalf("expected role keywords to keep their defaults")
	}
}

func TestLoadRejectsEmptyRoleBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	if err := os.WriteFile(path, []byte("role_keywords:\n  backend: []\n"), 0o600); err != nil {
		t.Fatalf("write tables file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for empty role bucket")
	}
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	tables, err := Load("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tables.SkillSynonyms["node"] != "nodejs" {
		t.Fatalf("expected defaults, got %v", tables.SkillSynonyms)
	}
}
