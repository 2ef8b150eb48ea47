package enrichment

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/utils"
)

type stubJobEnricher struct {
	calls    []ai.JobRequest
	failures map[string]error
	onCall   func(id string)
}

func (s *stubJobEnricher) EnrichJob(_ context.Context, req ai.JobRequest) (*ai.JobEnrichment, error) {
	s.calls = append(s.calls, req)
	if s.onCall != nil {
		s.onCall(req.ID)
	}
	if err := s.failures[req.ID]; err != nil {
		return nil, err
	}
	confidence := 0.9
	return &ai.JobEnrichment{
		IsTech:                 true,
		JobFamily:              ai.FamilySoftware,
		RoleLabels:             []string{"backend"},
		AIRelevance:            ai.RelevanceAdjacent,
		SuggestedOutreachRoles: []string{"CTO"},
		Confidence:             &confidence,
		Payload:                map[string]any{"job": req.ID},
	}, nil
}

func structuredCorpus() *jobs.Jobs {
	return &jobs.Jobs{Items: []*jobs.Record{
		{ExternalID: "j1", CompanyName: "Acme", Title: "Backend Engineer", Description: "Go services"},
		{ExternalID: "j2", CompanyName: "Acme", Title: "No description"},
		{ExternalID: "j3", CompanyName: "Beta", Title: "Data Engineer", Description: "Spark", EnrichmentVersion: 1},
		{ExternalID: "j4", CompanyName: "Gamma", Title: "ML Engineer", Description: "RAG"},
		{ExternalID: "j5", CompanyName: "Delta", Title: "SRE", Description: "Kubernetes", EnrichmentVersion: 2},
	}}
}

func jobIDs(records []*jobs.Record) []string {
	return (&jobs.Jobs{Items: records}).ExternalIDs()
}

func TestSelectJobs(t *testing.T) {
	tests := []struct {
		name    string
		version int
		limit   int
		force   bool
		want    []string
	}{
		{name: "defaults skip current version", want: []string{"j1", "j4", "j5"}},
		{name: "other version", version: 2, want: []string{"j1", "j3", "j4"}},
		{name: "force keeps enriched jobs", force: true, want: []string{"j1", "j3", "j4", "j5"}},
		{name: "limit keeps corpus order", limit: 2, want: []string{"j1", "j4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jobIDs(SelectJobs(structuredCorpus(), tt.version, tt.limit, tt.force))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRunStructuredIsolatesFailures(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	enricher := &stubJobEnricher{failures: map[string]error{
		"j4": fmt.Errorf("%w: unknown job family %q", ai.ErrInvalidResponse, "finance"),
		"j5": errors.New("quota exceeded " + strings.Repeat("x", 600)),
	}}
	writer := &stubWriter{}
	runner := NewRunner(RunnerDeps{JobEnricher: enricher, Writer: writer, Logger: zap.New(core)}, -1)

	report, err := runner.RunStructured(context.Background(), structuredCorpus(), StructuredOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Processed != 3 || report.Succeeded != 1 || report.Failed != 2 || report.Skipped != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Message != "Enrichment complete: 1 success, 2 failed" || report.Version != DefaultVersion {
		t.Fatalf("unexpected report: %+v", report)
	}

	details := map[string]JobDetail{}
	for _, d := range report.Details {
		details[d.JobID] = d
	}
	if d := details["j1"]; d.Status != StatusSuccess || d.IsTech == nil || !*d.IsTech || d.AIRelevance != ai.RelevanceAdjacent {
		t.Fatalf("unexpected success detail: %+v", d)
	}
	if d := details["j4"]; d.Status != StatusFailed || d.Error != ErrorValidation || d.Company != "Gamma" {
		t.Fatalf("unexpected validation detail: %+v", d)
	}
	if d := details["j5"]; d.Error != ErrorRuntime || len([]rune(d.Detail)) != maxErrorDetail {
		t.Fatalf("expected truncated runtime detail, got %q (%d)", d.Error, len(d.Detail))
	}

	if len(writer.updates) != 1 || !reflect.DeepEqual(writer.updates[0].ids, []string{"j1"}) {
		t.Fatalf("expected a single write for j1, got %+v", writer.updates)
	}
	fields := writer.updates[0].update.Fields
	if fields[jobs.FieldVersion] != DefaultVersion || fields["job_family"] != "software" || fields["is_tech"] != true {
		t.Fatalf("unexpected written fields: %v", fields)
	}
	if !reflect.DeepEqual(writer.updates[0].update.SuggestedOutreachRoles, []string{"CTO"}) {
		t.Fatalf("unexpected roles: %v", writer.updates[0].update.SuggestedOutreachRoles)
	}

	failures := observed.FilterMessage("job enrichment failed").All()
	if len(failures) != 2 {
		t.Fatalf("expected two failure logs, got %d", len(failures))
	}
	if failures[0].ContextMap()["job_id"] != "j4" {
		t.Fatalf("expected failure logged with job id, got %v", failures[0].ContextMap())
	}
}

func TestRunStructuredDryRun(t *testing.T) {
	enricher := &stubJobEnricher{}
	writer := &stubWriter{}
	runner := NewRunner(RunnerDeps{JobEnricher: enricher, Writer: writer}, -1)

	report, err := runner.RunStructured(context.Background(), structuredCorpus(), StructuredOptions{DryRun: true, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.DryRun || report.Skipped != 2 || report.Processed != 2 {
		t.Fatalf("unexpected dry run report: %+v", report)
	}
	if len(enricher.calls) != 0 || len(writer.updates) != 0 {
		t.Fatalf("dry run must neither call the model nor write")
	}
}

func TestRunStructuredRequiresEnricher(t *testing.T) {
	runner := NewRunner(RunnerDeps{Writer: &stubWriter{}}, -1)
	if _, err := runner.RunStructured(context.Background(), structuredCorpus(), StructuredOptions{}); err == nil {
		t.Fatalf("expected error without job enricher")
	}
}

func TestRunStructuredLockAndPacing(t *testing.T) {
	var events []string
	waitFor = func(_ context.Context, d time.Duration) error {
		events = append(events, "wait "+d.String())
		return nil
	}
	t.Cleanup(func() { waitFor = utils.WaitFor })

	enricher := &stubJobEnricher{onCall: func(id string) { events = append(events, "call "+id) }}
	locker := &stubLocker{held: map[string]bool{"job:j4": true}}
	runner := NewRunner(RunnerDeps{JobEnricher: enricher, Writer: &stubWriter{}, Locker: locker}, time.Second)

	report, err := runner.RunStructured(context.Background(), structuredCorpus(), StructuredOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"call j1", "wait 1s", "call j5"}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	if report.Skipped != 1 || report.Details[1].Reason != ReasonLocked {
		t.Fatalf("expected locked job skipped, got %+v", report.Details)
	}
	if !reflect.DeepEqual(locker.released, []string{"job:j1", "job:j5"}) {
		t.Fatalf("unexpected released locks: %v", locker.released)
	}
}

func TestRunStructuredCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enricher := &stubJobEnricher{onCall: func(string) { cancel() }}
	runner := NewRunner(RunnerDeps{JobEnricher: enricher, Writer: &stubWriter{}}, -1)

	report, err := runner.RunStructured(ctx, structuredCorpus(), StructuredOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enricher.calls) != 1 || report.Skipped != 2 || len(report.Details) != report.Processed {
		t.Fatalf("unexpected cancelled report: %+v", report)
	}
	for _, d := range report.Details[1:] {
		if d.Reason != ReasonCancelled {
			t.Fatalf("unexpected reason: %+v", d)
		}
	}
}
