package enrichment

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/utils"
)

type stubEnricher struct {
	mu       sync.Mutex
	calls    []ai.CompanyRequest
	failures map[string]error
	onCall   func(company string)
}

func (s *stubEnricher) EnrichCompany(_ context.Context, req ai.CompanyRequest) (*ai.CompanyEnrichment, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.onCall != nil {
		s.onCall(req.Company)
	}
	if err := s.failures[req.Company]; err != nil {
		return nil, err
	}
	return &ai.CompanyEnrichment{
		Suggestions: []ai.Suggestion{{RoleTitle: "Dev " + req.Company, FitType: ai.FitDirect, Confidence: 80, KeyTasks: []string{}}},
		Payload:     map[string]any{"company": req.Company},
	}, nil
}

type update struct {
	ids    []string
	update store.EnrichmentUpdate
}

type stubWriter struct {
	updates []update
	err     error
}

func (s *stubWriter) UpdateJobs(_ context.Context, ids []string, u store.EnrichmentUpdate) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.updates = append(s.updates, update{ids: ids, update: u})
	return len(ids), nil
}

type stubLocker struct {
	held     map[string]bool
	released []string
}

func (s *stubLocker) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	if s.held[key] {
		return nil, ErrLocked
	}
	return func(context.Context) error {
		s.released = append(s.released, key)
		return nil
	}, nil
}

func runnerCorpus() *jobs.Jobs {
	return &jobs.Jobs{Items: []*jobs.Record{
		{ExternalID: "a1", CompanyName: "Acme", Title: "Backend Engineer", Description: "Python APIs"},
		{ExternalID: "a2", CompanyName: "Acme", Title: "Data Engineer", Description: "Data pipelines"},
		{ExternalID: "b1", CompanyName: "Beta", Title: "Frontend Developer", Description: "React apps"},
		{ExternalID: "c1", CompanyName: "Gamma", Title: "Designer", Description: "Figma"},
	}}
}

func statuses(report *Report) map[string]Detail {
	out := make(map[string]Detail, len(report.Details))
	for _, d := range report.Details {
		out[d.Company] = d
	}
	return out
}

func TestRunnerIsolatesFailures(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	enricher := &stubEnricher{failures: map[string]error{"Beta": ai.ErrInvalidResponse}}
	writer := &stubWriter{}
	locker := &stubLocker{held: map[string]bool{"gamma": true}}

	runner := NewRunner(RunnerDeps{Enricher: enricher, Writer: writer, Locker: locker, Logger: zap.New(core)}, -1)
	report, err := runner.Run(context.Background(), runnerCorpus(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Processed != 3 || report.Enriched != 1 || report.Failed != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.RunID == "" || !report.Success {
		t.Fatalf("expected a successful report with run id, got %+v", report)
	}

	details := statuses(report)
	if details["Acme"].Status != StatusSuccess || details["Acme"].JobsUpdated != 2 {
		t.Fatalf("unexpected Acme detail: %+v", details["Acme"])
	}
	if details["Beta"].Status != StatusFailed || details["Beta"].Error == "" {
		t.Fatalf("unexpected Beta detail: %+v", details["Beta"])
	}
	if details["Gamma"].Status != StatusSkipped || details["Gamma"].Reason != ReasonLocked {
		t.Fatalf("unexpected Gamma detail: %+v", details["Gamma"])
	}

	if len(writer.updates) != 1 {
		t.Fatalf("expected one fan-out write, got %d", len(writer.updates))
	}
	ids := append([]string(nil), writer.updates[0].ids...)
	sort.Strings(ids)
	if !reflect.DeepEqual(ids, []string{"a1", "a2"}) {
		t.Fatalf("expected write addressed to every Acme job, got %v", ids)
	}
	if !reflect.DeepEqual(writer.updates[0].update.SuggestedOutreachRoles, []string{"Dev Acme"}) {
		t.Fatalf("unexpected roles: %v", writer.updates[0].update.SuggestedOutreachRoles)
	}

	sort.Strings(locker.released)
	if !reflect.DeepEqual(locker.released, []string{"acme", "beta"}) {
		t.Fatalf("expected taken locks to be released, got %v", locker.released)
	}

	for _, entry := range observed.FilterMessage("company enrichment failed").All() {
		if entry.ContextMap()["company"] != "Beta" {
			t.Fatalf("expected failure logged with company, got %v", entry.ContextMap())
		}
	}
	if observed.FilterField(zap.String("run_id", report.RunID)).Len() == 0 {
		t.Fatalf("expected logs to carry the run id")
	}
}

func TestRunnerWriteFailure(t *testing.T) {
	runner := NewRunner(RunnerDeps{Enricher: &stubEnricher{}, Writer: &stubWriter{err: errors.New("db down")}}, -1)
	report, err := runner.Run(context.Background(), runnerCorpus(), Options{TopK: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 || report.Details[0].Error != "db down" {
		t.Fatalf("expected write failure recorded, got %+v", report.Details)
	}
}

func TestRunnerDryRun(t *testing.T) {
	writer := &stubWriter{}
	runner := NewRunner(RunnerDeps{Writer: writer}, -1)

	report, err := runner.Run(context.Background(), runnerCorpus(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.DryRun || report.Skipped != 3 || report.Enriched != 0 {
		t.Fatalf("unexpected dry run report: %+v", report)
	}
	for _, d := range report.Details {
		if d.Status != StatusSkipped || d.Reason != ReasonDryRun {
			t.Fatalf("unexpected dry run detail: %+v", d)
		}
	}
	if len(writer.updates) != 0 {
		t.Fatalf("dry run must not write")
	}
}

func TestRunnerRequiresEnricher(t *testing.T) {
	if _, err := NewRunner(RunnerDeps{Writer: &stubWriter{}}, -1).Run(context.Background(), runnerCorpus(), Options{}); err == nil {
		t.Fatalf("expected error without enricher")
	}
}

func TestRunnerCancellationSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enricher := &stubEnricher{onCall: func(string) { cancel() }}
	writer := &stubWriter{}
	runner := NewRunner(RunnerDeps{Enricher: enricher, Writer: writer}, -1)

	report, err := runner.Run(ctx, runnerCorpus(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enricher.calls) != 1 {
		t.Fatalf("expected a single AI call before cancellation, got %d", len(enricher.calls))
	}
	if report.Skipped != 2 {
		t.Fatalf("expected remaining companies skipped, got %+v", report)
	}
	for _, d := range report.Details[1:] {
		if d.Reason != ReasonCancelled {
			t.Fatalf("unexpected reason: %+v", d)
		}
	}
	if len(report.Details) != report.Processed {
		t.Fatalf("expected one detail per selected company")
	}
}

func TestRunnerPassesContext(t *testing.T) {
	enricher := &stubEnricher{}
	runner := NewRunner(RunnerDeps{Enricher: enricher, Writer: &stubWriter{}}, -1)

	if _, err := runner.Run(context.Background(), runnerCorpus(), Options{TopK: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := enricher.calls[0]
	if req.Objective != DefaultProfile.Objective || !reflect.DeepEqual(req.Skills, DefaultProfile.Skills) {
		t.Fatalf("expected default profile, got %+v", req)
	}
	if req.Context == "" {
		t.Fatalf("expected aggregated context")
	}
}

func TestRunnerEmptyCorpus(t *testing.T) {
	report, err := NewRunner(RunnerDeps{Enricher: &stubEnricher{}, Writer: &stubWriter{}}, -1).Run(context.Background(), &jobs.Jobs{}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Processed != 0 || report.Message != "No jobs with descriptions found" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Details == nil {
		t.Fatalf("expected empty, non-nil details")
	}
}

func TestRunnerWaitsBetweenAICalls(t *testing.T) {
	var events []string
	waitFor = func(_ context.Context, d time.Duration) error {
		events = append(events, "wait "+d.String())
		return nil
	}
	t.Cleanup(func() { waitFor = utils.WaitFor })

	enricher := &stubEnricher{onCall: func(company string) { events = append(events, "call "+company) }}
	locker := &stubLocker{held: map[string]bool{"acme": true}}
	runner := NewRunner(RunnerDeps{Enricher: enricher, Writer: &stubWriter{}, Locker: locker}, 3*time.Second)

	if _, err := runner.Run(context.Background(), runnerCorpus(), Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 3 || events[1] != "wait 3s" {
		t.Fatalf("expected a single wait between two AI calls, got %v", events)
	}
	calls := []string{events[0], events[2]}
	sort.Strings(calls)
	if !reflect.DeepEqual(calls, []string{"call Beta", "call Gamma"}) {
		t.Fatalf("expected only unlocked companies to be called, got %v", events)
	}
}
