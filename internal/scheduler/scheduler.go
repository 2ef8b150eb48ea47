// Package scheduler periodically triggers lazy enrichment.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/enrichment"
	"github.com/spigell/jobmatch/internal/service"
)

const DefaultSpec = "@every 6h"

// Enricher runs one enrichment cycle.
type Enricher interface {
	EnrichLazy(ctx context.Context, req service.EnrichRequest) (*enrichment.Report, error)
}

// Scheduler wraps robfig/cron and manages the enrichment loop.
type Scheduler struct {
	cron     *cron.Cron
	enricher Enricher
	request  service.EnrichRequest
	spec     string
	logger   *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Scheduler firing on spec, an empty spec means DefaultSpec.
func New(enricher Enricher, spec string, request service.EnrichRequest, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		enricher: enricher,
		request:  request,
		spec:     spec,
		logger:   logger.With(zap.String("schedule", spec)),
	}
}

// Start registers the job and starts the scheduler. When immediate is set a
// first cycle runs right away without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context, immediate bool) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started")

	if immediate {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Tick(ctx)
		}()
	}
	return nil
}

// Stop halts the cron and waits for running cycles to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Tick runs one enrichment cycle unless the previous one is still running.
// It reports whether a cycle ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous enrichment cycle still running, skipping tick")
		return false
	}
	defer s.running.Store(false)

	s.logger.Info("enrichment cycle started")
	report, err := s.enricher.EnrichLazy(ctx, s.request)
	if err != nil {
		s.logger.Error("enrichment cycle failed", zap.Error(err))
		return true
	}

	s.logger.Info("enrichment cycle complete",
		zap.String("run_id", report.RunID),
		zap.Int("enriched", report.Enriched),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return true
}
