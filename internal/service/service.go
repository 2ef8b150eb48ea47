// Package service exposes the matching and enrichment use cases shared by the
// CLI, the HTTP API and the scheduler.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/enrichment"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/store"
)

const (
	DefaultMatchLimit   = 200
	DefaultCompanyLimit = 10
)

// ErrInvalidRequest marks caller mistakes.
var ErrInvalidRequest = errors.New("invalid request")

// Config tunes the service.
type Config struct {
	Filters      filtering.Config
	PageSize     int
	MatchLimit   int
	CompanyLimit int
	TopK         int
	JobLimit     int
	Version      int
}

// Deps are the collaborators of a Service. Profiles and Runner are optional.
type Deps struct {
	Jobs     store.Reader
	Profiles store.ProfileSource
	Scorer   *matching.Scorer
	Runner   *enrichment.Runner
	Logger   *zap.Logger
}

type Service struct {
	cfg      Config
	jobs     store.Reader
	profiles store.ProfileSource
	scorer   *matching.Scorer
	runner   *enrichment.Runner
	logger   *zap.Logger
}

func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if deps.Scorer == nil {
		deps.Scorer = matching.NewScorer(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MatchLimit <= 0 {
		cfg.MatchLimit = DefaultMatchLimit
	}
	if cfg.CompanyLimit <= 0 {
		cfg.CompanyLimit = DefaultCompanyLimit
	}
	if cfg.TopK <= 0 {
		cfg.TopK = enrichment.DefaultTopK
	}
	if cfg.JobLimit <= 0 {
		cfg.JobLimit = enrichment.DefaultJobLimit
	}
	if cfg.Version <= 0 {
		cfg.Version = enrichment.DefaultVersion
	}

	return &Service{
		cfg:      cfg,
		jobs:     deps.Jobs,
		profiles: deps.Profiles,
		scorer:   deps.Scorer,
		runner:   deps.Runner,
		logger:   deps.Logger,
	}, nil
}

// MatchRequest is the input of the matching use cases.
type MatchRequest struct {
	Profile     matching.Profile      `json:"user_profile"`
	Preferences *matching.Preferences `json:"preferences"`
}

// MatchResponse lists the best scored jobs.
type MatchResponse struct {
	Success bool `json:"success"`
	matching.Ranking
	Message string `json:"message"`
}

// CompanyResponse lists the best companies.
type CompanyResponse struct {
	Success        bool                        `json:"success"`
	TotalCompanies int                         `json:"total_companies"`
	TotalJobs      int                         `json:"total_jobs"`
	Companies      []matching.CompanyAggregate `json:"companies"`
}

// EnrichRequest is the input of a lazy enrichment run.
type EnrichRequest struct {
	UserID  string
	Profile matching.Profile
	TopK    int
	Force   bool
	DryRun  bool
}

// StructuredRequest is the input of a per-job structured enrichment run.
// Zero Limit and Version fall back to the configured values.
type StructuredRequest struct {
	Limit   int
	Force   bool
	Version int
	DryRun  bool
}

// Match scores the whole corpus against the candidate.
func (s *Service) Match(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	ranking, err := s.rank(ctx, req, func(profile matching.Profile, corpus *jobs.Jobs) matching.Ranking {
		return s.scorer.Rank(profile, corpus, req.Preferences, s.cfg.MatchLimit)
	})
	if err != nil {
		return nil, err
	}
	return &MatchResponse{Success: true, Ranking: ranking, Message: "Matching computed successfully."}, nil
}

// MatchByCompany scores the corpus and groups every match by company. Company
// fields come from its first job in store order.
func (s *Service) MatchByCompany(ctx context.Context, req MatchRequest) (*CompanyResponse, error) {
	ranking, err := s.rank(ctx, req, func(profile matching.Profile, corpus *jobs.Jobs) matching.Ranking {
		return s.scorer.Match(profile, corpus, req.Preferences)
	})
	if err != nil {
		return nil, err
	}

	all := matching.GroupByCompany(ranking.Results, 0)
	top := all
	if len(top) > s.cfg.CompanyLimit {
		top = top[:s.cfg.CompanyLimit]
	}
	return &CompanyResponse{
		Success:        true,
		TotalCompanies: len(all),
		TotalJobs:      len(ranking.Results),
		Companies:      top,
	}, nil
}

// EnrichLazy runs lazy enrichment for the candidate or the default profile.
func (s *Service) EnrichLazy(ctx context.Context, req EnrichRequest) (*enrichment.Report, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("enrichment is not configured")
	}

	profile, err := s.resolveProfile(ctx, req.UserID, req.Profile)
	if err != nil {
		return nil, err
	}
	if len(profile.Skills) == 0 && profile.Objective == "" {
		profile = enrichment.DefaultProfile
	}

	corpus, err := s.load(ctx, true, filtering.Enrichment(&s.cfg.Filters))
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	return s.runner.Run(ctx, corpus, enrichment.Options{
		TopK:    topK,
		Force:   req.Force,
		DryRun:  req.DryRun,
		Profile: profile,
	})
}

// EnrichStructured classifies described jobs one by one.
func (s *Service) EnrichStructured(ctx context.Context, req StructuredRequest) (*enrichment.JobReport, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("enrichment is not configured")
	}
	if req.Limit < 0 || req.Version < 0 {
		return nil, fmt.Errorf("%w: limit and version must not be negative", ErrInvalidRequest)
	}
	if req.Limit == 0 {
		req.Limit = s.cfg.JobLimit
	}
	if req.Version == 0 {
		req.Version = s.cfg.Version
	}

	corpus, err := s.load(ctx, true, filtering.Enrichment(&s.cfg.Filters))
	if err != nil {
		return nil, err
	}

	return s.runner.RunStructured(ctx, corpus, enrichment.StructuredOptions{
		Limit:   req.Limit,
		Force:   req.Force,
		Version: req.Version,
		DryRun:  req.DryRun,
	})
}

// rank resolves the profile and hands the filtered corpus to score.
func (s *Service) rank(ctx context.Context, req MatchRequest, score func(matching.Profile, *jobs.Jobs) matching.Ranking) (matching.Ranking, error) {
	profile, err := s.resolveProfile(ctx, req.Profile.UserID, req.Profile)
	if err != nil {
		return matching.Ranking{}, err
	}

	corpus, err := s.load(ctx, false, filtering.Scoring(&s.cfg.Filters))
	if err != nil {
		return matching.Ranking{}, err
	}

	ranking := score(profile, corpus)
	s.logger.Info("jobs ranked",
		zap.Int("total", ranking.Total),
		zap.Int("matched", ranking.Matched),
		zap.Int("filtered", ranking.Filtered),
	)
	return ranking, nil
}

func (s *Service) load(ctx context.Context, requireDescription bool, steps []filtering.Filter) (*jobs.Jobs, error) {
	corpus, err := store.FetchAll(ctx, s.jobs, store.FetchOptions{
		PageSize:           s.cfg.PageSize,
		RequireDescription: requireDescription,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("filter chain", zap.Any("steps", filtering.Describe(steps)))

	deps := filtering.Deps{Logger: s.logger, Skills: s.scorer}
	filters := s.cfg.Filters
	return filtering.Run(ctx, &filters, deps, steps, corpus)
}

// resolveProfile loads the stored profile when only a user id is given.
// Explicit profile fields win over stored ones.
func (s *Service) resolveProfile(ctx context.Context, userID string, explicit matching.Profile) (matching.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || len(explicit.Skills) > 0 || strings.TrimSpace(explicit.Objective) != "" {
		return explicit, nil
	}
	if s.profiles == nil {
		return matching.Profile{}, fmt.Errorf("%w: profile lookup by user id is not available", ErrInvalidRequest)
	}

	profile, err := s.profiles.Profile(ctx, userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		s.logger.Warn("profile not found, using defaults", zap.String("user_id", userID))
		return matching.Profile{UserID: userID}, nil
	}
	if err != nil {
		return matching.Profile{}, fmt.Errorf("load profile %q: %w", userID, err)
	}
	return profile, nil
}
