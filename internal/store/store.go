// Package store reads job records from the job store and writes enrichment
// results back to it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/matching"
)

const DefaultPageSize = 1000

// ErrProfileNotFound is returned when no profile exists for a user id.
var ErrProfileNotFound = errors.New("profile not found")

// EnrichmentUpdate is written to every addressed job. Fields holds extra
// columns set verbatim, keyed by column name.
type EnrichmentUpdate struct {
	SuggestedOutreachRoles []string
	Enrichment             map[string]any
	Fields                 map[string]any
}

func (u EnrichmentUpdate) fieldNames() []string {
	names := make([]string, 0, len(u.Fields))
	for name := range u.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reader returns raw job rows ordered by a stable key.
type Reader interface {
	FetchPage(ctx context.Context, offset, limit int, requireDescription bool) ([]map[string]any, error)
}

// Writer updates enrichment fields of the jobs addressed by external id.
type Writer interface {
	UpdateJobs(ctx context.Context, externalIDs []string, update EnrichmentUpdate) (int, error)
}

// Store is a job store supporting paginated reads and fan-out writes.
type Store interface {
	Reader
	Writer
}

// ProfileSource resolves stored candidate profiles.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (matching.Profile, error)
}

// FetchOptions tune FetchAll.
type FetchOptions struct {
	PageSize           int
	RequireDescription bool
}

// FetchAll reads every page until a short page is returned and decodes the
// rows. Rows that fail to decode are logged and skipped.
func FetchAll(ctx context.Context, r Reader, opts FetchOptions, log *zap.Logger) (*jobs.Jobs, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	all := &jobs.Jobs{}
	for offset := 0; ; offset += pageSize {
		rows, err := r.FetchPage(ctx, offset, pageSize, opts.RequireDescription)
		if err != nil {
			return nil, fmt.Errorf("fetch jobs at offset %d: %w", offset, err)
		}

		page, errs := jobs.DecodeRecords(rows)
		for _, err := range errs {
			fields := []zap.Field{zap.Error(err)}
			var decodeErr *jobs.DecodeError
			if errors.As(err, &decodeErr) {
				fields = append(fields, logger.JobID(decodeErr.ID))
			}
			log.Warn("skipping job row", fields...)
		}
		all.Items = append(all.Items, page.Items...)

		log.Debug("fetched jobs page",
			zap.Int("offset", offset),
			zap.Int("rows", len(rows)),
			zap.Int("decoded", page.Len()),
		)

		if len(rows) < pageSize {
			break
		}
	}

	return all, nil
}
