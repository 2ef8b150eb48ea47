package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/matching"
)

const (
	defaultJobsTable     = "jobs"
	defaultProfilesTable = "profiles"
)

// querier is the subset of pgxpool.Pool used by the store.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresOptions names the tables the store works with.
type PostgresOptions struct {
	JobsTable     string
	ProfilesTable string
}

// Postgres is a job store backed by a Postgres table.
type Postgres struct {
	db            querier
	jobsTable     string
	profilesTable string
	builder       sq.StatementBuilderType
}

func NewPostgres(db querier, opts PostgresOptions) *Postgres {
	jobsTable := strings.TrimSpace(opts.JobsTable)
	if jobsTable == "" {
		jobsTable = defaultJobsTable
	}
	profilesTable := strings.TrimSpace(opts.ProfilesTable)
	if profilesTable == "" {
		profilesTable = defaultProfilesTable
	}

	return &Postgres{
		db:            db,
		jobsTable:     jobsTable,
		profilesTable: profilesTable,
		builder:       sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (p *Postgres) FetchPage(ctx context.Context, offset, limit int, requireDescription bool) ([]map[string]any, error) {
	query, args, err := p.pageQuery(offset, limit, requireDescription)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.jobsTable, err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.jobsTable, err)
	}
	return result, nil
}

func (p *Postgres) pageQuery(offset, limit int, requireDescription bool) (string, []any, error) {
	if offset < 0 || limit <= 0 {
		return "", nil, fmt.Errorf("invalid page offset=%d limit=%d", offset, limit)
	}

	q := p.builder.
		Select("*").
		From(p.jobsTable).
		OrderBy(jobs.FieldExternalID).
		Limit(uint64(limit)).
		Offset(uint64(offset))

	if requireDescription {
		q = q.Where(sq.And{
			sq.NotEq{jobs.FieldDescription: nil},
			sq.NotEq{jobs.FieldDescription: ""},
		})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build page query: %w", err)
	}
	return query, args, nil
}

func (p *Postgres) UpdateJobs(ctx context.Context, externalIDs []string, update EnrichmentUpdate) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}

	query, args, err := p.updateQuery(externalIDs, update)
	if err != nil {
		return 0, err
	}

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", p.jobsTable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) updateQuery(externalIDs []string, update EnrichmentUpdate) (string, []any, error) {
	roles := update.SuggestedOutreachRoles
	if roles == nil {
		roles = []string{}
	}

	q := p.builder.
		Update(p.jobsTable).
		Set(jobs.FieldSuggested, roles).
		Set(jobs.FieldEnrichment, update.Enrichment)
	for _, name := range update.fieldNames() {
		q = q.Set(name, update.Fields[name])
	}

	query, args, err := q.
		Where(sq.Eq{jobs.FieldExternalID: externalIDs}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update query: %w", err)
	}
	return query, args, nil
}

// Profile loads the skills and objective stored for userID. The objective is
// the desired position, falling back to the goal type.
func (p *Postgres) Profile(ctx context.Context, userID string) (matching.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return matching.Profile{}, ErrProfileNotFound
	}

	query, args, err := p.builder.
		Select("skills", "desired_position", "goal_type").
		From(p.profilesTable).
		Where(sq.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return matching.Profile{}, fmt.Errorf("build profile query: %w", err)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return matching.Profile{}, fmt.Errorf("query %s: %w", p.profilesTable, err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return matching.Profile{}, fmt.Errorf("scan %s: %w", p.profilesTable, err)
	}
	if len(found) == 0 {
		return matching.Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}

	return profileFromRow(userID, found[0]), nil
}

func profileFromRow(userID string, row map[string]any) matching.Profile {
	objective := ""
	for _, key := range []string{"desired_position", "goal_type"} {
		if s, ok := row[key].(string); ok && strings.TrimSpace(s) != "" {
			objective = strings.TrimSpace(s)
			break
		}
	}
	return matching.Profile{
		UserID:    userID,
		Skills:    jobs.AsList(row["skills"]),
		Objective: objective,
	}
}
