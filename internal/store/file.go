package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spigell/jobmatch/internal/jobs"
	"github.com/spigell/jobmatch/internal/matching"
)

// File is a job store kept as a JSON array of row objects on disk.
type File struct {
	path string
	mu   sync.RWMutex
}

func NewFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("jobs file path is required")
	}
	return &File{path: path}, nil
}

func (f *File) FetchPage(ctx context.Context, offset, limit int, requireDescription bool) ([]map[string]any, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("invalid page offset=%d limit=%d", offset, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	rows, err := f.read()
	f.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if requireDescription {
		kept := rows[:0]
		for _, row := range rows {
			if s, ok := row[jobs.FieldDescription].(string); ok && strings.TrimSpace(s) != "" {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if offset >= len(rows) {
		return []map[string]any{}, nil
	}
	end := min(len(rows), offset+limit)
	return rows[offset:end], nil
}

func (f *File) UpdateJobs(ctx context.Context, externalIDs []string, update EnrichmentUpdate) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	wanted := make(map[string]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		wanted[id] = struct{}{}
	}

	roles := update.SuggestedOutreachRoles
	if roles == nil {
		roles = []string{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	rows, err := f.read()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, row := range rows {
		if _, ok := wanted[fmt.Sprint(row[jobs.FieldExternalID])]; !ok {
			continue
		}
		row[jobs.FieldSuggested] = roles
		row[jobs.FieldEnrichment] = update.Enrichment
		for _, name := range update.fieldNames() {
			row[name] = update.Fields[name]
		}
		updated++
	}

	if updated == 0 {
		return 0, nil
	}
	if err := f.write(rows); err != nil {
		return 0, err
	}
	return updated, nil
}

// Profile is not backed by the file store.
func (f *File) Profile(_ context.Context, userID string) (matching.Profile, error) {
	return matching.Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
}

func (f *File) read() ([]map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file %q: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []map[string]any{}, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode jobs file %q: %w", f.path, err)
	}
	return rows, nil
}

// write replaces the file atomically through a temp file in the same directory.
func (f *File) write(rows []map[string]any) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode jobs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp jobs file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp jobs file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp jobs file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace jobs file: %w", err)
	}
	return nil
}
