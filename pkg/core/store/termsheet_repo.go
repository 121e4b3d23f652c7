package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"deal_valuation/pkg/core/termsheet"
)

// TermSheetRepo implements termsheet.Store with optimistic revision checks.
type TermSheetRepo struct {
	pool  *pgxpool.Pool
	files *fileStore
}

var _ termsheet.Store = (*TermSheetRepo)(nil)

func NewTermSheetRepo(pool *pgxpool.Pool, dir string) (*TermSheetRepo, error) {
	r := &TermSheetRepo{pool: pool}
	if pool == nil {
		fs, err := newFileStore(filepath.Join(dir, "term_sheets"))
		if err != nil {
			return nil, err
		}
		r.files = fs
	}
	return r, nil
}

func (r *TermSheetRepo) Get(ctx context.Context, id string) (*termsheet.TermSheet, error) {
	if r.pool == nil {
		r.files.mu.RLock()
		defer r.files.mu.RUnlock()
		return r.fileGet(id)
	}
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM term_sheets WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", termsheet.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load term sheet: %w", err)
	}
	var ts termsheet.TermSheet
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal term sheet: %w", err)
	}
	return &ts, nil
}

func (r *TermSheetRepo) fileGet(id string) (*termsheet.TermSheet, error) {
	var ts termsheet.TermSheet
	if err := r.files.get(id, &ts); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", termsheet.ErrNotFound, id)
		}
		return nil, err
	}
	return &ts, nil
}

// Save writes ts if the stored revision equals expected (0 for a new sheet)
// and sets ts.Revision to expected+1.
func (r *TermSheetRepo) Save(ctx context.Context, ts *termsheet.TermSheet, expected int64) error {
	if r.pool == nil {
		return r.fileSave(ts, expected)
	}

	next := *ts
	next.Revision = expected + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal term sheet: %w", err)
	}

	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = r.pool.Exec(ctx, `
			INSERT INTO term_sheets (id, company_id, status, revision, data, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			ts.ID, ts.CompanyID, string(ts.Status), next.Revision, data, ts.CreatedAt, ts.UpdatedAt)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE term_sheets
			SET status = $2, revision = $3, data = $4, updated_at = $5
			WHERE id = $1 AND revision = $6`,
			ts.ID, string(ts.Status), next.Revision, data, ts.UpdatedAt, expected)
	}
	if err != nil {
		return fmt.Errorf("failed to save term sheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if expected != 0 {
			if _, gerr := r.Get(ctx, ts.ID); errors.Is(gerr, termsheet.ErrNotFound) {
				return gerr
			}
		}
		return fmt.Errorf("%w: %s expected revision %d", termsheet.ErrVersionConflict, ts.ID, expected)
	}
	ts.Revision = next.Revision
	return nil
}

func (r *TermSheetRepo) fileSave(ts *termsheet.TermSheet, expected int64) error {
	r.files.mu.Lock()
	defer r.files.mu.Unlock()

	current, err := r.fileGet(ts.ID)
	switch {
	case errors.Is(err, termsheet.ErrNotFound):
		if expected != 0 {
			return err
		}
	case err != nil:
		return err
	case current.Revision != expected:
		return fmt.Errorf("%w: %s at revision %d, expected %d", termsheet.ErrVersionConflict, ts.ID, current.Revision, expected)
	}

	next := *ts
	next.Revision = expected + 1
	if err := r.files.put(ts.ID, &next); err != nil {
		return err
	}
	ts.Revision = next.Revision
	return nil
}

// List returns every term sheet, oldest first.
func (r *TermSheetRepo) List(ctx context.Context) ([]*termsheet.TermSheet, error) {
	var out []*termsheet.TermSheet
	if r.pool == nil {
		r.files.mu.RLock()
		defer r.files.mu.RUnlock()
		err := r.files.each(
			func() interface{} { return &termsheet.TermSheet{} },
			func(v interface{}) { out = append(out, v.(*termsheet.TermSheet)) })
		if err != nil {
			return nil, err
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT data FROM term_sheets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list term sheets: %w", err)
	}
	datas, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read term sheets: %w", err)
	}
	for _, d := range datas {
		var ts termsheet.TermSheet
		if err := json.Unmarshal(d, &ts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal term sheet: %w", err)
		}
		out = append(out, &ts)
	}
	return out, nil
}
