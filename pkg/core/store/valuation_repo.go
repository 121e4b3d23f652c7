package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deal_valuation/pkg/core/valuation"
)

// ValuationRepo stores comprehensive valuation runs.
type ValuationRepo struct {
	pool  *pgxpool.Pool
	files *fileStore
}

// NewValuationRepo uses pool when non-nil, otherwise JSON files under dir.
func NewValuationRepo(pool *pgxpool.Pool, dir string) (*ValuationRepo, error) {
	r := &ValuationRepo{pool: pool}
	if pool == nil {
		fs, err := newFileStore(filepath.Join(dir, "valuations"))
		if err != nil {
			return nil, err
		}
		r.files = fs
	}
	return r, nil
}

func (r *ValuationRepo) Save(ctx context.Context, cv *valuation.ComprehensiveValuation) error {
	if r.pool == nil {
		r.files.mu.Lock()
		defer r.files.mu.Unlock()
		return r.files.put(cv.ID, cv)
	}
	data, err := json.Marshal(cv)
	if err != nil {
		return fmt.Errorf("failed to marshal valuation: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO valuations (id, company_id, recommended, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			recommended = EXCLUDED.recommended,
			data = EXCLUDED.data`,
		cv.ID, cv.CompanyID, cv.Recommended, data, cv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save valuation: %w", err)
	}
	return nil
}

func (r *ValuationRepo) Get(ctx context.Context, id string) (*valuation.ComprehensiveValuation, error) {
	var cv valuation.ComprehensiveValuation
	if r.pool == nil {
		r.files.mu.RLock()
		defer r.files.mu.RUnlock()
		if err := r.files.get(id, &cv); err != nil {
			return nil, err
		}
		return &cv, nil
	}
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM valuations WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: valuation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load valuation: %w", err)
	}
	if err := json.Unmarshal(data, &cv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal valuation: %w", err)
	}
	return &cv, nil
}

// History lists a company's valuations, newest first. limit <= 0 means all.
func (r *ValuationRepo) History(ctx context.Context, companyID string, limit int) ([]*valuation.ComprehensiveValuation, error) {
	if r.pool == nil {
		return r.fileHistory(companyID, limit)
	}
	query := `SELECT data FROM valuations WHERE company_id = $1 ORDER BY created_at DESC`
	args := []interface{}{companyID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	datas, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	out := make([]*valuation.ComprehensiveValuation, 0, len(datas))
	for _, d := range datas {
		var cv valuation.ComprehensiveValuation
		if err := json.Unmarshal(d, &cv); err != nil {
			return nil, fmt.Errorf("failed to unmarshal valuation: %w", err)
		}
		out = append(out, &cv)
	}
	return out, nil
}

func (r *ValuationRepo) fileHistory(companyID string, limit int) ([]*valuation.ComprehensiveValuation, error) {
	r.files.mu.RLock()
	defer r.files.mu.RUnlock()
	var out []*valuation.ComprehensiveValuation
	err := r.files.each(
		func() interface{} { return &valuation.ComprehensiveValuation{} },
		func(v interface{}) {
			if cv := v.(*valuation.ComprehensiveValuation); cv.CompanyID == companyID {
				out = append(out, cv)
			}
		})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
