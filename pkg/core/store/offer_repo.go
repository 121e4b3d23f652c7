package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deal_valuation/pkg/core/offer"
)

// OfferRepo stores generated offer stacks.
type OfferRepo struct {
	pool  *pgxpool.Pool
	files *fileStore
}

func NewOfferRepo(pool *pgxpool.Pool, dir string) (*OfferRepo, error) {
	r := &OfferRepo{pool: pool}
	if pool == nil {
		fs, err := newFileStore(filepath.Join(dir, "offer_stacks"))
		if err != nil {
			return nil, err
		}
		r.files = fs
	}
	return r, nil
}

func (r *OfferRepo) Save(ctx context.Context, stack *offer.OfferStack) error {
	if r.pool == nil {
		r.files.mu.Lock()
		defer r.files.mu.Unlock()
		return r.files.put(stack.ID, stack)
	}
	data, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("failed to marshal offer stack: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO offer_stacks (id, company_id, valuation_id, data, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		stack.ID, stack.CompanyID, stack.ValuationID, data, stack.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save offer stack: %w", err)
	}
	return nil
}

func (r *OfferRepo) Get(ctx context.Context, id string) (*offer.OfferStack, error) {
	var stack offer.OfferStack
	if r.pool == nil {
		r.files.mu.RLock()
		defer r.files.mu.RUnlock()
		if err := r.files.get(id, &stack); err != nil {
			return nil, err
		}
		return &stack, nil
	}
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM offer_stacks WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: offer stack %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load offer stack: %w", err)
	}
	if err := json.Unmarshal(data, &stack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offer stack: %w", err)
	}
	return &stack, nil
}
