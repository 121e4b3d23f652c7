// Package financials supplies company snapshots to the valuation engine.
package financials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v2"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/valuation"
)

// ErrUnknownCompany is returned when no financials exist for a company.
var ErrUnknownCompany = errors.New("no financials for company")

var validate = validator.New()

// MemorySource holds snapshots in process.
type MemorySource struct {
	mu    sync.RWMutex
	snaps map[string]assumption.CompanySnapshot
}

var (
	_ valuation.SnapshotSource = (*MemorySource)(nil)
	_ valuation.SnapshotSource = (*PGSource)(nil)
)

func NewMemorySource(snaps ...assumption.CompanySnapshot) *MemorySource {
	m := &MemorySource{snaps: make(map[string]assumption.CompanySnapshot, len(snaps))}
	for _, s := range snaps {
		m.snaps[s.CompanyID] = s
	}
	return m
}

// Put validates and stores a snapshot.
func (m *MemorySource) Put(s assumption.CompanySnapshot) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.CompanyID] = s
	return nil
}

func (m *MemorySource) Snapshot(_ context.Context, companyID string) (assumption.CompanySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snaps[companyID]
	if !ok {
		return assumption.CompanySnapshot{}, fmt.Errorf("%w: %s", ErrUnknownCompany, companyID)
	}
	return s, nil
}

// LoadFile reads one snapshot or a list of snapshots from a JSON or YAML file.
func LoadFile(path string) ([]assumption.CompanySnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	unmarshal := json.Unmarshal
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		unmarshal = yaml.Unmarshal
	}

	var list []assumption.CompanySnapshot
	if err := unmarshal(data, &list); err != nil {
		var one assumption.CompanySnapshot
		if err2 := unmarshal(data, &one); err2 != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		list = []assumption.CompanySnapshot{one}
	}
	for i, s := range list {
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", path, i, err)
		}
	}
	return list, nil
}

// LoadDir loads every .yaml, .yml and .json file in dir into a MemorySource.
// A missing directory yields an empty source.
func LoadDir(dir string) (*MemorySource, error) {
	src := NewMemorySource()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return src, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		if e.IsDir() {
			continue
		}
		list, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		for _, s := range list {
			if err := src.Put(s); err != nil {
				return nil, err
			}
		}
	}
	return src, nil
}

// PGSource reads snapshots from the company_financials table.
type PGSource struct {
	pool *pgxpool.Pool
}

func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

func (p *PGSource) Snapshot(ctx context.Context, companyID string) (assumption.CompanySnapshot, error) {
	var snap assumption.CompanySnapshot
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM company_financials WHERE company_id = $1`, companyID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, fmt.Errorf("%w: %s", ErrUnknownCompany, companyID)
	}
	if err != nil {
		return snap, fmt.Errorf("failed to load financials: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal financials: %w", err)
	}
	if snap.CompanyID == "" {
		snap.CompanyID = companyID
	}
	return snap, nil
}

// Upsert stores a snapshot.
func (p *PGSource) Upsert(ctx context.Context, snap assumption.CompanySnapshot) error {
	if err := validate.Struct(snap); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO company_financials (company_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		snap.CompanyID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save financials: %w", err)
	}
	return nil
}

// Chain tries each source in order and returns the first hit.
type Chain []valuation.SnapshotSource

func (c Chain) Snapshot(ctx context.Context, companyID string) (assumption.CompanySnapshot, error) {
	for _, s := range c {
		snap, err := s.Snapshot(ctx, companyID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, ErrUnknownCompany) {
			return snap, err
		}
	}
	return assumption.CompanySnapshot{}, fmt.Errorf("%w: %s", ErrUnknownCompany, companyID)
}
