package termsheet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/metrics"
)

// Store persists term sheets. Save must fail with ErrVersionConflict when the
// stored revision differs from expected, and bump the revision on success.
type Store interface {
	Get(ctx context.Context, id string) (*TermSheet, error)
	Save(ctx context.Context, ts *TermSheet, expected int64) error
	List(ctx context.Context) ([]*TermSheet, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string]*TermSheet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string]*TermSheet)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*TermSheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.sheets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ts.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, ts *TermSheet, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sheets[ts.ID]
	if ok && current.Revision != expected {
		return fmt.Errorf("%w: %s at revision %d, expected %d", ErrVersionConflict, ts.ID, current.Revision, expected)
	}
	if !ok && expected != 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ts.ID)
	}
	ts.Revision = expected + 1
	m.sheets[ts.ID] = ts.Clone()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*TermSheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TermSheet, 0, len(m.sheets))
	for _, ts := range m.sheets {
		out = append(out, ts.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateRequest opens a new term sheet.
type CreateRequest struct {
	CompanyID    string `json:"company_id" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Author       string `json:"author" validate:"required"`
	OfferStackID string `json:"offer_stack_id,omitempty"`
	ScenarioID   string `json:"scenario_id,omitempty"`
	Terms        Terms  `json:"terms"`
}

// Service applies workflow rules on top of a Store.
type Service struct {
	store   Store
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

func NewService(store Store, logger *log.Logger, m *metrics.Metrics) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Service{
		store:   store,
		logger:  logging.Component(logger, "termsheet"),
		metrics: m,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*TermSheet, error) {
	ts, err := New(s.newID(), req.CompanyID, req.Title, req.Author, req.Terms, s.now())
	if err != nil {
		return nil, err
	}
	ts.OfferStackID, ts.ScenarioID = req.OfferStackID, req.ScenarioID
	if err := s.store.Save(ctx, ts, 0); err != nil {
		return nil, err
	}
	s.logger.Info().Str("id", ts.ID).Str("company_id", ts.CompanyID).Msg("term sheet created")
	return ts, nil
}

func (s *Service) Get(ctx context.Context, id string) (*TermSheet, error) {
	return s.store.Get(ctx, id)
}

// List returns every term sheet, oldest first, optionally filtered by company.
func (s *Service) List(ctx context.Context, companyID string) ([]*TermSheet, error) {
	all, err := s.store.List(ctx)
	if err != nil || companyID == "" {
		return all, err
	}
	out := all[:0]
	for _, ts := range all {
		if ts.CompanyID == companyID {
			out = append(out, ts)
		}
	}
	return out, nil
}

// Transition applies a status change. Rejected moves leave the stored sheet untouched.
func (s *Service) Transition(ctx context.Context, id string, to Status, actor, comment string) (*TermSheet, error) {
	ts, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := ts.Status
	expected := ts.Revision

	err = ts.Transition(to, actor, comment, s.now())
	s.metrics.TermSheetTransition(string(to), err)
	if err != nil {
		s.logger.Warn().Str("id", id).Str("from", string(from)).Str("to", string(to)).Err(err).Msg("transition rejected")
		return nil, err
	}
	if err := s.store.Save(ctx, ts, expected); err != nil {
		return nil, err
	}
	s.logger.Info().Str("id", id).Str("from", string(from)).Str("to", string(to)).Str("actor", actor).Msg("term sheet transitioned")
	return ts, nil
}

// Revise appends a new version of the terms.
func (s *Service) Revise(ctx context.Context, id string, terms Terms, author, summary string) (*TermSheet, error) {
	ts, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := ts.Revision
	v, err := ts.Revise(terms, author, summary, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, ts, expected); err != nil {
		return nil, err
	}
	s.logger.Info().Str("id", id).Int("version", v.Number).Str("author", author).Msg("term sheet revised")
	return ts, nil
}

// AddDocument attaches an uploaded document to the sheet.
func (s *Service) AddDocument(ctx context.Context, id, name, actor string) (*TermSheet, *Document, error) {
	ts, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	expected := ts.Revision
	doc := NewDocument(s.newID(), ts.ID, name, s.now())
	ts.Attach(doc)
	if err := s.store.Save(ctx, ts, expected); err != nil {
		return nil, nil, err
	}
	s.logger.Info().Str("id", id).Str("document_id", doc.ID).Str("name", name).Str("actor", actor).Msg("document attached")
	return ts, doc, nil
}

// TransitionDocument moves one attached document along its workflow.
func (s *Service) TransitionDocument(ctx context.Context, id, docID string, to DocumentStatus, actor string) (*Document, error) {
	ts, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := ts.Revision
	doc, err := ts.Document(docID)
	if err != nil {
		return nil, err
	}
	from := doc.Status
	if err := doc.Transition(to, actor, s.now()); err != nil {
		s.logger.Warn().Str("id", id).Str("document_id", docID).Str("from", string(from)).Str("to", string(to)).Err(err).Msg("document transition rejected")
		return nil, err
	}
	ts.UpdatedAt = doc.UpdatedAt
	out := *doc
	out.History = append([]DocumentTransition(nil), doc.History...)
	if err := s.store.Save(ctx, ts, expected); err != nil {
		return nil, err
	}
	s.logger.Info().Str("id", id).Str("document_id", docID).Str("from", string(from)).Str("to", string(to)).Str("actor", actor).Msg("document transitioned")
	return &out, nil
}

// ExpireStale moves sent or negotiating sheets past their expiry to EXPIRED.
// It returns the number expired; concurrent edits are skipped, not retried.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	sheets, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, ts := range sheets {
		if !ts.Status.CanTransition(StatusExpired) || !ts.Expired(now) {
			continue
		}
		if _, err := s.Transition(ctx, ts.ID, StatusExpired, "system", "offer lapsed"); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("expired stale term sheets")
	}
	return n, nil
}
