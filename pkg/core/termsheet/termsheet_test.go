package termsheet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"deal_valuation/pkg/core/offer"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleTerms(price string) Terms {
	return Terms{PurchasePrice: decimal.RequireFromString(price), Structure: offer.StructureStockPurchase}
}

func newService() *Service {
	now := t0
	return NewService(NewMemoryStore(), nil, nil).WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	})
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusUnderReview, true},
		{StatusDraft, StatusApproved, false},
		{StatusDraft, StatusSigned, false},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRevisionRequested, true},
		{StatusRevisionRequested, StatusDraft, true},
		{StatusApproved, StatusSent, true},
		{StatusApproved, StatusSigned, false},
		{StatusSent, StatusNegotiating, true},
		{StatusNegotiating, StatusSigned, true},
		{StatusSigned, StatusDraft, false},
		{StatusWithdrawn, StatusDraft, false},
		{StatusExpired, StatusSent, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.ok, got)
		}
	}

	for _, s := range []Status{StatusSigned, StatusExpired, StatusWithdrawn} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatusDraft.Terminal() {
		t.Error("draft is not terminal")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("UNDER_REVIEW"); err != nil || s != StatusUnderReview {
		t.Errorf("unexpected %v %v", s, err)
	}
	if _, err := ParseStatus("LOST"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestTermSheet_HappyPathRecordsHistory(t *testing.T) {
	ts, err := New("ts-1", "acme", "Acme LOI", "alice", sampleTerms("6500000"), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := []Status{StatusUnderReview, StatusApproved, StatusSent, StatusNegotiating, StatusSigned}
	for i, to := range path {
		if err := ts.Transition(to, "bob", "", t0.Add(time.Duration(i+1)*time.Hour)); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}
	if ts.Status != StatusSigned || len(ts.History) != len(path) {
		t.Fatalf("unexpected state %s with %d history entries", ts.Status, len(ts.History))
	}
	if h := ts.History[0]; h.From != StatusDraft || h.To != StatusUnderReview || h.Actor != "bob" {
		t.Errorf("unexpected first history entry %+v", h)
	}
}

func TestTermSheet_InvalidJumpRejected(t *testing.T) {
	ts, _ := New("ts-1", "acme", "Acme LOI", "alice", sampleTerms("100"), t0)
	err := ts.Transition(StatusApproved, "mallory", "skip review", t0)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if ts.Status != StatusDraft || len(ts.History) != 0 {
		t.Error("rejected transition must not change state")
	}
	if err := ts.Transition("BOGUS", "x", "", t0); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestTermSheet_RevisionsAreAppendOnly(t *testing.T) {
	ts, _ := New("ts-1", "acme", "Acme LOI", "alice", sampleTerms("100"), t0)
	v2, err := ts.Revise(sampleTerms("110"), "alice", "price bump", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v2.Number != 2 || len(ts.Versions) != 2 {
		t.Fatalf("expected version 2, got %d (%d versions)", v2.Number, len(ts.Versions))
	}
	if !ts.Versions[0].Terms.PurchasePrice.Equal(decimal.NewFromInt(100)) {
		t.Error("version 1 must be preserved")
	}
	if !ts.Current().Terms.PurchasePrice.Equal(decimal.NewFromInt(110)) {
		t.Error("current should be the latest version")
	}

	_ = ts.Transition(StatusUnderReview, "bob", "", t0)
	if _, err := ts.Revise(sampleTerms("120"), "alice", "", t0); !errors.Is(err, ErrNotEditable) {
		t.Errorf("expected ErrNotEditable under review, got %v", err)
	}
}

func TestTerms_ValidateFunding(t *testing.T) {
	terms := sampleTerms("100")
	terms.Funding = []offer.FundingComponent{
		{Source: offer.SourceCash, Amount: decimal.NewFromInt(60)},
		{Source: offer.SourceSeniorDebt, Amount: decimal.NewFromInt(30)},
	}
	if err := terms.Validate(); !errors.Is(err, offer.ErrFundingMismatch) {
		t.Errorf("expected ErrFundingMismatch, got %v", err)
	}
	if err := sampleTerms("0").Validate(); !errors.Is(err, ErrInvalidTerms) {
		t.Errorf("zero price should fail with ErrInvalidTerms, got %v", err)
	}
}

func TestTermsFromScenario(t *testing.T) {
	tpl := offer.DefaultTemplates()[0]
	sc, err := offer.BuildScenario(tpl, offer.NewRange(5_000_000, 10_000_000), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	terms := TermsFromScenario(sc)
	if err := terms.Validate(); err != nil {
		t.Errorf("terms from a valid scenario should validate: %v", err)
	}
	if len(terms.Funding) != 2 || terms.Structure != offer.StructureAssetPurchase {
		t.Errorf("unexpected terms %+v", terms)
	}
}

func TestDocumentTransitions(t *testing.T) {
	d := NewDocument("d1", "ts-1", "spa.pdf", t0)
	if err := d.Transition(DocumentApproved, "bob", t0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("uploaded -> approved should be rejected, got %v", err)
	}
	for _, to := range []DocumentStatus{DocumentProcessing, DocumentInReview, DocumentApproved, DocumentArchived} {
		if err := d.Transition(to, "bob", t0); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}
	if len(d.History) != 4 || d.Status != DocumentArchived {
		t.Errorf("unexpected document state %s / %d", d.Status, len(d.History))
	}
}

func TestService_Workflow(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	ts, err := svc.Create(ctx, CreateRequest{CompanyID: "acme", Title: "LOI", Author: "alice", Terms: sampleTerms("100")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ts.Revision != 1 {
		t.Errorf("expected revision 1 after create, got %d", ts.Revision)
	}

	if _, err := svc.Transition(ctx, ts.ID, StatusApproved, "bob", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	stored, _ := svc.Get(ctx, ts.ID)
	if stored.Status != StatusDraft || stored.Revision != 1 {
		t.Error("rejected transition must not be persisted")
	}

	if _, err := svc.Revise(ctx, ts.ID, sampleTerms("105"), "alice", "v2"); err != nil {
		t.Fatalf("revise: %v", err)
	}
	got, err := svc.Transition(ctx, ts.ID, StatusUnderReview, "bob", "ready")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != StatusUnderReview || len(got.Versions) != 2 || got.Revision != 3 {
		t.Errorf("unexpected sheet %+v", got)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Documents(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	ts, err := svc.Create(ctx, CreateRequest{CompanyID: "acme", Title: "LOI", Author: "alice", Terms: sampleTerms("100")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, doc, err := svc.AddDocument(ctx, ts.ID, "spa.pdf", "alice")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	if doc.Status != DocumentUploaded || doc.TermSheetID != ts.ID || len(updated.Documents) != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}

	if _, err := svc.TransitionDocument(ctx, ts.ID, doc.ID, DocumentApproved, "bob"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("uploaded -> approved should be rejected, got %v", err)
	}
	moved, err := svc.TransitionDocument(ctx, ts.ID, doc.ID, DocumentProcessing, "bob")
	if err != nil {
		t.Fatalf("transition document: %v", err)
	}
	if moved.Status != DocumentProcessing || len(moved.History) != 1 {
		t.Errorf("unexpected document state %s / %d", moved.Status, len(moved.History))
	}

	stored, _ := svc.Get(ctx, ts.ID)
	got, err := stored.Document(doc.ID)
	if err != nil {
		t.Fatalf("stored document: %v", err)
	}
	if got.Status != DocumentProcessing || stored.Revision != 3 {
		t.Errorf("expected persisted PROCESSING at revision 3, got %s at %d", got.Status, stored.Revision)
	}

	if _, err := svc.TransitionDocument(ctx, ts.ID, "missing", DocumentProcessing, "bob"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if _, _, err := svc.AddDocument(ctx, "missing", "spa.pdf", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClone_CopiesDocumentHistory(t *testing.T) {
	ts, _ := New("ts-1", "acme", "LOI", "alice", sampleTerms("100"), t0)
	ts.Attach(NewDocument("d1", ts.ID, "spa.pdf", t0))
	c := ts.Clone()
	d, _ := c.Document("d1")
	if err := d.Transition(DocumentProcessing, "bob", t0); err != nil {
		t.Fatal(err)
	}
	orig, _ := ts.Document("d1")
	if orig.Status != DocumentUploaded || len(orig.History) != 0 {
		t.Error("clone must not share documents with the original")
	}
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ts, _ := New("ts-1", "acme", "LOI", "alice", sampleTerms("100"), t0)
	if err := store.Save(ctx, ts, 0); err != nil {
		t.Fatal(err)
	}

	a, _ := store.Get(ctx, "ts-1")
	b, _ := store.Get(ctx, "ts-1")
	if err := store.Save(ctx, a, a.Revision); err != nil {
		t.Fatalf("first writer should win: %v", err)
	}
	if err := store.Save(ctx, b, b.Revision); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("second writer should conflict, got %v", err)
	}
}

func TestService_ExpireStale(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	past := t0.Add(-24 * time.Hour)
	terms := sampleTerms("100")
	terms.ExpiresAt = &past

	ts, _ := svc.Create(ctx, CreateRequest{CompanyID: "acme", Title: "LOI", Author: "alice", Terms: terms})
	for _, to := range []Status{StatusUnderReview, StatusApproved, StatusSent} {
		if _, err := svc.Transition(ctx, ts.ID, to, "bob", ""); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}
	// A draft with the same expiry is not eligible
	_, _ = svc.Create(ctx, CreateRequest{CompanyID: "acme", Title: "LOI 2", Author: "alice", Terms: terms})

	n, err := svc.ExpireStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 expired, got %d (%v)", n, err)
	}
	got, _ := svc.Get(ctx, ts.ID)
	if got.Status != StatusExpired {
		t.Errorf("expected EXPIRED, got %s", got.Status)
	}
}

func TestService_ListByCompany(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	for _, company := range []string{"acme", "northwind", "acme"} {
		if _, err := svc.Create(ctx, CreateRequest{CompanyID: company, Title: "LOI", Author: "alice", Terms: sampleTerms("100")}); err != nil {
			t.Fatal(err)
		}
	}
	all, _ := svc.List(ctx, "")
	acme, _ := svc.List(ctx, "acme")
	if len(all) != 3 || len(acme) != 2 {
		t.Errorf("expected 3 sheets with 2 for acme, got %d / %d", len(all), len(acme))
	}
	if !acme[0].CreatedAt.Before(acme[1].CreatedAt) {
		t.Error("list should be oldest first")
	}
}
