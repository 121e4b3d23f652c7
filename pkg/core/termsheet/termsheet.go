package termsheet

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"deal_valuation/pkg/core/offer"
)

// Terms is the commercial content of one term sheet version.
type Terms struct {
	PurchasePrice     decimal.Decimal          `json:"purchase_price"`
	Structure         offer.DealStructure      `json:"structure"`
	Funding           []offer.FundingComponent `json:"funding,omitempty"`
	ClosingConditions []string                 `json:"closing_conditions,omitempty"`
	ExclusivityDays   int                      `json:"exclusivity_days,omitempty"`
	ExpiresAt         *time.Time               `json:"expires_at,omitempty"`
	Notes             string                   `json:"notes,omitempty"`
}

// TermsFromScenario seeds terms from a generated offer scenario.
func TermsFromScenario(sc offer.OfferScenario) Terms {
	return Terms{
		PurchasePrice:     sc.PurchasePrice,
		Structure:         sc.Structure,
		Funding:           append([]offer.FundingComponent(nil), sc.Funding...),
		ClosingConditions: append([]string(nil), sc.ClosingConditions...),
		ExclusivityDays:   45,
	}
}

// Validate checks that any funding detail still matches the price.
func (t Terms) Validate() error {
	if !t.PurchasePrice.IsPositive() {
		return fmt.Errorf("%w: purchase price must be positive", ErrInvalidTerms)
	}
	if len(t.Funding) == 0 {
		return nil
	}
	return offer.OfferScenario{Name: "terms", PurchasePrice: t.PurchasePrice, Funding: t.Funding}.Validate()
}

// Version is an immutable snapshot of the terms.
type Version struct {
	Number    int       `json:"number"`
	Terms     Terms     `json:"terms"`
	Author    string    `json:"author"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Transition records one status change.
type Transition struct {
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	Actor   string    `json:"actor"`
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"at"`
}

// TermSheet is a versioned offer document moving through review.
// Revision increments on every change and guards concurrent writers.
type TermSheet struct {
	ID           string       `json:"id"`
	CompanyID    string       `json:"company_id"`
	Title        string       `json:"title"`
	OfferStackID string       `json:"offer_stack_id,omitempty"`
	ScenarioID   string       `json:"scenario_id,omitempty"`
	Status       Status       `json:"status"`
	Versions     []Version    `json:"versions"`
	History      []Transition `json:"history"`
	Documents    []Document   `json:"documents,omitempty"`
	Revision     int64        `json:"revision"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// New creates a draft with version 1.
func New(id, companyID, title, author string, terms Terms, now time.Time) (*TermSheet, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &TermSheet{
		ID:        id,
		CompanyID: companyID,
		Title:     title,
		Status:    StatusDraft,
		Versions: []Version{{
			Number:    1,
			Terms:     terms,
			Author:    author,
			Summary:   "Initial draft",
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Current returns the latest version.
func (t *TermSheet) Current() Version {
	if len(t.Versions) == 0 {
		return Version{}
	}
	return t.Versions[len(t.Versions)-1]
}

// Transition moves the sheet along an allowed edge and records who did it.
func (t *TermSheet) Transition(to Status, actor, comment string, now time.Time) error {
	if _, ok := termSheetTransitions[to]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	now = now.UTC()
	t.History = append(t.History, Transition{From: t.Status, To: to, Actor: actor, Comment: comment, At: now})
	t.Status = to
	t.UpdatedAt = now
	return nil
}

// Revise appends a new version. Only draft, revision-requested and negotiating
// sheets accept new terms; earlier versions are never modified.
func (t *TermSheet) Revise(terms Terms, author, summary string, now time.Time) (Version, error) {
	if !editable[t.Status] {
		return Version{}, fmt.Errorf("%w: %s", ErrNotEditable, t.Status)
	}
	if err := terms.Validate(); err != nil {
		return Version{}, err
	}
	now = now.UTC()
	v := Version{
		Number:    len(t.Versions) + 1,
		Terms:     terms,
		Author:    author,
		Summary:   summary,
		CreatedAt: now,
	}
	t.Versions = append(t.Versions, v)
	t.UpdatedAt = now
	return v, nil
}

// Expired reports whether the current terms lapsed before now.
func (t *TermSheet) Expired(now time.Time) bool {
	exp := t.Current().Terms.ExpiresAt
	return exp != nil && exp.Before(now)
}

// Clone deep-copies the sheet so stores never share slices with callers.
func (t *TermSheet) Clone() *TermSheet {
	c := *t
	c.Versions = append([]Version(nil), t.Versions...)
	c.History = append([]Transition(nil), t.History...)
	if t.Documents != nil {
		c.Documents = make([]Document, len(t.Documents))
		for i, d := range t.Documents {
			d.History = append([]DocumentTransition(nil), d.History...)
			c.Documents[i] = d
		}
	}
	return &c
}

// Document returns the attached document with the given id.
func (t *TermSheet) Document(id string) (*Document, error) {
	for i := range t.Documents {
		if t.Documents[i].ID == id {
			return &t.Documents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s on term sheet %s", ErrDocumentNotFound, id, t.ID)
}

// Attach registers a new document on the sheet.
func (t *TermSheet) Attach(d *Document) {
	t.Documents = append(t.Documents, *d)
	t.UpdatedAt = d.UpdatedAt
}

// Document is a deal document attached to a term sheet.
type Document struct {
	ID          string               `json:"id"`
	TermSheetID string               `json:"term_sheet_id"`
	Name        string               `json:"name"`
	Status      DocumentStatus       `json:"status"`
	History     []DocumentTransition `json:"history"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// DocumentTransition records one document status change.
type DocumentTransition struct {
	From  DocumentStatus `json:"from"`
	To    DocumentStatus `json:"to"`
	Actor string         `json:"actor"`
	At    time.Time      `json:"at"`
}

// NewDocument registers an uploaded document.
func NewDocument(id, termSheetID, name string, now time.Time) *Document {
	return &Document{ID: id, TermSheetID: termSheetID, Name: name, Status: DocumentUploaded, UpdatedAt: now.UTC()}
}

// Transition moves the document along an allowed edge.
func (d *Document) Transition(to DocumentStatus, actor string, now time.Time) error {
	if _, ok := documentTransitions[to]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !d.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	now = now.UTC()
	d.History = append(d.History, DocumentTransition{From: d.Status, To: to, Actor: actor, At: now})
	d.Status = to
	d.UpdatedAt = now
	return nil
}
