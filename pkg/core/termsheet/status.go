// Package termsheet tracks term sheets and deal documents through an explicit
// review workflow. Status changes are only possible along allowed edges.
package termsheet

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrNotFound          = errors.New("term sheet not found")
	ErrNotEditable       = errors.New("term sheet cannot be revised in its current status")
	ErrVersionConflict   = errors.New("term sheet was modified concurrently")
	ErrInvalidTerms      = errors.New("invalid terms")
	ErrDocumentNotFound  = errors.New("document not found")
)

// Status of a term sheet.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusUnderReview       Status = "UNDER_REVIEW"
	StatusRevisionRequested Status = "REVISION_REQUESTED"
	StatusApproved          Status = "APPROVED"
	StatusSent              Status = "SENT"
	StatusNegotiating       Status = "NEGOTIATING"
	StatusSigned            Status = "SIGNED"
	StatusExpired           Status = "EXPIRED"
	StatusWithdrawn         Status = "WITHDRAWN"
)

var termSheetTransitions = map[Status][]Status{
	StatusDraft:             {StatusUnderReview, StatusWithdrawn},
	StatusUnderReview:       {StatusApproved, StatusRevisionRequested, StatusWithdrawn},
	StatusRevisionRequested: {StatusDraft, StatusUnderReview, StatusWithdrawn},
	StatusApproved:          {StatusSent, StatusRevisionRequested, StatusWithdrawn},
	StatusSent:              {StatusNegotiating, StatusSigned, StatusExpired, StatusWithdrawn},
	StatusNegotiating:       {StatusRevisionRequested, StatusSigned, StatusExpired, StatusWithdrawn},
	StatusSigned:            {},
	StatusExpired:           {},
	StatusWithdrawn:         {},
}

// editable statuses accept a new version of the terms.
var editable = map[Status]bool{
	StatusDraft:             true,
	StatusRevisionRequested: true,
	StatusNegotiating:       true,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := termSheetTransitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// CanTransition reports whether from -> to is an allowed edge.
func (s Status) CanTransition(to Status) bool {
	return contains(termSheetTransitions[s], to)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	next, ok := termSheetTransitions[s]
	return ok && len(next) == 0
}

// Next lists allowed target statuses, sorted.
func (s Status) Next() []Status {
	out := append([]Status(nil), termSheetTransitions[s]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DocumentStatus of an uploaded deal document.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "UPLOADED"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentInReview   DocumentStatus = "IN_REVIEW"
	DocumentApproved   DocumentStatus = "APPROVED"
	DocumentRejected   DocumentStatus = "REJECTED"
	DocumentArchived   DocumentStatus = "ARCHIVED"
)

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentUploaded:   {DocumentProcessing, DocumentArchived},
	DocumentProcessing: {DocumentInReview, DocumentRejected},
	DocumentInReview:   {DocumentApproved, DocumentRejected},
	DocumentApproved:   {DocumentArchived},
	DocumentRejected:   {DocumentUploaded, DocumentArchived},
	DocumentArchived:   {},
}

// ParseDocumentStatus validates a document status string.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	st := DocumentStatus(s)
	if _, ok := documentTransitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// CanTransition reports whether from -> to is an allowed edge.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	return contains(documentTransitions[s], to)
}

func contains[T comparable](set []T, v T) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}
