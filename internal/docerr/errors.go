// Package docerr defines the failures the document engine reports to its callers.
//
// Every error type unwraps to a sentinel so callers can branch with errors.Is and
// still reach the details with errors.As.
package docerr

import (
	"errors"
	"fmt"

	"sme-docengine/internal/models"
)

var (
	// ErrNotFound is returned when a document id is unknown for the tenant.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidTransition is returned when the workflow does not allow the requested status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidLineItem is returned for negative amounts or an out-of-range discount.
	ErrInvalidLineItem = errors.New("invalid line item")

	// ErrNumberingConflict is returned when a document number is already taken.
	ErrNumberingConflict = errors.New("document number conflict")

	// ErrStaleVersion is returned when a document changed after it was loaded.
	ErrStaleVersion = errors.New("document was modified concurrently")

	// ErrDocumentLocked is returned when editing a document that left DRAFT.
	ErrDocumentLocked = errors.New("document is not editable")

	// ErrDeletionForbidden is returned when deleting an approved or converted document.
	ErrDeletionForbidden = errors.New("document cannot be deleted")

	// ErrUnsupportedConversion is returned when the source kind cannot become an invoice.
	ErrUnsupportedConversion = errors.New("document kind cannot be converted")
)

// NotFoundError names the missing document.
type NotFoundError struct {
	TenantID uint
	Kind     models.Kind
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found for tenant %d", e.Kind, e.ID, e.TenantID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError names the current and the requested state.
type InvalidTransitionError struct {
	Action    string
	Current   models.Status
	Requested models.Status
}

func (e *InvalidTransitionError) Error() string {
	if e.Requested == "" {
		return fmt.Sprintf("invalid status transition: %s is not allowed from %s", e.Action, e.Current)
	}
	return fmt.Sprintf("invalid status transition: %s -> %s (%s)", e.Current, e.Requested, e.Action)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InvalidLineItemError describes the rejected input. Line is 1-based; 0 refers to the document header.
type InvalidLineItemError struct {
	Line   int
	Field  string
	Value  interface{}
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("invalid line item: header field '%s': %s (value: %v)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("invalid line item: line %d field '%s': %s (value: %v)", e.Line, e.Field, e.Reason, e.Value)
}

func (e *InvalidLineItemError) Unwrap() error { return ErrInvalidLineItem }

// NumberingConflictError carries the number that collided.
type NumberingConflictError struct {
	TenantID uint
	Kind     models.Kind
	Number   string
	Err      error
}

func (e *NumberingConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document number conflict: %s %s for tenant %d: %v", e.Kind, e.Number, e.TenantID, e.Err)
	}
	return fmt.Sprintf("document number conflict: %s %s for tenant %d", e.Kind, e.Number, e.TenantID)
}

func (e *NumberingConflictError) Unwrap() error { return ErrNumberingConflict }

// StaleVersionError reports an optimistic concurrency failure.
type StaleVersionError struct {
	ID       uint
	Expected uint
	Actual   uint
}

func (e *StaleVersionError) Error() string {
	if e.Actual == 0 {
		return fmt.Sprintf("document %d was modified concurrently (expected version %d)", e.ID, e.Expected)
	}
	return fmt.Sprintf("document %d was modified concurrently (expected version %d, found %d)", e.ID, e.Expected, e.Actual)
}

func (e *StaleVersionError) Unwrap() error { return ErrStaleVersion }

// DocumentLockedError reports an edit attempt outside DRAFT.
type DocumentLockedError struct {
	ID     uint
	Status models.Status
}

func (e *DocumentLockedError) Error() string {
	return fmt.Sprintf("document %d is %s; only DRAFT documents can be edited", e.ID, e.Status)
}

func (e *DocumentLockedError) Unwrap() error { return ErrDocumentLocked }

// DeletionForbiddenError reports a delete attempt the deletion policy rejects.
type DeletionForbiddenError struct {
	ID     uint
	Status models.Status
}

func (e *DeletionForbiddenError) Error() string {
	return fmt.Sprintf("document %d is %s and cannot be deleted", e.ID, e.Status)
}

func (e *DeletionForbiddenError) Unwrap() error { return ErrDeletionForbidden }

// UnsupportedConversionError names the kind that cannot be converted.
type UnsupportedConversionError struct {
	Kind models.Kind
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("%s documents cannot be converted to an invoice", e.Kind)
}

func (e *UnsupportedConversionError) Unwrap() error { return ErrUnsupportedConversion }
