package service

import (
	"errors"
	"fmt"

	"github.com/nurpe/subcontract-billing/internal/billing"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrIntegrity    = errors.New("integrity error")
	ErrDependency   = errors.New("dependency failure")

	ErrAlreadySigned = fmt.Errorf("%w: already signed", ErrConflict)
	ErrSlotsFilled   = fmt.Errorf("%w: all contractor slots are filled", ErrConflict)
	ErrPeriodBilled  = fmt.Errorf("%w: party already has an invoice for this billing period", ErrConflict)
)

type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindForbidden    Kind = "Forbidden"
	KindInvalidState Kind = "InvalidState"
	KindConflict     Kind = "Conflict"
	KindValidation   Kind = "ValidationError"
	KindIntegrity    Kind = "IntegrityError"
	KindDependency   Kind = "DependencyFailure"
	KindInternal     Kind = "Internal"
)

// KindOf resolves the error kind of err.
func KindOf(err error) Kind {
	var integrity *billing.IntegrityError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrIntegrity), errors.As(err, &integrity):
		return KindIntegrity
	case errors.Is(err, ErrDependency):
		return KindDependency
	default:
		return KindInternal
	}
}

// Code is a stable machine readable code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySigned):
		return "ALREADY_SIGNED"
	case errors.Is(err, ErrSlotsFilled):
		return "SLOTS_FILLED"
	case errors.Is(err, ErrPeriodBilled):
		return "PERIOD_ALREADY_INVOICED"
	}
	switch KindOf(err) {
	case KindNotFound:
		return "NOT_FOUND"
	case KindForbidden:
		return "FORBIDDEN"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindConflict:
		return "CONFLICT"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindIntegrity:
		return "INTEGRITY_ERROR"
	case KindDependency:
		return "DEPENDENCY_FAILURE"
	default:
		return "INTERNAL"
	}
}

// translate maps store errors onto service kinds.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case repository.IsDuplicate(err):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	default:
		return err
	}
}
