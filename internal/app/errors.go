package app

import (
	"errors"
	"fmt"

	"github.com/hylla/nexus/internal/domain"
)

// ErrNotFound and related errors describe lookup, authorization, and collaborator failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrStorage         = errors.New("storage failure")
	ErrUnavailable     = errors.New("collaborator unavailable")
)

// Validation errors raised by membership and configuration rules.
var (
	ErrOwnerRemoval      = fmt.Errorf("%w: cannot remove workspace owner", domain.ErrValidation)
	ErrLastOwner         = fmt.Errorf("%w: workspace must keep at least one owner", domain.ErrValidation)
	ErrInvalidDeleteMode = fmt.Errorf("%w: invalid delete mode", domain.ErrValidation)
	ErrFileTooLarge      = fmt.Errorf("%w: file exceeds upload limit", domain.ErrValidation)
)
