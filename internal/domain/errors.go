package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the category every input/integrity rejection wraps.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidID              = fmt.Errorf("%w: invalid id", ErrValidation)
	ErrInvalidName            = fmt.Errorf("%w: invalid name", ErrValidation)
	ErrInvalidSlug            = fmt.Errorf("%w: invalid slug", ErrValidation)
	ErrInvalidEmail           = fmt.Errorf("%w: invalid email", ErrValidation)
	ErrInvalidTitle           = fmt.Errorf("%w: invalid title", ErrValidation)
	ErrInvalidContent         = fmt.Errorf("%w: invalid content", ErrValidation)
	ErrInvalidStatus          = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidPriority        = fmt.Errorf("%w: invalid priority", ErrValidation)
	ErrInvalidTaskType        = fmt.Errorf("%w: invalid task type", ErrValidation)
	ErrInvalidRole            = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrInvalidProjectStatus   = fmt.Errorf("%w: invalid project status", ErrValidation)
	ErrInvalidDateRange       = fmt.Errorf("%w: end date before start date", ErrValidation)
	ErrInvalidBudget          = fmt.Errorf("%w: budget must not be negative", ErrValidation)
	ErrInvalidRiskScore       = fmt.Errorf("%w: risk score must be within 0..100", ErrValidation)
	ErrInvalidHours           = fmt.Errorf("%w: hours must not be negative", ErrValidation)
	ErrInvalidAssigneeID      = fmt.Errorf("%w: assignee does not exist", ErrValidation)
	ErrInvalidParentID        = fmt.Errorf("%w: parent task does not exist", ErrValidation)
	ErrParentOutsideProject   = fmt.Errorf("%w: parent task belongs to another project", ErrValidation)
	ErrParentCycle            = fmt.Errorf("%w: parent would create a cycle", ErrValidation)
	ErrHasSubtasks            = fmt.Errorf("%w: task has subtasks", ErrValidation)
	ErrDueDateRequired        = fmt.Errorf("%w: due date required", ErrValidation)
	ErrInvalidFileName        = fmt.Errorf("%w: invalid file name", ErrValidation)
	ErrInvalidLocator         = fmt.Errorf("%w: invalid storage locator", ErrValidation)
	ErrInvalidFileSize        = fmt.Errorf("%w: invalid file size", ErrValidation)
	ErrInvalidSortOrder       = fmt.Errorf("%w: invalid sort order", ErrValidation)
	ErrInvalidSubject         = fmt.Errorf("%w: invalid identity subject", ErrValidation)
	ErrInvalidChangeOperation = fmt.Errorf("%w: invalid change operation", ErrValidation)
)
