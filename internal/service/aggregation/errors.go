package aggregation

import (
	"errors"
	"fmt"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

var (
	// ErrValidation marks submissions rejected before any calculation ran.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks record store failures.
	ErrPersistence = errors.New("persistence failed")
)

// ValidationError describes why a submission was rejected.
type ValidationError struct {
	Field      string
	ReportType models.ReportType
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.ReportType != "" {
		return fmt.Sprintf("invalid %s report: %s %s", e.ReportType, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps a record store failure. The failed operation is
// safe to retry verbatim.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is lets errors.Is match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
