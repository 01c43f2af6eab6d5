package models

import "errors"

var (
	// ErrBatchNotFound is returned when a batch id does not exist.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrReportNotFound is returned when a report id does not exist.
	ErrReportNotFound = errors.New("report not found")
	// ErrVersionConflict is returned when a batch changed between read and write.
	ErrVersionConflict = errors.New("batch version conflict")
	// ErrAlertNotFound is returned when acknowledging an unknown alert key.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInsightNotFound is returned when acknowledging an unknown insight key.
	ErrInsightNotFound = errors.New("insight not found")
)
