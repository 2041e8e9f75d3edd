package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when an import session id is unknown or already consumed.
	ErrSessionNotFound = errors.New("import session not found")

	// ErrSessionExpired is returned when an import session outlived its TTL.
	ErrSessionExpired = errors.New("import session expired")

	// ErrPlanInvalid is returned when committing a dry run that has validation errors.
	ErrPlanInvalid = errors.New("import plan has validation errors")

	// ErrNotFound is returned when a persisted entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrRecordVanished is returned when a row planned for update no longer exists at commit time.
	ErrRecordVanished = errors.New("record changed since dry run")

	// ErrMissingInfoSheet is returned when a document has no Info sheet or no data row on it.
	ErrMissingInfoSheet = errors.New("missing required Info sheet")

	// ErrInvalidDocument is returned when the bytes are not a readable workbook.
	ErrInvalidDocument = errors.New("invalid workbook")

	// ErrUnknownEntityType is returned for an entity type other than product or solution.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrFileTooLarge is returned when an upload exceeds the import size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned when an upload carries no bytes.
	ErrEmptyFile = errors.New("empty file")
)

// ExecutionError wraps a persistence failure during commit with the step that failed.
type ExecutionError struct {
	Step string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("commit failed at %s: %v", e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
