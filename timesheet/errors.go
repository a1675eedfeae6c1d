package timesheet

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStorage wraps failures of the backing store. They are not retried here.
var ErrStorage = errors.New("storage failure")

// ValidationError reports a malformed or missing field of one submitted row.
// Row is -1 when the problem concerns the submission as a whole.
type ValidationError struct {
	Row     int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

// NotFoundError reports a referenced entry, user, company or break type that
// does not exist.
type NotFoundError struct {
	Kind string
	Key  string
	Row  int
}

func (e *NotFoundError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("row %d: %s %q not found", e.Row, e.Kind, e.Key)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

type AuthorizationError struct {
	PrincipalID uint
	Action      string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %d is not allowed to %s", e.PrincipalID, e.Action)
}

// ConflictError reports a row that changed or disappeared between being read
// and being written.
type ConflictError struct {
	EntryID uint
	Reason  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("entry %d: %s", e.EntryID, e.Reason)
}

// RowErrors collects every problem found in a submitted week so a caller can
// fix them all in one round trip.
type RowErrors []error

func (re RowErrors) Error() string {
	msgs := make([]string, 0, len(re))
	for _, err := range re {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (re RowErrors) Unwrap() []error {
	return re
}

func notFound(kind string, key any) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: fmt.Sprint(key), Row: -1}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
