package database

import (
	"errors"
	"fmt"
	"regexp"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrDuplicate = errors.New("duplicate value")

var uniqueFailure = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+)`)

// DuplicateError is a UNIQUE constraint violation; Field is "table.column".
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %v", e.Field, e.Err)
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// asDuplicate converts a UNIQUE violation into *DuplicateError and returns
// other errors unchanged.
func asDuplicate(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *msqlite.Error
	isUnique := errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE

	match := uniqueFailure.FindStringSubmatch(err.Error())
	if match == nil && !isUnique {
		return err
	}

	field := ""
	if match != nil {
		field = match[1]
	}
	return &DuplicateError{Field: field, Err: err}
}

// IsDuplicateOf reports whether err is a UNIQUE violation on field ("table.column").
func IsDuplicateOf(err error, field string) bool {
	var dup *DuplicateError
	return errors.As(err, &dup) && dup.Field == field
}
