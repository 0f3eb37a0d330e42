// Package repository implements data access for users, tours and reviews on
// top of database/sql.  The sentinel values below let handlers distinguish
// failure scenarios without inspecting driver errors: ErrNotFound maps to
// HTTP 404, the duplicate sentinels to 409 and ErrValidation to 400.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a lookup by identifier matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when user creation collides with an existing
// email address.
var ErrEmailExists = errors.New("email already exists")

// ErrTourNameExists is returned when a tour insert or rename collides with
// an existing tour name.
var ErrTourNameExists = errors.New("tour name already exists")

// ErrDuplicateReview is returned when the UNIQUE(tour_id, user_id) key
// rejects a second review by the same author for the same tour.  The
// constraint is enforced by the database, so two concurrent creations can
// never both succeed.
var ErrDuplicateReview = errors.New("review for this tour already exists")

// ErrValidation marks input rejected by entity rules.  Callers wrap it with
// a specific message, e.g. fmt.Errorf("%w: rating must be 1-5", ErrValidation).
var ErrValidation = errors.New("validation failed")

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

// isForeignKeyMiss reports whether err is MySQL error 1452 (a foreign key
// referenced a row that does not exist).
func isForeignKeyMiss(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1452")
}
