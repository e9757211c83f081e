package repository

import "errors"

// ErrNotFound is a repository-specific sentinel error. It is returned when a
// query for a single entity finds no rows, or when a mutation affects none.
//
// The service layer checks for this error and translates it into a
// domain-level error (app_errors.ErrNotFound), decoupling business logic from
// the underlying driver's sql.ErrNoRows.
var ErrNotFound = errors.New("repository: not found")
