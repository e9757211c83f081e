package errors

import "errors"

// This package defines a centralized set of sentinel errors for the application.
// Using sentinel errors allows services to return specific, recognizable error types
// without coupling them to implementation details like HTTP status codes. The API
// layer then uses `errors.Is()` to map them to the correct HTTP responses.

var (
	// ErrNotFound signifies that a requested resource could not be located, or
	// that it belongs to another user. The two cases are indistinguishable on
	// purpose so that existence of other users' data never leaks.
	// Mapped to 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// validation. Mapped to 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signifies that an operation conflicts with the current state
	// of a resource (e.g., registering an existing username).
	// Mapped to 409 Conflict.
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized signifies a missing, invalid, or expired credential.
	// Mapped to 401 Unauthorized.
	ErrUnauthorized = errors.New("not authenticated")

	// ErrRateLimited signifies that the caller exceeded the attempt budget for
	// a sensitive operation. Mapped to 429 Too Many Requests.
	ErrRateLimited = errors.New("too many attempts")

	// ErrUpstreamUnreachable signifies that no connection could be established
	// to the inference server. This is deliberately distinct from ErrUpstream:
	// the fix is user-actionable (start the local model server).
	// Mapped to 503 Service Unavailable.
	ErrUpstreamUnreachable = errors.New("inference server unreachable")

	// ErrUpstream signifies that the inference server answered with a
	// non-success status or an undecodable body. Mapped to 502 Bad Gateway.
	ErrUpstream = errors.New("inference server error")

	// ErrInternal signifies an unexpected server-side error. Mapped to 500.
	ErrInternal = errors.New("internal server error")
)
