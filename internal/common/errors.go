// Package common defines the sentinel errors shared by every layer of the
// service. Callers should wrap them with %w and match with errors.Is.
package common

import "errors"

var (
	// ErrNotFound reports that the requested record does not exist
	// (remote user absent, local row absent).
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a unique key collision in a local store.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation reports malformed input rejected before any side effect.
	ErrValidation = errors.New("validation error")

	// ErrUpstreamUnavailable reports a non-success answer or transport failure
	// of an external service. Callers may retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStorageFault reports a local disk or database failure.
	// Not retryable without operator action.
	ErrStorageFault = errors.New("storage fault")

	// ErrConsistencyFault reports avatar metadata that points at a blob which
	// no longer exists.
	ErrConsistencyFault = errors.New("consistency fault")

	// ErrUnauthorized reports a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken reports a token that parsed but failed validation.
	ErrInvalidToken = errors.New("invalid token")
)
