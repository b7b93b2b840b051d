package identity

import "errors"

var (
	// ErrUnauthenticated covers missing, malformed, or expired credentials
	// and subjects that are missing or inactive. Login paths surface it to
	// callers as a generic "invalid credentials" message.
	ErrUnauthenticated = errors.New("identity: unauthenticated")

	// ErrForbidden means the caller authenticated but does not meet the
	// route's role requirement.
	ErrForbidden = errors.New("identity: forbidden")

	// ErrInvalidAPIKey means the presented key hash matched no active key
	// or the owning client is missing or inactive.
	ErrInvalidAPIKey = errors.New("identity: invalid api key")

	// ErrAPIKeyExpired means the key matched but is past its expiry.
	ErrAPIKeyExpired = errors.New("identity: api key expired")

	ErrNotFound      = errors.New("identity: not found")
	ErrAlreadyExists = errors.New("identity: already exists")
	ErrInvalidInput  = errors.New("identity: invalid input")
)
