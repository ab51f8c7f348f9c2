package shared

import "errors"

var (
	// ErrNotFound indicates a referenced analysis, item, category or project does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness violation (code, composition entry, price window).
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates rejected input (negative coefficient/volume, percentage outside [0,100]).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTree indicates a cycle or cross-project parent reference in a category tree.
	ErrInvalidTree = errors.New("invalid category tree")
	// ErrImmutable indicates a mutation on a record frozen by references (base items in use).
	ErrImmutable = errors.New("record is immutable")
	// ErrForbidden indicates a missing permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or expired session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
