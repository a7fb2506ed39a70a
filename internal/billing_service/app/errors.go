package app

import "errors"

var (
	// ErrInvalidClaim wraps validation failures of a submitted payment claim.
	ErrInvalidClaim = errors.New("invalid payment claim")
	// ErrInvalidTenantProfile wraps validation failures of an admin tenant edit.
	ErrInvalidTenantProfile = errors.New("invalid tenant profile")
)
