package rules

import "errors"

// Common errors for rule store operations.
var (
	// ErrRuleNotFound is returned when no rule matches the requested
	// (folder, subject, path) identity.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("invalid rule")
)
