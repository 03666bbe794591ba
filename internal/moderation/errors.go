package moderation

import "errors"

// Configuration errors are rejected synchronously at enable time and
// identify the invalid field; nothing is mutated when they fire.
var (
	ErrInvalidInterval = errors.New("interval must be a positive number of seconds")
	ErrExpiryInPast    = errors.New("expiry must be in the future")
	ErrUnknownKind     = errors.New("unknown restriction kind")
	ErrMissingSubject  = errors.New("subject is required")
)
