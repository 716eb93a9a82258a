package domain

import "errors"

var (
	ErrInvalidVoter         = errors.New("voter id must not be empty")
	ErrInvalidPolarity      = errors.New("polarity must be +1 or -1")
	ErrInvalidEntity        = errors.New("invalid entity reference")
	ErrInvalidUser          = errors.New("user id must not be empty")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrEntityConflict       = errors.New("entity already registered with a different owner")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrVersionConflict      = errors.New("ledger version conflict")
	ErrCorruptLedger        = errors.New("ledger holds more than one vote per voter")
	ErrTransientStorage     = errors.New("transient storage failure, retry the request")
	ErrRateLimited          = errors.New("vote rate limit exceeded")
	ErrDeliveryFailed       = errors.New("realtime delivery failed")
	ErrSessionClosed        = errors.New("session closed")
)
