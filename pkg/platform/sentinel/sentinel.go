package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, lockers and publishers
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrUnavailable: a dependency (database, lock service, broker) cannot serve the call
//   - ErrLockHeld: a mutual-exclusion scope is owned by another caller
//   - ErrInvalidState: record is in the wrong state for the requested write
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrLockHeld     = errors.New("lock held")
	ErrInvalidState = errors.New("invalid state")
)
