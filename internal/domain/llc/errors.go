package llc

import "errors"

var (
	// ErrRecordNotFound indicates the record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrIllegalTransition indicates an action attempted from a status that
	// does not permit it.
	ErrIllegalTransition = errors.New("illegal workflow transition")
	// ErrNotEditable indicates a resubmission attempted outside the two
	// editable statuses.
	ErrNotEditable = errors.New("record is not editable in its current status")
	// ErrMissingReason indicates a rejection without an adequate reason.
	ErrMissingReason = errors.New("rejection reason must be at least 3 characters")
	// ErrInvalidInput indicates invalid input for record operations.
	ErrInvalidInput = errors.New("invalid record input")
	// ErrForbidden indicates the acting principal may not touch this record.
	ErrForbidden = errors.New("not allowed to act on this record")
	// ErrNoDistributionTargets indicates final approval could not resolve a
	// non-empty distribution set, so the record stays in WAITING_FINAL.
	ErrNoDistributionTargets = errors.New("no distribution targets resolved")
)
