package deployment

import "errors"

var (
	// ErrUnitNotFound indicates the processing unit doesn't exist.
	ErrUnitNotFound = errors.New("processing unit not found")
	// ErrRecordNotFound indicates the parent record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateUnit indicates the plant already submitted for this record.
	ErrDuplicateUnit = errors.New("plant already submitted evidence for this record")
	// ErrNotATarget indicates the plant is not in the record's target set.
	ErrNotATarget = errors.New("plant is not a distribution target of this record")
	// ErrNotDistributing indicates evidence arriving outside the
	// distribution phase.
	ErrNotDistributing = errors.New("record is not accepting deployment evidence")
	// ErrAlreadyDecided indicates a second decision on the same unit.
	ErrAlreadyDecided = errors.New("processing unit already decided")
	// ErrNotRejected indicates a rework attempt on a unit that was not
	// rejected.
	ErrNotRejected = errors.New("processing unit is not rejected")
	// ErrInvalidInput indicates invalid evidence input.
	ErrInvalidInput = errors.New("invalid evidence input")
)
