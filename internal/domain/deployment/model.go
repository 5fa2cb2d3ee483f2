package deployment

import "time"

// Decision is one plant's verdict on its own deployment of the lesson.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ProcessingUnit is one target plant's submission within a distribution
// cycle. At most one unit exists per (record, plant); the store enforces it.
type ProcessingUnit struct {
	ID       string `json:"id"`
	RecordID string `json:"record_id"`
	Plant    string `json:"plant"`

	// Evidence supplied by the submitting plant.
	Summary        string `json:"summary"`
	Details        string `json:"details,omitempty"`
	AttachmentPath string `json:"attachment_path,omitempty"`
	SubmittedBy    string `json:"submitted_by"`

	Decision     Decision   `json:"decision"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Outcome is the aggregate of all unit decisions for a record.
type Outcome int

const (
	// OutcomeOpen means at least one target has not yet approved and none
	// has rejected.
	OutcomeOpen Outcome = iota
	// OutcomeValidated means every target plant has an approved unit.
	OutcomeValidated
	// OutcomeRejected means at least one unit was rejected; a single
	// rejection halts the whole distribution.
	OutcomeRejected
)

// Aggregate derives the distribution outcome from the target set and the
// units present. Callers must pass units read fresh inside the transaction
// that recorded the triggering decision.
func Aggregate(targets []string, units []ProcessingUnit) Outcome {
	approved := make(map[string]bool, len(units))
	for _, u := range units {
		switch u.Decision {
		case DecisionRejected:
			return OutcomeRejected
		case DecisionApproved:
			approved[u.Plant] = true
		}
	}

	for _, plant := range targets {
		if !approved[plant] {
			return OutcomeOpen
		}
	}
	return OutcomeValidated
}

// AllSubmitted reports whether every target plant has a unit.
func AllSubmitted(targets []string, units []ProcessingUnit) bool {
	have := make(map[string]bool, len(units))
	for _, u := range units {
		have[u.Plant] = true
	}
	for _, plant := range targets {
		if !have[plant] {
			return false
		}
	}
	return true
}
