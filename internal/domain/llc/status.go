package llc

// Status is the workflow state of a record.
type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusPendingPM             Status = "PENDING_PM"
	StatusEditablePMRejected    Status = "EDITABLE_PM_REJECTED"
	StatusWaitingFinal          Status = "WAITING_FINAL"
	StatusEditableFinalRejected Status = "EDITABLE_FINAL_REJECTED"
	StatusDistributing          Status = "DISTRIBUTING"
	StatusDeploymentProcessing  Status = "DEPLOYMENT_PROCESSING"
	StatusDeploymentValidated   Status = "DEPLOYMENT_VALIDATED"
	StatusDeploymentRejected    Status = "DEPLOYMENT_REJECTED"
)

// transitions is the legal edge set of the workflow. Guards (token validity,
// reason length, role) are checked by the services before the edge is taken.
var transitions = map[Status][]Status{
	StatusDraft:              {StatusPendingPM},
	StatusPendingPM:          {StatusWaitingFinal, StatusEditablePMRejected},
	StatusEditablePMRejected: {StatusPendingPM},
	StatusWaitingFinal:       {StatusDistributing, StatusEditableFinalRejected},
	StatusEditableFinalRejected: {StatusPendingPM},
	StatusDistributing: {StatusDeploymentProcessing, StatusDeploymentRejected},
	StatusDeploymentProcessing: {StatusDeploymentValidated, StatusDeploymentRejected},
	// A rejected distribution re-enters through the rework path: back to
	// DISTRIBUTING while some targets still owe evidence, otherwise straight
	// to processing.
	StatusDeploymentRejected: {StatusDeploymentProcessing, StatusDistributing},
}

// CanTransition reports whether from -> to is a legal workflow edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a defined status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingPM, StatusEditablePMRejected,
		StatusWaitingFinal, StatusEditableFinalRejected, StatusDistributing,
		StatusDeploymentProcessing, StatusDeploymentValidated, StatusDeploymentRejected:
		return true
	}
	return false
}

// Editable reports whether the record can be resubmitted by its editor.
func (s Status) Editable() bool {
	return s == StatusEditablePMRejected || s == StatusEditableFinalRejected
}

// Terminal reports whether the workflow has finished for this record.
func (s Status) Terminal() bool {
	return s == StatusDeploymentValidated
}
