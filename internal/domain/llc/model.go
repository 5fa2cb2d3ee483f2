package llc

import "time"

// DecisionState is the explicit state of one approval stage. A stage is
// PENDING until its reviewer acts; there is no "field never set" ambiguity.
type DecisionState string

const (
	DecisionPending  DecisionState = "PENDING"
	DecisionApproved DecisionState = "APPROVED"
	DecisionRejected DecisionState = "REJECTED"
)

// Decision captures one approval stage's outcome.
type Decision struct {
	State     DecisionState `json:"state"`
	DecidedAt *time.Time    `json:"decided_at,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Record is a lessons-learned card moving through the approval and
// distribution workflow.
type Record struct {
	ID string `json:"id"`

	// Classification fields, fixed at submission (or resubmission).
	Category            string `json:"category"`
	ProblemShort        string `json:"problem_short"`
	ProblemDetail       string `json:"problem_detail"`
	LlcType             string `json:"llc_type"`
	Customer            string `json:"customer"`
	ProductFamily       string `json:"product_family"`
	ProductType         string `json:"product_type"`
	QualityDetection    string `json:"quality_detection"`
	ApplicationLabel    string `json:"application_label"`
	ProductLineLabel    string `json:"product_line_label"`
	PartOrMachineNumber string `json:"part_or_machine_number"`
	Editor              string `json:"editor"`
	EditorEmail         string `json:"editor_email"`
	Plant               string `json:"plant"`
	FailureMode         string `json:"failure_mode"`
	Conclusions         string `json:"conclusions"`

	// Validator is the plant manager address derived from the plant mapping,
	// never client-supplied.
	Validator string `json:"validator"`

	Status        Status   `json:"status"`
	PMDecision    Decision `json:"pm_decision"`
	FinalDecision Decision `json:"final_decision"`

	// Targets is the resolved distribution set, persisted when the record
	// enters DISTRIBUTING. Empty before that.
	Targets []string `json:"targets,omitempty"`

	// GeneratedDoc is the storage path of the rendered report.
	GeneratedDoc string `json:"generated_doc,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// RootCause is one causal-analysis row attached to a record.
type RootCause struct {
	ID                       string `json:"id"`
	RecordID                 string `json:"record_id"`
	RootCause                string `json:"root_cause"`
	DetailedCauseDescription string `json:"detailed_cause_description"`
	SolutionDescription      string `json:"solution_description"`
	Conclusion               string `json:"conclusion"`
	Process                  string `json:"process"`
	Origin                   string `json:"origin"`
}

// AttachmentScope classifies an evidence file.
type AttachmentScope string

const (
	ScopeBadPart         AttachmentScope = "BAD_PART"
	ScopeGoodPart        AttachmentScope = "GOOD_PART"
	ScopeSituationBefore AttachmentScope = "SITUATION_BEFORE"
	ScopeSituationAfter  AttachmentScope = "SITUATION_AFTER"
	ScopeRootCause       AttachmentScope = "ROOT_CAUSE"
)

// Attachment is an evidence file linked to a record or one of its root causes.
type Attachment struct {
	ID          string          `json:"id"`
	RecordID    string          `json:"record_id"`
	RootCauseID *string         `json:"root_cause_id,omitempty"`
	Scope       AttachmentScope `json:"scope"`
	Filename    string          `json:"filename"`
	StoragePath string          `json:"storage_path"`
}

// Detail bundles a record with its child entities for display and rendering.
type Detail struct {
	Record      Record       `json:"record"`
	RootCauses  []RootCause  `json:"root_causes"`
	Attachments []Attachment `json:"attachments"`
}

// Ref is a lightweight listing view of a record.
type Ref struct {
	ID               string    `json:"id"`
	Category         string    `json:"category"`
	ProblemShort     string    `json:"problem_short"`
	Customer         string    `json:"customer"`
	ProductLineLabel string    `json:"product_line_label"`
	Plant            string    `json:"plant"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}
