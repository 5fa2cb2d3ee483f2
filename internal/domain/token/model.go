package token

import "time"

// Purpose scopes a capability token to a single kind of action.
type Purpose string

const (
	PurposePMReview       Purpose = "PM_REVIEW"
	PurposeFinalReview    Purpose = "FINAL_REVIEW"
	PurposeEvidenceSubmit Purpose = "EVIDENCE_SUBMIT"
	PurposeUnitReview     Purpose = "UNIT_REVIEW"
	PurposeRework         Purpose = "REWORK"
)

// EvidenceResource names the per-plant resource an evidence-submission token
// is bound to. A token minted for one plant cannot act for another.
func EvidenceResource(recordID, plant string) string {
	return recordID + "/" + plant
}

// CapabilityToken is the stored form of an issued token. The secret itself is
// never persisted; only its SHA-256 hash is.
type CapabilityToken struct {
	Purpose    Purpose   `json:"purpose"`
	ResourceID string    `json:"resource_id"`
	SecretHash string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
	Consumed   bool      `json:"consumed"`
	CreatedAt  time.Time `json:"created_at"`
}
