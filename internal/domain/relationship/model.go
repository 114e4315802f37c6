package relationship

import (
	"time"

	"github.com/google/uuid"
)

// Link grants a caregiver visibility into a patient once approved. Duplicate
// links for the same pair are tolerated; readers de-duplicate by ID.
type Link struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	CaregiverID uuid.UUID `json:"caregiver_id"`
	IsApproved  bool      `json:"is_approved"`
	CreatedAt   time.Time `json:"created_at"`

	// CounterpartName is the other party's full name from the reader's side.
	CounterpartName string `json:"counterpart_name,omitempty"`
}

// Assignment grants a medical-team profile unconditional visibility into a
// patient.
type Assignment struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	MedicalTeamID uuid.UUID `json:"medical_team_id"`
	AssignedAt    time.Time `json:"assigned_at"`
	PatientName   string    `json:"patient_name,omitempty"`
}

type CreateLinkRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	CaregiverID uuid.UUID `json:"caregiver_id"`
}

type ApprovalRequest struct {
	Approved *bool `json:"approved"`
}
