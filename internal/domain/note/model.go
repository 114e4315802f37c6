package note

import (
	"time"

	"github.com/google/uuid"
)

const MaxNoteLength = 4000

// Note is an append-only caregiver observation about a patient.
type Note struct {
	ID          uuid.UUID `json:"id"`
	CaregiverID uuid.UUID `json:"caregiver_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`

	CaregiverName string `json:"caregiver_name,omitempty"`
	PatientName   string `json:"patient_name,omitempty"`
}

type AddRequest struct {
	Note string `json:"note"`
}
