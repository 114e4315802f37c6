package relationship

import (
	"context"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
)

type LinkRepository interface {
	Create(ctx context.Context, l *Link) error
	GetByID(ctx context.Context, id uuid.UUID) (*Link, error)
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) error
	// ListByPatient annotates each link with the caregiver's name.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Link, error)
	// ListByCaregiver annotates each link with the patient's name.
	ListByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Link, error)
	ApprovedPatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *Assignment) error
	ListByMedicalTeam(ctx context.Context, medicalTeamID uuid.UUID) ([]*Assignment, error)
	PatientIDs(ctx context.Context, medicalTeamID uuid.UUID) ([]uuid.UUID, error)
}

// RoleLookup resolves the role of any profile, including profiles the caller
// has no relationship with yet.
type RoleLookup interface {
	RoleOf(ctx context.Context, profileID uuid.UUID) (access.Role, error)
}
