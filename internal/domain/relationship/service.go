package relationship

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

type Service struct {
	links       LinkRepository
	assignments AssignmentRepository
	roles       RoleLookup
	retry       retry.Policy
}

func NewService(links LinkRepository, assignments AssignmentRepository, roles RoleLookup, rp retry.Policy) *Service {
	return &Service{links: links, assignments: assignments, roles: roles, retry: rp}
}

// CreateLink records an unapproved link. The actor must be one of the two
// parties and each referenced profile must carry the matching role.
func (s *Service) CreateLink(ctx context.Context, v access.Viewer, req CreateLinkRequest) (*Link, error) {
	if req.PatientID == uuid.Nil || req.CaregiverID == uuid.Nil {
		return nil, apperr.Validation("patient_id and caregiver_id are required")
	}
	if v.ProfileID != req.PatientID && v.ProfileID != req.CaregiverID {
		return nil, apperr.Forbidden("links can only be created by one of their parties")
	}
	if err := s.expectRole(ctx, req.PatientID, access.RolePatient, "patient_id"); err != nil {
		return nil, err
	}
	if err := s.expectRole(ctx, req.CaregiverID, access.RoleCaregiver, "caregiver_id"); err != nil {
		return nil, err
	}

	l := &Link{PatientID: req.PatientID, CaregiverID: req.CaregiverID}
	if err := s.links.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) expectRole(ctx context.Context, id uuid.UUID, want access.Role, field string) error {
	role, err := s.roles.RoleOf(ctx, id)
	if err != nil {
		return err
	}
	if role != want {
		return apperr.Validation("%s must reference a %s profile", field, want)
	}
	return nil
}

// SetApproval grants or revokes a link. Only the patient may grant; either
// party may revoke. Setting the current value again changes nothing.
func (s *Service) SetApproval(ctx context.Context, v access.Viewer, linkID uuid.UUID, approved bool) (*Link, error) {
	l, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if v.ProfileID != l.PatientID && v.ProfileID != l.CaregiverID {
		return nil, apperr.Forbidden("only a party to the link may change its approval")
	}
	if approved && v.ProfileID != l.PatientID {
		return nil, apperr.Forbidden("only the patient may approve a caregiver link")
	}
	if l.IsApproved == approved {
		return l, nil
	}
	if err := s.links.SetApproved(ctx, l.ID, approved); err != nil {
		return nil, err
	}
	l.IsApproved = approved
	return l, nil
}

// ListLinks returns the viewer's links as patient or caregiver.
func (s *Service) ListLinks(ctx context.Context, v access.Viewer) ([]*Link, error) {
	switch v.Role {
	case access.RolePatient:
		return s.ListLinksForPatient(ctx, v.ProfileID)
	case access.RoleCaregiver:
		return s.ListLinksForCaregiver(ctx, v.ProfileID)
	default:
		return nil, apperr.Forbidden("role %s has no caregiver links", v.Role)
	}
}

func (s *Service) ListLinksForPatient(ctx context.Context, patientID uuid.UUID) ([]*Link, error) {
	links, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Link, error) {
		return s.links.ListByPatient(ctx, patientID)
	})
	if err != nil {
		return nil, err
	}
	return newestFirst(links), nil
}

func (s *Service) ListLinksForCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Link, error) {
	links, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Link, error) {
		return s.links.ListByCaregiver(ctx, caregiverID)
	})
	if err != nil {
		return nil, err
	}
	return newestFirst(links), nil
}

// newestFirst drops repeated IDs and orders by creation time descending.
func newestFirst(links []*Link) []*Link {
	seen := make(map[uuid.UUID]bool, len(links))
	out := make([]*Link, 0, len(links))
	for _, l := range links {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Service) ListAssignmentsForMedicalTeam(ctx context.Context, v access.Viewer) ([]*Assignment, error) {
	if v.Role != access.RoleMedicalTeam {
		return nil, apperr.Forbidden("only medical team members have assignments")
	}
	list, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Assignment, error) {
		return s.assignments.ListByMedicalTeam(ctx, v.ProfileID)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Assignment{}
	}
	return list, nil
}

// CreateAssignment is the operator path for granting a medical-team profile
// visibility into a patient. It is not reachable over HTTP.
func (s *Service) CreateAssignment(ctx context.Context, patientID, medicalTeamID uuid.UUID) (*Assignment, error) {
	if err := s.expectRole(ctx, patientID, access.RolePatient, "patient_id"); err != nil {
		return nil, err
	}
	if err := s.expectRole(ctx, medicalTeamID, access.RoleMedicalTeam, "medical_team_id"); err != nil {
		return nil, err
	}
	a := &Assignment{PatientID: patientID, MedicalTeamID: medicalTeamID}
	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ApprovedPatientIDs and AssignedPatientIDs make Service an
// access.RelationshipReader.

func (s *Service) ApprovedPatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error) {
	return retry.Read(ctx, s.retry, func(ctx context.Context) ([]uuid.UUID, error) {
		return s.links.ApprovedPatientIDs(ctx, caregiverID)
	})
}

func (s *Service) AssignedPatientIDs(ctx context.Context, medicalTeamID uuid.UUID) ([]uuid.UUID, error) {
	return retry.Read(ctx, s.retry, func(ctx context.Context) ([]uuid.UUID, error) {
		return s.assignments.PatientIDs(ctx, medicalTeamID)
	})
}

var _ access.RelationshipReader = (*Service)(nil)
