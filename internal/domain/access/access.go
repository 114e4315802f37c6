// Package access computes which patients a viewer may see or act on. Every
// domain service receives the Viewer explicitly and asks the Policy before
// touching patient-scoped rows; the database repeats the same predicates as
// row-level security policies.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

type Role string

const (
	RolePatient     Role = "patient"
	RoleCaregiver   Role = "caregiver"
	RoleMedicalTeam Role = "medical_team"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleCaregiver, RoleMedicalTeam:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", apperr.Validation("role must be one of patient, caregiver, medical_team")
	}
	return r, nil
}

// Viewer is the resolved identity behind a request.
type Viewer struct {
	ProfileID uuid.UUID `json:"profile_id"`
	AccountID string    `json:"account_id"`
	Role      Role      `json:"role"`
}

func (v Viewer) String() string {
	return fmt.Sprintf("%s:%s", v.Role, v.ProfileID)
}

// RelationshipReader exposes the two relationship sets that grant visibility.
type RelationshipReader interface {
	ApprovedPatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error)
	AssignedPatientIDs(ctx context.Context, medicalTeamID uuid.UUID) ([]uuid.UUID, error)
}

// Scope is the set of patient ids a viewer may read.
type Scope struct {
	ids   []uuid.UUID
	index map[uuid.UUID]struct{}
}

func NewScope(ids ...uuid.UUID) Scope {
	s := Scope{index: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		if _, dup := s.index[id]; dup {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

func (s Scope) Contains(patientID uuid.UUID) bool {
	_, ok := s.index[patientID]
	return ok
}

// IDs returns the patient ids in first-seen order.
func (s Scope) IDs() []uuid.UUID {
	out := make([]uuid.UUID, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s Scope) Len() int { return len(s.ids) }

type Policy struct {
	rel RelationshipReader
}

func NewPolicy(rel RelationshipReader) *Policy {
	return &Policy{rel: rel}
}

// Scope returns self for patients, approved links for caregivers and
// assignments for medical team members.
func (p *Policy) Scope(ctx context.Context, v Viewer) (Scope, error) {
	switch v.Role {
	case RolePatient:
		return NewScope(v.ProfileID), nil
	case RoleCaregiver:
		ids, err := p.rel.ApprovedPatientIDs(ctx, v.ProfileID)
		if err != nil {
			return Scope{}, fmt.Errorf("loading approved links: %w", err)
		}
		return NewScope(ids...), nil
	case RoleMedicalTeam:
		ids, err := p.rel.AssignedPatientIDs(ctx, v.ProfileID)
		if err != nil {
			return Scope{}, fmt.Errorf("loading assignments: %w", err)
		}
		return NewScope(ids...), nil
	default:
		return Scope{}, apperr.Forbidden("unknown role %q", v.Role)
	}
}

// AuthorizeRead fails with Forbidden when patientID is outside the viewer's
// scope. An empty result and no access are different outcomes.
func (p *Policy) AuthorizeRead(ctx context.Context, v Viewer, patientID uuid.UUID) error {
	if v.Role == RolePatient {
		if v.ProfileID != patientID {
			return apperr.Forbidden("patients may only read their own records")
		}
		return nil
	}
	scope, err := p.Scope(ctx, v)
	if err != nil {
		return err
	}
	if !scope.Contains(patientID) {
		return apperr.Forbidden("no visibility into patient %s", patientID)
	}
	return nil
}

// AuthorizeOwnerWrite allows only the patient to write their own dosage,
// reminder, device and alert rows.
func (p *Policy) AuthorizeOwnerWrite(v Viewer, patientID uuid.UUID) error {
	if v.Role != RolePatient || v.ProfileID != patientID {
		return apperr.Forbidden("only the patient may write these records")
	}
	return nil
}

// AuthorizeNoteWrite allows caregivers with an approved link to patientID.
func (p *Policy) AuthorizeNoteWrite(ctx context.Context, v Viewer, patientID uuid.UUID) error {
	if v.Role != RoleCaregiver {
		return apperr.Forbidden("only caregivers may add notes")
	}
	scope, err := p.Scope(ctx, v)
	if err != nil {
		return err
	}
	if !scope.Contains(patientID) {
		return apperr.Forbidden("caregiver link to patient %s is not approved", patientID)
	}
	return nil
}
