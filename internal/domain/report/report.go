// Package report builds the medical-team overview of assigned patients: per
// patient dose totals and adherence plus dashboard aggregates.
package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/domain/dosage"
	"github.com/inhalecare/inhalecare/internal/domain/relationship"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// CriticalAdherence is the rate below which a patient counts as critical.
const CriticalAdherence = 50.0

type PatientRow struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	PatientName    string     `json:"patient_name"`
	AssignedAt     time.Time  `json:"assigned_at"`
	TotalDoses     int        `json:"total_doses"`
	DosesLast7Days int        `json:"doses_last_7_days"`
	MissedDoses    int        `json:"missed_doses"`
	LastDoseAt     *time.Time `json:"last_dose_at,omitempty"`
	AdherenceRate  float64    `json:"adherence_rate"`
	Critical       bool       `json:"critical"`
}

type Report struct {
	MedicalTeamID    uuid.UUID    `json:"medical_team_id"`
	GeneratedAt      time.Time    `json:"generated_at"`
	PatientCount     int          `json:"patient_count"`
	AverageAdherence float64      `json:"average_adherence"`
	CriticalCount    int          `json:"critical_count"`
	Method           string       `json:"method"`
	Patients         []PatientRow `json:"patients"`
}

// AssignmentLister lists the patients assigned to a medical-team viewer.
type AssignmentLister interface {
	ListAssignmentsForMedicalTeam(ctx context.Context, v access.Viewer) ([]*relationship.Assignment, error)
}

// SummaryReader returns a scope-checked dose summary for one patient.
type SummaryReader interface {
	Summary(ctx context.Context, v access.Viewer, patientID uuid.UUID) (*dosage.Summary, error)
}

type Service struct {
	assignments AssignmentLister
	summaries   SummaryReader
	now         func() time.Time
}

func NewService(assignments AssignmentLister, summaries SummaryReader) *Service {
	return &Service{assignments: assignments, summaries: summaries, now: time.Now}
}

// Build assembles the report for a medical-team viewer. Patients are ordered
// by adherence, lowest first.
func (s *Service) Build(ctx context.Context, v access.Viewer) (*Report, error) {
	if v.Role != access.RoleMedicalTeam {
		return nil, apperr.Forbidden("reports are available to medical team members only")
	}
	assignments, err := s.assignments.ListAssignmentsForMedicalTeam(ctx, v)
	if err != nil {
		return nil, err
	}

	r := &Report{
		MedicalTeamID: v.ProfileID,
		GeneratedAt:   s.now().UTC(),
		Method:        dosage.AdherenceMethod,
		Patients:      []PatientRow{},
	}
	seen := make(map[uuid.UUID]bool, len(assignments))
	var total float64
	for _, a := range assignments {
		if seen[a.PatientID] {
			continue
		}
		seen[a.PatientID] = true

		sum, err := s.summaries.Summary(ctx, v, a.PatientID)
		if err != nil {
			return nil, err
		}
		row := PatientRow{
			PatientID:      a.PatientID,
			PatientName:    a.PatientName,
			AssignedAt:     a.AssignedAt,
			TotalDoses:     sum.TotalDoses,
			DosesLast7Days: sum.DosesLast7Days,
			MissedDoses:    sum.MissedDoses,
			LastDoseAt:     sum.LastDoseAt,
			AdherenceRate:  sum.Adherence.Rate,
			Critical:       sum.Adherence.Rate < CriticalAdherence,
		}
		if row.Critical {
			r.CriticalCount++
		}
		total += row.AdherenceRate
		r.Patients = append(r.Patients, row)
	}

	r.PatientCount = len(r.Patients)
	if r.PatientCount > 0 {
		r.AverageAdherence = math.Round(total/float64(r.PatientCount)*100) / 100
	}
	sort.SliceStable(r.Patients, func(i, j int) bool {
		if r.Patients[i].AdherenceRate != r.Patients[j].AdherenceRate {
			return r.Patients[i].AdherenceRate < r.Patients[j].AdherenceRate
		}
		return r.Patients[i].PatientName < r.Patients[j].PatientName
	})
	return r, nil
}
