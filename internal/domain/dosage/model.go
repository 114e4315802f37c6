package dosage

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AdherenceMethod labels every adherence figure as an estimate. The expected
// dose count is a configured placeholder, not a prescription.
const AdherenceMethod = "heuristic"

const (
	DefaultWindowDays = 7
	MaxWindowDays     = 90
)

// Record is one append-only ledger entry.
type Record struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	DeviceID             *uuid.UUID `json:"device_id,omitempty"`
	TakenAt              time.Time  `json:"taken_at"`
	IsScheduled          bool       `json:"is_scheduled"`
	IsEmergency          bool       `json:"is_emergency"`
	EnvironmentalTrigger *string    `json:"environmental_trigger,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
	ScheduledAt          *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

type RecordRequest struct {
	PatientID            *uuid.UUID `json:"patient_id"`
	DeviceID             *uuid.UUID `json:"device_id"`
	IsScheduled          bool       `json:"is_scheduled"`
	IsEmergency          bool       `json:"is_emergency"`
	Notes                *string    `json:"notes"`
	EnvironmentalTrigger *string    `json:"environmental_trigger"`
	ScheduledAt          *time.Time `json:"scheduled_at"`
	TakenAt              *time.Time `json:"taken_at"`
}

type Adherence struct {
	PatientID     uuid.UUID `json:"patient_id"`
	WindowDays    int       `json:"window_days"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	DosesInWindow int       `json:"doses_in_window"`
	ExpectedDoses int       `json:"expected_doses"`
	Rate          float64   `json:"adherence_rate"`
	Method        string    `json:"method"`
}

// Summary is the per-patient rollup shown on the medical dashboard.
type Summary struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	TotalDoses     int        `json:"total_doses"`
	DosesLast7Days int        `json:"doses_last_7_days"`
	MissedDoses    int        `json:"missed_doses"`
	LastDoseAt     *time.Time `json:"last_dose_at,omitempty"`
	Adherence      Adherence  `json:"adherence"`
}

// AdherenceRate returns min(100, doses/expected*100) rounded to two decimals.
// It is non-decreasing in doses for a fixed expected count.
func AdherenceRate(doses, expected int) float64 {
	if expected <= 0 || doses <= 0 {
		return 0
	}
	rate := float64(doses) / float64(expected) * 100
	if rate > 100 {
		return 100
	}
	return math.Round(rate*100) / 100
}
