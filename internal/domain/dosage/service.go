package dosage

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/db"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
	"github.com/inhalecare/inhalecare/pkg/pagination"
)

const (
	maxNotesLength   = 2000
	maxTriggerLength = 200
)

// DeviceConsumer takes one dose from a patient's device.
type DeviceConsumer interface {
	ConsumeDose(ctx context.Context, patientID, deviceID uuid.UUID) error
}

type Service struct {
	records        RecordRepository
	devices        DeviceConsumer
	tx             db.TxRunner
	policy         *access.Policy
	expectedPerDay int
	retry          retry.Policy
	now            func() time.Time
}

func NewService(records RecordRepository, devices DeviceConsumer, tx db.TxRunner, policy *access.Policy, expectedPerDay int, rp retry.Policy) *Service {
	if expectedPerDay <= 0 {
		expectedPerDay = 2
	}
	return &Service{
		records:        records,
		devices:        devices,
		tx:             tx,
		policy:         policy,
		expectedPerDay: expectedPerDay,
		retry:          rp,
		now:            time.Now,
	}
}

// RecordDose appends a ledger entry for the calling patient. When a device is
// named its remaining count is decremented in the same transaction, so a dose
// is never recorded against an empty or foreign device.
func (s *Service) RecordDose(ctx context.Context, v access.Viewer, req RecordRequest) (*Record, error) {
	patientID := v.ProfileID
	if req.PatientID != nil {
		patientID = *req.PatientID
	}
	if err := s.policy.AuthorizeOwnerWrite(v, patientID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &Record{
		PatientID:   patientID,
		DeviceID:    req.DeviceID,
		TakenAt:     now,
		IsScheduled: req.IsScheduled,
		IsEmergency: req.IsEmergency,
		ScheduledAt: req.ScheduledAt,
	}
	if req.TakenAt != nil && !req.TakenAt.IsZero() {
		// A future entry would sort ahead of doses recorded after it.
		if req.TakenAt.After(now) {
			return nil, apperr.Validation("taken_at cannot be in the future")
		}
		rec.TakenAt = req.TakenAt.UTC()
	}
	var err error
	if rec.Notes, err = optionalText(req.Notes, "notes", maxNotesLength); err != nil {
		return nil, err
	}
	if rec.EnvironmentalTrigger, err = optionalText(req.EnvironmentalTrigger, "environmental_trigger", maxTriggerLength); err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if rec.DeviceID != nil {
			if err := s.devices.ConsumeDose(ctx, patientID, *rec.DeviceID); err != nil {
				return err
			}
		}
		return s.records.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func optionalText(s *string, field string, max int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > max {
		return nil, apperr.Validation("%s must be at most %d characters", field, max)
	}
	return &v, nil
}

// ListRecentDoses returns the newest entries first. Reads go to the same
// store the write used, so a patient always sees their own latest dose.
func (s *Service) ListRecentDoses(ctx context.Context, v access.Viewer, patientID uuid.UUID, p pagination.Params, since *time.Time) (*pagination.Page[*Record], error) {
	if err := s.policy.AuthorizeRead(ctx, v, patientID); err != nil {
		return nil, err
	}
	rows, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Record, error) {
		return s.records.ListRecent(ctx, patientID, p.Probe(), p.Offset, since)
	})
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(rows, p), nil
}

// ComputeAdherence estimates adherence over the trailing window. The figure
// is a heuristic and is labelled as such.
func (s *Service) ComputeAdherence(ctx context.Context, v access.Viewer, patientID uuid.UUID, windowDays int) (*Adherence, error) {
	if err := s.policy.AuthorizeRead(ctx, v, patientID); err != nil {
		return nil, err
	}
	return s.adherence(ctx, patientID, windowDays)
}

func (s *Service) adherence(ctx context.Context, patientID uuid.UUID, windowDays int) (*Adherence, error) {
	if windowDays == 0 {
		windowDays = DefaultWindowDays
	}
	if windowDays < 1 || windowDays > MaxWindowDays {
		return nil, apperr.Validation("window_days must be between 1 and %d", MaxWindowDays)
	}
	to := s.now().UTC()
	from := to.AddDate(0, 0, -windowDays)

	n, err := retry.Read(ctx, s.retry, func(ctx context.Context) (int, error) {
		return s.records.CountSince(ctx, patientID, from)
	})
	if err != nil {
		return nil, err
	}
	expected := s.expectedPerDay * windowDays
	return &Adherence{
		PatientID:     patientID,
		WindowDays:    windowDays,
		From:          from,
		To:            to,
		DosesInWindow: n,
		ExpectedDoses: expected,
		Rate:          AdherenceRate(n, expected),
		Method:        AdherenceMethod,
	}, nil
}

// Summary rolls up lifetime totals and the trailing week for one patient.
func (s *Service) Summary(ctx context.Context, v access.Viewer, patientID uuid.UUID) (*Summary, error) {
	if err := s.policy.AuthorizeRead(ctx, v, patientID); err != nil {
		return nil, err
	}
	return s.summary(ctx, patientID)
}

func (s *Service) summary(ctx context.Context, patientID uuid.UUID) (*Summary, error) {
	type totals struct {
		n    int
		last *time.Time
	}
	t, err := retry.Read(ctx, s.retry, func(ctx context.Context) (totals, error) {
		n, last, err := s.records.Totals(ctx, patientID)
		return totals{n: n, last: last}, err
	})
	if err != nil {
		return nil, err
	}
	adh, err := s.adherence(ctx, patientID, DefaultWindowDays)
	if err != nil {
		return nil, err
	}
	missed := adh.ExpectedDoses - adh.DosesInWindow
	if missed < 0 {
		missed = 0
	}
	return &Summary{
		PatientID:      patientID,
		TotalDoses:     t.n,
		DosesLast7Days: adh.DosesInWindow,
		MissedDoses:    missed,
		LastDoseAt:     t.last,
		Adherence:      *adh,
	}, nil
}
