package device

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/devicesync"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

type Service struct {
	devices    DeviceRepository
	policy     *access.Policy
	thresholds Thresholds
	retry      retry.Policy
	now        func() time.Time
}

func NewService(devices DeviceRepository, policy *access.Policy, thresholds Thresholds, rp retry.Policy) *Service {
	return &Service{devices: devices, policy: policy, thresholds: thresholds, retry: rp, now: time.Now}
}

// RegisterDevice adds an inhaler for the calling patient. Omitted counts
// default to a full 200-dose canister at full battery.
func (s *Service) RegisterDevice(ctx context.Context, v access.Viewer, req RegisterRequest) (*Device, error) {
	patientID := v.ProfileID
	if req.PatientID != nil {
		patientID = *req.PatientID
	}
	if err := s.policy.AuthorizeOwnerWrite(v, patientID); err != nil {
		return nil, err
	}

	d := &Device{
		PatientID:    patientID,
		DeviceName:   strings.TrimSpace(req.DeviceName),
		TotalDoses:   DefaultTotalDoses,
		BatteryLevel: DefaultBatteryLevel,
	}
	if d.DeviceName == "" {
		return nil, apperr.Validation("device_name is required")
	}
	if req.ExternalDeviceID != nil {
		if ext := strings.TrimSpace(*req.ExternalDeviceID); ext != "" {
			d.ExternalDeviceID = &ext
		}
	}
	if req.TotalDoses != nil {
		if *req.TotalDoses <= 0 {
			return nil, apperr.Validation("total_doses must be positive")
		}
		d.TotalDoses = *req.TotalDoses
	}
	d.RemainingDoses = d.TotalDoses
	if req.RemainingDoses != nil {
		d.RemainingDoses = *req.RemainingDoses
	}
	if req.BatteryLevel != nil {
		d.BatteryLevel = *req.BatteryLevel
	}
	if err := validateLevels(d.BatteryLevel, d.RemainingDoses, d.TotalDoses); err != nil {
		return nil, err
	}

	if err := s.devices.Create(ctx, d); err != nil {
		return nil, err
	}
	d.annotate(s.thresholds)
	return d, nil
}

func validateLevels(battery, remaining, total int) error {
	if battery < 0 || battery > 100 {
		return apperr.Validation("battery_level must be between 0 and 100")
	}
	if remaining < 0 || remaining > total {
		return apperr.Validation("remaining_doses must be between 0 and %d", total)
	}
	return nil
}

// ListDevicesForPatient returns the patient's devices with low-battery and
// low-dose flags computed against the configured thresholds.
func (s *Service) ListDevicesForPatient(ctx context.Context, v access.Viewer, patientID uuid.UUID) ([]*Device, error) {
	if err := s.policy.AuthorizeRead(ctx, v, patientID); err != nil {
		return nil, err
	}
	devices, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Device, error) {
		return s.devices.ListByPatient(ctx, patientID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Device, 0, len(devices))
	for _, d := range devices {
		d.annotate(s.thresholds)
		out = append(out, d)
	}
	return out, nil
}

// SyncFromOwner applies a reading reported through the owning patient's app.
func (s *Service) SyncFromOwner(ctx context.Context, v access.Viewer, deviceID uuid.UUID, r SyncReading) (*Device, error) {
	d, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeOwnerWrite(v, d.PatientID); err != nil {
		return nil, err
	}
	return s.applySync(ctx, d, r)
}

// RecordSync overwrites the device levels and last_sync. It is the entry
// point for the device-sync collaborator, which acts without a viewer.
func (s *Service) RecordSync(ctx context.Context, deviceID uuid.UUID, r SyncReading) (*Device, error) {
	d, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.applySync(ctx, d, r)
}

// RecordSyncByExternalID resolves the hardware identifier first.
func (s *Service) RecordSyncByExternalID(ctx context.Context, externalID string, r SyncReading) (*Device, error) {
	d, err := s.devices.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.applySync(ctx, d, r)
}

func (s *Service) applySync(ctx context.Context, d *Device, r SyncReading) (*Device, error) {
	if r.BatteryLevel == nil || r.RemainingDoses == nil {
		return nil, apperr.Validation("battery_level and remaining_doses are required")
	}
	if err := validateLevels(*r.BatteryLevel, *r.RemainingDoses, d.TotalDoses); err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		at = r.Timestamp.UTC()
	}
	if err := s.devices.UpdateLevels(ctx, d.ID, *r.BatteryLevel, *r.RemainingDoses, at); err != nil {
		return nil, err
	}
	d.BatteryLevel = *r.BatteryLevel
	d.RemainingDoses = *r.RemainingDoses
	d.LastSync = &at
	d.annotate(s.thresholds)
	return d, nil
}

// ConsumeDose takes one dose from a device owned by patientID. Callers run
// it in the same transaction as the dose insert.
func (s *Service) ConsumeDose(ctx context.Context, patientID, deviceID uuid.UUID) error {
	d, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if d.PatientID != patientID {
		return apperr.Forbidden("device %s belongs to another patient", deviceID)
	}
	ok, err := s.devices.Decrement(ctx, deviceID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("device %s has no remaining doses", deviceID)
	}
	return nil
}

// SyncSink adapts the service to the MQTT device-sync worker. Keys that
// parse as UUIDs address devices by id; anything else is treated as an
// external hardware identifier.
type SyncSink struct{ Service *Service }

func (s SyncSink) ApplyReading(ctx context.Context, key string, r devicesync.Reading) error {
	reading := SyncReading{BatteryLevel: r.BatteryLevel, RemainingDoses: r.RemainingDoses, Timestamp: r.Timestamp}
	var err error
	if id, perr := uuid.Parse(key); perr == nil {
		_, err = s.Service.RecordSync(ctx, id, reading)
	} else {
		_, err = s.Service.RecordSyncByExternalID(ctx, key, reading)
	}
	return err
}

var _ devicesync.Sink = SyncSink{}
