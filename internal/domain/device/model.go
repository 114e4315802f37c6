package device

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTotalDoses   = 200
	DefaultBatteryLevel = 100
)

// Thresholds are percentages below which a device is flagged.
type Thresholds struct {
	Battery int
	Doses   int
}

func DefaultThresholds() Thresholds {
	return Thresholds{Battery: 20, Doses: 20}
}

// Device is an inhaler owned by one patient. LowBattery and LowDoses are
// derived on every read and never stored.
type Device struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	DeviceName       string     `json:"device_name"`
	ExternalDeviceID *string    `json:"external_device_id,omitempty"`
	TotalDoses       int        `json:"total_doses"`
	RemainingDoses   int        `json:"remaining_doses"`
	BatteryLevel     int        `json:"battery_level"`
	LastSync         *time.Time `json:"last_sync,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	LowBattery bool `json:"low_battery"`
	LowDoses   bool `json:"low_doses"`
}

// IsLowBattery reports battery_level < threshold.
func (d *Device) IsLowBattery(threshold int) bool {
	return d.BatteryLevel < threshold
}

// IsLowDoses reports remaining/total*100 < threshold. A device without a
// dose capacity is always low.
func (d *Device) IsLowDoses(threshold int) bool {
	if d.TotalDoses <= 0 {
		return true
	}
	return d.RemainingDoses*100 < threshold*d.TotalDoses
}

func (d *Device) annotate(t Thresholds) {
	d.LowBattery = d.IsLowBattery(t.Battery)
	d.LowDoses = d.IsLowDoses(t.Doses)
}

type RegisterRequest struct {
	PatientID        *uuid.UUID `json:"patient_id"`
	DeviceName       string     `json:"device_name"`
	ExternalDeviceID *string    `json:"external_device_id"`
	TotalDoses       *int       `json:"total_doses"`
	RemainingDoses   *int       `json:"remaining_doses"`
	BatteryLevel     *int       `json:"battery_level"`
}

// SyncReading is one battery/remaining-dose report from a device.
type SyncReading struct {
	BatteryLevel   *int       `json:"battery_level"`
	RemainingDoses *int       `json:"remaining_doses"`
	Timestamp      *time.Time `json:"timestamp"`
}
