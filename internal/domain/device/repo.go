package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	GetByExternalID(ctx context.Context, externalID string) (*Device, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Device, error)
	UpdateLevels(ctx context.Context, id uuid.UUID, battery, remaining int, syncedAt time.Time) error
	// Decrement lowers remaining_doses by one when it is above zero and
	// reports whether a row changed.
	Decrement(ctx context.Context, id uuid.UUID) (bool, error)
}
