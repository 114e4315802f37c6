package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AlertRepository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// Resolve marks an unresolved alert and reports whether it changed.
	Resolve(ctx context.Context, id, by uuid.UUID, at time.Time) (bool, error)
	// ResolveAllForPatient resolves every open alert of the patient and
	// returns the alerts it changed.
	ResolveAllForPatient(ctx context.Context, patientID, by uuid.UUID, at time.Time) ([]*Alert, error)
	// ListUnresolved returns open alerts for the given patients, newest first.
	ListUnresolved(ctx context.Context, patientIDs []uuid.UUID) ([]*Alert, error)
}
