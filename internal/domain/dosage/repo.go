package dosage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	// ListRecent orders by taken_at descending. since is inclusive when set.
	ListRecent(ctx context.Context, patientID uuid.UUID, limit, offset int, since *time.Time) ([]*Record, error)
	CountSince(ctx context.Context, patientID uuid.UUID, since time.Time) (int, error)
	// Totals returns the lifetime dose count and the latest taken_at.
	Totals(ctx context.Context, patientID uuid.UUID) (int, *time.Time, error)
}
