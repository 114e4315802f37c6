package reminder

import (
	"context"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountActive(ctx context.Context, patientID uuid.UUID) (int, error)
}
