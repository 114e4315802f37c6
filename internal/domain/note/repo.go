package note

import (
	"context"

	"github.com/google/uuid"
)

type NoteRepository interface {
	Create(ctx context.Context, n *Note) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, error)
	// ListRecent returns notes across the given patients, newest first.
	ListRecent(ctx context.Context, patientIDs []uuid.UUID, limit int) ([]*Note, error)
}
