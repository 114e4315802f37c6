package note

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inhalecare/inhalecare/internal/platform/db"
)

type noteRepoPG struct{ pool *pgxpool.Pool }

func NewNoteRepoPG(pool *pgxpool.Pool) NoteRepository {
	return &noteRepoPG{pool: pool}
}

const noteSelect = `
	SELECT n.id, n.caregiver_id, n.patient_id, n.note, n.created_at,
		COALESCE(c.full_name, ''), COALESCE(p.full_name, '')
	FROM caregiver_notes n
	LEFT JOIN profiles c ON c.id = n.caregiver_id
	LEFT JOIN profiles p ON p.id = n.patient_id`

func (r *noteRepoPG) Create(ctx context.Context, n *Note) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO caregiver_notes (caregiver_id, patient_id, note)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		n.CaregiverID, n.PatientID, n.Note,
	).Scan(&n.ID, &n.CreatedAt)
	return db.MapError(err, "note")
}

func (r *noteRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, noteSelect+`
		WHERE n.patient_id = $1
		ORDER BY n.created_at DESC, n.id
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, db.MapError(err, "notes")
	}
	return collectNotes(rows)
}

func (r *noteRepoPG) ListRecent(ctx context.Context, patientIDs []uuid.UUID, limit int) ([]*Note, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, noteSelect+`
		WHERE n.patient_id = ANY($1)
		ORDER BY n.created_at DESC, n.id
		LIMIT $2`, patientIDs, limit)
	if err != nil {
		return nil, db.MapError(err, "notes")
	}
	return collectNotes(rows)
}

func collectNotes(rows pgx.Rows) ([]*Note, error) {
	defer rows.Close()
	var out []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.CaregiverID, &n.PatientID, &n.Note, &n.CreatedAt,
			&n.CaregiverName, &n.PatientName); err != nil {
			return nil, db.MapError(err, "notes")
		}
		out = append(out, &n)
	}
	return out, db.MapError(rows.Err(), "notes")
}
