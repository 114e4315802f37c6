package dosage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inhalecare/inhalecare/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

const recordCols = `id, patient_id, device_id, taken_at, is_scheduled, is_emergency,
	environmental_trigger, notes, scheduled_at, created_at`

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dosage_records (patient_id, device_id, taken_at, is_scheduled, is_emergency,
			environmental_trigger, notes, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		rec.PatientID, rec.DeviceID, rec.TakenAt, rec.IsScheduled, rec.IsEmergency,
		rec.EnvironmentalTrigger, rec.Notes, rec.ScheduledAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	return db.MapError(err, "dosage record")
}

func (r *recordRepoPG) ListRecent(ctx context.Context, patientID uuid.UUID, limit, offset int, since *time.Time) ([]*Record, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, `
		SELECT `+recordCols+` FROM dosage_records
		WHERE patient_id = $1 AND ($2::timestamptz IS NULL OR taken_at >= $2)
		ORDER BY taken_at DESC, created_at DESC
		LIMIT $3 OFFSET $4`, patientID, since, limit, offset)
	if err != nil {
		return nil, db.MapError(err, "dosage records")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.DeviceID, &rec.TakenAt, &rec.IsScheduled,
			&rec.IsEmergency, &rec.EnvironmentalTrigger, &rec.Notes, &rec.ScheduledAt, &rec.CreatedAt); err != nil {
			return nil, db.MapError(err, "dosage records")
		}
		out = append(out, &rec)
	}
	return out, db.MapError(rows.Err(), "dosage records")
}

func (r *recordRepoPG) CountSince(ctx context.Context, patientID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM dosage_records WHERE patient_id = $1 AND taken_at >= $2`,
		patientID, since).Scan(&n)
	return n, db.MapError(err, "dosage records")
}

func (r *recordRepoPG) Totals(ctx context.Context, patientID uuid.UUID) (int, *time.Time, error) {
	var (
		n    int
		last *time.Time
	)
	err := db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*), MAX(taken_at) FROM dosage_records WHERE patient_id = $1`,
		patientID).Scan(&n, &last)
	return n, last, db.MapError(err, "dosage records")
}
