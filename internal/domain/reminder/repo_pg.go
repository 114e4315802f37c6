package reminder

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/db"
)

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepoPG{pool: pool}
}

const scheduleCols = `id, patient_id, to_char(time_of_day, 'HH24:MI:SS'), days_of_week, is_active, created_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var (
		s    Schedule
		days []int16
	)
	if err := row.Scan(&s.ID, &s.PatientID, &s.TimeOfDay, &days, &s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.DaysOfWeek = make([]int, len(days))
	for i, d := range days {
		s.DaysOfWeek[i] = int(d)
	}
	return &s, nil
}

func toInt16(days []int) []int16 {
	out := make([]int16, len(days))
	for i, d := range days {
		out[i] = int16(d)
	}
	return out
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO reminder_schedules (patient_id, time_of_day, days_of_week, is_active)
		VALUES ($1, $2::time, $3, $4)
		RETURNING id, created_at`,
		s.PatientID, s.TimeOfDay, toInt16(s.DaysOfWeek), s.IsActive,
	).Scan(&s.ID, &s.CreatedAt)
	return db.MapError(err, "reminder")
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM reminder_schedules WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "reminder")
	}
	return s, nil
}

func (r *scheduleRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Schedule, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, `
		SELECT `+scheduleCols+` FROM reminder_schedules
		WHERE patient_id = $1 ORDER BY time_of_day, created_at`, patientID)
	if err != nil {
		return nil, db.MapError(err, "reminders")
	}
	defer rows.Close()

	var out []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, db.MapError(err, "reminders")
		}
		out = append(out, s)
	}
	return out, db.MapError(rows.Err(), "reminders")
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *Schedule) error {
	tag, err := db.From(ctx, r.pool).Exec(ctx, `
		UPDATE reminder_schedules SET time_of_day = $2::time, days_of_week = $3, is_active = $4
		WHERE id = $1`, s.ID, s.TimeOfDay, toInt16(s.DaysOfWeek), s.IsActive)
	if err != nil {
		return db.MapError(err, "reminder")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("reminder not found")
	}
	return nil
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.From(ctx, r.pool).Exec(ctx, `DELETE FROM reminder_schedules WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "reminder")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("reminder not found")
	}
	return nil
}

func (r *scheduleRepoPG) CountActive(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM reminder_schedules WHERE patient_id = $1 AND is_active`, patientID).Scan(&n)
	return n, db.MapError(err, "reminders")
}
