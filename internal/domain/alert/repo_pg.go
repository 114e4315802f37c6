package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inhalecare/inhalecare/internal/platform/db"
)

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewAlertRepoPG(pool *pgxpool.Pool) AlertRepository {
	return &alertRepoPG{pool: pool}
}

const alertCols = `a.id, a.patient_id, a.alert_type, a.message, a.location_lat, a.location_lng,
	a.is_resolved, a.resolved_at, a.resolved_by, a.created_at`

func scanAlert(row pgx.Row, extra ...interface{}) (*Alert, error) {
	var a Alert
	dest := []interface{}{&a.ID, &a.PatientID, &a.AlertType, &a.Message, &a.LocationLat, &a.LocationLng,
		&a.IsResolved, &a.ResolvedAt, &a.ResolvedBy, &a.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO emergency_alerts (patient_id, alert_type, message, location_lat, location_lng)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_resolved, created_at`,
		a.PatientID, a.AlertType, a.Message, a.LocationLat, a.LocationLng,
	).Scan(&a.ID, &a.IsResolved, &a.CreatedAt)
	return db.MapError(err, "alert")
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scanAlert(db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT `+alertCols+` FROM emergency_alerts a WHERE a.id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "alert")
	}
	return a, nil
}

func (r *alertRepoPG) Resolve(ctx context.Context, id, by uuid.UUID, at time.Time) (bool, error) {
	tag, err := db.From(ctx, r.pool).Exec(ctx, `
		UPDATE emergency_alerts SET is_resolved = TRUE, resolved_at = $3, resolved_by = $2
		WHERE id = $1 AND NOT is_resolved`, id, by, at)
	if err != nil {
		return false, db.MapError(err, "alert")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *alertRepoPG) ResolveAllForPatient(ctx context.Context, patientID, by uuid.UUID, at time.Time) ([]*Alert, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, `
		UPDATE emergency_alerts a SET is_resolved = TRUE, resolved_at = $3, resolved_by = $2
		WHERE a.patient_id = $1 AND NOT a.is_resolved
		RETURNING `+alertCols, patientID, by, at)
	if err != nil {
		return nil, db.MapError(err, "alerts")
	}
	return collectAlerts(rows, false)
}

func (r *alertRepoPG) ListUnresolved(ctx context.Context, patientIDs []uuid.UUID) ([]*Alert, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, `
		SELECT `+alertCols+`, COALESCE(p.full_name, '')
		FROM emergency_alerts a
		LEFT JOIN profiles p ON p.id = a.patient_id
		WHERE a.patient_id = ANY($1) AND NOT a.is_resolved
		ORDER BY a.created_at DESC, a.id`, patientIDs)
	if err != nil {
		return nil, db.MapError(err, "alerts")
	}
	return collectAlerts(rows, true)
}

func collectAlerts(rows pgx.Rows, withName bool) ([]*Alert, error) {
	defer rows.Close()
	var out []*Alert
	for rows.Next() {
		var (
			a    *Alert
			err  error
			name string
		)
		if withName {
			a, err = scanAlert(rows, &name)
		} else {
			a, err = scanAlert(rows)
		}
		if err != nil {
			return nil, db.MapError(err, "alerts")
		}
		a.PatientName = name
		out = append(out, a)
	}
	return out, db.MapError(rows.Err(), "alerts")
}
