package device

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/db"
)

type deviceRepoPG struct{ pool *pgxpool.Pool }

func NewDeviceRepoPG(pool *pgxpool.Pool) DeviceRepository {
	return &deviceRepoPG{pool: pool}
}

const deviceCols = `id, patient_id, device_name, external_device_id, total_doses,
	remaining_doses, battery_level, last_sync, created_at`

func scanDevice(row pgx.Row) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.PatientID, &d.DeviceName, &d.ExternalDeviceID, &d.TotalDoses,
		&d.RemainingDoses, &d.BatteryLevel, &d.LastSync, &d.CreatedAt)
	return &d, err
}

func (r *deviceRepoPG) Create(ctx context.Context, d *Device) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO inhaler_devices (patient_id, device_name, external_device_id,
			total_doses, remaining_doses, battery_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		d.PatientID, d.DeviceName, d.ExternalDeviceID, d.TotalDoses, d.RemainingDoses, d.BatteryLevel,
	).Scan(&d.ID, &d.CreatedAt)
	return db.MapError(err, "device")
}

func (r *deviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	d, err := scanDevice(db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT `+deviceCols+` FROM inhaler_devices WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "device")
	}
	return d, nil
}

func (r *deviceRepoPG) GetByExternalID(ctx context.Context, externalID string) (*Device, error) {
	d, err := scanDevice(db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT `+deviceCols+` FROM inhaler_devices WHERE external_device_id = $1`, externalID))
	if err != nil {
		return nil, db.MapError(err, "device")
	}
	return d, nil
}

func (r *deviceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Device, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx,
		`SELECT `+deviceCols+` FROM inhaler_devices WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, db.MapError(err, "devices")
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, db.MapError(err, "devices")
		}
		out = append(out, d)
	}
	return out, db.MapError(rows.Err(), "devices")
}

func (r *deviceRepoPG) UpdateLevels(ctx context.Context, id uuid.UUID, battery, remaining int, syncedAt time.Time) error {
	tag, err := db.From(ctx, r.pool).Exec(ctx, `
		UPDATE inhaler_devices SET battery_level = $2, remaining_doses = $3, last_sync = $4
		WHERE id = $1`, id, battery, remaining, syncedAt)
	if err != nil {
		return db.MapError(err, "device")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("device not found")
	}
	return nil
}

func (r *deviceRepoPG) Decrement(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := db.From(ctx, r.pool).Exec(ctx, `
		UPDATE inhaler_devices SET remaining_doses = remaining_doses - 1
		WHERE id = $1 AND remaining_doses > 0`, id)
	if err != nil {
		return false, db.MapError(err, "device")
	}
	return tag.RowsAffected() == 1, nil
}
