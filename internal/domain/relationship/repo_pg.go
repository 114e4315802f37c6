package relationship

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/db"
)

// -- Links --

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewLinkRepoPG(pool *pgxpool.Pool) LinkRepository {
	return &linkRepoPG{pool: pool}
}

const linkCols = `l.id, l.patient_id, l.caregiver_id, l.is_approved, l.created_at`

func (r *linkRepoPG) Create(ctx context.Context, l *Link) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_caregiver_links (patient_id, caregiver_id, is_approved)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		l.PatientID, l.CaregiverID, l.IsApproved,
	).Scan(&l.ID, &l.CreatedAt)
	return db.MapError(err, "link")
}

func (r *linkRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Link, error) {
	var l Link
	err := db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT `+linkCols+` FROM patient_caregiver_links l WHERE l.id = $1`, id,
	).Scan(&l.ID, &l.PatientID, &l.CaregiverID, &l.IsApproved, &l.CreatedAt)
	if err != nil {
		return nil, db.MapError(err, "link")
	}
	return &l, nil
}

func (r *linkRepoPG) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	tag, err := db.From(ctx, r.pool).Exec(ctx,
		`UPDATE patient_caregiver_links SET is_approved = $2 WHERE id = $1`, id, approved)
	if err != nil {
		return db.MapError(err, "link")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("link not found")
	}
	return nil
}

func (r *linkRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Link, error) {
	return r.list(ctx, `
		SELECT `+linkCols+`, COALESCE(p.full_name, '')
		FROM patient_caregiver_links l
		LEFT JOIN profiles p ON p.id = l.caregiver_id
		WHERE l.patient_id = $1
		ORDER BY l.created_at DESC, l.id`, patientID)
}

func (r *linkRepoPG) ListByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Link, error) {
	return r.list(ctx, `
		SELECT `+linkCols+`, COALESCE(p.full_name, '')
		FROM patient_caregiver_links l
		LEFT JOIN profiles p ON p.id = l.patient_id
		WHERE l.caregiver_id = $1
		ORDER BY l.created_at DESC, l.id`, caregiverID)
}

func (r *linkRepoPG) list(ctx context.Context, query string, arg uuid.UUID) ([]*Link, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, db.MapError(err, "links")
	}
	defer rows.Close()

	var out []*Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.PatientID, &l.CaregiverID, &l.IsApproved, &l.CreatedAt, &l.CounterpartName); err != nil {
			return nil, db.MapError(err, "links")
		}
		out = append(out, &l)
	}
	return out, db.MapError(rows.Err(), "links")
}

func (r *linkRepoPG) ApprovedPatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, db.From(ctx, r.pool), `
		SELECT DISTINCT patient_id FROM patient_caregiver_links
		WHERE caregiver_id = $1 AND is_approved`, caregiverID)
}

// -- Assignments --

type assignmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pool: pool}
}

func (r *assignmentRepoPG) Create(ctx context.Context, a *Assignment) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_medical_assignments (patient_id, medical_team_id)
		VALUES ($1, $2)
		RETURNING id, assigned_at`,
		a.PatientID, a.MedicalTeamID,
	).Scan(&a.ID, &a.AssignedAt)
	return db.MapError(err, "assignment")
}

func (r *assignmentRepoPG) ListByMedicalTeam(ctx context.Context, medicalTeamID uuid.UUID) ([]*Assignment, error) {
	rows, err := db.From(ctx, r.pool).Query(ctx, `
		SELECT a.id, a.patient_id, a.medical_team_id, a.assigned_at, COALESCE(p.full_name, '')
		FROM patient_medical_assignments a
		LEFT JOIN profiles p ON p.id = a.patient_id
		WHERE a.medical_team_id = $1
		ORDER BY a.assigned_at DESC, a.id`, medicalTeamID)
	if err != nil {
		return nil, db.MapError(err, "assignments")
	}
	defer rows.Close()

	var out []*Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.MedicalTeamID, &a.AssignedAt, &a.PatientName); err != nil {
			return nil, db.MapError(err, "assignments")
		}
		out = append(out, &a)
	}
	return out, db.MapError(rows.Err(), "assignments")
}

func (r *assignmentRepoPG) PatientIDs(ctx context.Context, medicalTeamID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, db.From(ctx, r.pool), `
		SELECT DISTINCT patient_id FROM patient_medical_assignments
		WHERE medical_team_id = $1`, medicalTeamID)
}

func collectIDs(ctx context.Context, q db.Querier, query string, arg uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, query, arg)
	if err != nil {
		return nil, db.MapError(err, "patient ids")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	return ids, db.MapError(err, "patient ids")
}

// -- Roles --

type roleLookupPG struct{ pool *pgxpool.Pool }

// NewRoleLookupPG resolves roles through app_profile_role, which bypasses
// row-level security so a patient can link to a caregiver it cannot see yet.
func NewRoleLookupPG(pool *pgxpool.Pool) RoleLookup {
	return &roleLookupPG{pool: pool}
}

func (r *roleLookupPG) RoleOf(ctx context.Context, profileID uuid.UUID) (access.Role, error) {
	var role *string
	if err := db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT app_profile_role($1)::text`, profileID).Scan(&role); err != nil {
		return "", db.MapError(err, "profile")
	}
	if role == nil {
		return "", apperr.NotFound("profile %s not found", profileID)
	}
	return access.Role(*role), nil
}
