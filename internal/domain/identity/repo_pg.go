package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/db"
)

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

const profileCols = `id, account_id, role, full_name, mobile_number, id_proof_number,
	id_proof_url, mobile_verified, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var role string
	if err := row.Scan(&p.ID, &p.AccountID, &role, &p.FullName, &p.MobileNumber,
		&p.IDProofNumber, &p.IDProofURL, &p.MobileVerified, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = access.Role(role)
	return &p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO profiles (account_id, role, full_name, mobile_number, id_proof_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, mobile_verified, created_at, updated_at`,
		p.AccountID, string(p.Role), p.FullName, p.MobileNumber, p.IDProofNumber,
	).Scan(&p.ID, &p.MobileVerified, &p.CreatedAt, &p.UpdatedAt)
	return db.MapError(err, "profile")
}

func (r *profileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := scanProfile(db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE id = $1`, id))
	return p, db.MapError(err, "profile")
}

func (r *profileRepoPG) GetByAccountID(ctx context.Context, accountID string) (*Profile, error) {
	p, err := scanProfile(db.From(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE account_id = $1`, accountID))
	return p, db.MapError(err, "profile")
}

func (r *profileRepoPG) Update(ctx context.Context, p *Profile) error {
	err := db.From(ctx, r.pool).QueryRow(ctx, `
		UPDATE profiles SET full_name = $2, mobile_number = $3, id_proof_number = $4,
			id_proof_url = $5, mobile_verified = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FullName, p.MobileNumber, p.IDProofNumber, p.IDProofURL, p.MobileVerified,
	).Scan(&p.UpdatedAt)
	return db.MapError(err, "profile")
}
