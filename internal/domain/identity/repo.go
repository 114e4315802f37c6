package identity

import (
	"context"

	"github.com/google/uuid"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByAccountID(ctx context.Context, accountID string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
}
