package identity

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/blobstore"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

// MaxIDProofSize caps identity document uploads.
const MaxIDProofSize = 10 << 20

var idProofTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

type Service struct {
	profiles ProfileRepository
	blobs    blobstore.Store
	retry    retry.Policy
	logger   zerolog.Logger
}

func NewService(profiles ProfileRepository, blobs blobstore.Store, logger zerolog.Logger, rp retry.Policy) *Service {
	return &Service{profiles: profiles, blobs: blobs, logger: logger, retry: rp}
}

// CreateProfile onboards an account. Each account owns exactly one profile.
func (s *Service) CreateProfile(ctx context.Context, accountID string, req CreateRequest) (*Profile, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, apperr.Validation("account id is required")
	}
	name, err := normalizeFullName(req.FullName)
	if err != nil {
		return nil, err
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	mobile, err := normalizeMobile(req.MobileNumber)
	if err != nil {
		return nil, err
	}
	idProof, err := normalizeIDProofNumber(req.IDProofNumber)
	if err != nil {
		return nil, err
	}

	if _, err := s.profiles.GetByAccountID(ctx, accountID); err == nil {
		return nil, apperr.Conflict("a profile already exists for this account")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	p := &Profile{
		AccountID:     accountID,
		Role:          role,
		FullName:      name,
		MobileNumber:  mobile,
		IDProofNumber: idProof,
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		if apperr.IsConflict(err) {
			return nil, apperr.Conflict("a profile already exists for this account")
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProfileForAccount(ctx context.Context, accountID string) (*Profile, error) {
	return retry.Read(ctx, s.retry, func(ctx context.Context) (*Profile, error) {
		return s.profiles.GetByAccountID(ctx, accountID)
	})
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return retry.Read(ctx, s.retry, func(ctx context.Context) (*Profile, error) {
		return s.profiles.GetByID(ctx, id)
	})
}

// RoleOf returns the role of the given profile.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (access.Role, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

// UpdateProfile applies a partial update. Only the owning account may update
// a profile and the role can never change.
func (s *Service) UpdateProfile(ctx context.Context, actorAccountID string, profileID uuid.UUID, req UpdateRequest) (*Profile, error) {
	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.AccountID != actorAccountID {
		return nil, apperr.Forbidden("profiles can only be updated by their owner")
	}
	if req.Role != nil && *req.Role != string(p.Role) {
		return nil, apperr.Validation("role cannot be changed")
	}

	if req.FullName != nil {
		name, err := normalizeFullName(*req.FullName)
		if err != nil {
			return nil, err
		}
		p.FullName = name
	}
	if req.MobileNumber != nil {
		mobile, err := normalizeMobile(req.MobileNumber)
		if err != nil {
			return nil, err
		}
		if !sameString(mobile, p.MobileNumber) {
			p.MobileVerified = false
		}
		p.MobileNumber = mobile
	}
	if req.IDProofNumber != nil {
		idProof, err := normalizeIDProofNumber(req.IDProofNumber)
		if err != nil {
			return nil, err
		}
		p.IDProofNumber = idProof
	}

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UploadIDProof stores an identity document for the caller's own profile and
// records its object key. A previous document is removed once the new one is
// saved.
func (s *Service) UploadIDProof(ctx context.Context, actorAccountID, contentType string, content io.Reader) (*Profile, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := idProofTypes[ct]
	if !ok {
		return nil, apperr.Validation("id proof must be a JPEG, PNG or PDF file")
	}
	p, err := s.profiles.GetByAccountID(ctx, actorAccountID)
	if err != nil {
		return nil, err
	}

	key := path.Join("id-proofs", p.ID.String(), uuid.NewString()+ext)
	obj, err := s.blobs.Put(ctx, key, ct, content, MaxIDProofSize)
	if err != nil {
		return nil, err
	}

	previous := p.IDProofURL
	p.IDProofURL = &obj.Key
	if err := s.profiles.Update(ctx, p); err != nil {
		s.deleteBlob(ctx, obj.Key, p.ID)
		return nil, fmt.Errorf("recording id proof: %w", err)
	}
	if previous != nil && *previous != obj.Key {
		s.deleteBlob(ctx, *previous, p.ID)
	}
	return p, nil
}

// deleteBlob removes an object no profile refers to. A failure leaves an
// orphan in the bucket, which is logged and otherwise ignored.
func (s *Service) deleteBlob(ctx context.Context, key string, profileID uuid.UUID) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).
			Str("key", key).
			Str("profile_id", profileID.String()).
			Msg("failed to delete id proof")
	}
}
