package identity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// Profile is the role-tagged identity behind an authenticated account.
type Profile struct {
	ID             uuid.UUID   `json:"id"`
	AccountID      string      `json:"account_id"`
	Role           access.Role `json:"role"`
	FullName       string      `json:"full_name"`
	MobileNumber   *string     `json:"mobile_number,omitempty"`
	IDProofNumber  *string     `json:"id_proof_number,omitempty"`
	IDProofURL     *string     `json:"id_proof_url,omitempty"`
	MobileVerified bool        `json:"mobile_verified"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (p *Profile) Viewer() access.Viewer {
	return access.Viewer{ProfileID: p.ID, AccountID: p.AccountID, Role: p.Role}
}

type CreateRequest struct {
	FullName      string  `json:"full_name"`
	Role          string  `json:"role"`
	MobileNumber  *string `json:"mobile_number"`
	IDProofNumber *string `json:"id_proof_number"`
}

// UpdateRequest carries the fields a profile owner may change. Role is only
// present so a client attempting to change it gets a validation error.
type UpdateRequest struct {
	FullName      *string `json:"full_name"`
	MobileNumber  *string `json:"mobile_number"`
	IDProofNumber *string `json:"id_proof_number"`
	Role          *string `json:"role"`
}

func normalizeFullName(s string) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < 2 || n > 100 {
		return "", apperr.Validation("full_name must be between 2 and 100 characters")
	}
	return s, nil
}

// normalizeMobile accepts 10-15 digits with an optional leading '+'. Spaces
// and dashes are stripped. An empty value clears the number.
func normalizeMobile(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(*s))
	if v == "" {
		return nil, nil
	}
	digits := strings.TrimPrefix(v, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return nil, apperr.Validation("mobile_number must have between 10 and 15 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, apperr.Validation("mobile_number may only contain digits")
		}
	}
	return &v, nil
}

func normalizeIDProofNumber(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if n := utf8.RuneCountInString(v); n < 5 || n > 50 {
		return nil, apperr.Validation("id_proof_number must be between 5 and 50 characters")
	}
	return &v, nil
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
