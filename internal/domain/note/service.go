package note

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
	"github.com/inhalecare/inhalecare/pkg/pagination"
)

type Service struct {
	notes  NoteRepository
	policy *access.Policy
	retry  retry.Policy
}

func NewService(notes NoteRepository, policy *access.Policy, rp retry.Policy) *Service {
	return &Service{notes: notes, policy: policy, retry: rp}
}

// AddNote appends a note. Only a caregiver with an approved link to the
// patient may write one.
func (s *Service) AddNote(ctx context.Context, v access.Viewer, patientID uuid.UUID, text string) (*Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("note text is required")
	}
	if utf8.RuneCountInString(text) > MaxNoteLength {
		return nil, apperr.Validation("note must be at most %d characters", MaxNoteLength)
	}
	if err := s.policy.AuthorizeNoteWrite(ctx, v, patientID); err != nil {
		return nil, err
	}
	n := &Note{CaregiverID: v.ProfileID, PatientID: patientID, Note: text}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotesForPatient fails with Forbidden outside the viewer's scope so "no
// access" is never confused with "no notes".
func (s *Service) ListNotesForPatient(ctx context.Context, v access.Viewer, patientID uuid.UUID, p pagination.Params) (*pagination.Page[*Note], error) {
	if err := s.policy.AuthorizeRead(ctx, v, patientID); err != nil {
		return nil, err
	}
	rows, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Note, error) {
		return s.notes.ListByPatient(ctx, patientID, p.Probe(), p.Offset)
	})
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(rows, p), nil
}

// RecentNotesVisibleTo is the medical-team feed across every patient in
// scope.
func (s *Service) RecentNotesVisibleTo(ctx context.Context, v access.Viewer, limit int) ([]*Note, error) {
	if limit <= 0 || limit > pagination.MaxLimit {
		limit = pagination.DefaultLimit
	}
	scope, err := s.policy.Scope(ctx, v)
	if err != nil {
		return nil, err
	}
	if scope.Len() == 0 {
		return []*Note{}, nil
	}
	list, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Note, error) {
		return s.notes.ListRecent(ctx, scope.IDs(), limit)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Note{}
	}
	return list, nil
}
