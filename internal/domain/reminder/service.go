package reminder

import (
	"context"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

// Service manages reminder schedules. Every operation is limited to the
// calling patient's own rows; nobody else reads them.
type Service struct {
	schedules ScheduleRepository
	policy    *access.Policy
	retry     retry.Policy
}

func NewService(schedules ScheduleRepository, policy *access.Policy, rp retry.Policy) *Service {
	return &Service{schedules: schedules, policy: policy, retry: rp}
}

func (s *Service) Create(ctx context.Context, v access.Viewer, req CreateRequest) (*Schedule, error) {
	if err := s.policy.AuthorizeOwnerWrite(v, v.ProfileID); err != nil {
		return nil, err
	}
	tod, err := normalizeTimeOfDay(req.TimeOfDay)
	if err != nil {
		return nil, err
	}
	days, err := normalizeDays(req.DaysOfWeek)
	if err != nil {
		return nil, err
	}
	sch := &Schedule{PatientID: v.ProfileID, TimeOfDay: tod, DaysOfWeek: days, IsActive: true}
	if req.IsActive != nil {
		sch.IsActive = *req.IsActive
	}
	if err := s.schedules.Create(ctx, sch); err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *Service) List(ctx context.Context, v access.Viewer) ([]*Schedule, error) {
	if err := s.policy.AuthorizeOwnerWrite(v, v.ProfileID); err != nil {
		return nil, err
	}
	list, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Schedule, error) {
		return s.schedules.ListByPatient(ctx, v.ProfileID)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Schedule{}
	}
	return list, nil
}

// owned loads a schedule and hides other patients' rows behind NotFound.
func (s *Service) owned(ctx context.Context, v access.Viewer, id uuid.UUID) (*Schedule, error) {
	if err := s.policy.AuthorizeOwnerWrite(v, v.ProfileID); err != nil {
		return nil, err
	}
	sch, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sch.PatientID != v.ProfileID {
		return nil, apperr.NotFound("reminder not found")
	}
	return sch, nil
}

func (s *Service) Update(ctx context.Context, v access.Viewer, id uuid.UUID, req UpdateRequest) (*Schedule, error) {
	sch, err := s.owned(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if req.TimeOfDay != nil {
		if sch.TimeOfDay, err = normalizeTimeOfDay(*req.TimeOfDay); err != nil {
			return nil, err
		}
	}
	if req.DaysOfWeek != nil {
		if sch.DaysOfWeek, err = normalizeDays(*req.DaysOfWeek); err != nil {
			return nil, err
		}
	}
	if req.IsActive != nil {
		sch.IsActive = *req.IsActive
	}
	if err := s.schedules.Update(ctx, sch); err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *Service) Delete(ctx context.Context, v access.Viewer, id uuid.UUID) error {
	if _, err := s.owned(ctx, v, id); err != nil {
		return err
	}
	return s.schedules.Delete(ctx, id)
}

// CountActive excludes schedules with is_active=false.
func (s *Service) CountActive(ctx context.Context, v access.Viewer) (int, error) {
	if err := s.policy.AuthorizeOwnerWrite(v, v.ProfileID); err != nil {
		return 0, err
	}
	return retry.Read(ctx, s.retry, func(ctx context.Context) (int, error) {
		return s.schedules.CountActive(ctx, v.ProfileID)
	})
}
