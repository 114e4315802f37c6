package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/events"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

type Service struct {
	alerts    AlertRepository
	policy    *access.Policy
	publisher events.Publisher
	logger    zerolog.Logger
	retry     retry.Policy
	now       func() time.Time
}

func NewService(alerts AlertRepository, policy *access.Policy, publisher events.Publisher, logger zerolog.Logger, rp retry.Policy) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		alerts:    alerts,
		policy:    policy,
		publisher: publisher,
		logger:    logger,
		retry:     rp,
		now:       time.Now,
	}
}

// Raise opens an SOS alert for the calling patient. Coordinates are
// optional.
func (s *Service) Raise(ctx context.Context, v access.Viewer, req RaiseRequest) (*Alert, error) {
	if err := s.policy.AuthorizeOwnerWrite(v, v.ProfileID); err != nil {
		return nil, err
	}
	if err := validateLocation(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	msg := messageOrDefault(req.Message)
	a := &Alert{
		PatientID:   v.ProfileID,
		AlertType:   TypeSOS,
		Message:     &msg,
		LocationLat: req.Latitude,
		LocationLng: req.Longitude,
	}
	if err := s.alerts.Create(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, events.AlertRaised, a)
	return a, nil
}

// Resolve closes an alert. Caregivers and medical team members with
// visibility may resolve; the owning patient may cancel. Resolving a
// resolved alert returns it unchanged so retries are safe.
func (s *Service) Resolve(ctx context.Context, v access.Viewer, alertID uuid.UUID) (*Alert, error) {
	a, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeRead(ctx, v, a.PatientID); err != nil {
		return nil, err
	}
	if a.IsResolved {
		return a, nil
	}

	at := s.now().UTC()
	changed, err := s.alerts.Resolve(ctx, a.ID, v.ProfileID, at)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Someone else resolved it between the read and the update.
		return s.alerts.GetByID(ctx, alertID)
	}
	a.IsResolved = true
	a.ResolvedAt = &at
	a.ResolvedBy = &v.ProfileID
	s.publish(ctx, events.AlertResolved, a)
	return a, nil
}

// CancelActive resolves all of the calling patient's open alerts.
func (s *Service) CancelActive(ctx context.Context, v access.Viewer) ([]*Alert, error) {
	if err := s.policy.AuthorizeOwnerWrite(v, v.ProfileID); err != nil {
		return nil, err
	}
	resolved, err := s.alerts.ResolveAllForPatient(ctx, v.ProfileID, v.ProfileID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	for _, a := range resolved {
		s.publish(ctx, events.AlertResolved, a)
	}
	if resolved == nil {
		resolved = []*Alert{}
	}
	return resolved, nil
}

// ListUnresolvedVisibleTo returns open alerts for every patient in the
// viewer's scope, newest first. Caregivers only see approved links.
func (s *Service) ListUnresolvedVisibleTo(ctx context.Context, v access.Viewer) ([]*Alert, error) {
	scope, err := s.policy.Scope(ctx, v)
	if err != nil {
		return nil, err
	}
	if scope.Len() == 0 {
		return []*Alert{}, nil
	}
	list, err := retry.Read(ctx, s.retry, func(ctx context.Context) ([]*Alert, error) {
		return s.alerts.ListUnresolved(ctx, scope.IDs())
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Alert, 0, len(list))
	for _, a := range list {
		if scope.Contains(a.PatientID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, typ string, a *Alert) {
	err := s.publisher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: s.now().UTC(),
		Data:       a.eventData(),
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("event", typ).
			Str("alert_id", a.ID.String()).
			Msg("failed to publish alert event")
	}
}
