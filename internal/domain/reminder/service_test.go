package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

// -- Mock Repository --

type mockScheduleRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Schedule
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{store: make(map[uuid.UUID]*Schedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("reminder not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockScheduleRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Schedule
	for _, s := range m.store {
		if s.PatientID == patientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) Update(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[s.ID]; !ok {
		return apperr.NotFound("reminder not found")
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("reminder not found")
	}
	delete(m.store, id)
	return nil
}

func (m *mockScheduleRepo) CountActive(_ context.Context, patientID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.PatientID == patientID && s.IsActive {
			n++
		}
	}
	return n, nil
}

type noRelationships struct{}

func (noRelationships) ApprovedPatientIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (noRelationships) AssignedPatientIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func newTestService() (*Service, access.Viewer) {
	svc := NewService(newMockScheduleRepo(), access.NewPolicy(noRelationships{}), retry.WithAttempts(1))
	return svc, access.Viewer{ProfileID: uuid.New(), Role: access.RolePatient}
}

func boolPtr(b bool) *bool { return &b }

// -- Tests --

func TestCreate_DefaultsToActiveEveryDay(t *testing.T) {
	svc, patient := newTestService()
	s, err := svc.Create(context.Background(), patient, CreateRequest{TimeOfDay: "08:30"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.IsActive || len(s.DaysOfWeek) != 7 || s.TimeOfDay != "08:30:00" {
		t.Errorf("unexpected schedule %+v", s)
	}
}

func TestCreate_OnlyPatients(t *testing.T) {
	svc, _ := newTestService()
	caregiver := access.Viewer{ProfileID: uuid.New(), Role: access.RoleCaregiver}
	if _, err := svc.Create(context.Background(), caregiver, CreateRequest{TimeOfDay: "08:30"}); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCountActive_ExcludesInactive(t *testing.T) {
	svc, patient := newTestService()
	ctx := context.Background()
	svc.Create(ctx, patient, CreateRequest{TimeOfDay: "08:00"})
	svc.Create(ctx, patient, CreateRequest{TimeOfDay: "20:00"})
	svc.Create(ctx, patient, CreateRequest{TimeOfDay: "13:00", IsActive: boolPtr(false)})

	n, err := svc.CountActive(ctx, patient)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 active reminders, got %d", n)
	}
}

func TestUpdate(t *testing.T) {
	svc, patient := newTestService()
	ctx := context.Background()
	s, _ := svc.Create(ctx, patient, CreateRequest{TimeOfDay: "08:00"})

	days := []int{6, 0}
	tod := "09:15"
	got, err := svc.Update(ctx, patient, s.ID, UpdateRequest{TimeOfDay: &tod, DaysOfWeek: &days, IsActive: boolPtr(false)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.TimeOfDay != "09:15:00" || got.IsActive || len(got.DaysOfWeek) != 2 || got.DaysOfWeek[0] != 0 {
		t.Errorf("unexpected schedule %+v", got)
	}

	bad := []int{-1}
	if _, err := svc.Update(ctx, patient, s.ID, UpdateRequest{DaysOfWeek: &bad}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestOtherPatientsSchedulesAreHidden(t *testing.T) {
	svc, patient := newTestService()
	ctx := context.Background()
	s, _ := svc.Create(ctx, patient, CreateRequest{TimeOfDay: "08:00"})
	other := access.Viewer{ProfileID: uuid.New(), Role: access.RolePatient}

	if _, err := svc.Update(ctx, other, s.ID, UpdateRequest{IsActive: boolPtr(false)}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on update, got %v", err)
	}
	if err := svc.Delete(ctx, other, s.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on delete, got %v", err)
	}
	list, _ := svc.List(ctx, other)
	if len(list) != 0 {
		t.Errorf("expected no schedules for other patient, got %d", len(list))
	}
}

func TestDelete(t *testing.T) {
	svc, patient := newTestService()
	ctx := context.Background()
	s, _ := svc.Create(ctx, patient, CreateRequest{TimeOfDay: "08:00"})
	if err := svc.Delete(ctx, patient, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, patient, s.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}
