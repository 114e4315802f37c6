package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/devicesync"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

// -- Mock Repository --

type mockDeviceRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Device
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{store: make(map[uuid.UUID]*Device)}
}

func (m *mockDeviceRepo) Create(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ExternalDeviceID != nil {
		for _, existing := range m.store {
			if existing.ExternalDeviceID != nil && *existing.ExternalDeviceID == *d.ExternalDeviceID {
				return apperr.Conflict("device already exists")
			}
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("device not found")
	}
	cp := *d
	return &cp, nil
}

func (m *mockDeviceRepo) GetByExternalID(_ context.Context, externalID string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.store {
		if d.ExternalDeviceID != nil && *d.ExternalDeviceID == externalID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("device not found")
}

func (m *mockDeviceRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Device
	for _, d := range m.store {
		if d.PatientID == patientID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDeviceRepo) UpdateLevels(_ context.Context, id uuid.UUID, battery, remaining int, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return apperr.NotFound("device not found")
	}
	d.BatteryLevel, d.RemainingDoses, d.LastSync = battery, remaining, &syncedAt
	return nil
}

func (m *mockDeviceRepo) Decrement(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok || d.RemainingDoses == 0 {
		return false, nil
	}
	d.RemainingDoses--
	return true, nil
}

type fakeRelationships struct {
	approved map[uuid.UUID][]uuid.UUID
}

func (f fakeRelationships) ApprovedPatientIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return f.approved[id], nil
}

func (f fakeRelationships) AssignedPatientIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func intPtr(n int) *int { return &n }

func newTestService() (*Service, *mockDeviceRepo, access.Viewer, access.Viewer) {
	patient := access.Viewer{ProfileID: uuid.New(), Role: access.RolePatient}
	caregiver := access.Viewer{ProfileID: uuid.New(), Role: access.RoleCaregiver}
	rel := fakeRelationships{approved: map[uuid.UUID][]uuid.UUID{caregiver.ProfileID: {patient.ProfileID}}}
	repo := newMockDeviceRepo()
	svc := NewService(repo, access.NewPolicy(rel), DefaultThresholds(), retry.WithAttempts(1))
	return svc, repo, patient, caregiver
}

// -- Tests --

func TestRegisterDevice_Defaults(t *testing.T) {
	svc, _, patient, _ := newTestService()
	d, err := svc.RegisterDevice(context.Background(), patient, RegisterRequest{DeviceName: "Blue reliever"})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if d.TotalDoses != 200 || d.RemainingDoses != 200 || d.BatteryLevel != 100 {
		t.Errorf("unexpected defaults: %+v", d)
	}
	if d.PatientID != patient.ProfileID {
		t.Error("device should belong to the caller")
	}
}

func TestRegisterDevice_OwnerOnly(t *testing.T) {
	svc, _, patient, caregiver := newTestService()
	_, err := svc.RegisterDevice(context.Background(), caregiver, RegisterRequest{PatientID: &patient.ProfileID, DeviceName: "Inhaler"})
	if !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRegisterDevice_Validation(t *testing.T) {
	svc, _, patient, _ := newTestService()
	cases := map[string]RegisterRequest{
		"missing name":      {},
		"battery too high":  {DeviceName: "x", BatteryLevel: intPtr(101)},
		"remaining > total": {DeviceName: "x", TotalDoses: intPtr(100), RemainingDoses: intPtr(120)},
		"negative total":    {DeviceName: "x", TotalDoses: intPtr(-1)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.RegisterDevice(context.Background(), patient, req); !apperr.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestListDevices_LowDoseFlagFollowsSync(t *testing.T) {
	svc, _, patient, caregiver := newTestService()
	ctx := context.Background()
	d, _ := svc.RegisterDevice(ctx, patient, RegisterRequest{DeviceName: "Inhaler", TotalDoses: intPtr(200), RemainingDoses: intPtr(156)})

	list, err := svc.ListDevicesForPatient(ctx, caregiver, patient.ProfileID)
	if err != nil {
		t.Fatalf("ListDevicesForPatient: %v", err)
	}
	if len(list) != 1 || list[0].LowDoses {
		t.Fatalf("expected one device not low on doses, got %+v", list)
	}

	if _, err := svc.RecordSync(ctx, d.ID, SyncReading{BatteryLevel: intPtr(80), RemainingDoses: intPtr(30)}); err != nil {
		t.Fatalf("RecordSync: %v", err)
	}
	list, _ = svc.ListDevicesForPatient(ctx, patient, patient.ProfileID)
	if !list[0].LowDoses || list[0].LowBattery {
		t.Errorf("expected low doses only, got %+v", list[0])
	}
	if list[0].LastSync == nil {
		t.Error("expected last_sync to be set")
	}
}

func TestListDevices_OutsideScopeForbidden(t *testing.T) {
	svc, _, patient, _ := newTestService()
	stranger := access.Viewer{ProfileID: uuid.New(), Role: access.RoleCaregiver}
	if _, err := svc.ListDevicesForPatient(context.Background(), stranger, patient.ProfileID); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRecordSync_Validation(t *testing.T) {
	svc, _, patient, _ := newTestService()
	ctx := context.Background()
	d, _ := svc.RegisterDevice(ctx, patient, RegisterRequest{DeviceName: "Inhaler"})

	if _, err := svc.RecordSync(ctx, d.ID, SyncReading{BatteryLevel: intPtr(-1), RemainingDoses: intPtr(10)}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for battery, got %v", err)
	}
	if _, err := svc.RecordSync(ctx, d.ID, SyncReading{BatteryLevel: intPtr(50), RemainingDoses: intPtr(201)}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for remaining, got %v", err)
	}
	if _, err := svc.RecordSync(ctx, d.ID, SyncReading{BatteryLevel: intPtr(50)}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for missing remaining, got %v", err)
	}
	if _, err := svc.RecordSync(ctx, uuid.New(), SyncReading{BatteryLevel: intPtr(50), RemainingDoses: intPtr(1)}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRecordSync_UsesReportedTimestamp(t *testing.T) {
	svc, _, patient, _ := newTestService()
	ctx := context.Background()
	ext := "INH-0042"
	svc.RegisterDevice(ctx, patient, RegisterRequest{DeviceName: "Inhaler", ExternalDeviceID: &ext})

	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	d, err := svc.RecordSyncByExternalID(ctx, ext, SyncReading{BatteryLevel: intPtr(15), RemainingDoses: intPtr(120), Timestamp: &at})
	if err != nil {
		t.Fatalf("RecordSyncByExternalID: %v", err)
	}
	if !d.LastSync.Equal(at) {
		t.Errorf("expected last_sync %v, got %v", at, d.LastSync)
	}
	if !d.LowBattery {
		t.Error("15% battery should be flagged")
	}
}

func TestSyncFromOwner_RejectsOthers(t *testing.T) {
	svc, _, patient, caregiver := newTestService()
	ctx := context.Background()
	d, _ := svc.RegisterDevice(ctx, patient, RegisterRequest{DeviceName: "Inhaler"})

	if _, err := svc.SyncFromOwner(ctx, caregiver, d.ID, SyncReading{BatteryLevel: intPtr(50), RemainingDoses: intPtr(10)}); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.SyncFromOwner(ctx, patient, d.ID, SyncReading{BatteryLevel: intPtr(50), RemainingDoses: intPtr(10)}); err != nil {
		t.Fatalf("owner sync: %v", err)
	}
}

func TestConsumeDose(t *testing.T) {
	svc, repo, patient, _ := newTestService()
	ctx := context.Background()
	d, _ := svc.RegisterDevice(ctx, patient, RegisterRequest{DeviceName: "Inhaler", TotalDoses: intPtr(2)})

	if err := svc.ConsumeDose(ctx, uuid.New(), d.ID); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden for another patient, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.ConsumeDose(ctx, patient.ProfileID, d.ID); err != nil {
			t.Fatalf("ConsumeDose %d: %v", i, err)
		}
	}
	if repo.store[d.ID].RemainingDoses != 0 {
		t.Errorf("expected 0 remaining, got %d", repo.store[d.ID].RemainingDoses)
	}
	if err := svc.ConsumeDose(ctx, patient.ProfileID, d.ID); !apperr.IsValidation(err) {
		t.Errorf("expected validation error on empty device, got %v", err)
	}
}

func TestSyncSink_RoutesByKey(t *testing.T) {
	svc, repo, patient, _ := newTestService()
	ctx := context.Background()
	ext := "INH-0100"
	byExt, _ := svc.RegisterDevice(ctx, patient, RegisterRequest{DeviceName: "Brown preventer", ExternalDeviceID: &ext})
	byID, _ := svc.RegisterDevice(ctx, patient, RegisterRequest{DeviceName: "Blue reliever"})

	sink := SyncSink{Service: svc}
	if err := sink.ApplyReading(ctx, ext, devicesync.Reading{BatteryLevel: intPtr(40), RemainingDoses: intPtr(99)}); err != nil {
		t.Fatalf("ApplyReading by external id: %v", err)
	}
	if err := sink.ApplyReading(ctx, byID.ID.String(), devicesync.Reading{BatteryLevel: intPtr(70), RemainingDoses: intPtr(12)}); err != nil {
		t.Fatalf("ApplyReading by id: %v", err)
	}

	got, _ := repo.GetByID(ctx, byExt.ID)
	if got.RemainingDoses != 99 || got.BatteryLevel != 40 {
		t.Errorf("external-id device not updated: %+v", got)
	}
	got, _ = repo.GetByID(ctx, byID.ID)
	if got.RemainingDoses != 12 || got.BatteryLevel != 70 {
		t.Errorf("id device not updated: %+v", got)
	}
	if err := sink.ApplyReading(ctx, "unknown", devicesync.Reading{BatteryLevel: intPtr(1), RemainingDoses: intPtr(1)}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
