package dosage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/db"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
	"github.com/inhalecare/inhalecare/pkg/pagination"
)

// -- Mocks --

type mockRecordRepo struct {
	mu      sync.Mutex
	records []*Record
}

func (m *mockRecordRepo) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now().UTC()
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockRecordRepo) ListRecent(_ context.Context, patientID uuid.UUID, limit, offset int, since *time.Time) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, r := range m.records {
		if r.PatientID != patientID || (since != nil && r.TakenAt.Before(*since)) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRecordRepo) CountSince(_ context.Context, patientID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.PatientID == patientID && !r.TakenAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockRecordRepo) Totals(_ context.Context, patientID uuid.UUID) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		n    int
		last *time.Time
	)
	for _, r := range m.records {
		if r.PatientID != patientID {
			continue
		}
		n++
		if last == nil || r.TakenAt.After(*last) {
			t := r.TakenAt
			last = &t
		}
	}
	return n, last, nil
}

type mockDevices struct {
	remaining map[uuid.UUID]int
	owner     map[uuid.UUID]uuid.UUID
}

func (m *mockDevices) ConsumeDose(_ context.Context, patientID, deviceID uuid.UUID) error {
	owner, ok := m.owner[deviceID]
	if !ok {
		return apperr.NotFound("device not found")
	}
	if owner != patientID {
		return apperr.Forbidden("device belongs to another patient")
	}
	if m.remaining[deviceID] == 0 {
		return apperr.Validation("device has no remaining doses")
	}
	m.remaining[deviceID]--
	return nil
}

// countingTx records how many transactions were opened.
type countingTx struct{ n int }

func (c *countingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	c.n++
	return db.NopTxRunner{}.InTx(ctx, fn)
}

type fakeRelationships struct {
	approved map[uuid.UUID][]uuid.UUID
	assigned map[uuid.UUID][]uuid.UUID
}

func (f fakeRelationships) ApprovedPatientIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return f.approved[id], nil
}

func (f fakeRelationships) AssignedPatientIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return f.assigned[id], nil
}

type fixture struct {
	svc     *Service
	repo    *mockRecordRepo
	devices *mockDevices
	tx      *countingTx
	patient access.Viewer
	doctor  access.Viewer
	now     time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:    &mockRecordRepo{},
		devices: &mockDevices{remaining: map[uuid.UUID]int{}, owner: map[uuid.UUID]uuid.UUID{}},
		tx:      &countingTx{},
		patient: access.Viewer{ProfileID: uuid.New(), Role: access.RolePatient},
		doctor:  access.Viewer{ProfileID: uuid.New(), Role: access.RoleMedicalTeam},
		now:     time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	rel := fakeRelationships{assigned: map[uuid.UUID][]uuid.UUID{f.doctor.ProfileID: {f.patient.ProfileID}}}
	f.svc = NewService(f.repo, f.devices, f.tx, access.NewPolicy(rel), 2, retry.WithAttempts(1))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addDevice(remaining int) uuid.UUID {
	id := uuid.New()
	f.devices.owner[id] = f.patient.ProfileID
	f.devices.remaining[id] = remaining
	return id
}

// -- Tests --

func TestRecordDose_ThenListReturnsItFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	earlier := f.now.Add(-2 * time.Hour)
	f.svc.RecordDose(ctx, f.patient, RecordRequest{TakenAt: &earlier})

	rec, err := f.svc.RecordDose(ctx, f.patient, RecordRequest{IsScheduled: true})
	if err != nil {
		t.Fatalf("RecordDose: %v", err)
	}
	if !rec.TakenAt.Equal(f.now) {
		t.Errorf("taken_at should default to now, got %v", rec.TakenAt)
	}

	page, err := f.svc.ListRecentDoses(ctx, f.patient, f.patient.ProfileID, pagination.Params{Limit: 1}, nil)
	if err != nil {
		t.Fatalf("ListRecentDoses: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != rec.ID {
		t.Fatalf("expected newest record first, got %+v", page.Data)
	}
	if !page.HasMore {
		t.Error("expected has_more with two records and limit 1")
	}
}

func TestRecordDose_WithoutDeviceAlwaysSucceeds(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.RecordDose(context.Background(), f.patient, RecordRequest{IsEmergency: true}); err != nil {
		t.Fatalf("RecordDose: %v", err)
	}
	if f.tx.n != 1 {
		t.Errorf("expected one transaction, got %d", f.tx.n)
	}
}

func TestRecordDose_DecrementsDevice(t *testing.T) {
	f := newFixture()
	dev := f.addDevice(1)
	ctx := context.Background()

	if _, err := f.svc.RecordDose(ctx, f.patient, RecordRequest{DeviceID: &dev}); err != nil {
		t.Fatalf("RecordDose: %v", err)
	}
	if f.devices.remaining[dev] != 0 {
		t.Errorf("expected device decremented to 0, got %d", f.devices.remaining[dev])
	}

	_, err := f.svc.RecordDose(ctx, f.patient, RecordRequest{DeviceID: &dev})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error on empty device, got %v", err)
	}
	if len(f.repo.records) != 1 {
		t.Errorf("rejected dose must not be recorded, have %d", len(f.repo.records))
	}
}

func TestRecordDose_ForeignDeviceRejected(t *testing.T) {
	f := newFixture()
	other := uuid.New()
	f.devices.owner[other] = uuid.New()
	f.devices.remaining[other] = 10

	if _, err := f.svc.RecordDose(context.Background(), f.patient, RecordRequest{DeviceID: &other}); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRecordDose_OnlyPatientSelf(t *testing.T) {
	f := newFixture()
	_, err := f.svc.RecordDose(context.Background(), f.doctor, RecordRequest{PatientID: &f.patient.ProfileID})
	if !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRecordDose_FutureTakenAtRejectedSoLatestWriteListsFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ahead := f.now.Add(4 * time.Minute)
	if _, err := f.svc.RecordDose(ctx, f.patient, RecordRequest{TakenAt: &ahead}); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for taken_at a few minutes ahead, got %v", err)
	}

	exact := f.now
	if _, err := f.svc.RecordDose(ctx, f.patient, RecordRequest{TakenAt: &exact}); err != nil {
		t.Fatalf("taken_at equal to now should be accepted: %v", err)
	}
	f.now = f.now.Add(time.Second)
	latest, err := f.svc.RecordDose(ctx, f.patient, RecordRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, err := f.svc.ListRecentDoses(ctx, f.patient, f.patient.ProfileID, pagination.Params{Limit: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != latest.ID {
		t.Errorf("expected the latest write first, got %+v", page.Data)
	}
}

func TestRecordDose_Validation(t *testing.T) {
	f := newFixture()
	future := f.now.Add(time.Hour)
	if _, err := f.svc.RecordDose(context.Background(), f.patient, RecordRequest{TakenAt: &future}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for future taken_at, got %v", err)
	}
	trigger := strings.Repeat("a", maxTriggerLength+1)
	if _, err := f.svc.RecordDose(context.Background(), f.patient, RecordRequest{EnvironmentalTrigger: &trigger}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for long trigger, got %v", err)
	}
}

func TestListRecentDoses_Since(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, h := range []int{1, 30, 60} {
		at := f.now.Add(-time.Duration(h) * time.Hour)
		f.svc.RecordDose(ctx, f.patient, RecordRequest{TakenAt: &at})
	}
	since := f.now.Add(-48 * time.Hour)
	page, err := f.svc.ListRecentDoses(ctx, f.doctor, f.patient.ProfileID, pagination.Params{Limit: 10}, &since)
	if err != nil {
		t.Fatalf("ListRecentDoses: %v", err)
	}
	if len(page.Data) != 2 {
		t.Errorf("expected 2 records since cutoff, got %d", len(page.Data))
	}
}

func TestListRecentDoses_OutsideScopeForbidden(t *testing.T) {
	f := newFixture()
	caregiver := access.Viewer{ProfileID: uuid.New(), Role: access.RoleCaregiver}
	_, err := f.svc.ListRecentDoses(context.Background(), caregiver, f.patient.ProfileID, pagination.Params{Limit: 10}, nil)
	if !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestComputeAdherence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		at := f.now.Add(-time.Duration(i*12) * time.Hour)
		f.svc.RecordDose(ctx, f.patient, RecordRequest{TakenAt: &at})
	}
	old := f.now.AddDate(0, 0, -10)
	f.svc.RecordDose(ctx, f.patient, RecordRequest{TakenAt: &old})

	adh, err := f.svc.ComputeAdherence(ctx, f.doctor, f.patient.ProfileID, 7)
	if err != nil {
		t.Fatalf("ComputeAdherence: %v", err)
	}
	if adh.DosesInWindow != 7 || adh.ExpectedDoses != 14 || adh.Rate != 50 {
		t.Errorf("unexpected adherence %+v", adh)
	}
	if adh.Method != "heuristic" {
		t.Errorf("expected heuristic method, got %q", adh.Method)
	}

	if _, err := f.svc.ComputeAdherence(ctx, f.patient, f.patient.ProfileID, 365); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for oversized window, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		at := f.now.Add(-time.Duration(i) * time.Hour)
		f.svc.RecordDose(ctx, f.patient, RecordRequest{TakenAt: &at})
	}
	sum, err := f.svc.Summary(ctx, f.patient, f.patient.ProfileID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalDoses != 3 || sum.DosesLast7Days != 3 || sum.MissedDoses != 11 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.LastDoseAt == nil || !sum.LastDoseAt.Equal(f.now) {
		t.Errorf("expected last dose at %v, got %v", f.now, sum.LastDoseAt)
	}
}
