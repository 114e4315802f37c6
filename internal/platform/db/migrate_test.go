package db

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_row_security.sql": {Data: []byte("ALTER TABLE profiles ENABLE ROW LEVEL SECURITY;")},
		"001_core.sql":         {Data: []byte("CREATE TABLE profiles (id UUID PRIMARY KEY);")},
		"README.md":            {Data: []byte("docs")},
		"notes.sql":            {Data: []byte("-- no version prefix")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "001_core.sql" {
		t.Errorf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 {
		t.Errorf("expected version 2, got %d", migrations[1].Version)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := NewMigrator(nil, fsys).LoadMigrations(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	pending := Pending(migrations, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("expected only version 2 pending, got %+v", pending)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, EmbeddedMigrations()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(migrations))
	}

	tables := []string{
		"profiles", "patient_caregiver_links", "patient_medical_assignments",
		"inhaler_devices", "dosage_records", "reminder_schedules",
		"emergency_alerts", "caregiver_notes",
	}
	for _, table := range tables {
		if !strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("core migration does not create %s", table)
		}
		if !strings.Contains(migrations[1].SQL, "ALTER TABLE "+table+" ENABLE ROW LEVEL SECURITY") {
			t.Errorf("row security migration does not cover %s", table)
		}
	}
}

func TestEmbeddedMigrations_LinkAndAlertUpdatesAreNarrowed(t *testing.T) {
	migrations, err := NewMigrator(nil, EmbeddedMigrations()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	var sql string
	for _, m := range migrations {
		if m.Version == 3 {
			sql = strings.Join(strings.Fields(m.SQL), " ")
		}
	}
	if sql == "" {
		t.Fatal("migration 3 not found")
	}

	for _, want := range []string{
		"REVOKE UPDATE ON patient_caregiver_links, emergency_alerts FROM inhalecare_app",
		"GRANT UPDATE (is_approved) ON patient_caregiver_links TO inhalecare_app",
		"GRANT UPDATE (is_resolved, resolved_at, resolved_by) ON emergency_alerts TO inhalecare_app",
		"WITH CHECK (app_profile_id() IN (patient_id, caregiver_id) AND NOT is_approved)",
		"AND (NOT is_approved OR patient_id = app_profile_id())",
		"AND resolved_by = app_profile_id()",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("migration 3 is missing %q", want)
		}
	}
}
