package devicesync

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

func TestDeviceKey(t *testing.T) {
	tests := []struct {
		pattern, topic string
		want           string
		ok             bool
	}{
		{"inhalers/+/sync", "inhalers/INH-42/sync", "INH-42", true},
		{"inhalers/+/sync", "inhalers/INH-42/status", "", false},
		{"inhalers/+/sync", "inhalers/sync", "", false},
		{"inhalers/+/sync", "inhalers//sync", "", false},
		{"inhalers/sync", "inhalers/sync", "", false},
	}
	for _, tt := range tests {
		got, ok := DeviceKey(tt.pattern, tt.topic)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DeviceKey(%q, %q) = %q, %v; want %q, %v", tt.pattern, tt.topic, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDecode(t *testing.T) {
	key, r, err := Decode("inhalers/+/sync", "inhalers/INH-7/sync",
		[]byte(`{"battery_level":64,"remaining_doses":150,"timestamp":"2024-05-01T08:30:00Z"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if key != "INH-7" || *r.BatteryLevel != 64 || *r.RemainingDoses != 150 {
		t.Errorf("unexpected decode %q %+v", key, r)
	}
	if !r.Timestamp.Equal(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", r.Timestamp)
	}
}

func TestDecode_DeviceIDFromPayload(t *testing.T) {
	key, _, err := Decode("inhalers/sync", "inhalers/sync",
		[]byte(`{"device_id":"INH-9","battery_level":10,"remaining_doses":5}`))
	if err != nil || key != "INH-9" {
		t.Fatalf("expected key from payload, got %q (%v)", key, err)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":         `{battery`,
		"missing remaining": `{"battery_level":10}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Decode("inhalers/+/sync", "inhalers/x/sync", []byte(body)); !apperr.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
	if _, _, err := Decode("inhalers/sync", "inhalers/sync", []byte(`{"battery_level":1,"remaining_doses":1}`)); !apperr.IsValidation(err) {
		t.Errorf("expected validation error without device, got %v", err)
	}
}

type recordingSink struct {
	keys []string
	err  error
}

func (s *recordingSink) ApplyReading(_ context.Context, key string, _ Reading) error {
	s.keys = append(s.keys, key)
	return s.err
}

func TestProcessor_RunsInsideSession(t *testing.T) {
	sink := &recordingSink{}
	sessions := 0
	session := func(ctx context.Context, fn func(ctx context.Context) error) error {
		sessions++
		return fn(ctx)
	}
	p := NewProcessor("inhalers/+/sync", sink, session, zerolog.Nop())

	if err := p.Handle(context.Background(), "inhalers/INH-1/sync", []byte(`{"battery_level":50,"remaining_doses":20}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sessions != 1 || len(sink.keys) != 1 || sink.keys[0] != "INH-1" {
		t.Errorf("unexpected state: sessions=%d keys=%v", sessions, sink.keys)
	}
}

func TestProcessor_LogsRejections(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{err: apperr.NotFound("device not found")}
	p := NewProcessor("inhalers/+/sync", sink, nil, zerolog.New(&buf))

	err := p.Handle(context.Background(), "inhalers/ghost/sync", []byte(`{"battery_level":50,"remaining_doses":20}`))
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("rejected sync reading")) {
		t.Errorf("expected warning log, got %s", buf.String())
	}

	buf.Reset()
	sink.err = errors.New("connection refused")
	p.Handle(context.Background(), "inhalers/x/sync", []byte(`{"battery_level":50,"remaining_doses":20}`))
	if !bytes.Contains(buf.Bytes(), []byte("device sync failed")) {
		t.Errorf("expected error log, got %s", buf.String())
	}

	buf.Reset()
	p.Handle(context.Background(), "inhalers/x/sync", []byte(`nope`))
	if !bytes.Contains(buf.Bytes(), []byte("dropping sync message")) {
		t.Errorf("expected drop log, got %s", buf.String())
	}
}
