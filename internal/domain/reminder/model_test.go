package reminder

import (
	"reflect"
	"testing"
)

func TestNormalizeTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "08:00", want: "08:00:00"},
		{in: "21:45:30", want: "21:45:30"},
		{in: " 07:15 ", want: "07:15:00"},
		{in: "24:00", wantErr: true},
		{in: "8am", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeTimeOfDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("normalizeTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeTimeOfDay(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDays(t *testing.T) {
	got, err := normalizeDays([]int{5, 1, 5, 3})
	if err != nil {
		t.Fatalf("normalizeDays: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 3, 5}) {
		t.Errorf("expected sorted unique days, got %v", got)
	}

	all, _ := normalizeDays(nil)
	if !reflect.DeepEqual(all, AllDays) {
		t.Errorf("empty days should mean every day, got %v", all)
	}
	all[0] = 9
	if AllDays[0] != 0 {
		t.Error("normalizeDays must not alias AllDays")
	}

	if _, err := normalizeDays([]int{7}); err == nil {
		t.Error("expected error for day 7")
	}
}
