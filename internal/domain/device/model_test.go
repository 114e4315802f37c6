package device

import "testing"

func TestIsLowDoses_PercentageRemaining(t *testing.T) {
	d := &Device{TotalDoses: 200, RemainingDoses: 156}
	if d.IsLowDoses(20) {
		t.Error("156/200 (78%) should not be low")
	}
	d.RemainingDoses = 30
	if !d.IsLowDoses(20) {
		t.Error("30/200 (15%) should be low")
	}
	d.RemainingDoses = 40
	if d.IsLowDoses(20) {
		t.Error("exactly 20% is not below the threshold")
	}
}

func TestIsLowDoses_NoCapacity(t *testing.T) {
	if !(&Device{}).IsLowDoses(20) {
		t.Error("a device without capacity is always low")
	}
}

func TestIsLowBattery(t *testing.T) {
	tests := []struct {
		level int
		want  bool
	}{
		{0, true},
		{19, true},
		{20, false},
		{100, false},
	}
	for _, tt := range tests {
		d := &Device{BatteryLevel: tt.level}
		if got := d.IsLowBattery(20); got != tt.want {
			t.Errorf("IsLowBattery(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
