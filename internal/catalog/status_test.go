package catalog

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"new", StatusNew},
		{"active", StatusActive},
		{"inactive", StatusInactive},
		{"disabled", StatusDisabled},
		{" Active ", StatusActive},
		{"DISABLED", StatusDisabled},
		{"", StatusInactive},
		{"garbage", StatusInactive},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.raw); got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusActive, StatusInactive, StatusDisabled} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestTransitionOnSeen(t *testing.T) {
	tests := []struct {
		prior           Status
		wantNext        Status
		wantReactivated bool
	}{
		{StatusNew, StatusNew, false},
		{StatusActive, StatusActive, false},
		{StatusInactive, StatusNew, true},
		{StatusDisabled, StatusDisabled, false},
	}
	for _, tt := range tests {
		next, reactivated := TransitionOnSeen(tt.prior)
		if next != tt.wantNext || reactivated != tt.wantReactivated {
			t.Errorf("TransitionOnSeen(%s) = (%s, %v), want (%s, %v)",
				tt.prior, next, reactivated, tt.wantNext, tt.wantReactivated)
		}
	}
}

func TestTransitionOnAbsent(t *testing.T) {
	tests := []struct {
		prior Status
		want  Status
	}{
		{StatusNew, StatusInactive},
		{StatusActive, StatusInactive},
		{StatusInactive, StatusInactive},
		{StatusDisabled, StatusDisabled},
	}
	for _, tt := range tests {
		if got := TransitionOnAbsent(tt.prior); got != tt.want {
			t.Errorf("TransitionOnAbsent(%s) = %s, want %s", tt.prior, got, tt.want)
		}
	}
}
