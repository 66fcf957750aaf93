package call

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusCreated, StatusActive, true},
		{StatusCreated, StatusEnded, true},
		{StatusCreated, StatusHandedOff, false},
		{StatusActive, StatusHandedOff, true},
		{StatusActive, StatusEnded, true},
		{StatusActive, StatusCreated, false},
		{StatusHandedOff, StatusEnded, true},
		{StatusHandedOff, StatusActive, false},
		{StatusEnded, StatusActive, false},
		{StatusEnded, StatusCreated, false},
		{StatusEnded, StatusHandedOff, false},
		{StatusEnded, StatusEnded, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAllowedSources(t *testing.T) {
	got := AllowedSources(StatusEnded)
	want := map[Status]bool{StatusCreated: true, StatusActive: true, StatusHandedOff: true}
	if len(got) != len(want) {
		t.Fatalf("AllowedSources(ENDED) = %v", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected source %s", s)
		}
	}

	if srcs := AllowedSources(StatusCreated); len(srcs) != 0 {
		t.Errorf("AllowedSources(CREATED) = %v, want none", srcs)
	}
}

func TestCallDuration(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	c := &Call{}
	if d := c.Duration(base); d != 0 {
		t.Errorf("unstarted call duration = %v", d)
	}

	start := base
	c.StartedAt = &start
	if d := c.Duration(base.Add(90 * time.Second)); d != 90*time.Second {
		t.Errorf("running duration = %v", d)
	}

	end := base.Add(time.Minute)
	c.EndedAt = &end
	if d := c.Duration(base.Add(time.Hour)); d != time.Minute {
		t.Errorf("ended duration = %v", d)
	}
}
