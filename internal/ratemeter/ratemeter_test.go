package ratemeter

import (
	"testing"
	"time"
)

func TestMeter_Rate(t *testing.T) {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	now := base
	m := New(time.Second)
	m.now = func() time.Time { return now }

	for i := 0; i < 25; i++ {
		m.Tick()
		now = now.Add(30 * time.Millisecond)
	}
	// последние 25 тиков уложились в 1 с
	if got := m.Rate(); got != 25 {
		t.Errorf("Rate = %v, want 25", got)
	}

	now = now.Add(2 * time.Second)
	if got := m.Rate(); got != 0 {
		t.Errorf("Rate after idle = %v, want 0", got)
	}
}

func TestNew_DefaultWindow(t *testing.T) {
	if New(0).window != time.Second {
		t.Error("default window must be 1s")
	}
}
