package handlers

import (
	"testing"
	"time"
)

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in       time.Duration
		expected string
	}{
		{0, "0s"},
		{750 * time.Millisecond, "0s"},
		{42 * time.Second, "42s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h"},
		{3*time.Hour + 5*time.Minute + 9*time.Second, "3h 5m"},
		{50 * time.Hour, "2d 2h"},
		{-2 * time.Minute, "2m"},
	}

	for _, tt := range tests {
		if got := humanDuration(tt.in); got != tt.expected {
			t.Errorf("humanDuration(%v): expected %q, got %q", tt.in, tt.expected, got)
		}
	}
}
