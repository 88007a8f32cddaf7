package core

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"garbage", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := ParseBoolEnv("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseIntEnvFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	if got := ParseIntEnv("TEST_INT", 42); got != 42 {
		t.Errorf("ParseIntEnv = %d, want 42", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "15")
	if got := ParseDurationEnv("TEST_DUR", 90); got != 15*time.Second {
		t.Errorf("ParseDurationEnv = %v, want 15s", got)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_STR", "")
	if got := GetEnvOrDefault("TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("GetEnvOrDefault = %q, want fallback", got)
	}
	t.Setenv("TEST_STR", "value")
	if got := GetEnvOrDefault("TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnvOrDefault = %q, want value", got)
	}
}
