package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FREEZE_MAX_CONSECUTIVE", "")
	cfg := Load()

	if cfg.ServerPort != "5175" {
		t.Errorf("ServerPort = %v, want %v", cfg.ServerPort, "5175")
	}
	if cfg.FreezeMaxConsecutive != 7 {
		t.Errorf("FreezeMaxConsecutive = %v, want %v", cfg.FreezeMaxConsecutive, 7)
	}
	if cfg.FreezeMilestone != 100 {
		t.Errorf("FreezeMilestone = %v, want %v", cfg.FreezeMilestone, 100)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "250ms", want: 250 * time.Millisecond},
		{name: "plain seconds", value: "3", want: 3 * time.Second},
		{name: "garbage", value: "soon", want: time.Minute},
		{name: "unset", value: "", want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
