package cache

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.DefaultTTL != 5*time.Minute {
		t.Errorf("DefaultTTL = %v, want 5m", p.DefaultTTL)
	}
	if p.MaxTTL != time.Hour {
		t.Errorf("MaxTTL = %v, want 1h", p.MaxTTL)
	}
	if p.MaxEntries != 1024 {
		t.Errorf("MaxEntries = %d, want 1024", p.MaxEntries)
	}
	if !p.ShouldCache() {
		t.Error("ShouldCache() = false, want true")
	}
	if NoCachePolicy().ShouldCache() {
		t.Error("NoCachePolicy().ShouldCache() = true, want false")
	}
}

func TestPolicy_EffectiveTTL(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		override time.Duration
		want     time.Duration
	}{
		{"default when zero", Policy{DefaultTTL: time.Minute}, 0, time.Minute},
		{"default when negative", Policy{DefaultTTL: time.Minute}, -time.Second, time.Minute},
		{"override", Policy{DefaultTTL: time.Minute, MaxTTL: time.Hour}, 10 * time.Minute, 10 * time.Minute},
		{"clamped", Policy{DefaultTTL: time.Minute, MaxTTL: time.Hour}, 2 * time.Hour, time.Hour},
		{"default clamped", Policy{DefaultTTL: 2 * time.Hour, MaxTTL: time.Hour}, 0, time.Hour},
		{"no max", Policy{DefaultTTL: time.Minute}, 48 * time.Hour, 48 * time.Hour},
		{"no cache", NoCachePolicy(), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.EffectiveTTL(tt.override); got != tt.want {
				t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.override, got, tt.want)
			}
		})
	}
}

func TestPolicy_MaxEntries(t *testing.T) {
	if got := (Policy{}).maxEntries(); got != 1024 {
		t.Errorf("maxEntries() = %d, want 1024", got)
	}
	if got := (Policy{MaxEntries: 3}).maxEntries(); got != 3 {
		t.Errorf("maxEntries() = %d, want 3", got)
	}
}
