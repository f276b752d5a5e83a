// Package ui tests for approval prompt rate limiting.
//
// Dialog spawning itself is not tested here; it requires a display. These
// tests cover the configuration handling and the approval-fatigue
// defenses, which are pure logic.
package ui

import (
	"testing"
	"time"
)

// TestNewPrompterDefaults verifies nil config selects the defaults.
func TestNewPrompterDefaults(t *testing.T) {
	p := NewPrompter(nil)
	if p.cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", p.cfg.Timeout, DefaultTimeout)
	}
	if p.cfg.MaxPromptsPerMinute != DefaultMaxPromptsPerMinute {
		t.Errorf("MaxPromptsPerMinute = %d, want %d", p.cfg.MaxPromptsPerMinute, DefaultMaxPromptsPerMinute)
	}
	if p.limiter == nil {
		t.Error("default config should enable rate limiting")
	}
}

// TestNewPrompterDisabledRateLimit verifies a negative limit disables the
// limiter entirely.
func TestNewPrompterDisabledRateLimit(t *testing.T) {
	p := NewPrompter(&PrompterConfig{MaxPromptsPerMinute: -1})
	if p.limiter != nil {
		t.Error("negative MaxPromptsPerMinute should disable rate limiting")
	}
	for i := 0; i < 100; i++ {
		if !p.allowPrompt("tool") {
			t.Fatal("disabled limiter should always allow prompts")
		}
	}
}

// TestRateLimitTripsIntoCooldown verifies that exceeding the per-minute
// budget denies the prompt and starts the cooldown.
func TestRateLimitTripsIntoCooldown(t *testing.T) {
	p := NewPrompter(&PrompterConfig{
		MaxPromptsPerMinute: 3,
		CooldownDuration:    time.Minute,
	})

	allowed := 0
	for i := 0; i < 10; i++ {
		if p.allowPrompt("tool") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed %d prompts, want 3 (the burst budget)", allowed)
	}

	inCooldown, remaining := p.InCooldown()
	if !inCooldown {
		t.Error("limiter should be in cooldown after the burst")
	}
	if remaining <= 0 || remaining > time.Minute {
		t.Errorf("cooldown remaining = %v", remaining)
	}

	// Everything is auto-denied during cooldown, and the warn logger hears
	// about it.
	var warnings int
	p.SetWarnLogger(func(format string, args ...any) { warnings++ })
	if p.allowPrompt("tool") {
		t.Error("prompt during cooldown should be denied")
	}
	if warnings == 0 {
		t.Error("cooldown denial should produce a warning")
	}
}

// TestResetRateLimitClearsCooldown verifies reset restores the budget.
func TestResetRateLimitClearsCooldown(t *testing.T) {
	p := NewPrompter(&PrompterConfig{
		MaxPromptsPerMinute: 1,
		CooldownDuration:    time.Hour,
	})

	if !p.allowPrompt("tool") {
		t.Fatal("first prompt should be allowed")
	}
	if p.allowPrompt("tool") {
		t.Fatal("second prompt should trip the limiter")
	}

	p.ResetRateLimit()
	if inCooldown, _ := p.InCooldown(); inCooldown {
		t.Error("reset should clear the cooldown")
	}
	if !p.allowPrompt("tool") {
		t.Error("prompt after reset should be allowed")
	}
}
