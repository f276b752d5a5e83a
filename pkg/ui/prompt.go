// Package ui implements human-in-the-loop approval dialogs.
//
// When the pattern catalog has no opinion on a path and the filter runs in
// interactive mode, a native OS dialog asks the user whether to allow the
// access. Dialogs use the platform's native toolkit (Cocoa on macOS,
// zenity/kdialog on Linux, Win32 on Windows).
//
// All failure modes deny: a dialog that cannot spawn (headless
// environment), a user who does not answer within the timeout, and a
// cancelled context all produce false. Prompts are also rate limited so an
// agent cannot flood the user with requests until they reflexively click
// "Allow" — once the limit trips, everything is auto-denied for a cooldown
// period.
package ui

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gen2brain/dlgs"
	"golang.org/x/time/rate"
)

// DefaultTimeout is how long to wait for the user before auto-denying.
const DefaultTimeout = 60 * time.Second

// DefaultMaxPromptsPerMinute caps approval prompts to limit approval
// fatigue attacks. Exceeding it triggers the cooldown.
const DefaultMaxPromptsPerMinute = 10

// DefaultCooldownDuration is how long prompts are auto-denied after the
// rate limit trips.
const DefaultCooldownDuration = 5 * time.Minute

// PrompterConfig holds configuration for the approval prompt system.
type PrompterConfig struct {
	// Timeout is the maximum time to wait for a user response.
	// Zero selects DefaultTimeout.
	Timeout time.Duration

	// Title is the dialog window title. Default: "Security Filter".
	Title string

	// MaxPromptsPerMinute limits how many prompts can be shown per
	// minute. Zero selects the default; negative disables rate limiting.
	MaxPromptsPerMinute int

	// CooldownDuration is how long to auto-deny after the rate limit is
	// exceeded. Zero selects the default.
	CooldownDuration time.Duration
}

// Prompter shows approval dialogs for path accesses the catalog did not
// decide. Safe for concurrent use.
type Prompter struct {
	cfg     PrompterConfig
	limiter *rate.Limiter

	mu            sync.Mutex
	cooldownUntil time.Time
	warnf         func(format string, args ...any)
}

// NewPrompter creates a Prompter. A nil cfg selects defaults.
func NewPrompter(cfg *PrompterConfig) *Prompter {
	p := &Prompter{
		cfg: PrompterConfig{
			Timeout:             DefaultTimeout,
			Title:               "Security Filter",
			MaxPromptsPerMinute: DefaultMaxPromptsPerMinute,
			CooldownDuration:    DefaultCooldownDuration,
		},
	}
	if cfg != nil {
		if cfg.Timeout > 0 {
			p.cfg.Timeout = cfg.Timeout
		}
		if cfg.Title != "" {
			p.cfg.Title = cfg.Title
		}
		if cfg.MaxPromptsPerMinute != 0 {
			p.cfg.MaxPromptsPerMinute = cfg.MaxPromptsPerMinute
		}
		if cfg.CooldownDuration > 0 {
			p.cfg.CooldownDuration = cfg.CooldownDuration
		}
	}
	if n := p.cfg.MaxPromptsPerMinute; n > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	return p
}

// SetWarnLogger sets a Printf-style logger for rate-limit warnings.
func (p *Prompter) SetWarnLogger(warnf func(format string, args ...any)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnf = warnf
}

// warn logs a rate-limit event. Caller must hold p.mu.
func (p *Prompter) warn(format string, args ...any) {
	if p.warnf != nil {
		p.warnf(format, args...)
	}
}

// AskUser asks whether the given tool may access the given path. True
// means approved; every failure mode means deny.
func (p *Prompter) AskUser(tool, path, reason string) bool {
	return p.AskUserContext(context.Background(), tool, path, reason)
}

// AskUserContext is AskUser with cancellation. A context deadline shorter
// than the configured timeout takes precedence. A rate-limited call denies
// immediately without showing a dialog.
func (p *Prompter) AskUserContext(ctx context.Context, tool, path, reason string) bool {
	if !p.allowPrompt(tool) {
		return false
	}

	message := fmt.Sprintf(
		"An agent wants to access a file that needs your approval.\n\n"+
			"Tool: %s\nPath: %s\n\n%s\n\nAllow this access?",
		tool, path, reason,
	)

	resultCh := make(chan bool, 1)
	go func() {
		// dlgs.Question blocks until the user answers or the dialog fails.
		approved, err := dlgs.Question(p.cfg.Title, message, true)
		if err != nil {
			resultCh <- false
			return
		}
		resultCh <- approved
	}()

	timeout := p.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	select {
	case result := <-resultCh:
		return result
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}

// allowPrompt enforces the prompt budget. A burst past the limit starts
// the cooldown, during which every request is denied unseen.
func (p *Prompter) allowPrompt(tool string) bool {
	if p.limiter == nil {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Before(p.cooldownUntil) {
		remaining := p.cooldownUntil.Sub(now).Round(time.Second)
		p.warn("RATE_LIMIT_COOLDOWN: auto-denying %q (%v remaining)", tool, remaining)
		return false
	}

	if !p.limiter.Allow() {
		p.cooldownUntil = now.Add(p.cfg.CooldownDuration)
		p.warn("RATE_LIMIT_EXCEEDED: more than %d prompts in the last minute; "+
			"auto-denying %q and entering cooldown for %v. "+
			"Possible approval fatigue attack.",
			p.cfg.MaxPromptsPerMinute, tool, p.cfg.CooldownDuration)
		return false
	}
	return true
}

// InCooldown reports whether the prompter is currently auto-denying, and
// for how much longer.
func (p *Prompter) InCooldown() (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Before(p.cooldownUntil) {
		return true, p.cooldownUntil.Sub(now)
	}
	return false, 0
}

// ResetRateLimit clears rate-limit state. Useful for testing.
func (p *Prompter) ResetRateLimit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldownUntil = time.Time{}
	if n := p.cfg.MaxPromptsPerMinute; n > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// IsHeadless reports whether we are likely running without a display.
// Best-effort: CI environment variables, a Docker marker file. The dialog
// call itself still fails closed if this guess is wrong.
func IsHeadless() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
