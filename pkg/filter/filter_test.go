package filter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencode-security/secfilter/pkg/patterns"
)

// TestCheckDeniesSensitiveHomeFile covers the primary blocking path: a
// read of an exact credential file under the default catalog.
func TestCheckDeniesSensitiveHomeFile(t *testing.T) {
	home := tempDir(t)
	t.Setenv("HOME", home)

	f := New(nil) // built-in catalog, built with HOME set above
	result := f.Check("~/.ssh/id_rsa", patterns.OpRead)

	if result.Decision != patterns.DecisionDeny {
		t.Fatalf("Check() decision = %v, want deny", result.Decision)
	}
	if !strings.HasPrefix(result.Reason, "Blocked by ") {
		t.Errorf("Check() reason = %q, want Blocked by prefix", result.Reason)
	}
	if result.MatchedLevel != patterns.LevelFileName {
		t.Errorf("Check() level = %v, want file_name", result.MatchedLevel)
	}
	if result.Path != "~/.ssh/id_rsa" {
		t.Errorf("Check() should preserve the original path, got %q", result.Path)
	}
	if result.CanonicalPath != filepath.Join(home, ".ssh", "id_rsa") {
		t.Errorf("Check() canonical path = %q", result.CanonicalPath)
	}
}

// TestCheckAllowsTrustedDirWrite covers the trusted-directory allow.
func TestCheckAllowsTrustedDirWrite(t *testing.T) {
	home := tempDir(t)
	t.Setenv("HOME", home)

	f := New(nil)
	result := f.Check("~/.claude/projects/session/state.json", patterns.OpWrite)

	if result.Decision != patterns.DecisionAllow {
		t.Fatalf("Check() decision = %v, want allow (reason %q)", result.Decision, result.Reason)
	}
	if result.MatchedLevel != patterns.LevelTrustedDir {
		t.Errorf("Check() level = %v, want trusted_dir", result.MatchedLevel)
	}
}

// TestCheckPassesUnmatchedPath covers the pass-through outcome.
func TestCheckPassesUnmatchedPath(t *testing.T) {
	home := tempDir(t)
	t.Setenv("HOME", home)
	tmp := tempDir(t)
	path := filepath.Join(tmp, "safe.txt")
	if err := os.WriteFile(path, []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := New(nil)
	result := f.Check(path, patterns.OpRead)

	if result.Decision != patterns.DecisionPass {
		t.Fatalf("Check() decision = %v, want pass (reason %q)", result.Decision, result.Reason)
	}
	if result.Reason != "No matching patterns" {
		t.Errorf("Check() reason = %q", result.Reason)
	}
}

// TestCheckDeniesRestrictivePermissions verifies the level-6 mode-bit
// fallback fires for a file with no others-read bit.
func TestCheckDeniesRestrictivePermissions(t *testing.T) {
	home := tempDir(t)
	t.Setenv("HOME", home)
	tmp := tempDir(t)
	path := filepath.Join(tmp, "private.txt")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	f := New(nil)
	result := f.Check(path, patterns.OpRead)

	if result.Decision != patterns.DecisionDeny {
		t.Fatalf("Check() decision = %v, want deny", result.Decision)
	}
	if result.MatchedLevel != patterns.LevelPermissions {
		t.Errorf("Check() level = %v, want permissions", result.MatchedLevel)
	}
	if result.MatchedPattern != nil {
		t.Error("permissions deny should carry no pattern")
	}
}

// TestCheckDeniesUnresolvablePath verifies deny-by-default when
// canonicalization fails.
func TestCheckDeniesUnresolvablePath(t *testing.T) {
	tmp := tempDir(t)
	a := filepath.Join(tmp, "a")
	b := filepath.Join(tmp, "b")
	if err := os.Symlink(b, a); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(a, b); err != nil {
		t.Fatal(err)
	}

	f := New(nil)
	result := f.Check(filepath.Join(a, "file"), patterns.OpRead)

	if result.Decision != patterns.DecisionDeny {
		t.Fatalf("Check() decision = %v, want deny", result.Decision)
	}
	if result.Reason != "path could not be resolved" {
		t.Errorf("Check() reason = %q", result.Reason)
	}
	if result.CanonicalPath != "" {
		t.Errorf("unresolvable path should have no canonical form, got %q", result.CanonicalPath)
	}
}

// TestCheckSymlinkCannotMaskTarget verifies matching runs against the
// symlink's real target.
func TestCheckSymlinkCannotMaskTarget(t *testing.T) {
	home := tempDir(t)
	t.Setenv("HOME", home)
	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sshDir, "id_rsa"), []byte("key"), 0o600); err != nil {
		t.Fatal(err)
	}

	innocent := filepath.Join(home, "notes.txt")
	if err := os.Symlink(filepath.Join(sshDir, "id_rsa"), innocent); err != nil {
		t.Fatal(err)
	}

	f := New(nil)
	result := f.Check(innocent, patterns.OpRead)

	if result.Decision != patterns.DecisionDeny {
		t.Fatalf("Check() through symlink decision = %v, want deny", result.Decision)
	}
	if result.MatchedLevel != patterns.LevelFileName {
		t.Errorf("Check() level = %v, want file_name", result.MatchedLevel)
	}
}

// TestCheckIdempotent verifies repeated checks of an unchanged path agree.
func TestCheckIdempotent(t *testing.T) {
	home := tempDir(t)
	t.Setenv("HOME", home)

	f := New(nil)
	first := f.Check("~/.aws/credentials", patterns.OpRead)
	second := f.Check("~/.aws/credentials", patterns.OpRead)

	if first.Decision != second.Decision || first.Reason != second.Reason || first.MatchedLevel != second.MatchedLevel {
		t.Errorf("Check() not idempotent: first = %+v, second = %+v", first, second)
	}
}

// TestCheckToolClassifies verifies tool-name driven checks.
func TestCheckToolClassifies(t *testing.T) {
	home := tempDir(t)
	t.Setenv("HOME", home)

	f := New(nil)
	// Trusted dir allows read/write tools but not unclassified ones.
	if result := f.CheckTool("~/.claude/projects/x", "Read"); result.Decision != patterns.DecisionAllow {
		t.Errorf("CheckTool(Read) decision = %v, want allow", result.Decision)
	}
	if result := f.CheckTool("~/.claude/projects/x", "Bash"); result.Decision != patterns.DecisionPass {
		t.Errorf("CheckTool(Bash) decision = %v, want pass", result.Decision)
	}
}
