package patterns

import "testing"

// TestClassifyOperation verifies tool-name classification, including
// Unicode normalization of adversarial names.
func TestClassifyOperation(t *testing.T) {
	tests := []struct {
		name string
		tool string
		want Operation
	}{
		{"Read is read", "Read", OpRead},
		{"read_file is read", "read_file", OpRead},
		{"Glob is read", "Glob", OpRead},
		{"Grep is read", "Grep", OpRead},
		{"Write is write", "Write", OpWrite},
		{"Edit is write", "Edit", OpWrite},
		{"MultiEdit is write", "MultiEdit", OpWrite},
		{"NotebookEdit is write", "NotebookEdit", OpWrite},
		{"Bash is unknown", "Bash", OpUnknown},
		{"empty is unknown", "", OpUnknown},
		{"unrecognized is unknown", "WebFetch", OpUnknown},
		{"mixed case normalizes", "WRITE", OpWrite},
		{"whitespace trimmed", "  Read  ", OpRead},
		{"fullwidth normalizes", "Ｗｒｉｔｅ", OpWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyOperation(tt.tool); got != tt.want {
				t.Errorf("ClassifyOperation(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

// TestNewPatternValidation verifies construction is fail-fast.
func TestNewPatternValidation(t *testing.T) {
	if _, err := NewPattern("^/x$", "maybe", LevelFileName, "bad decision"); err == nil {
		t.Error("invalid decision should fail")
	}
	if _, err := NewPattern("^/x$", DecisionAllow, SpecificityLevel(42), "bad level"); err == nil {
		t.Error("invalid level should fail")
	}
	if _, err := NewPattern("^/x$", DecisionDeny, LevelFileName, "deny with ops", OpRead); err == nil {
		t.Error("deny pattern with allowed ops should fail")
	}
	if _, err := NewPattern("^/x(", DecisionDeny, LevelFileName, "broken regex"); err == nil {
		t.Error("invalid regex should fail")
	}
	if _, err := NewPattern("^/x$", DecisionDeny, LevelFileName, "ok"); err != nil {
		t.Errorf("valid pattern failed: %v", err)
	}
}

// TestAllowedOpsGateOnlyAllowPatterns verifies the operation restriction
// applies to allow patterns and never to deny patterns.
func TestAllowedOpsGateOnlyAllowPatterns(t *testing.T) {
	allow, err := NewPattern("^/data(?:/.*)?$", DecisionAllow, LevelTrustedDir, "data dir", OpRead, OpWrite)
	if err != nil {
		t.Fatalf("NewPattern() error = %v", err)
	}

	if !allow.Matches("/data/x", OpRead) {
		t.Error("allow pattern should match read")
	}
	if !allow.Matches("/data/x", OpWrite) {
		t.Error("allow pattern should match write")
	}
	if allow.Matches("/data/x", OpUnknown) {
		t.Error("allow pattern should not match unknown op")
	}

	deny, err := NewPattern("^/vault(?:/.*)?$", DecisionDeny, LevelDirectory, "vault")
	if err != nil {
		t.Fatalf("NewPattern() error = %v", err)
	}
	for _, op := range []Operation{OpRead, OpWrite, OpUnknown} {
		if !deny.Matches("/vault/secret", op) {
			t.Errorf("deny pattern should match regardless of op, failed for %v", op)
		}
	}
}

// TestPatternEqualSemanticFieldsOnly verifies equality ignores derived
// matcher state.
func TestPatternEqualSemanticFieldsOnly(t *testing.T) {
	a, _ := NewPattern("^/x$", DecisionDeny, LevelFileName, "same")
	b, _ := NewPattern("^/x$", DecisionDeny, LevelFileName, "same")
	c, _ := NewPattern("^/x$", DecisionDeny, LevelFileName, "different")

	if !a.Equal(b) {
		t.Error("identical semantic fields should be equal")
	}
	if a.Equal(c) {
		t.Error("differing descriptions should not be equal")
	}
	if a.Equal(nil) {
		t.Error("non-nil pattern should not equal nil")
	}
}

// TestLevelRoundTrip verifies String and ParseLevel agree.
func TestLevelRoundTrip(t *testing.T) {
	levels := []SpecificityLevel{
		LevelFileName, LevelFileExtension, LevelDirectory,
		LevelSecurityDirectory, LevelTrustedDir, LevelPermissions,
		LevelDirGlob, LevelGlobMiddle,
	}
	for _, level := range levels {
		parsed, err := ParseLevel(level.String())
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", level.String(), err)
			continue
		}
		if parsed != level {
			t.Errorf("ParseLevel(%q) = %v, want %v", level.String(), parsed, level)
		}
	}
	if _, err := ParseLevel("bogus"); err == nil {
		t.Error("ParseLevel(\"bogus\") should have failed")
	}
}
