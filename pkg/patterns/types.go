// Package patterns implements the security pattern catalog for path-based
// access control decisions.
//
// A pattern pairs a regular expression over canonical file paths with a
// decision (allow or deny) and a specificity level. The resolver in
// pkg/filter consults the catalog and applies a precedence ladder: more
// specific levels win over broader ones, and deny supersedes allow within
// a level. Patterns are compiled once at catalog construction and are
// immutable afterwards, so a catalog may be shared across goroutines
// without locking.
package patterns

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// SpecificityLevel is the precedence tier of a pattern. Lower values are
// more specific and are evaluated first by the resolver.
type SpecificityLevel int

const (
	// LevelFileName matches an exact file path, e.g. ~/.ssh/id_ed25519.
	LevelFileName SpecificityLevel = iota + 1
	// LevelFileExtension matches a suffix glob, e.g. *.pem, *.env.
	LevelFileExtension
	// LevelDirectory matches a known sensitive directory and its contents.
	LevelDirectory
	// LevelSecurityDirectory matches security-critical directory names and
	// sensitive-keyword heuristics, e.g. **/secrets/**, *credentials*.
	LevelSecurityDirectory
	// LevelTrustedDir matches agent-owned data directories. A trusted-dir
	// allow overrides the permission-bit deny at LevelPermissions but never
	// a deny at a more specific level.
	LevelTrustedDir
	// LevelPermissions is the file-mode-bit fallback. No catalog pattern
	// carries this level; the resolver synthesizes it from a stat.
	LevelPermissions
	// LevelDirGlob matches a directory plus a single-level glob, e.g. ~/.ssh/*.
	LevelDirGlob
	// LevelGlobMiddle matches a glob anywhere in the path; the least specific tier.
	LevelGlobMiddle
)

var levelNames = map[SpecificityLevel]string{
	LevelFileName:          "file_name",
	LevelFileExtension:     "file_extension",
	LevelDirectory:         "directory",
	LevelSecurityDirectory: "security_directory",
	LevelTrustedDir:        "trusted_dir",
	LevelPermissions:       "permissions",
	LevelDirGlob:           "dir_glob",
	LevelGlobMiddle:        "glob_middle",
}

// String returns the catalog-file name of the level, e.g. "file_name".
func (l SpecificityLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is one of the eight defined levels.
func (l SpecificityLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLevel converts a catalog-file level name back to a SpecificityLevel.
func ParseLevel(name string) (SpecificityLevel, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for level, n := range levelNames {
		if n == normalized {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown specificity level %q", name)
}

// Decision is the outcome attached to a pattern or produced by resolution.
type Decision string

const (
	// DecisionAllow permits the operation without asking a human.
	DecisionAllow Decision = "allow"
	// DecisionDeny blocks the operation.
	DecisionDeny Decision = "deny"
	// DecisionPass expresses no opinion; the caller falls back to another
	// authority, typically a human prompt. Patterns never carry this
	// decision; only resolution produces it.
	DecisionPass Decision = "pass"
)

// Operation classifies what a tool call does to a path.
type Operation string

const (
	OpRead    Operation = "read"
	OpWrite   Operation = "write"
	OpUnknown Operation = "unknown"
)

// readTools and writeTools map normalized tool names to operations.
// Shell tools and anything unrecognized are OpUnknown, which never
// satisfies an allowed-ops restriction that excludes it.
var (
	readTools = map[string]struct{}{
		"read": {}, "read_file": {}, "glob": {}, "grep": {},
	}
	writeTools = map[string]struct{}{
		"write": {}, "write_file": {}, "edit": {}, "edit_file": {},
		"multiedit": {}, "notebookedit": {},
	}
)

// ClassifyOperation maps a tool name to its operation kind. The name is
// Unicode-normalized first so fullwidth or ligature variants of a tool
// name cannot dodge classification.
func ClassifyOperation(toolName string) Operation {
	normalized := NormalizeName(toolName)
	if _, ok := readTools[normalized]; ok {
		return OpRead
	}
	if _, ok := writeTools[normalized]; ok {
		return OpWrite
	}
	return OpUnknown
}

// SecurityPattern is one catalog entry: a compiled path matcher with its
// decision and specificity level.
//
// The four exported semantic fields define identity; the compiled regexp
// and the substring-exclusion state are derived and excluded from Equal.
// A pattern is immutable after construction.
type SecurityPattern struct {
	// Pattern is the regex source the matcher was compiled from.
	Pattern string
	// Decision is allow or deny. Deny patterns are always
	// operation-agnostic; only allow patterns may restrict operations.
	Decision Decision
	// Level is the specificity tier, 1-8.
	Level SpecificityLevel
	// Description is the human-readable reason shown in block messages.
	Description string
	// AllowedOps, when non-nil on an allow pattern, restricts the pattern
	// to the listed operations. Nil means operation-agnostic.
	AllowedOps []Operation

	re *regexp.Regexp

	// Substring-deny patterns built by NewSubstringDenyPattern carry the
	// keyword and apply the source-code extension exclusion at match time,
	// since RE2 cannot express the negative lookahead the original regex
	// relied on.
	keyword          string
	excludeSourceExt bool
}

// NewPattern compiles a regex source into a SecurityPattern. Compilation
// or validation failure is a catalog-construction error; callers treat it
// as fatal at startup so a broken pattern can never be consulted mid-traffic.
func NewPattern(pattern string, decision Decision, level SpecificityLevel, description string, allowedOps ...Operation) (*SecurityPattern, error) {
	if decision != DecisionAllow && decision != DecisionDeny {
		return nil, fmt.Errorf("pattern %q: decision must be allow or deny, got %q", pattern, decision)
	}
	if !level.Valid() {
		return nil, fmt.Errorf("pattern %q: invalid specificity level %d", pattern, int(level))
	}
	if decision == DecisionDeny && len(allowedOps) > 0 {
		return nil, fmt.Errorf("pattern %q: deny patterns are operation-agnostic and cannot restrict operations", pattern)
	}
	if err := ValidateRegexComplexity(pattern); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	re, err := SafeCompile(pattern, 0)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	var ops []Operation
	if len(allowedOps) > 0 {
		ops = append(ops, allowedOps...)
	}
	return &SecurityPattern{
		Pattern:     pattern,
		Decision:    decision,
		Level:       level,
		Description: description,
		AllowedOps:  ops,
		re:          re,
	}, nil
}

// mustPattern is used for the built-in catalog, whose patterns are fixed
// at compile time; a failure there is a programming error.
func mustPattern(pattern string, decision Decision, level SpecificityLevel, description string, allowedOps ...Operation) *SecurityPattern {
	p, err := NewPattern(pattern, decision, level, description, allowedOps...)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches reports whether the canonical path matches this pattern under
// the given operation. The operation only gates allow patterns that carry
// an AllowedOps restriction; deny patterns and unrestricted allow
// patterns match regardless of operation.
func (p *SecurityPattern) Matches(path string, op Operation) bool {
	if !p.re.MatchString(path) {
		return false
	}
	if p.excludeSourceExt && !p.substringTargetsDataFile(path) {
		return false
	}
	if p.Decision == DecisionAllow && p.AllowedOps != nil {
		for _, allowed := range p.AllowedOps {
			if op == allowed {
				return true
			}
		}
		return false
	}
	return true
}

// substringTargetsDataFile applies the substring-deny precision rule: a
// keyword appearing in a directory segment always matches, while a keyword
// appearing only in the final segment matches unless that segment ends in
// a recognized source-code extension. credentials.go stays readable;
// credentials.json, aws_credentials, and credentials/ do not.
func (p *SecurityPattern) substringTargetsDataFile(path string) bool {
	dir, base := filepath.Split(path)
	if strings.Contains(dir, p.keyword) {
		return true
	}
	if !strings.Contains(base, p.keyword) {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if ext == "" {
		return true
	}
	_, isSource := sourceCodeExtensions[strings.ToLower(ext)]
	return !isSource
}

// Equal compares the four semantic fields only; the compiled matcher and
// other derived state are deliberately excluded.
func (p *SecurityPattern) Equal(other *SecurityPattern) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Pattern == other.Pattern &&
		p.Decision == other.Decision &&
		p.Level == other.Level &&
		p.Description == other.Description
}

// PatternMatch records that a pattern matched a canonical path during one
// resolution call. It is ephemeral and never retained across calls.
type PatternMatch struct {
	Pattern     *SecurityPattern
	MatchedPath string
}
