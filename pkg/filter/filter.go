// Package filter makes access-control decisions for file paths requested
// by an agent's tool calls.
//
// A check canonicalizes the raw path, consults the shared pattern catalog
// through the specificity resolver, and falls back to file mode bits when
// no specific pattern applies. The filter itself holds no per-call state;
// a single Filter may serve concurrent callers.
package filter

import (
	"os"

	"github.com/opencode-security/secfilter/pkg/patterns"
)

// unresolvableReason is the deny reason when canonicalization fails.
const unresolvableReason = "path could not be resolved"

// CheckResult is the outcome of a single Check call. It carries both the
// path as requested and its canonical form so an audit record can show
// what the agent asked for and what the filter actually evaluated.
type CheckResult struct {
	Decision       patterns.Decision
	Reason         string
	Path           string
	CanonicalPath  string
	MatchedPattern *patterns.SecurityPattern
	MatchedLevel   patterns.SpecificityLevel
}

// Denied reports whether the check resolved to a deny.
func (r CheckResult) Denied() bool {
	return r.Decision == patterns.DecisionDeny
}

// Filter composes canonicalization, the pattern catalog, and the
// permission-bit fallback into a single decision call.
type Filter struct {
	catalog *patterns.Catalog
}

// New builds a filter over the given catalog. A nil catalog selects the
// built-in defaults.
func New(cat *patterns.Catalog) *Filter {
	if cat == nil {
		cat = patterns.DefaultCatalog()
	}
	return &Filter{catalog: cat}
}

// Catalog returns the catalog the filter consults.
func (f *Filter) Catalog() *patterns.Catalog {
	return f.catalog
}

// Check evaluates one path under one operation.
//
// Canonicalization failure is deny-by-default, never pass-through: a path
// that cannot be resolved cannot be proven safe. A path that resolves but
// does not exist is checked normally; absence is not an error, and a
// nonexistent file cannot have restrictive permissions.
func (f *Filter) Check(rawPath string, op patterns.Operation) CheckResult {
	canonical, err := Canonicalize(rawPath)
	if err != nil {
		return CheckResult{
			Decision: patterns.DecisionDeny,
			Reason:   unresolvableReason,
			Path:     rawPath,
		}
	}

	restrictive := hasRestrictivePerms(canonical)
	decision, reason, matched, level := Resolve(canonical, restrictive, op, f.catalog)

	return CheckResult{
		Decision:       decision,
		Reason:         reason,
		Path:           rawPath,
		CanonicalPath:  canonical,
		MatchedPattern: matched,
		MatchedLevel:   level,
	}
}

// CheckTool classifies the tool name and checks the path under the
// resulting operation.
func (f *Filter) CheckTool(rawPath, toolName string) CheckResult {
	return f.Check(rawPath, patterns.ClassifyOperation(toolName))
}

// hasRestrictivePerms reports whether the path names a regular file whose
// mode bits deny read access to "other". Missing files and directories are
// not restrictive.
func hasRestrictivePerms(canonical string) bool {
	info, err := os.Stat(canonical)
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o004 == 0
}
