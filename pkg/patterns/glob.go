package patterns

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var errEmptyKeyword = errors.New("substring-deny keyword must not be empty")

// ExpandTilde replaces a leading ~ with the invoking user's home
// directory. Paths without a leading tilde are returned unchanged, as is
// the input when the home directory cannot be determined.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// GlobToRegex translates a glob into an anchored RE2 source string.
//
// Semantics: `*` matches within a single path segment and never crosses a
// separator; `**` spans zero or more segments, so `**/secrets/**` matches
// `/a/b/secrets` as well as `/a/b/secrets/c.key` without requiring a
// trailing segment. A leading ~ is expanded before translation. Globs not
// starting with / anchor at a segment boundary rather than matching
// arbitrary substrings.
func GlobToRegex(glob string) string {
	expanded := ExpandTilde(glob)
	s := regexp.QuoteMeta(expanded)
	// QuoteMeta turned each * into \*; rewrite the glob operators in
	// order of decreasing length so ** is consumed before *.
	s = strings.ReplaceAll(s, `\*\*/`, `(?:.*/)?`)
	s = strings.ReplaceAll(s, `/\*\*`, `(?:/.*)?`)
	s = strings.ReplaceAll(s, `\*\*`, `.*`)
	s = strings.ReplaceAll(s, `\*`, `[^/]*`)
	if strings.HasPrefix(expanded, "/") {
		return "^" + s + "$"
	}
	return "(?:^|/)" + s + "$"
}

// MatchGlob reports whether path matches glob under GlobToRegex semantics.
func MatchGlob(glob, path string) bool {
	re, err := SafeCompile(GlobToRegex(glob), 0)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// BuildRecursiveDirRegex produces a matcher for a directory and any path
// nested arbitrarily deep beneath it. Sibling directories sharing a name
// prefix do not match: ~/.claude/projects covers .../projects and
// .../projects/foo/bar but not .../projects-old.
func BuildRecursiveDirRegex(dir string) string {
	expanded := filepath.Clean(ExpandTilde(dir))
	return "^" + regexp.QuoteMeta(expanded) + "(?:/.*)?$"
}

// NewRecursiveDirPattern builds a pattern matching dir and everything
// beneath it.
func NewRecursiveDirPattern(dir string, decision Decision, level SpecificityLevel, description string, allowedOps ...Operation) (*SecurityPattern, error) {
	return NewPattern(BuildRecursiveDirRegex(dir), decision, level, description, allowedOps...)
}

// BuildSubstringDenyRegex produces the regex half of a substring-deny
// matcher: the keyword appearing anywhere inside one path segment. The
// source-code extension exclusion cannot be expressed in RE2 (no negative
// lookahead) and is applied by the pattern at match time; use
// NewSubstringDenyPattern to get the complete matcher.
func BuildSubstringDenyRegex(keyword string) string {
	k := regexp.QuoteMeta(keyword)
	return `(?:^|/)[^/]*` + k + `[^/]*(?:/|$)`
}

// NewSubstringDenyPattern builds a deny pattern for a sensitive keyword
// such as "credential". It matches the keyword in a directory segment, in
// a file name with no extension, or in a data file of any extension, but
// deliberately not in source-code files: blocking credentials.go on the
// way to blocking credentials.json is judged a worse failure mode than
// missing a disguised secret.
func NewSubstringDenyPattern(keyword, description string) (*SecurityPattern, error) {
	if keyword == "" {
		return nil, errEmptyKeyword
	}
	p, err := NewPattern(BuildSubstringDenyRegex(keyword), DecisionDeny, LevelSecurityDirectory, description)
	if err != nil {
		return nil, err
	}
	p.keyword = keyword
	p.excludeSourceExt = true
	return p, nil
}

func mustSubstringDenyPattern(keyword, description string) *SecurityPattern {
	p, err := NewSubstringDenyPattern(keyword, description)
	if err != nil {
		panic(err)
	}
	return p
}

// sourceCodeExtensions is the maintained exclusion list for substring-deny
// patterns: file suffixes treated as source code rather than data.
var sourceCodeExtensions = map[string]struct{}{
	"go": {}, "py": {}, "pyi": {}, "js": {}, "jsx": {}, "ts": {}, "tsx": {},
	"mjs": {}, "cjs": {}, "java": {}, "c": {}, "h": {}, "cc": {}, "cpp": {},
	"cxx": {}, "hpp": {}, "hh": {}, "rs": {}, "rb": {}, "php": {}, "cs": {},
	"swift": {}, "kt": {}, "kts": {}, "scala": {}, "sh": {}, "bash": {},
	"zsh": {}, "fish": {}, "ps1": {}, "pl": {}, "pm": {}, "lua": {}, "r": {},
	"sql": {}, "proto": {}, "dart": {}, "ex": {}, "exs": {}, "erl": {},
	"hs": {}, "ml": {}, "clj": {}, "groovy": {}, "gradle": {}, "vue": {},
	"svelte": {}, "zig": {}, "nim": {}, "tf": {}, "hcl": {}, "nix": {},
}
