package patterns

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is an ordered, immutable collection of security patterns.
//
// Build-then-freeze discipline: construct the catalog once at startup,
// then share it read-only across every resolution call. No mutation
// happens after construction, so no locking is needed.
type Catalog struct {
	patterns []*SecurityPattern
}

// NewCatalog builds a catalog from the given patterns, preserving order.
func NewCatalog(ps ...*SecurityPattern) *Catalog {
	patterns := make([]*SecurityPattern, len(ps))
	copy(patterns, ps)
	return &Catalog{patterns: patterns}
}

// Patterns returns the catalog entries in order. Callers must treat the
// slice as read-only.
func (c *Catalog) Patterns() []*SecurityPattern {
	return c.patterns
}

// Len returns the number of patterns in the catalog.
func (c *Catalog) Len() int {
	return len(c.patterns)
}

// FindMatches returns every pattern matching the canonical path under the
// given operation, in catalog order.
func (c *Catalog) FindMatches(canonicalPath string, op Operation) []PatternMatch {
	var matches []PatternMatch
	for _, p := range c.patterns {
		if p.Matches(canonicalPath, op) {
			matches = append(matches, PatternMatch{Pattern: p, MatchedPath: canonicalPath})
		}
	}
	return matches
}

// DefaultCatalog builds the built-in catalog. Tilde expansion happens at
// construction, so the catalog reflects the home directory of the process
// that builds it.
func DefaultCatalog() *Catalog {
	rw := []Operation{OpRead, OpWrite}

	return NewCatalog(
		// Level 1: exact credential files.
		mustPattern(GlobToRegex("~/.netrc"), DecisionDeny, LevelFileName, "netrc stores plaintext passwords"),
		mustPattern(GlobToRegex("~/.pgpass"), DecisionDeny, LevelFileName, "PostgreSQL password file"),
		mustPattern(GlobToRegex("~/.npmrc"), DecisionDeny, LevelFileName, "npm auth tokens"),
		mustPattern(GlobToRegex("~/.git-credentials"), DecisionDeny, LevelFileName, "git stored credentials"),
		mustPattern(GlobToRegex("~/.ssh/id_rsa"), DecisionDeny, LevelFileName, "SSH private key"),
		mustPattern(GlobToRegex("~/.ssh/id_ed25519"), DecisionDeny, LevelFileName, "SSH private key"),
		mustPattern(GlobToRegex("~/.ssh/id_ecdsa"), DecisionDeny, LevelFileName, "SSH private key"),
		mustPattern(GlobToRegex("~/.ssh/id_dsa"), DecisionDeny, LevelFileName, "SSH private key"),
		mustPattern(GlobToRegex("~/.aws/credentials"), DecisionDeny, LevelFileName, "AWS access keys"),

		// Level 2: sensitive extensions.
		mustPattern(GlobToRegex("*.pem"), DecisionDeny, LevelFileExtension, "PEM key material"),
		mustPattern(GlobToRegex("*.key"), DecisionDeny, LevelFileExtension, "key material"),
		mustPattern(GlobToRegex("*.pub"), DecisionDeny, LevelFileExtension, "public key half, often alongside the private key"),
		mustPattern(GlobToRegex("*.p12"), DecisionDeny, LevelFileExtension, "PKCS#12 keystore"),
		mustPattern(GlobToRegex("*.pfx"), DecisionDeny, LevelFileExtension, "PKCS#12 keystore"),
		mustPattern(GlobToRegex("*.env"), DecisionDeny, LevelFileExtension, "environment file with secrets"),
		mustPattern(GlobToRegex("*.env.*"), DecisionDeny, LevelFileExtension, "environment file variant"),

		// Level 3: sensitive directories, recursively.
		mustPattern(BuildRecursiveDirRegex("~/.ssh"), DecisionDeny, LevelDirectory, "SSH configuration and keys"),
		mustPattern(BuildRecursiveDirRegex("~/.aws"), DecisionDeny, LevelDirectory, "AWS configuration and credentials"),
		mustPattern(BuildRecursiveDirRegex("~/.gnupg"), DecisionDeny, LevelDirectory, "GnuPG keyrings"),
		mustPattern(BuildRecursiveDirRegex("~/.kube"), DecisionDeny, LevelDirectory, "Kubernetes credentials"),

		// Level 4: security-directory heuristics.
		mustPattern(GlobToRegex("**/secrets/**"), DecisionDeny, LevelSecurityDirectory, "secrets directory"),
		mustSubstringDenyPattern("credential", "credential files"),
		mustSubstringDenyPattern("password", "password files"),

		// Level 5: agent-owned data directories. Read/write only; a shell
		// command touching these paths is still adjudicated by a human.
		mustPattern(BuildRecursiveDirRegex("~/.claude/projects"), DecisionAllow, LevelTrustedDir, "agent project data", rw...),
		mustPattern(BuildRecursiveDirRegex("~/.claude/todos"), DecisionAllow, LevelTrustedDir, "agent todo data", rw...),

		// Level 7: directory plus single-level glob.
		mustPattern(GlobToRegex("~/.ssh/*"), DecisionDeny, LevelDirGlob, "SSH directory contents"),
		mustPattern(GlobToRegex("~/.aws/*"), DecisionDeny, LevelDirGlob, "AWS directory contents"),
		mustPattern(GlobToRegex("~/.gnupg/*"), DecisionDeny, LevelDirGlob, "GnuPG directory contents"),

		// Level 8: broad globs, lowest precedence.
		mustPattern(GlobToRegex("*_history"), DecisionDeny, LevelGlobMiddle, "shell history may contain pasted secrets"),
		mustPattern(GlobToRegex("*secring*"), DecisionDeny, LevelGlobMiddle, "GPG secret keyring"),
	)
}

// catalogFile is the YAML schema for external catalogs, in the manifest
// style of an agent policy file.
//
//	apiVersion: secfilter/v1
//	kind: PatternCatalog
//	patterns:
//	  - glob: "~/.ssh/id_rsa"
//	    decision: deny
//	    level: file_name
//	    description: SSH private key
//	  - keyword: credential
//	    description: credential files
//	  - dir: "~/.claude/projects"
//	    decision: allow
//	    level: trusted_dir
//	    ops: [read, write]
//	    description: agent project data
type catalogFile struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Patterns   []catalogEntry `yaml:"patterns"`
}

// catalogEntry describes one pattern. Exactly one of Regex, Glob, Dir, or
// Keyword selects the construction helper.
type catalogEntry struct {
	Regex       string   `yaml:"regex,omitempty"`
	Glob        string   `yaml:"glob,omitempty"`
	Dir         string   `yaml:"dir,omitempty"`
	Keyword     string   `yaml:"keyword,omitempty"`
	Decision    string   `yaml:"decision,omitempty"`
	Level       string   `yaml:"level,omitempty"`
	Description string   `yaml:"description"`
	Ops         []string `yaml:"ops,omitempty"`
}

// LoadCatalog parses a YAML catalog. Any invalid entry fails the whole
// load: a broken pattern discovered mid-traffic would leave the filter in
// an inconsistent posture, so catalog errors are startup-fatal by design
// of the caller.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if file.APIVersion != "secfilter/v1" {
		return nil, fmt.Errorf("unsupported catalog apiVersion %q, expected secfilter/v1", file.APIVersion)
	}
	if file.Kind != "PatternCatalog" {
		return nil, fmt.Errorf("unexpected kind %q, expected PatternCatalog", file.Kind)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("catalog contains no patterns")
	}

	built := make([]*SecurityPattern, 0, len(file.Patterns))
	for i, entry := range file.Patterns {
		p, err := buildEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		built = append(built, p)
	}
	return NewCatalog(built...), nil
}

// LoadCatalogFile reads and parses a catalog file from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %q: %w", path, err)
	}
	return LoadCatalog(data)
}

func buildEntry(entry catalogEntry) (*SecurityPattern, error) {
	sources := 0
	for _, s := range []string{entry.Regex, entry.Glob, entry.Dir, entry.Keyword} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, fmt.Errorf("exactly one of regex, glob, dir, or keyword is required")
	}

	if entry.Keyword != "" {
		// Substring-deny entries are always deny at the security-directory
		// level; a different decision or level is a configuration mistake.
		if entry.Decision != "" && Decision(entry.Decision) != DecisionDeny {
			return nil, fmt.Errorf("keyword %q: substring patterns are deny-only", entry.Keyword)
		}
		if entry.Level != "" {
			if level, err := ParseLevel(entry.Level); err != nil || level != LevelSecurityDirectory {
				return nil, fmt.Errorf("keyword %q: substring patterns are fixed at level security_directory", entry.Keyword)
			}
		}
		if len(entry.Ops) > 0 {
			return nil, fmt.Errorf("keyword %q: deny patterns cannot restrict operations", entry.Keyword)
		}
		return NewSubstringDenyPattern(entry.Keyword, entry.Description)
	}

	decision := Decision(entry.Decision)
	level, err := ParseLevel(entry.Level)
	if err != nil {
		return nil, err
	}
	ops, err := parseOps(entry.Ops)
	if err != nil {
		return nil, err
	}

	switch {
	case entry.Dir != "":
		return NewRecursiveDirPattern(entry.Dir, decision, level, entry.Description, ops...)
	case entry.Glob != "":
		return NewPattern(GlobToRegex(entry.Glob), decision, level, entry.Description, ops...)
	default:
		return NewPattern(entry.Regex, decision, level, entry.Description, ops...)
	}
}

func parseOps(names []string) ([]Operation, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		switch op := Operation(name); op {
		case OpRead, OpWrite, OpUnknown:
			ops = append(ops, op)
		default:
			return nil, fmt.Errorf("unknown operation %q", name)
		}
	}
	return ops, nil
}
