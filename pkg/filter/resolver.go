package filter

import (
	"fmt"

	"github.com/opencode-security/secfilter/pkg/patterns"
)

// permissionsReason is the fixed reason for a mode-bit deny; no catalog
// pattern is involved.
const permissionsReason = "File has restrictive permissions (no others read)"

// Resolve applies the specificity ladder to a canonical path.
//
// Levels 1-5 are scanned most-specific first; the first level holding any
// match decides the outcome, with deny superseding allow inside the level.
// If levels 1-5 say nothing and the file's mode bits deny others read,
// level 6 denies independent of any pattern. Levels 7-8 follow with the
// same deny-over-allow rule. A path matching nothing at all passes:
// the resolver expresses no opinion and the caller defers elsewhere,
// typically to a human.
func Resolve(canonicalPath string, hasRestrictivePerms bool, op patterns.Operation, cat *patterns.Catalog) (patterns.Decision, string, *patterns.SecurityPattern, patterns.SpecificityLevel) {
	matches := cat.FindMatches(canonicalPath, op)
	grouped := groupByLevel(matches)

	upper := []patterns.SpecificityLevel{
		patterns.LevelFileName,
		patterns.LevelFileExtension,
		patterns.LevelDirectory,
		patterns.LevelSecurityDirectory,
		patterns.LevelTrustedDir,
	}
	if decision, reason, p, level, ok := resolveLevels(grouped, upper); ok {
		return decision, reason, p, level
	}

	if hasRestrictivePerms {
		return patterns.DecisionDeny, permissionsReason, nil, patterns.LevelPermissions
	}

	lower := []patterns.SpecificityLevel{
		patterns.LevelDirGlob,
		patterns.LevelGlobMiddle,
	}
	if decision, reason, p, level, ok := resolveLevels(grouped, lower); ok {
		return decision, reason, p, level
	}

	return patterns.DecisionPass, "No matching patterns", nil, 0
}

func groupByLevel(matches []patterns.PatternMatch) map[patterns.SpecificityLevel][]patterns.PatternMatch {
	grouped := make(map[patterns.SpecificityLevel][]patterns.PatternMatch)
	for _, m := range matches {
		grouped[m.Pattern.Level] = append(grouped[m.Pattern.Level], m)
	}
	return grouped
}

func resolveLevels(grouped map[patterns.SpecificityLevel][]patterns.PatternMatch, levels []patterns.SpecificityLevel) (patterns.Decision, string, *patterns.SecurityPattern, patterns.SpecificityLevel, bool) {
	for _, level := range levels {
		atLevel, ok := grouped[level]
		if !ok {
			continue
		}
		for _, m := range atLevel {
			if m.Pattern.Decision == patterns.DecisionDeny {
				return patterns.DecisionDeny,
					fmt.Sprintf("Blocked by %s (%s)", m.Pattern.Pattern, m.Pattern.Description),
					m.Pattern, level, true
			}
		}
		for _, m := range atLevel {
			if m.Pattern.Decision == patterns.DecisionAllow {
				return patterns.DecisionAllow,
					fmt.Sprintf("Allowed by %s (%s)", m.Pattern.Pattern, m.Pattern.Description),
					m.Pattern, level, true
			}
		}
	}
	return "", "", nil, 0, false
}
