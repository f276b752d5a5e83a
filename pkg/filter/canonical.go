package filter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencode-security/secfilter/pkg/patterns"
)

// Canonicalize resolves a raw path to its absolute, symlink-free canonical
// form. Pattern matching operates on this form rather than the literal
// string requested, so a symlink cannot present an innocuous-looking path
// while pointing at a sensitive target.
//
// A leading ~ expands to the invoking user's home directory. Components
// that do not exist yet are appended verbatim after the longest existing
// prefix has been resolved, so a path about to be created still
// canonicalizes. Symlink chains are walked with a visited set; revisiting
// a link yields CircularSymlinkError rather than looping.
func Canonicalize(rawPath string) (string, error) {
	if rawPath == "" {
		return "", &PathResolutionError{Path: rawPath, Err: errors.New("empty path")}
	}

	expanded := patterns.ExpandTilde(rawPath)
	if !filepath.IsAbs(expanded) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", &PathResolutionError{Path: rawPath, Err: err}
		}
		expanded = filepath.Join(cwd, expanded)
	}
	expanded = filepath.Clean(expanded)

	comps := splitComponents(expanded)
	visited := make(map[string]struct{})
	resolved := "/"

	for i := 0; i < len(comps); i++ {
		candidate := filepath.Join(resolved, comps[i])

		info, err := os.Lstat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Nothing past this component exists; keep the remainder as
				// written. A nonexistent suffix cannot hide behind a symlink.
				return filepath.Join(append([]string{resolved}, comps[i:]...)...), nil
			}
			return "", &PathResolutionError{Path: rawPath, Err: err}
		}

		if info.Mode()&os.ModeSymlink == 0 {
			resolved = candidate
			continue
		}

		if _, seen := visited[candidate]; seen {
			return "", &CircularSymlinkError{PathResolutionError{Path: rawPath, Err: errors.New("symlink cycle")}}
		}
		visited[candidate] = struct{}{}

		target, err := os.Readlink(candidate)
		if err != nil {
			return "", &PathResolutionError{Path: rawPath, Err: err}
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(resolved, target)
		}
		target = filepath.Clean(target)

		// Restart resolution from the root with the link target spliced in
		// front of the remaining components; the target may itself contain
		// further links anywhere along its prefix.
		comps = append(splitComponents(target), comps[i+1:]...)
		resolved = "/"
		i = -1
	}

	return resolved, nil
}

func splitComponents(abs string) []string {
	trimmed := strings.Trim(abs, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
