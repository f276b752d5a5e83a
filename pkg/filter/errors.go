package filter

import "fmt"

// PathResolutionError reports that a raw path could not be canonicalized.
// The filter treats it as deny-by-default: an unresolvable path cannot be
// proven safe.
type PathResolutionError struct {
	Path string
	Err  error
}

func (e *PathResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve path %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cannot resolve path %q", e.Path)
}

func (e *PathResolutionError) Unwrap() error {
	return e.Err
}

// CircularSymlinkError is the specific resolution failure raised when a
// symlink chain revisits a link already seen during the same resolution.
// It unwraps to PathResolutionError so errors.As finds either type.
type CircularSymlinkError struct {
	PathResolutionError
}

func (e *CircularSymlinkError) Error() string {
	return fmt.Sprintf("circular symlink detected while resolving %q", e.Path)
}

func (e *CircularSymlinkError) Unwrap() error {
	return &e.PathResolutionError
}
