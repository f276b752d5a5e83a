package patterns

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// DefaultRegexTimeout bounds regex compilation time. A catalog file is
// attacker-influenced configuration, so a pathological pattern must not be
// able to stall startup indefinitely. Go's RE2 engine already guarantees
// linear-time matching, so the timeout only needs to cover compilation.
const DefaultRegexTimeout = 100 * time.Millisecond

// SafeCompile compiles a pattern with a timeout. A zero timeout selects
// DefaultRegexTimeout.
func SafeCompile(pattern string, timeout time.Duration) (*regexp.Regexp, error) {
	if timeout == 0 {
		timeout = DefaultRegexTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type compileResult struct {
		re  *regexp.Regexp
		err error
	}
	resultCh := make(chan compileResult, 1)

	go func() {
		re, err := regexp.Compile(pattern)
		resultCh <- compileResult{re, err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return nil, fmt.Errorf("regex compile error: %w", result.err)
		}
		return result.re, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("regex compile timeout after %v: %s", timeout, pattern)
	}
}

var (
	nestedQuantifierRe = regexp.MustCompile(`\)[+*?]\s*[+*?]`)
	groupedNestedRe    = regexp.MustCompile(`\([^)]*[+*]\)[+*]`)
)

// ValidateRegexComplexity rejects patterns that are suspiciously long or
// contain nested quantifiers like (a+)+. It is a heuristic pre-check, not
// a complete ReDoS detector; RE2 provides the real match-time guarantee.
func ValidateRegexComplexity(pattern string) error {
	const maxPatternLength = 1000
	if len(pattern) > maxPatternLength {
		return fmt.Errorf("regex pattern exceeds maximum length (%d > %d)", len(pattern), maxPatternLength)
	}
	if nestedQuantifierRe.MatchString(pattern) || groupedNestedRe.MatchString(pattern) {
		return fmt.Errorf("regex contains potentially dangerous nested quantifiers: %s", pattern)
	}
	return nil
}
