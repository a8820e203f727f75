package registry

import (
	"fmt"
	"strings"

	"github.com/grafana/regexp"

	"github.com/sandboxws/rowfilter/pkg/criteria"
)

// matcher tests the string rendering of a cell.
type matcher func(s string) bool

func newMatcher(op criteria.OperatorID, p criteria.PatternParams) (matcher, error) {
	if op == criteria.OpRegex {
		return regexMatcher(p.Pattern, p.CaseSensitive)
	}
	return wildcardMatcher(p.Pattern, p.CaseSensitive)
}

// regexMatcher matches the whole value, never a substring.
func regexMatcher(pattern string, caseSensitive bool) (matcher, error) {
	expr := "^(?:" + pattern + ")$"
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: regex %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re.MatchString, nil
}

// wildcardMatcher supports '*' for any sequence and '?' for one character.
// Every other character, regex syntax included, is matched literally.
func wildcardMatcher(pattern string, caseSensitive bool) (matcher, error) {
	var sb strings.Builder
	if !caseSensitive {
		sb.WriteString("(?i)")
	}
	sb.WriteString("^(?s:")
	start := 0
	for i, r := range pattern {
		if r != '*' && r != '?' {
			continue
		}
		sb.WriteString(regexp.QuoteMeta(pattern[start:i]))
		if r == '*' {
			sb.WriteString(".*")
		} else {
			sb.WriteByte('.')
		}
		start = i + 1
	}
	sb.WriteString(regexp.QuoteMeta(pattern[start:]))
	sb.WriteString(")$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("%w: wildcard %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re.MatchString, nil
}
