package configspec

import (
	"fmt"
	"strings"
)

// ParseError reports a config spec line that cannot be parsed. Parsing
// stops at the first one.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config spec line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// AmbiguousVersionError reports a selector that resolved to more than one
// version of an element.
type AmbiguousVersionError struct {
	Path       string
	Candidates []string
}

func (e *AmbiguousVersionError) Error() string {
	return fmt.Sprintf("Version of %q is ambiguous: %s.", e.Path, strings.Join(e.Candidates, "; "))
}
