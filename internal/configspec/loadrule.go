package configspec

import (
	"path"
	"strings"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
)

// LoadRule is a "load" line: a directory, relative to the view root, that
// is loaded into a snapshot view.
type LoadRule struct {
	RelativePath string
	Dir          string
}

func NewLoadRule(viewRoot, relativePath string) LoadRule {
	rel := ccpath.NormalizeSeparators(strings.TrimSpace(relativePath))
	return LoadRule{
		RelativePath: rel,
		Dir:          cleanPath(path.Join(ccpath.NormalizeSeparators(viewRoot), rel)),
	}
}

// Covers reports whether elementPath is the rule directory, one of its
// ancestors or one of its descendants.
func (l LoadRule) Covers(elementPath string) bool {
	p := cleanPath(ccpath.NormalizeSeparators(elementPath))
	return isAncestor(p, l.Dir) || isAncestor(l.Dir, p)
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

func isAncestor(ancestor, p string) bool {
	if ancestor == "" || p == "" {
		return false
	}
	if ancestor == p {
		return true
	}
	if !strings.HasSuffix(ancestor, "/") {
		ancestor += "/"
	}
	return strings.HasPrefix(p, ancestor)
}
