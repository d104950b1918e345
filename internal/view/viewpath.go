package view

import (
	"strings"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
)

// Path locates the part of a ClearCase view a connection works on: the
// view root, a path relative to it and an optional include prefix below
// that.
type Path struct {
	root          string
	relative      string
	includePrefix string
	whole         string
}

func NewPath(root, relative string) (Path, error) {
	normalizedRoot, err := ccpath.NormalizeRequired(root)
	if err != nil {
		return Path{}, err
	}
	normalizedRelative, err := ccpath.NormalizePath(relative)
	if err != nil {
		return Path{}, err
	}
	p := Path{root: normalizedRoot, relative: trimLeadingSeparator(normalizedRelative)}
	return p, p.updateWhole()
}

// WithIncludePrefix returns a copy of p narrowed to prefix, given relative
// to the relative path. An empty prefix clears it.
func (p Path) WithIncludePrefix(prefix string) (Path, error) {
	p.includePrefix = trimLeadingSeparator(ccpath.NormalizeSeparators(strings.TrimSpace(prefix)))
	return p, p.updateWhole()
}

func (p *Path) updateWhole() error {
	var sb strings.Builder
	sb.WriteString(p.root)
	for _, part := range []string{p.relative, p.includePrefix} {
		if part != "" {
			sb.WriteString(ccpath.Separator)
			sb.WriteString(part)
		}
	}
	whole, err := ccpath.NormalizePath(sb.String())
	if err != nil {
		return err
	}
	p.whole = whole
	return nil
}

func trimLeadingSeparator(p string) string {
	if len(p) > 1 && strings.HasPrefix(p, ccpath.Separator) {
		return p[1:]
	}
	return p
}

// Root is the view root, e.g. "/view/dev".
func (p Path) Root() string          { return p.root }
func (p Path) Relative() string      { return p.relative }
func (p Path) IncludePrefix() string { return p.includePrefix }

// Whole joins root, relative path and include prefix.
func (p Path) Whole() string  { return p.whole }
func (p Path) String() string { return p.whole }
