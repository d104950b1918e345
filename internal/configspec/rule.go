package configspec

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/vtree"
)

const (
	selectorCheckedOut = "CHECKEDOUT"
	selectorLatest     = "LATEST"

	ellipsis = "..."
)

// ScopeType restricts a rule to files, directories or both.
type ScopeType int

const (
	ScopeAny ScopeType = iota
	ScopeFile
	ScopeDirectory
)

func (s ScopeType) String() string {
	switch s {
	case ScopeFile:
		return "file"
	case ScopeDirectory:
		return "directory"
	default:
		return "any"
	}
}

func (s ScopeType) matches(isFile bool) bool {
	switch s {
	case ScopeFile:
		return isFile
	case ScopeDirectory:
		return !isFile
	default:
		return true
	}
}

type result int

const (
	resultMatches result = iota
	resultDoesNotMatch
	resultBranchMade
	resultBranchNotMade
)

// Rule is one "element" line of a config spec.
type Rule struct {
	Scope         ScopeType
	Pattern       string
	Selector      string
	MkBranch      string
	PrimaryBranch string
	LabelSelector bool

	scopeRE  *regexp.Regexp
	branchRE *regexp.Regexp
	version  string
}

// NewRule compiles a rule from its scope pattern and version selector,
// e.g. ("src/...", "/main/br/LATEST"). mkBranch may be empty.
func NewRule(scope ScopeType, pattern, selector, mkBranch string) (*Rule, error) {
	r := &Rule{
		Scope:    scope,
		Pattern:  strings.TrimSpace(pattern),
		Selector: strings.TrimSpace(selector),
		MkBranch: mkBranch,
	}
	var err error
	if r.scopeRE, err = compileGlob(r.Pattern); err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", r.Pattern, err)
	}

	normalized := ccpath.NormalizeSeparators(r.Selector)
	sep := strings.LastIndex(normalized, ccpath.Separator)
	if sep < 0 || isQuery(normalized) {
		r.branchRE = regexp.MustCompile(`^.*$`)
		r.version = normalized
	} else {
		branchPattern := normalized[:sep]
		if r.branchRE, err = compileGlob(branchPattern); err != nil {
			return nil, fmt.Errorf("compile branch pattern %q: %w", branchPattern, err)
		}
		r.PrimaryBranch = primaryBranch(branchPattern)
		r.version = normalized[sep+1:]
	}
	if r.version == "" {
		return nil, fmt.Errorf("selector %q has no version", r.Selector)
	}
	r.LabelSelector = !ccpath.IsNumber(r.version) &&
		!strings.EqualFold(r.version, selectorCheckedOut) &&
		!strings.EqualFold(r.version, selectorLatest)
	return r, nil
}

func isQuery(selector string) bool {
	return strings.HasPrefix(selector, "{")
}

func primaryBranch(branchPattern string) string {
	parts := strings.Split(branchPattern, ccpath.Separator)
	last := strings.TrimSpace(parts[len(parts)-1])
	if last == "" || last == ellipsis {
		return ""
	}
	return last
}

// MatchesPath reports whether the rule applies to fullPath.
func (r *Rule) MatchesPath(fullPath string, isFile bool) bool {
	return r.Scope.matches(isFile) && r.scopeRE.MatchString(fullPath)
}

func (r *Rule) String() string {
	s := fmt.Sprintf("element -%s %s %s", r.Scope, r.Pattern, r.Selector)
	if r.MkBranch != "" {
		s += " -mkbranch " + r.MkBranch
	}
	return s
}

func (r *Rule) equal(o *Rule) bool {
	return r.Scope == o.Scope &&
		r.scopeRE.String() == o.scopeRE.String() &&
		r.branchRE.String() == o.branchRE.String() &&
		r.version == o.version &&
		r.MkBranch == o.MkBranch
}

// accepts checks the version predicate of the rule against v: the branch
// pattern must match the branch of v, then the selector must match.
func (r *Rule) accepts(v *vtree.Version) bool {
	if !r.branchRE.MatchString(v.Branch().FullName()) {
		return false
	}
	switch {
	case isQuery(r.version):
		return false
	case ccpath.IsNumber(r.version):
		return r.version == strconv.Itoa(v.Number())
	case strings.EqualFold(r.version, selectorCheckedOut):
		return false
	case strings.EqualFold(r.version, selectorLatest):
		return true
	default:
		return v.HasComment(r.version)
	}
}

// check is accepts plus the -mkbranch side effect, which only ever touches
// v itself. Callers pass a detached copy.
func (r *Rule) check(v *vtree.Version) result {
	if !r.accepts(v) {
		return resultDoesNotMatch
	}
	if r.MkBranch == "" {
		return resultMatches
	}
	if v.InheritedBranch(r.MkBranch) != nil {
		return resultBranchNotMade
	}
	b := vtree.NewBranch(v, r.MkBranch)
	b.AddVersion(0, nil)
	v.AddInheritedBranch(b)
	return resultBranchMade
}

// findVersion resolves the selector across every branch of tree matching
// the branch pattern.
func (r *Rule) findVersion(tree *vtree.Tree, fullPath string) (*vtree.Version, error) {
	var branches []*vtree.Branch
	for name, b := range tree.AllBranches() {
		if r.branchRE.MatchString(name) {
			branches = append(branches, b)
		}
	}
	if len(branches) == 0 {
		return nil, nil
	}

	seen := map[*vtree.Version]struct{}{}
	for _, b := range branches {
		var v *vtree.Version
		switch {
		case isQuery(r.version), strings.EqualFold(r.version, selectorCheckedOut):
			return nil, nil
		case ccpath.IsNumber(r.version):
			n, err := strconv.Atoi(r.version)
			if err != nil {
				return nil, nil
			}
			v = b.FindVersionByNumber(n)
		case strings.EqualFold(r.version, selectorLatest):
			v = b.LastVersion()
		default:
			v = b.FindVersionWithComment(r.version)
		}
		if v != nil {
			seen[v] = struct{}{}
		}
	}

	switch len(seen) {
	case 0:
		return nil, nil
	case 1:
		for v := range seen {
			return v, nil
		}
	}
	candidates := make([]string, 0, len(seen))
	for v := range seen {
		candidates = append(candidates, v.WholeName())
	}
	sort.Strings(candidates)
	return nil, &AmbiguousVersionError{Path: fullPath, Candidates: candidates}
}

// compileGlob turns a config spec pattern into an anchored regexp. "*" and
// "?" are the usual wildcards and a "..." segment stands for any number of
// directories.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	// ellipsisMark stands in for "..." until the wildcards are expanded so
	// that "???" never reads as an ellipsis.
	const ellipsisMark = '\x00'

	pattern = ccpath.NormalizeSeparators(pattern)

	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '.':
			if strings.HasPrefix(pattern[i:], ellipsis) {
				sb.WriteByte(ellipsisMark)
				i += len(ellipsis) - 1
			} else {
				sb.WriteString(`\.`)
			}
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	expr := sb.String()
	if !strings.HasPrefix(expr, ccpath.Separator) && !strings.HasPrefix(expr, ".*") {
		expr = "(.*/)?" + expr
	}
	mark := string(ellipsisMark)
	expr = strings.ReplaceAll(expr, "/"+mark, "(/[^/]+)*")
	expr = strings.ReplaceAll(expr, mark+"/", "([^/]+/)*")
	expr = strings.ReplaceAll(expr, mark, ".*")
	return regexp.Compile("^(?:" + expr + ")$")
}
