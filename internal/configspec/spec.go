// Package configspec parses config specs and evaluates them against the
// version tree of an element.
package configspec

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sort"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/vtree"
)

// VersionFinder looks up the version object named by an extended path. It
// returns nil when the version does not exist.
type VersionFinder interface {
	FindVersion(ctx context.Context, objectPath, version string, isDir bool) (*vtree.Version, error)
}

// Spec is a parsed config spec. It is immutable apart from the dynamic view
// flag, which is set once the view kind is known.
type Spec struct {
	loadRules   []LoadRule
	rules       []*Rule
	viewDynamic bool
}

func New(loadRules []LoadRule, rules []*Rule) *Spec {
	return &Spec{loadRules: loadRules, rules: rules}
}

func (s *Spec) LoadRules() []LoadRule { return s.loadRules }
func (s *Spec) Rules() []*Rule        { return s.rules }

// SetViewIsDynamic marks the spec as belonging to a dynamic view, where
// every path is loaded.
func (s *Spec) SetViewIsDynamic(dynamic bool) {
	s.viewDynamic = dynamic
}

func (s *Spec) ViewIsDynamic() bool {
	return s.viewDynamic
}

// HasLabelBasedSelector reports whether any rule selects versions by label.
// Label moves are invisible in history, so callers must not trust cached
// results for such specs.
func (s *Spec) HasLabelBasedSelector() bool {
	return slices.ContainsFunc(s.rules, func(r *Rule) bool { return r.LabelSelector })
}

// Branches returns the sorted, distinct primary branches named by the rules.
func (s *Spec) Branches() []string {
	set := map[string]struct{}{}
	for _, r := range s.rules {
		if r.PrimaryBranch != "" {
			set[r.PrimaryBranch] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Equal compares the load rules and the compiled rules of two specs.
func (s *Spec) Equal(o *Spec) bool {
	if s == nil || o == nil {
		return s == o
	}
	return slices.EqualFunc(s.loadRules, o.loadRules, func(a, b LoadRule) bool { return a.Dir == b.Dir }) &&
		slices.EqualFunc(s.rules, o.rules, func(a, b *Rule) bool { return a.equal(b) })
}

// IsUnderLoadRules reports whether fullPath, given either absolute or
// relative to viewRoot, is covered by a load rule.
func (s *Spec) IsUnderLoadRules(viewRoot, fullPath string) bool {
	return s.viewDynamic || s.covered(fullPath) || s.covered(path.Join(viewRoot, fullPath))
}

func (s *Spec) covered(p string) bool {
	return slices.ContainsFunc(s.loadRules, func(l LoadRule) bool { return l.Covers(p) })
}

// CurrentVersion returns the version of the element at fullPath selected by
// the first matching rule, or nil when no rule selects one.
func (s *Spec) CurrentVersion(viewRoot, fullPath string, tree *vtree.Tree, isFile bool) (*vtree.Version, error) {
	normalized, err := ccpath.NormalizeFileName(fullPath)
	if err != nil {
		return nil, err
	}
	if !s.IsUnderLoadRules(viewRoot, normalized) {
		slog.Debug("element outside load rules", slog.String("path", fullPath))
		return nil, nil
	}
	for _, r := range s.rules {
		if !r.MatchesPath(normalized, isFile) {
			continue
		}
		v, err := r.findVersion(tree, fullPath)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	slog.Debug("element ignored, no version selected", slog.String("path", fullPath))
	return nil, nil
}

// IsVersionInsideView walks the elements of an extended path and reports
// whether every versioned element is a version the spec would select.
func (s *Spec) IsVersionInsideView(ctx context.Context, finder VersionFinder, viewRoot string, elements []ccpath.Element, isFile bool) (bool, error) {
	for i, el := range elements {
		if !el.HasVersion() {
			continue
		}
		elementIsFile := isFile && i == len(elements)-1
		objectPath := ccpath.Join(elements, 0, i+1, false)
		if i > 0 {
			objectPath = ccpath.Join(elements, 0, i, true) + ccpath.Separator + el.Name
		}
		v, err := finder.FindVersion(ctx, objectPath, el.Version, !elementIsFile)
		if err != nil {
			return false, fmt.Errorf("find version %s%s: %w", objectPath, el.Version, err)
		}
		if v == nil {
			return false, nil
		}
		inside, err := s.versionInsideView(viewRoot, ccpath.Join(elements, 0, i+1, false), v, elementIsFile)
		if err != nil {
			return false, err
		}
		if !inside {
			return false, nil
		}
	}
	return true, nil
}

func (s *Spec) versionInsideView(viewRoot, filePath string, v *vtree.Version, isFile bool) (bool, error) {
	normalized, err := ccpath.NormalizeFileName(filePath)
	if err != nil {
		return false, err
	}
	if !s.IsUnderLoadRules(viewRoot, normalized) {
		return false, nil
	}

	current := v.Detached()
	for {
		restart := false
		for _, r := range s.rules {
			if !r.MatchesPath(normalized, isFile) {
				continue
			}
			switch r.check(current) {
			case resultMatches:
				return true, nil
			case resultBranchMade:
				restart = true
			case resultDoesNotMatch:
				if rightVersionExists(r, rootBranch(current)) {
					return false, nil
				}
			}
			if restart {
				break
			}
		}
		if !restart {
			return false, nil
		}
	}
}

func rootBranch(v *vtree.Version) *vtree.Branch {
	b := v.Branch()
	for b.Parent() != nil {
		b = b.Parent().Branch()
	}
	return b
}

// rightVersionExists searches every branch under root for a version r
// accepts outright.
func rightVersionExists(r *Rule, root *vtree.Branch) bool {
	if r.MkBranch != "" {
		return false
	}
	stack := []*vtree.Branch{root}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for v := b.FirstVersion(); v != nil; v = v.Next() {
			if r.accepts(v) {
				return true
			}
			stack = append(stack, v.InheritedBranches()...)
		}
	}
	return false
}
