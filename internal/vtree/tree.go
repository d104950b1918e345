package vtree

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// MalformedVersionError reports a whole version name that cannot be added
// to a tree.
type MalformedVersionError struct {
	Version string
	Reason  string
}

func (e *MalformedVersionError) Error() string {
	return fmt.Sprintf("malformed version %q: %s", e.Version, e.Reason)
}

// Tree is the set of branches of one element, indexed by full branch name.
type Tree struct {
	roots []*Branch
	index map[string]*Branch
}

func New() *Tree {
	return &Tree{index: map[string]*Branch{}}
}

// Roots returns the branches without a parent version.
func (t *Tree) Roots() []*Branch {
	return t.roots
}

// Branch returns the branch with the given full name ("/main/br") or nil.
func (t *Tree) Branch(fullName string) *Branch {
	return t.index["/"+strings.Trim(fullName, "/")]
}

// AllBranches returns a copy of the full-name index.
func (t *Tree) AllBranches() map[string]*Branch {
	return maps.Clone(t.index)
}

// AddVersion adds a version given as "main/br/3", with or without a
// leading slash. Missing branches along the path are created, each one
// sprouting from the current last version of its parent branch. A trailing
// " (LABEL1, LABEL2)" group, as printed by lsvtree, becomes the version's
// comments.
func (t *Tree) AddVersion(wholeName string) error {
	name, comments := splitLabels(wholeName)
	segments := splitSegments(name)
	if len(segments) < 2 {
		return &MalformedVersionError{Version: wholeName, Reason: "missing branch or ordinal"}
	}
	last := segments[len(segments)-1]
	n, err := strconv.Atoi(last)
	if err != nil || n < 0 {
		return &MalformedVersionError{Version: wholeName, Reason: fmt.Sprintf("ordinal %q is not a non-negative integer", last)}
	}
	branch, err := t.ensureBranch(segments[:len(segments)-1], wholeName)
	if err != nil {
		return err
	}
	branch.AddVersion(n, comments)
	return nil
}

// AddBranch makes sure the branch path ("main/br") exists and returns its
// leaf branch.
func (t *Tree) AddBranch(path string) (*Branch, error) {
	segments := splitSegments(path)
	if len(segments) == 0 {
		return nil, &MalformedVersionError{Version: path, Reason: "empty branch path"}
	}
	return t.ensureBranch(segments, path)
}

func (t *Tree) ensureBranch(segments []string, raw string) (*Branch, error) {
	var cur *Branch
	fullName := ""
	for _, seg := range segments {
		if seg == "" {
			return nil, &MalformedVersionError{Version: raw, Reason: "empty branch name"}
		}
		fullName += "/" + seg
		if b, ok := t.index[fullName]; ok {
			cur = b
			continue
		}
		var b *Branch
		if cur == nil {
			b = NewBranch(nil, seg)
			t.roots = append(t.roots, b)
		} else {
			parent := cur.LastVersion()
			if parent == nil {
				parent = cur.AddVersion(0, nil)
			}
			b = NewBranch(parent, seg)
			parent.AddInheritedBranch(b)
		}
		t.index[fullName] = b
		cur = b
	}
	return cur, nil
}

// PruneBranch forgets part of the tree. "main/br" removes the branch and
// everything that sprouted from it. "main/br/3" removes version 3 and every
// later version of the branch; a branch left without versions is removed
// as well. Unknown names are ignored.
func (t *Tree) PruneBranch(wholeName string) {
	segments := splitSegments(wholeName)
	if len(segments) == 0 {
		return
	}
	last := segments[len(segments)-1]
	n, err := strconv.Atoi(last)
	if err != nil {
		if b := t.index["/"+strings.Join(segments, "/")]; b != nil {
			t.detach(b)
		}
		return
	}
	b := t.index["/"+strings.Join(segments[:len(segments)-1], "/")]
	if b == nil {
		return
	}
	for _, sub := range b.truncate(n) {
		t.unindex(sub)
	}
	if len(b.versions) == 0 {
		t.detach(b)
	}
}

func (t *Tree) detach(b *Branch) {
	if b.parent == nil {
		for i, r := range t.roots {
			if r == b {
				t.roots = append(t.roots[:i], t.roots[i+1:]...)
				break
			}
		}
	} else {
		b.parent.removeInheritedBranch(b)
	}
	t.unindex(b)
}

func (t *Tree) unindex(b *Branch) {
	stack := []*Branch{b}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		delete(t.index, cur.FullName())
		for _, v := range cur.versions {
			stack = append(stack, v.inherited...)
		}
	}
}

// FindVersionByPath resolves "/main/br/3" (an optional "@@" prefix is
// accepted) to a version, or nil when the tree does not hold it.
func (t *Tree) FindVersionByPath(path string) *Version {
	path = strings.TrimPrefix(strings.TrimSpace(path), "@@")
	segments := splitSegments(path)
	if len(segments) < 2 {
		return nil
	}
	n, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return nil
	}
	b := t.index["/"+strings.Join(segments[:len(segments)-1], "/")]
	if b == nil {
		return nil
	}
	return b.FindVersionByNumber(n)
}

func splitSegments(path string) []string {
	path = strings.Trim(strings.ReplaceAll(strings.TrimSpace(path), "\\", "/"), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func splitLabels(s string) (string, []string) {
	s = strings.TrimSpace(s)
	open := strings.Index(s, " (")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return s, nil
	}
	var labels []string
	for _, l := range strings.Split(s[open+2:len(s)-1], ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return strings.TrimSpace(s[:open]), labels
}
