// Package vtree models the version tree of a single element: branches
// holding ordered versions, with sub-branches sprouting from versions.
package vtree

import (
	"slices"
	"strconv"
)

// Version is one revision of an element on a branch.
type Version struct {
	number    int
	branch    *Branch
	comments  []string
	inherited []*Branch
	prev      *Version
	next      *Version
}

func (v *Version) Number() int        { return v.number }
func (v *Version) Branch() *Branch    { return v.branch }
func (v *Version) Next() *Version     { return v.next }
func (v *Version) Prev() *Version     { return v.prev }
func (v *Version) Comments() []string { return v.comments }

// WholeName is the full branch path followed by the ordinal, e.g.
// "/main/br/3".
func (v *Version) WholeName() string {
	return v.branch.FullName() + "/" + strconv.Itoa(v.number)
}

func (v *Version) String() string {
	return v.WholeName()
}

// HasComment reports whether the version carries the label or comment c.
func (v *Version) HasComment(c string) bool {
	return slices.Contains(v.comments, c)
}

func (v *Version) AddComment(c string) {
	if c == "" || v.HasComment(c) {
		return
	}
	v.comments = append(v.comments, c)
}

// InheritedBranches lists the branches sprouting from this version.
func (v *Version) InheritedBranches() []*Branch {
	return v.inherited
}

// InheritedBranch returns the sub-branch called name or nil.
func (v *Version) InheritedBranch(name string) *Branch {
	for _, b := range v.inherited {
		if b.name == name {
			return b
		}
	}
	return nil
}

func (v *Version) AddInheritedBranch(b *Branch) {
	v.inherited = append(v.inherited, b)
}

func (v *Version) removeInheritedBranch(b *Branch) {
	v.inherited = slices.DeleteFunc(v.inherited, func(x *Branch) bool { return x == b })
}

// Detached returns a copy of v whose inherited branch list is private.
// Adding branches to the copy leaves the tree untouched, while the copy
// still reports the same branch, ordinal and neighbours.
func (v *Version) Detached() *Version {
	c := *v
	c.inherited = slices.Clone(v.inherited)
	c.comments = slices.Clone(v.comments)
	return &c
}
