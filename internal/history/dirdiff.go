package history

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ChildKind tells files and directories apart in a directory listing.
type ChildKind int

const (
	ChildFile ChildKind = iota
	ChildDirectory
)

func (k ChildKind) String() string {
	if k == ChildDirectory {
		return "directory"
	}
	return "file"
}

// Child is one entry of a directory version listing. Path is the entry as
// listed, without the trailing "@@".
type Child struct {
	Name string    `json:"name"`
	Kind ChildKind `json:"kind"`
	Path string    `json:"path"`
}

func (c Child) IsDir() bool { return c.Kind == ChildDirectory }

// DirDiff is the difference between two versions of a directory.
type DirDiff struct {
	AddedFiles   []Child
	DeletedFiles []Child
	AddedDirs    []Child
	DeletedDirs  []Child
}

func (d DirDiff) Empty() bool {
	return len(d.AddedFiles)+len(d.DeletedFiles)+len(d.AddedDirs)+len(d.DeletedDirs) == 0
}

// DiffChildren compares two listings by child name and kind. Results are
// sorted by name.
func DiffChildren(before, after []Child) DirDiff {
	key := func(c Child) string { return c.Kind.String() + "\x00" + c.Name }
	inBefore := make(map[string]struct{}, len(before))
	for _, c := range before {
		inBefore[key(c)] = struct{}{}
	}
	inAfter := make(map[string]struct{}, len(after))
	for _, c := range after {
		inAfter[key(c)] = struct{}{}
	}

	var d DirDiff
	for _, c := range after {
		if _, ok := inBefore[key(c)]; ok {
			continue
		}
		if c.IsDir() {
			d.AddedDirs = append(d.AddedDirs, c)
		} else {
			d.AddedFiles = append(d.AddedFiles, c)
		}
	}
	for _, c := range before {
		if _, ok := inAfter[key(c)]; ok {
			continue
		}
		if c.IsDir() {
			d.DeletedDirs = append(d.DeletedDirs, c)
		} else {
			d.DeletedFiles = append(d.DeletedFiles, c)
		}
	}
	for _, list := range [][]Child{d.AddedFiles, d.DeletedFiles, d.AddedDirs, d.DeletedDirs} {
		slices.SortFunc(list, func(a, b Child) int { return strings.Compare(a.Name, b.Name) })
	}
	return d
}

// RenderDiff is a unified diff of the two listings, one child per line,
// used for debug output.
func RenderDiff(beforeName, afterName string, before, after []Child) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        listingLines(before),
		B:        listingLines(after),
		FromFile: beforeName,
		ToFile:   afterName,
		Context:  1,
	})
}

func listingLines(children []Child) []string {
	lines := make([]string, 0, len(children))
	for _, c := range children {
		name := c.Name
		if c.IsDir() {
			name += "/"
		}
		lines = append(lines, name+"\n")
	}
	slices.Sort(lines)
	return lines
}
