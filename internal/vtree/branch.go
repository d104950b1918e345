package vtree

import "sort"

// Branch is a named line of versions. Root branches have no parent
// version.
type Branch struct {
	name     string
	parent   *Version
	versions []*Version
}

// NewBranch creates an empty branch sprouting from parent. It does not
// attach the branch to parent.
func NewBranch(parent *Version, name string) *Branch {
	return &Branch{name: name, parent: parent}
}

func (b *Branch) Name() string         { return b.name }
func (b *Branch) Parent() *Version     { return b.parent }
func (b *Branch) Versions() []*Version { return b.versions }

// FullName is the slash-joined path from the tree root, e.g. "/main/br".
func (b *Branch) FullName() string {
	if b.parent == nil {
		return "/" + b.name
	}
	return b.parent.branch.FullName() + "/" + b.name
}

func (b *Branch) FirstVersion() *Version {
	if len(b.versions) == 0 {
		return nil
	}
	return b.versions[0]
}

func (b *Branch) LastVersion() *Version {
	if len(b.versions) == 0 {
		return nil
	}
	return b.versions[len(b.versions)-1]
}

// FindVersionByNumber returns the version with ordinal n or nil.
func (b *Branch) FindVersionByNumber(n int) *Version {
	i, ok := b.search(n)
	if !ok {
		return nil
	}
	return b.versions[i]
}

// FindVersionWithComment returns the highest version carrying comment or
// nil.
func (b *Branch) FindVersionWithComment(comment string) *Version {
	for i := len(b.versions) - 1; i >= 0; i-- {
		if b.versions[i].HasComment(comment) {
			return b.versions[i]
		}
	}
	return nil
}

// AddVersion inserts ordinal n at its numeric slot. An existing ordinal is
// returned unchanged apart from gaining the comments.
func (b *Branch) AddVersion(n int, comments []string) *Version {
	i, ok := b.search(n)
	if ok {
		v := b.versions[i]
		for _, c := range comments {
			v.AddComment(c)
		}
		return v
	}
	v := &Version{number: n, branch: b}
	for _, c := range comments {
		v.AddComment(c)
	}
	b.versions = append(b.versions, nil)
	copy(b.versions[i+1:], b.versions[i:])
	b.versions[i] = v
	b.relink()
	return v
}

// truncate drops every version with ordinal >= n and returns the branches
// that sprouted from them.
func (b *Branch) truncate(n int) []*Branch {
	i, _ := b.search(n)
	var dropped []*Branch
	for _, v := range b.versions[i:] {
		dropped = append(dropped, v.inherited...)
	}
	b.versions = b.versions[:i]
	b.relink()
	return dropped
}

func (b *Branch) search(n int) (int, bool) {
	i := sort.Search(len(b.versions), func(i int) bool { return b.versions[i].number >= n })
	return i, i < len(b.versions) && b.versions[i].number == n
}

func (b *Branch) relink() {
	for i, v := range b.versions {
		v.prev, v.next = nil, nil
		if i > 0 {
			v.prev = b.versions[i-1]
		}
		if i+1 < len(b.versions) {
			v.next = b.versions[i+1]
		}
	}
}
