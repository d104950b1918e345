package history

// MaxVersionToIgnore returns the highest version ordinal of an element that
// is not worth reporting as a change on its own, such as the empty /main/1
// created together with a new element.
type MaxVersionToIgnore func(e *Element) int

// DefaultMaxVersionToIgnore ignores version 1 on the branch named "main"
// and nothing elsewhere.
func DefaultMaxVersionToIgnore(e *Element) int {
	if e.LastBranch() == "main" {
		return 1
	}
	return 0
}

// IgnoreRules builds a MaxVersionToIgnore from per-branch limits. The "*"
// key applies to branches without an entry. With no rules it is
// DefaultMaxVersionToIgnore.
func IgnoreRules(rules map[string]int) MaxVersionToIgnore {
	if len(rules) == 0 {
		return DefaultMaxVersionToIgnore
	}
	return func(e *Element) int {
		if n, ok := rules[e.LastBranch()]; ok {
			return n
		}
		return rules["*"]
	}
}

// IsNoise reports whether e is at or below its limit. Elements whose
// version has no ordinal are never noise.
func (m MaxVersionToIgnore) IsNoise(e *Element) bool {
	n, err := e.VersionInt()
	if err != nil {
		return false
	}
	return n <= m(e)
}
