// Package ccpath splits and rebuilds ClearCase extended paths, where a path
// segment may carry a version suffix such as "file.c@@/main/br/3".
package ccpath

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Separator        = "/"
	VersionSeparator = "@@"

	mainBranch = "main"
)

// Element is one segment of an extended path.
type Element struct {
	Name string
	// Version is empty when the segment carries no version, otherwise it
	// starts with VersionSeparator (e.g. "@@/main/3").
	Version  string
	FromView bool
}

func (e Element) HasVersion() bool {
	return e.Version != ""
}

// SetVersion attaches version to the element, prefixing the version
// separator when it is missing. An empty version clears it.
func (e *Element) SetVersion(version string) {
	switch {
	case version == "":
		e.Version = ""
	case strings.HasPrefix(version, VersionSeparator):
		e.Version = version
	default:
		e.Version = VersionSeparator + version
	}
}

func (e *Element) appendVersion(segment string) {
	if e.Version == "" {
		e.Version = VersionSeparator
	}
	e.Version += Separator + segment
}

func (e Element) String() string {
	return e.Name + e.Version
}

// Splitter splits extended paths. The zero value is the strict splitter.
type Splitter struct {
	// TreatMainAsVersion makes a segment followed by a bare "main" segment
	// open a version suffix even without "@@". Older history output relies
	// on it.
	TreatMainAsVersion bool
}

// Split splits path with the strict splitter.
func Split(path string) []Element {
	return Splitter{}.Split(path)
}

// Split breaks path into elements. A segment ending in "@@" opens a version
// suffix that absorbs the following segments up to and including the first
// numeric one. Single-dot segments are folded into the previous element.
func (s Splitter) Split(path string) []Element {
	if path == "" {
		return nil
	}
	parts := strings.Split(NormalizeSeparators(path), Separator)
	result := make([]Element, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		switch {
		case strings.HasSuffix(part, VersionSeparator):
			el := Element{Name: strings.TrimSuffix(part, VersionSeparator), Version: VersionSeparator}
			i = absorbVersion(&el, i, parts)
			result = append(result, el)
		case s.TreatMainAsVersion && i+1 < len(parts) && strings.EqualFold(parts[i+1], mainBranch):
			el := Element{Name: part, Version: VersionSeparator}
			i = absorbVersion(&el, i, parts)
			result = append(result, el)
		default:
			result = append(result, Element{Name: part})
		}
	}
	return foldDots(result)
}

func absorbVersion(el *Element, i int, parts []string) int {
	for i++; i < len(parts); i++ {
		el.appendVersion(parts[i])
		if IsNumber(parts[i]) {
			break
		}
	}
	return i
}

func foldDots(elements []Element) []Element {
	i := 1
	for i < len(elements) {
		if elements[i].Name != "." {
			i++
			continue
		}
		prev := &elements[i-1]
		if prev.Version == "" {
			prev.Version = elements[i].Version
		}
		elements = append(elements[:i], elements[i+1:]...)
	}
	return elements
}

// Join rebuilds the path from elements[start:end].
func Join(elements []Element, start, end int, includeVersion bool) string {
	var sb strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			sb.WriteString(Separator)
		}
		sb.WriteString(elements[i].Name)
		if includeVersion {
			sb.WriteString(elements[i].Version)
		}
	}
	return sb.String()
}

// JoinAll rebuilds the whole path including versions.
func JoinAll(elements []Element) string {
	return Join(elements, 0, len(elements), true)
}

// PathWithoutVersions rebuilds the path dropping every version suffix.
func PathWithoutVersions(elements []Element) string {
	return Join(elements, 0, len(elements), false)
}

// RelativeWithVersions joins the elements that are not part of the view
// path, keeping their versions.
func RelativeWithVersions(elements []Element) string {
	var sb strings.Builder
	for _, el := range elements {
		if el.FromView {
			continue
		}
		sb.WriteString(Separator)
		sb.WriteString(el.Name)
		sb.WriteString(el.Version)
	}
	return strings.TrimPrefix(sb.String(), Separator)
}

// ExtractElementPath returns the version-free path of an extended path.
func ExtractElementPath(fullPath string) string {
	return Splitter{}.ExtractElementPath(fullPath)
}

func (s Splitter) ExtractElementPath(fullPath string) string {
	return PathWithoutVersions(s.Split(fullPath))
}

// MarkViewElements flags the leading elements that coincide with viewPath.
// The last dropFromView segments of viewPath are not considered.
func MarkViewElements(elements []Element, viewPath string, dropFromView int) {
	viewParts := viewPathParts(viewPath, elements)
	for i := 0; i < dropFromView && len(viewParts) > 0; i++ {
		viewParts = viewParts[:len(viewParts)-1]
	}
	for i := range elements {
		elements[i].FromView = i < len(viewParts) && elements[i].Name == viewParts[i]
	}
}

// IsInsideView reports whether objectName lies at or below viewPath.
func IsInsideView(objectName, viewPath string) bool {
	elements := Split(objectName)
	viewParts := viewPathParts(viewPath, elements)
	if len(viewParts) > len(elements) {
		return false
	}
	for i, part := range viewParts {
		if elements[i].Name != part {
			return false
		}
	}
	return true
}

func viewPathParts(viewPath string, elements []Element) []string {
	if viewPath == "" {
		return nil
	}
	parts := strings.Split(NormalizeSeparators(viewPath), Separator)
	if len(elements) > 0 && elements[0].Name == "" && len(parts) > 0 {
		parts[0] = ""
	}
	return parts
}

// InsertDots rewrites versioned directory segments into the "dir/.@@/v"
// form accepted by cleartool. For a file path the last element keeps its
// version in place.
func InsertDots(fullPath string, isDir bool) (string, error) {
	normalized, err := NormalizePath(fullPath)
	if err != nil {
		return "", err
	}
	elements := Split(normalized)
	last := len(elements) - 2
	if isDir {
		last = len(elements) - 1
	}
	for i := last; i >= 0; i-- {
		if elements[i].Version == "" {
			continue
		}
		dot := Element{Name: ".", Version: elements[i].Version}
		elements[i].Version = ""
		elements = append(elements[:i+1], append([]Element{dot}, elements[i+1:]...)...)
	}
	return JoinAll(elements), nil
}

// ReadVersion extracts the branch path and ordinal from an lsvtree line,
// e.g. "file@@/main/br/3" gives "main/br/3". A line without "@@" gives "".
func ReadVersion(line string) string {
	idx := strings.LastIndex(line, VersionSeparator)
	if idx < 0 {
		return ""
	}
	version := line[idx+len(VersionSeparator):]
	return strings.TrimPrefix(version, Separator)
}

// VersionInt parses the trailing ordinal of a whole version name.
func VersionInt(wholeVersion string) (int, error) {
	idx := strings.LastIndex(wholeVersion, Separator)
	n, err := strconv.Atoi(wholeVersion[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("version %q: %w", wholeVersion, err)
	}
	return n, nil
}

// LastBranch returns the branch owning a whole version name, e.g. "br" for
// "/main/br/3".
func LastBranch(wholeVersion string) string {
	last := strings.LastIndex(wholeVersion, Separator)
	if last < 0 {
		return ""
	}
	prev := strings.LastIndex(wholeVersion[:last], Separator)
	return wholeVersion[prev+1 : last]
}

// IsNumber reports whether s is a non-empty run of ASCII digits.
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
