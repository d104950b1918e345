package history

import (
	"regexp"
	"strings"
)

var (
	versionedPathPattern = regexp.MustCompile(`^(.*?)[/\\](\d*)[/\\](.*?)[/\\](.*)$`)
	versionedFilePattern = regexp.MustCompile(`^(.*?)[/\\](\d*)[/\\](.*)$`)
	versionEndPattern    = regexp.MustCompile(`^(.*?)[/\\](.*?)[/\\](\d*)$`)
)

// NormalizeObjectName rewrites an object name reported through another
// branch, such as "dir@@/main/br/2/file@@/main/1", so that every element
// carries its own "@@" marker. With dropVersions the branch and ordinal
// segments are removed and only the element names are kept. Names without
// "@@" are returned unchanged.
func NormalizeObjectName(name string, dropVersions bool) string {
	vsep := strings.Index(name, "@@")
	if vsep < 0 {
		return name
	}
	sep := `\`
	if strings.Contains(name, "/") {
		sep = "/"
	}

	var out strings.Builder
	out.WriteString(name[:vsep])
	// "@@" and the separator that follows it
	tail := ""
	if len(name) > vsep+3 {
		tail = name[vsep+3:]
	}
	for {
		if m := versionedPathPattern.FindStringSubmatch(tail); m != nil {
			writeSegments(&out, sep, m[1:4], dropVersions)
			tail = m[4]
			continue
		}
		if m := versionedFilePattern.FindStringSubmatch(tail); m != nil {
			writeSegments(&out, sep, m[1:4], dropVersions)
		} else if versionEndPattern.MatchString(tail) && !dropVersions {
			writeMarker(&out)
			out.WriteString("/" + tail)
		}
		break
	}
	return strings.TrimSpace(out.String())
}

// writeSegments writes branch, ordinal and element name, or only the name.
func writeSegments(out *strings.Builder, sep string, groups []string, dropVersions bool) {
	if dropVersions {
		out.WriteString(sep + groups[2])
		return
	}
	writeMarker(out)
	out.WriteString(sep + groups[0] + sep + groups[1] + sep + groups[2])
}

func writeMarker(out *strings.Builder) {
	if !strings.HasSuffix(out.String(), "@") {
		out.WriteString("@@")
	}
}
