package ccpath

import (
	"fmt"
	"strings"
)

// MalformedPathError reports a path that cannot be normalized.
type MalformedPathError struct {
	Path   string
	Reason string
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed path %q: %s", e.Path, e.Reason)
}

// NormalizeSeparators converts backslashes to forward slashes.
func NormalizeSeparators(path string) string {
	return strings.ReplaceAll(path, "\\", Separator)
}

// NormalizeFileName resolves "." and ".." segments. A ".." that climbs
// above the first segment is an error.
func NormalizeFileName(fullFileName string) (string, error) {
	parts := strings.Split(fullFileName, Separator)
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case ".":
			continue
		case "..":
			if len(stack) == 0 {
				return "", &MalformedPathError{Path: fullFileName, Reason: "invalid parent links balance"}
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, part)
		}
	}
	return strings.Join(stack, Separator), nil
}

// NormalizePath trims path, unifies separators, drops a trailing separator
// and resolves relative segments.
func NormalizePath(path string) (string, error) {
	p := NormalizeSeparators(strings.TrimSpace(path))
	if len(p) > 1 && strings.HasSuffix(p, Separator) {
		p = p[:len(p)-1]
	}
	return NormalizeFileName(p)
}

// NormalizeRequired is NormalizePath for inputs that must not be empty.
func NormalizeRequired(path string) (string, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", &MalformedPathError{Path: path, Reason: "empty path"}
	}
	return p, nil
}
