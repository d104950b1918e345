package ccase

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError is a failed cleartool invocation.
type CommandError struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ErrorKind is the class of a cleartool failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBranchTypeNotFound
	KindNotVersionedObject
	KindNotSnapshotView
	KindUnknownHost
	KindLicense
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindBranchTypeNotFound:
		return "branch-type-not-found"
	case KindNotVersionedObject:
		return "not-versioned-object"
	case KindNotSnapshotView:
		return "not-snapshot-view"
	case KindUnknownHost:
		return "unknown-host"
	case KindLicense:
		return "license"
	case KindNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

var errorPatterns = []struct {
	text string
	kind ErrorKind
}{
	{text: "branch type not found", kind: KindBranchTypeNotFound},
	{text: "not a vob object", kind: KindNotVersionedObject},
	{text: "not a versioned object", kind: KindNotVersionedObject},
	{text: "is not a valid snapshot view path", kind: KindNotSnapshotView},
	{text: "unknown host", kind: KindUnknownHost},
	{text: "unable to contact", kind: KindUnknownHost},
	{text: "license", kind: KindLicense},
	{text: "pathname not found", kind: KindNotFound},
	{text: "no such file or directory", kind: KindNotFound},
}

// Classify maps a cleartool error onto an ErrorKind by its message text.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	msg := err.Error()
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Stderr != "" {
		msg = cmdErr.Stderr
	}
	msg = strings.ToLower(msg)
	for _, p := range errorPatterns {
		if strings.Contains(msg, p.text) {
			return p.kind
		}
	}
	return KindUnknown
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && Classify(err) == kind
}
