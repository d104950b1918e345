// Package ccase talks to ClearCase through the cleartool executable.
package ccase

import (
	"context"

	"github.com/thiagokokada/ccview-go/internal/history"
)

// Backend abstracts the ClearCase queries a view connection needs.
//
// The default implementation shells out to cleartool, but the interface
// lets tests and alternative transports stand in without changing callers.
type Backend interface {
	ViewPath() string

	// ListVersionTree returns the raw lsvtree lines of the element at path.
	ListVersionTree(ctx context.Context, path string, isDir bool) ([]string, error)
	// ListChildren lists a directory version, e.g. "dir@@/main/4".
	ListChildren(ctx context.Context, dirPathWithVersion string) ([]history.Child, error)
	Describe(ctx context.Context, versionPath string, isDir bool) (Description, error)
	// PreviousVersion returns the predecessor of the version at versionPath,
	// e.g. "/main/2" for "file.c@@/main/3".
	PreviousVersion(ctx context.Context, versionPath string, isDir bool) (string, error)

	// StartHistoryStream runs lshistory with options. A nil since asks for
	// the last event only.
	StartHistoryStream(ctx context.Context, since *history.Revision, options []string) (history.Stream, error)

	ConfigSpecText(ctx context.Context) (string, error)
	IsDynamicView(ctx context.Context) (bool, error)
}

// Description is what describe reports for a version.
type Description struct {
	Path    string
	Comment string
}
