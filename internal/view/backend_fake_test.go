package view

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/thiagokokada/ccview-go/internal/ccase"
	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/history"
)

type fakeBackend struct {
	viewPath string

	listVersionTreeFunc    func(path string, isDir bool) ([]string, error)
	listChildrenFunc       func(dir string) ([]history.Child, error)
	describeFunc           func(versionPath string, isDir bool) (ccase.Description, error)
	previousVersionFunc    func(versionPath string, isDir bool) (string, error)
	startHistoryStreamFunc func(since *history.Revision, options []string) (history.Stream, error)
	configSpecTextFunc     func() (string, error)
	isDynamicViewFunc      func() (bool, error)

	versionTreeCalls map[string]int

	mu             sync.Mutex
	historyOptions [][]string
}

func (f *fakeBackend) ViewPath() string { return f.viewPath }

func (f *fakeBackend) ListVersionTree(_ context.Context, path string, isDir bool) ([]string, error) {
	if f.versionTreeCalls == nil {
		f.versionTreeCalls = make(map[string]int)
	}
	f.versionTreeCalls[path]++
	if f.listVersionTreeFunc != nil {
		return f.listVersionTreeFunc(path, isDir)
	}
	return nil, errors.New("unexpected ListVersionTree call")
}

func (f *fakeBackend) ListChildren(_ context.Context, dir string) ([]history.Child, error) {
	if f.listChildrenFunc != nil {
		return f.listChildrenFunc(dir)
	}
	return nil, errors.New("unexpected ListChildren call")
}

func (f *fakeBackend) Describe(_ context.Context, versionPath string, isDir bool) (ccase.Description, error) {
	if f.describeFunc != nil {
		return f.describeFunc(versionPath, isDir)
	}
	return ccase.Description{}, errors.New("unexpected Describe call")
}

func (f *fakeBackend) PreviousVersion(_ context.Context, versionPath string, isDir bool) (string, error) {
	if f.previousVersionFunc != nil {
		return f.previousVersionFunc(versionPath, isDir)
	}
	return "", errors.New("unexpected PreviousVersion call")
}

func (f *fakeBackend) StartHistoryStream(_ context.Context, since *history.Revision, options []string) (history.Stream, error) {
	f.mu.Lock()
	f.historyOptions = append(f.historyOptions, options)
	f.mu.Unlock()
	if f.startHistoryStreamFunc != nil {
		return f.startHistoryStreamFunc(since, options)
	}
	return nil, errors.New("unexpected StartHistoryStream call")
}

func (f *fakeBackend) ConfigSpecText(context.Context) (string, error) {
	if f.configSpecTextFunc != nil {
		return f.configSpecTextFunc()
	}
	return "", errors.New("unexpected ConfigSpecText call")
}

func (f *fakeBackend) IsDynamicView(context.Context) (bool, error) {
	if f.isDynamicViewFunc != nil {
		return f.isDynamicViewFunc()
	}
	return false, errors.New("unexpected IsDynamicView call")
}

// fakeVOB answers version tree and listing queries from maps keyed by
// version-free element paths.
type fakeVOB struct {
	// versions holds lsvtree versions such as "main/0". Elements without
	// an entry have main/0 and main/1.
	versions map[string][]string
	// children holds listings keyed by "dir@@/main/N".
	children map[string][]history.Child
}

func (v fakeVOB) listVersionTree(path string, _ bool) ([]string, error) {
	element := ccpath.ExtractElementPath(path)
	versions, ok := v.versions[element]
	if !ok {
		versions = []string{"main/0", "main/1"}
	}
	lines := []string{element + "@@/main"}
	for _, version := range versions {
		lines = append(lines, element+"@@/"+version)
	}
	return lines, nil
}

func (v fakeVOB) listChildren(dir string) ([]history.Child, error) {
	i := strings.LastIndex(dir, ccpath.VersionSeparator)
	if i < 0 {
		return nil, errors.New("unversioned listing of " + dir)
	}
	key := ccpath.ExtractElementPath(dir[:i]) + dir[i:]
	children, ok := v.children[key]
	if !ok {
		return nil, errors.New("no listing for " + key)
	}
	return children, nil
}

func (v fakeVOB) backend(viewPath string) *fakeBackend {
	return &fakeBackend{
		viewPath:            viewPath,
		listVersionTreeFunc: v.listVersionTree,
		listChildrenFunc:    v.listChildren,
	}
}

func fileChild(dir, name string) history.Child {
	return history.Child{Name: name, Kind: history.ChildFile, Path: dir + "/" + name}
}

func dirChild(parent, name string) history.Child {
	return history.Child{Name: name, Kind: history.ChildDirectory, Path: parent + "/" + name}
}
