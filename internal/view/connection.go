// Package view answers questions about one ClearCase view: which version of
// an element it selects, whether a historical version is visible in it and
// which changes happened in it between two points in time.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/thiagokokada/ccview-go/internal/ccase"
	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/configspec"
	"github.com/thiagokokada/ccview-go/internal/history"
	"github.com/thiagokokada/ccview-go/internal/metrics"
	"github.com/thiagokokada/ccview-go/internal/vtree"
)

type Options struct {
	TreatMainAsVersion bool
	// Branches restricts history to these branches. Nil derives them from
	// the config spec.
	Branches []string
	// HistoryOptions are lshistory option sets, one stream each. "%path%"
	// stands for the whole view path. Empty means "-all %path%".
	HistoryOptions []string
	// MaxVersionToIgnore defaults to history.DefaultMaxVersionToIgnore.
	MaxVersionToIgnore history.MaxVersionToIgnore
	Metrics            *metrics.Recorder
}

// Connection evaluates a config spec against the elements of a view. It
// keeps per-collection state and is not safe for concurrent use; serialize
// callers with a SessionRegistry.
type Connection struct {
	backend  ccase.Backend
	path     Path
	spec     *configspec.Spec
	specText string
	opts     Options
	splitter ccpath.Splitter

	dirVersions     map[string]*vtree.Version
	changesToIgnore map[string][]*history.Element
	deletedVersions map[string][]*history.Element
}

func New(backend ccase.Backend, p Path, spec *configspec.Spec, opts Options) *Connection {
	if len(opts.HistoryOptions) == 0 {
		opts.HistoryOptions = []string{"-all " + pathPlaceholder}
	}
	if opts.MaxVersionToIgnore == nil {
		opts.MaxVersionToIgnore = history.DefaultMaxVersionToIgnore
	}
	c := &Connection{
		backend:  backend,
		path:     p,
		spec:     spec,
		opts:     opts,
		splitter: ccpath.Splitter{TreatMainAsVersion: opts.TreatMainAsVersion},
	}
	c.reset()
	return c
}

// Open reads the config spec of the view from backend.
func Open(ctx context.Context, backend ccase.Backend, p Path, opts Options) (*Connection, error) {
	text, err := backend.ConfigSpecText(ctx)
	if err != nil {
		return nil, fmt.Errorf("read config spec of %s: %w", p.Root(), err)
	}
	spec, err := configspec.ParseString(p.Root(), text)
	if err != nil {
		return nil, err
	}
	dynamic, err := backend.IsDynamicView(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect view kind of %s: %w", p.Root(), err)
	}
	spec.SetViewIsDynamic(dynamic)
	c := New(backend, p, spec, opts)
	c.specText = text
	return c, nil
}

func (c *Connection) Path() Path             { return c.path }
func (c *Connection) Spec() *configspec.Spec { return c.spec }

// SpecText is the config spec text read by Open, empty for New.
func (c *Connection) SpecText() string { return c.specText }

func (c *Connection) reset() {
	c.dirVersions = make(map[string]*vtree.Version)
	c.changesToIgnore = make(map[string][]*history.Element)
	c.deletedVersions = make(map[string][]*history.Element)
}

// resetDirectoryVersions forgets the directory versions computed so far.
func (c *Connection) resetDirectoryVersions() {
	clear(c.dirVersions)
}

// CurrentVersion returns the version the view selects for the element at
// fullPath, or nil when the spec selects none.
func (c *Connection) CurrentVersion(ctx context.Context, fullPath string, isFile bool) (*vtree.Version, error) {
	if isFile {
		return c.loadCurrentVersion(ctx, fullPath, true)
	}
	if v, ok := c.dirVersions[fullPath]; ok {
		return v, nil
	}
	v, err := c.loadCurrentVersion(ctx, fullPath, false)
	if err != nil {
		return nil, err
	}
	c.dirVersions[fullPath] = v
	return v, nil
}

func (c *Connection) loadCurrentVersion(ctx context.Context, fullPath string, isFile bool) (*vtree.Version, error) {
	tree, err := c.readVersionTree(ctx, fullPath, !isFile)
	if err != nil {
		return nil, err
	}
	elementPath := c.splitter.ExtractElementPath(fullPath)
	for _, e := range c.changesToIgnore[elementPath] {
		slog.Debug("pruning ignored change", slog.String("element", elementPath), slog.String("version", e.Version))
		tree.PruneBranch(e.Version)
	}

	v, err := c.spec.CurrentVersion(c.path.Root(), elementPath, tree, isFile)
	c.opts.Metrics.Evaluation(isFile, evaluationOutcome(v, err))
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", fullPath, err)
	}
	return v, nil
}

func evaluationOutcome(v *vtree.Version, err error) string {
	var ambiguous *configspec.AmbiguousVersionError
	switch {
	case errors.As(err, &ambiguous):
		return metrics.OutcomeAmbiguous
	case err != nil:
		return metrics.OutcomeError
	case v == nil:
		return metrics.OutcomeNone
	default:
		return metrics.OutcomeResolved
	}
}

// readVersionTree builds the version tree of the element at fullPath from
// its listing plus the versions destroyed after the collection bound.
func (c *Connection) readVersionTree(ctx context.Context, fullPath string, isDir bool) (*vtree.Tree, error) {
	lines, err := c.backend.ListVersionTree(ctx, fullPath, isDir)
	if err != nil {
		return nil, fmt.Errorf("list version tree %s: %w", fullPath, err)
	}
	tree := vtree.New()
	for _, line := range lines {
		version := ccpath.ReadVersion(line)
		if version == "" {
			slog.Debug("skipping version tree line", slog.String("path", fullPath), slog.String("line", line))
			continue
		}
		if err := addListedVersion(tree, version); err != nil {
			return nil, err
		}
	}
	for _, e := range c.deletedVersions[c.splitter.ExtractElementPath(fullPath)] {
		if err := addListedVersion(tree, strings.TrimPrefix(e.Version, ccpath.Separator)); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// addListedVersion adds a listed version, or the branch when the listing
// names a branch without an ordinal.
func addListedVersion(tree *vtree.Tree, version string) error {
	name := version
	if i := strings.Index(name, " ("); i >= 0 {
		name = name[:i]
	}
	if _, err := ccpath.VersionInt(name); err != nil {
		_, err := tree.AddBranch(name)
		return err
	}
	return tree.AddVersion(version)
}

// FindVersion looks up version (e.g. "@@/main/3") in the version tree of
// the element at objectPath.
func (c *Connection) FindVersion(ctx context.Context, objectPath, version string, isDir bool) (*vtree.Version, error) {
	tree, err := c.readVersionTree(ctx, objectPath, isDir)
	if err != nil {
		return nil, err
	}
	v := tree.FindVersionByPath(strings.TrimPrefix(version, ccpath.VersionSeparator))
	if v == nil {
		slog.Debug("version not found", slog.String("path", objectPath), slog.String("version", version))
	}
	return v, nil
}

// VersionIsInsideView reports whether the view would select version of the
// element at objectPath, together with the versions of its parents.
func (c *Connection) VersionIsInsideView(ctx context.Context, objectPath, version string, isFile bool) (bool, error) {
	fullPath := objectPath + ccpath.VersionSeparator + ccpath.Separator + strings.TrimPrefix(version, ccpath.Separator)
	inside, err := c.spec.IsVersionInsideView(ctx, c, c.path.Root(), c.splitter.Split(fullPath), isFile)
	if err != nil {
		return false, err
	}
	slog.Debug("version visibility", slog.String("path", objectPath), slog.String("version", version), slog.Bool("inside", inside))
	return inside, nil
}

// IsInsideView reports whether objectName lies below the whole view path.
func (c *Connection) IsInsideView(objectName string) bool {
	return ccpath.IsInsideView(objectName, c.path.Whole())
}

// FileExistsInParents reports whether the element of e is reachable from
// the whole view path through the directory versions the view selects.
func (c *Connection) FileExistsInParents(ctx context.Context, e *history.Element, isFile bool) (bool, error) {
	object, err := ccpath.NormalizePath(e.ObjectName)
	if err != nil {
		return false, err
	}
	exists, err := c.existsInParents(ctx, object, isFile)
	if err != nil {
		return false, err
	}
	slog.Debug("parent lookup", slog.String("path", object), slog.Bool("exists", exists))
	return exists, nil
}

func (c *Connection) existsInParents(ctx context.Context, object string, isFile bool) (bool, error) {
	whole := c.path.Whole()
	for {
		if object == whole {
			return true, nil
		}
		parent := path.Dir(object)
		if parent == object || !ccpath.IsInsideView(parent, whole) {
			return false, nil
		}
		elements := c.splitter.Split(parent)
		last := &elements[len(elements)-1]
		if !last.HasVersion() {
			v, err := c.CurrentVersion(ctx, parent, false)
			if err != nil {
				return false, err
			}
			if v == nil {
				return false, nil
			}
			last.SetVersion(v.WholeName())
		}
		ok, err := c.hasChild(ctx, ccpath.JoinAll(elements), path.Base(object), isFile)
		if err != nil || !ok {
			return false, err
		}
		object, isFile = parent, false
	}
}

func (c *Connection) hasChild(ctx context.Context, parentWithVersion, name string, isFile bool) (bool, error) {
	children, err := c.backend.ListChildren(ctx, parentWithVersion)
	if err != nil {
		return false, fmt.Errorf("list %s: %w", parentWithVersion, err)
	}
	for _, child := range children {
		if child.Name == name && child.IsDir() != isFile {
			return true, nil
		}
	}
	return false, nil
}

// RelativePath returns fullPath relative to the whole view path, or "."
// for the view path itself. A path outside the view root is first rebased
// onto it.
func (c *Connection) RelativePath(fullPath string) string {
	root := ccpath.Split(c.path.Root())
	whole := ccpath.Split(c.path.Whole())
	elements := ccpath.Split(fullPath)
	if len(elements) == 0 || len(root) == 0 {
		return "."
	}
	if elements[0].Name != root[0].Name {
		if elements[0].Name == "" {
			elements = elements[1:]
		}
		elements = append(append([]ccpath.Element{}, root...), elements...)
	}
	if len(whole) >= len(elements) {
		return "."
	}
	result := ccpath.Join(elements, len(whole), len(elements), true)
	if strings.TrimSpace(result) == "" {
		return "."
	}
	return result
}

// relativeWithVersions returns p relative to the view with every element
// below the view path pinned to a version. skipAtEnd trailing elements are
// left as they are and skipAtBegin trailing segments of the view path are
// kept in the result. Without withVersions every version is dropped.
func (c *Connection) relativeWithVersions(ctx context.Context, p string, skipAtEnd, skipAtBegin int, withVersions, isFile bool) (string, error) {
	elements := c.splitter.Split(p)
	ccpath.MarkViewElements(elements, c.path.Whole(), skipAtBegin)
	for i := 0; i < len(elements)-skipAtEnd; i++ {
		el := &elements[i]
		if !withVersions {
			el.Version = ""
			continue
		}
		if el.FromView || el.HasVersion() {
			continue
		}
		elementIsFile := isFile && i == len(elements)-1
		v, err := c.CurrentVersion(ctx, ccpath.Join(elements, 0, i+1, true), elementIsFile)
		if err != nil {
			return "", err
		}
		if v != nil {
			el.SetVersion(v.WholeName())
		}
	}
	return ccpath.RelativeWithVersions(elements), nil
}

// childVersion is a directory child pinned to the version the view selects.
type childVersion struct {
	path     string
	version  string
	fullPath string
}

func (c *Connection) currentChild(ctx context.Context, pathWithoutVersion string, isFile bool) (childVersion, bool, error) {
	v, err := c.CurrentVersion(ctx, pathWithoutVersion, isFile)
	if err != nil || v == nil {
		if v == nil && err == nil {
			slog.Debug("no current version for child", slog.String("path", pathWithoutVersion))
		}
		return childVersion{}, false, err
	}
	return childVersion{
		path:     pathWithoutVersion,
		version:  v.WholeName(),
		fullPath: pathWithoutVersion + ccpath.VersionSeparator + v.WholeName(),
	}, true, nil
}

// versionPath appends the version of e to its object name.
func versionPath(e *history.Element) string {
	name := strings.TrimSpace(e.ObjectName)
	if strings.HasSuffix(name, ccpath.VersionSeparator) {
		return name + e.Version
	}
	return name + ccpath.VersionSeparator + e.Version
}
