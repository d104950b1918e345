package view

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/history"
)

type ChangeType int

const (
	ChangeModified ChangeType = iota
	ChangeAdded
	ChangeRemoved
	ChangeDirectoryAdded
	ChangeDirectoryRemoved
)

func (t ChangeType) String() string {
	switch t {
	case ChangeModified:
		return "changed"
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeDirectoryAdded:
		return "directory added"
	case ChangeDirectoryRemoved:
		return "directory removed"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

func (t ChangeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t ChangeType) isFile() bool {
	return t == ChangeModified || t == ChangeAdded || t == ChangeRemoved
}

// Change is one path touched by a modification. Before and After are
// view-relative extended paths; one of them is empty for additions and
// removals.
type Change struct {
	Type         ChangeType `json:"type"`
	RelativePath string     `json:"path"`
	Before       string     `json:"before,omitempty"`
	After        string     `json:"after,omitempty"`
}

// Modification groups the changes one user made at one time under one
// activity.
type Modification struct {
	Date     time.Time `json:"date"`
	Version  string    `json:"version"`
	User     string    `json:"user"`
	Activity string    `json:"activity,omitempty"`
	Comment  string    `json:"comment"`
	Changes  []Change  `json:"changes"`
}

// CollectChanges returns the modifications of the view after from and
// strictly before to, oldest first. Changes at or after to are replayed
// first so the versions they created are hidden from the evaluation.
func (c *Connection) CollectChanges(ctx context.Context, from, to history.Revision) ([]Modification, error) {
	start := time.Now()
	c.reset()
	slog.Debug("collecting changes", slog.String("from", from.String()), slog.String("to", to.String()))

	s, err := c.openHistory(ctx, from)
	if err != nil {
		return nil, err
	}
	col := newCollector(c)
	classifier := &history.Classifier{
		Checker:      viewChecker{c},
		Accepted:     col,
		Ignored:      ignoringHandler{c},
		To:           revisionTime(to),
		AfterIgnored: c.resetDirectoryVersions,
	}
	err = classifier.Run(ctx, s)
	c.opts.Metrics.Classified(classifier.Stats())
	if err != nil {
		return nil, fmt.Errorf("collect changes of %s: %w", c.path.Whole(), err)
	}

	mods := col.modifications()
	c.opts.Metrics.Collection(time.Since(start), len(mods))
	slog.Debug("collected changes", slog.Int("modifications", len(mods)), slog.Duration("elapsed", time.Since(start)))
	return mods, nil
}

// viewChecker exposes a Connection as a history.Checker.
type viewChecker struct {
	*Connection
}

func (v viewChecker) VersionIsInsideView(ctx context.Context, e *history.Element, isFile bool) (bool, error) {
	return v.Connection.VersionIsInsideView(ctx, e.ObjectName, e.Version, isFile)
}

// ignoringHandler records changes past the collection bound so version
// trees built afterwards leave them out.
type ignoringHandler struct {
	c *Connection
}

func (h ignoringHandler) ChangedFile(_ context.Context, e *history.Element) error {
	h.ignore(e)
	return nil
}

func (h ignoringHandler) ChangedDirectory(_ context.Context, e *history.Element) error {
	h.ignore(e)
	return nil
}

func (h ignoringHandler) DestroyedVersion(_ context.Context, e *history.Element) error {
	key := h.c.splitter.ExtractElementPath(e.ObjectName)
	h.c.deletedVersions[key] = append(h.c.deletedVersions[key], e)
	slog.Debug("ignoring destroyed version", slog.Any("element", e))
	return nil
}

func (h ignoringHandler) ignore(e *history.Element) {
	key := h.c.splitter.ExtractElementPath(e.ObjectName)
	h.c.changesToIgnore[key] = append(h.c.changesToIgnore[key], e)
	slog.Debug("ignoring change", slog.Any("element", e))
}

type modificationKey struct {
	date     string
	user     string
	activity string
}

type modificationGroup struct {
	date     time.Time
	changes  []*Change
	comments []string
}

func (g *modificationGroup) addComment(parts ...string) {
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" && !slices.Contains(g.comments, p) {
			g.comments = append(g.comments, p)
		}
	}
}

// collector turns accepted history elements into modifications.
type collector struct {
	c *Connection

	order  []modificationKey
	groups map[modificationKey]*modificationGroup
	// addedFileActivities are activities that added a file. Their 0 to 1
	// bumps duplicate the addition and are dropped.
	addedFileActivities map[string]bool
	zeroToOne           map[*Change]bool
}

func newCollector(c *Connection) *collector {
	return &collector{
		c:                   c,
		groups:              make(map[modificationKey]*modificationGroup),
		addedFileActivities: make(map[string]bool),
		zeroToOne:           make(map[*Change]bool),
	}
}

func (col *collector) ChangedFile(ctx context.Context, e *history.Element) error {
	if col.c.opts.MaxVersionToIgnore.IsNoise(e) {
		slog.Debug("skipping low version", slog.Any("element", e))
		return nil
	}
	objectPath, err := col.c.relativeWithVersions(ctx, e.ObjectName, 1, 1, true, true)
	if err != nil {
		return err
	}
	prev, err := col.c.backend.PreviousVersion(ctx, versionPath(e), false)
	if err != nil {
		return fmt.Errorf("previous version of %s: %w", versionPath(e), err)
	}
	before := objectPath + ccpath.VersionSeparator + prev
	after := objectPath + ccpath.VersionSeparator + e.Version

	ch, err := col.add(ctx, e, e.ObjectName, ChangeModified, before, after)
	if err != nil {
		return err
	}
	if n, err := e.VersionInt(); err == nil && n == 1 {
		col.zeroToOne[ch] = true
	}
	slog.Debug("changed file", slog.Any("element", e))
	return nil
}

func (col *collector) ChangedDirectory(ctx context.Context, e *history.Element) error {
	n, err := e.VersionInt()
	if err != nil || n <= 0 {
		return nil
	}
	prev, err := col.c.backend.PreviousVersion(ctx, versionPath(e), true)
	if err != nil {
		return fmt.Errorf("previous version of %s: %w", versionPath(e), err)
	}
	name := strings.TrimSuffix(strings.TrimSpace(e.ObjectName), ccpath.VersionSeparator)
	before := name + ccpath.VersionSeparator + prev
	after := versionPath(e)

	beforeChildren, err := col.c.backend.ListChildren(ctx, before)
	if err != nil {
		return fmt.Errorf("list %s: %w", before, err)
	}
	afterChildren, err := col.c.backend.ListChildren(ctx, after)
	if err != nil {
		return fmt.Errorf("list %s: %w", after, err)
	}
	diff := history.DiffChildren(beforeChildren, afterChildren)
	if diff.Empty() {
		return nil
	}
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		if text, err := history.RenderDiff(before, after, beforeChildren, afterChildren); err == nil {
			slog.Debug("directory changed", slog.String("directory", name), slog.String("diff", text))
		}
	}

	for _, step := range []struct {
		children []history.Child
		kind     ChangeType
	}{
		{diff.DeletedFiles, ChangeRemoved},
		{diff.DeletedDirs, ChangeDirectoryRemoved},
		{diff.AddedFiles, ChangeAdded},
		{diff.AddedDirs, ChangeDirectoryAdded},
	} {
		for _, child := range step.children {
			if err := col.childChange(ctx, e, child, step.kind); err != nil {
				return err
			}
		}
	}
	return nil
}

func (col *collector) childChange(ctx context.Context, e *history.Element, child history.Child, kind ChangeType) error {
	isFile := kind.isFile()
	current, ok, err := col.c.currentChild(ctx, child.Path, isFile)
	if err != nil || !ok {
		return err
	}
	inside, err := col.c.VersionIsInsideView(ctx, current.path, current.version, isFile)
	if err != nil || !inside {
		return err
	}
	version, err := col.c.relativeWithVersions(ctx, current.fullPath, 0, 1, true, isFile)
	if err != nil {
		return err
	}

	var before, after string
	switch kind {
	case ChangeAdded, ChangeDirectoryAdded:
		after = version
	default:
		before = version
	}
	if _, err := col.add(ctx, e, current.fullPath, kind, before, after); err != nil {
		return err
	}
	if kind == ChangeAdded {
		col.addedFileActivities[e.Activity] = true
	}
	slog.Debug("directory child changed", slog.String("path", current.fullPath), slog.String("change", kind.String()))
	return nil
}

func (col *collector) add(ctx context.Context, e *history.Element, fullPath string, kind ChangeType, before, after string) (*Change, error) {
	isFile := kind.isFile()
	rel, err := col.c.relativeWithVersions(ctx, fullPath, 0, 0, false, isFile)
	if err != nil {
		return nil, err
	}
	ch := &Change{Type: kind, RelativePath: rel, Before: before, After: after}

	key := modificationKey{date: e.DateString, user: e.User, activity: e.Activity}
	g, ok := col.groups[key]
	if !ok {
		g = &modificationGroup{date: e.Date}
		col.groups[key] = g
		col.order = append(col.order, key)
	}
	g.changes = append(g.changes, ch)

	desc, err := col.c.backend.Describe(ctx, fullPath, !isFile)
	if err != nil {
		slog.Debug("describe failed", slog.String("path", fullPath), slog.Any("error", err))
	}
	g.addComment(e.Activity, e.Comment, desc.Comment)
	return ch, nil
}

func (col *collector) DestroyedVersion(context.Context, *history.Element) error {
	return nil
}

func (col *collector) modifications() []Modification {
	mods := make([]Modification, 0, len(col.order))
	for _, key := range col.order {
		g := col.groups[key]
		changes := make([]Change, 0, len(g.changes))
		for _, ch := range g.changes {
			if col.addedFileActivities[key.activity] && col.zeroToOne[ch] {
				continue
			}
			changes = append(changes, *ch)
		}
		if len(changes) == 0 {
			continue
		}
		mods = append(mods, Modification{
			Date:     g.date,
			Version:  g.date.Add(time.Second).Format(history.DateLayout),
			User:     key.user,
			Activity: key.activity,
			Comment:  strings.Join(g.comments, "\n"),
			Changes:  changes,
		})
	}
	slices.SortStableFunc(mods, func(a, b Modification) int {
		return a.Date.Compare(b.Date)
	})
	return mods
}
