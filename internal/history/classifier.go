package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ChangeKind is what a history element means for the view.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeFile
	ChangeDirectory
	ChangeDestroyedVersion
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeFile:
		return "file"
	case ChangeDirectory:
		return "directory"
	case ChangeDestroyedVersion:
		return "destroyed-version"
	default:
		return "none"
	}
}

// KindOf classifies an element by its operation and event text.
func KindOf(e *Element) ChangeKind {
	switch {
	case e.Operation == OpCheckin && e.Event == EventCreateDirectoryVersion:
		return ChangeDirectory
	case e.Operation == OpCheckin && e.Event == EventCreateVersion:
		return ChangeFile
	case e.Operation == OpRemoveVersion && e.Event == EventDestroyVersion:
		return ChangeDestroyedVersion
	default:
		return ChangeNone
	}
}

// Checker answers the view questions the classifier needs.
type Checker interface {
	IsInsideView(objectName string) bool
	FileExistsInParents(ctx context.Context, e *Element, isFile bool) (bool, error)
	VersionIsInsideView(ctx context.Context, e *Element, isFile bool) (bool, error)
}

// Handler receives classified elements, oldest first.
type Handler interface {
	ChangedFile(ctx context.Context, e *Element) error
	ChangedDirectory(ctx context.Context, e *Element) error
	DestroyedVersion(ctx context.Context, e *Element) error
}

// State is the classifier progress.
type State int

const (
	StateConsuming State = iota
	StateDrainingIgnored
	StateDrainingAccepted
	StateDone
)

func (s State) String() string {
	switch s {
	case StateConsuming:
		return "consuming"
	case StateDrainingIgnored:
		return "draining-ignored"
	case StateDrainingAccepted:
		return "draining-accepted"
	default:
		return "done"
	}
}

type Stats struct {
	Read         int
	Unclassified int
	OutsideView  int
	Accepted     int
	Ignored      int
	Dispatched   int
}

// Classifier replays a newest-first history stream oldest first. Elements
// dated at or after To are replayed into Ignored before any element below
// the bound reaches Accepted, so handlers see the changes to ignore first.
type Classifier struct {
	Checker  Checker
	Accepted Handler
	// Ignored may be nil, in which case elements past To are dropped.
	Ignored Handler
	// To is the exclusive upper bound of accepted elements. Zero means none.
	To time.Time
	// AfterIgnored, if set, runs between the two drains.
	AfterIgnored func()

	state State
	stats Stats
}

func (c *Classifier) State() State { return c.state }
func (c *Classifier) Stats() Stats { return c.stats }

// Run consumes s, closes it and dispatches its elements. Checker and
// handler errors abort the run.
func (c *Classifier) Run(ctx context.Context, s Stream) (err error) {
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	c.state = StateConsuming
	c.stats = Stats{}

	var accepted, ignored []*Element
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		c.stats.Read++
		if KindOf(e) == ChangeNone {
			c.stats.Unclassified++
			continue
		}
		if !c.Checker.IsInsideView(e.ObjectName) {
			c.stats.OutsideView++
			continue
		}
		if c.To.IsZero() || e.Date.Before(c.To) {
			accepted = append(accepted, e)
			c.stats.Accepted++
		} else {
			ignored = append(ignored, e)
			c.stats.Ignored++
		}
	}

	c.state = StateDrainingIgnored
	if err := c.drain(ctx, c.Ignored, ignored); err != nil {
		return err
	}
	if c.AfterIgnored != nil {
		c.AfterIgnored()
	}
	c.state = StateDrainingAccepted
	if err := c.drain(ctx, c.Accepted, accepted); err != nil {
		return err
	}
	c.state = StateDone
	return nil
}

func (c *Classifier) drain(ctx context.Context, h Handler, stack []*Element) error {
	if h == nil {
		return nil
	}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := c.dispatch(ctx, h, e); err != nil {
			return fmt.Errorf("process %s: %w", e, err)
		}
	}
	return nil
}

func (c *Classifier) dispatch(ctx context.Context, h Handler, e *Element) error {
	switch KindOf(e) {
	case ChangeDirectory:
		ok, err := c.check(ctx, e, false, c.Checker.VersionIsInsideView, c.Checker.FileExistsInParents)
		if err != nil || !ok {
			return err
		}
		c.stats.Dispatched++
		return h.ChangedDirectory(ctx, e)
	case ChangeFile:
		ok, err := c.check(ctx, e, true, c.Checker.FileExistsInParents, c.Checker.VersionIsInsideView)
		if err != nil || !ok {
			return err
		}
		c.stats.Dispatched++
		return h.ChangedFile(ctx, e)
	case ChangeDestroyedVersion:
		ok, err := c.check(ctx, e, true, c.Checker.FileExistsInParents)
		if err != nil || !ok {
			return err
		}
		c.stats.Dispatched++
		return h.DestroyedVersion(ctx, e)
	}
	return nil
}

type checkFunc func(ctx context.Context, e *Element, isFile bool) (bool, error)

// check runs the checks in order and stops at the first negative answer.
func (c *Classifier) check(ctx context.Context, e *Element, isFile bool, checks ...checkFunc) (bool, error) {
	for _, check := range checks {
		ok, err := check(ctx, e, isFile)
		if err != nil {
			return false, err
		}
		if !ok {
			slog.Debug("history element filtered out", slog.Any("element", e))
			return false, nil
		}
	}
	return true, nil
}
