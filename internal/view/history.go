package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thiagokokada/ccview-go/internal/ccase"
	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/history"
)

const pathPlaceholder = "%path%"

// Branches returns the branches history is restricted to.
func (c *Connection) Branches() []string {
	if c.opts.Branches != nil {
		return c.opts.Branches
	}
	return c.spec.Branches()
}

// HistoryArgs returns the lshistory arguments of every stream, with the
// view path substituted and branch restrictions applied.
func (c *Connection) HistoryArgs() ([][]string, error) {
	viewPath, err := ccpath.InsertDots(c.path.Whole(), true)
	if err != nil {
		return nil, err
	}
	base := make([][]string, 0, len(c.opts.HistoryOptions))
	for _, set := range c.opts.HistoryOptions {
		args := splitArgs(set)
		for i, a := range args {
			args[i] = strings.ReplaceAll(a, pathPlaceholder, viewPath)
		}
		base = append(base, args)
	}

	branches := c.Branches()
	if len(branches) == 0 {
		slog.Debug("no branches for lshistory")
		return base, nil
	}
	slog.Debug("restricting lshistory to branches", slog.Any("branches", branches))
	result := make([][]string, 0, len(branches)*len(base))
	for _, branch := range branches {
		for _, args := range base {
			result = append(result, append([]string{"-branch", branch}, args...))
		}
	}
	return result, nil
}

// splitArgs splits s on blanks. Double quotes group words.
func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t'):
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		args = append(args, cur.String())
	}
	return args
}

// openHistory starts one stream per option set and merges them newest
// first. Streams naming a branch type unknown to a VOB end empty.
func (c *Connection) openHistory(ctx context.Context, since history.Revision) (history.Stream, error) {
	sets, err := c.HistoryArgs()
	if err != nil {
		return nil, err
	}
	streams := make([]history.Stream, len(sets))
	var g errgroup.Group
	for i, args := range sets {
		g.Go(func() error {
			s, err := c.backend.StartHistoryStream(ctx, &since, args)
			if ccase.IsKind(err, ccase.KindBranchTypeNotFound) {
				slog.Debug("skipping history of unknown branch type", slog.Any("args", args))
				streams[i] = history.Empty()
				return nil
			}
			if err != nil {
				return err
			}
			streams[i] = branchTolerantStream{Stream: s, args: args}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var errs []error
		for _, s := range streams {
			if s != nil {
				errs = append(errs, s.Close())
			}
		}
		return nil, errors.Join(append([]error{err}, errs...)...)
	}
	return history.Merge(streams...), nil
}

// branchTolerantStream ends quietly when lshistory fails because the
// requested branch type does not exist.
type branchTolerantStream struct {
	history.Stream
	args []string
}

func (s branchTolerantStream) Next() (*history.Element, error) {
	e, err := s.Stream.Next()
	if err != nil && ccase.IsKind(err, ccase.KindBranchTypeNotFound) {
		slog.Debug("history stream ended on unknown branch type", slog.Any("args", s.args))
		return nil, io.EOF
	}
	return e, err
}

func (s branchTolerantStream) Close() error {
	err := s.Stream.Close()
	if ccase.IsKind(err, ccase.KindBranchTypeNotFound) {
		return nil
	}
	return err
}

// CurrentRevision returns the revision of the newest change in the view, or
// the first revision when there is none. With pastMinutes > 0, changes in
// that many minutes before the newest one are scanned for a greater event
// id, which catches events committed out of order.
func (c *Connection) CurrentRevision(ctx context.Context, pastMinutes int) (history.Revision, error) {
	last, err := c.lastChange(ctx)
	if err != nil {
		return history.Revision{}, err
	}
	if last == nil {
		return history.First(), nil
	}
	rev := history.FromChange(last.EventID, last.Date)
	if pastMinutes <= 0 {
		return rev, nil
	}

	s, err := c.openHistory(ctx, rev.ShiftToPast(pastMinutes))
	if err != nil {
		return history.Revision{}, err
	}
	maxEvent := last
	for {
		e, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return history.Revision{}, errors.Join(err, s.Close())
		}
		if e.EventID > maxEvent.EventID {
			maxEvent = e
		}
	}
	if err := s.Close(); err != nil {
		return history.Revision{}, err
	}
	date := last.Date
	if maxEvent.Date.After(date) {
		date = maxEvent.Date
	}
	return history.FromChange(maxEvent.EventID, date), nil
}

func (c *Connection) lastChange(ctx context.Context) (*history.Element, error) {
	slog.Debug("checking last change date")
	s, err := c.backend.StartHistoryStream(ctx, nil, []string{"-all"})
	if err != nil {
		return nil, err
	}
	defer s.Close()
	e, err := s.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// revisionTime is the exclusive upper bound of a collection ending at r.
func revisionTime(r history.Revision) time.Time {
	date, ok := r.Date()
	if !ok {
		return time.Time{}
	}
	return date
}
