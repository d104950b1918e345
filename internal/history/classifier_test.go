package history

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

type fakeChecker struct {
	outside   map[string]bool
	missing   map[string]bool
	notInView map[string]bool
	err       error
}

func (f *fakeChecker) IsInsideView(objectName string) bool {
	return !f.outside[objectName]
}

func (f *fakeChecker) FileExistsInParents(_ context.Context, e *Element, _ bool) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.missing[e.ObjectName], nil
}

func (f *fakeChecker) VersionIsInsideView(_ context.Context, e *Element, _ bool) (bool, error) {
	return !f.notInView[e.ObjectName], nil
}

type recorder struct {
	name string
	log  *[]string
}

func (r recorder) add(kind string, e *Element) error {
	*r.log = append(*r.log, r.name+":"+kind+":"+e.ObjectName)
	return nil
}

func (r recorder) ChangedFile(_ context.Context, e *Element) error      { return r.add("file", e) }
func (r recorder) ChangedDirectory(_ context.Context, e *Element) error { return r.add("dir", e) }
func (r recorder) DestroyedVersion(_ context.Context, e *Element) error { return r.add("destroyed", e) }

var classifierBase = time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

func change(id int64, minutes int, object, op, event string) *Element {
	return &Element{
		EventID:    id,
		Date:       classifierBase.Add(time.Duration(minutes) * time.Minute),
		ObjectName: object,
		Version:    "/main/2",
		Operation:  op,
		Event:      event,
	}
}

func TestClassifierOrdering(t *testing.T) {
	t.Parallel()

	var log []string
	stream := NewSliceStream(
		change(7, 7, "/v/late2.c", OpCheckin, EventCreateVersion),
		change(6, 6, "/v/late1.c", OpRemoveVersion, EventDestroyVersion),
		change(5, 5, "/v/outside.c", OpCheckin, EventCreateVersion),
		change(4, 4, "/v/c.c", OpCheckin, EventCreateVersion),
		change(3, 3, "/v/mkbranch", "mkbranch", "create branch"),
		change(2, 2, "/v/dir", OpCheckin, EventCreateDirectoryVersion),
		change(1, 1, "/v/a.c", OpRemoveVersion, EventDestroyVersion),
	)
	c := &Classifier{
		Checker:  &fakeChecker{outside: map[string]bool{"/v/outside.c": true}},
		Accepted: recorder{name: "accepted", log: &log},
		Ignored:  recorder{name: "ignored", log: &log},
		To:       classifierBase.Add(6 * time.Minute),
		AfterIgnored: func() {
			log = append(log, "after-ignored")
		},
	}
	if err := c.Run(context.Background(), stream); err != nil {
		t.Fatalf("Run(): %v", err)
	}

	want := []string{
		"ignored:destroyed:/v/late1.c",
		"ignored:file:/v/late2.c",
		"after-ignored",
		"accepted:destroyed:/v/a.c",
		"accepted:dir:/v/dir",
		"accepted:file:/v/c.c",
	}
	if !slices.Equal(log, want) {
		t.Fatalf("dispatch order = %q, want %q", log, want)
	}
	if c.State() != StateDone {
		t.Fatalf("State() = %v, want %v", c.State(), StateDone)
	}
	wantStats := Stats{Read: 7, Unclassified: 1, OutsideView: 1, Accepted: 3, Ignored: 2, Dispatched: 5}
	if c.Stats() != wantStats {
		t.Fatalf("Stats() = %+v, want %+v", c.Stats(), wantStats)
	}
}

func TestClassifierChecks(t *testing.T) {
	t.Parallel()

	var log []string
	stream := NewSliceStream(
		change(4, 4, "/v/gone/b.c", OpRemoveVersion, EventDestroyVersion),
		change(3, 3, "/v/other-branch.c", OpCheckin, EventCreateVersion),
		change(2, 2, "/v/gone/a.c", OpCheckin, EventCreateVersion),
		change(1, 1, "/v/kept.c", OpCheckin, EventCreateVersion),
	)
	c := &Classifier{
		Checker: &fakeChecker{
			missing:   map[string]bool{"/v/gone/a.c": true, "/v/gone/b.c": true},
			notInView: map[string]bool{"/v/other-branch.c": true},
		},
		Accepted: recorder{name: "accepted", log: &log},
	}
	if err := c.Run(context.Background(), stream); err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if want := []string{"accepted:file:/v/kept.c"}; !slices.Equal(log, want) {
		t.Fatalf("dispatched = %q, want %q", log, want)
	}
}

func TestClassifierNilIgnoredHandler(t *testing.T) {
	t.Parallel()

	var log []string
	c := &Classifier{
		Checker:  &fakeChecker{},
		Accepted: recorder{name: "accepted", log: &log},
		To:       classifierBase.Add(2 * time.Minute),
	}
	stream := NewSliceStream(
		change(2, 2, "/v/b.c", OpCheckin, EventCreateVersion),
		change(1, 1, "/v/a.c", OpCheckin, EventCreateVersion),
	)
	if err := c.Run(context.Background(), stream); err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if want := []string{"accepted:file:/v/a.c"}; !slices.Equal(log, want) {
		t.Fatalf("dispatched = %q, want %q", log, want)
	}
}

func TestClassifierErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var log []string
	c := &Classifier{
		Checker:  &fakeChecker{err: boom},
		Accepted: recorder{name: "accepted", log: &log},
	}
	err := c.Run(context.Background(), NewSliceStream(change(1, 1, "/v/a.c", OpCheckin, EventCreateVersion)))
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "/v/a.c") {
		t.Fatalf("Run() error = %q, want the element in it", err)
	}
	if c.State() != StateDrainingAccepted {
		t.Fatalf("State() = %v, want %v", c.State(), StateDrainingAccepted)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c = &Classifier{Checker: &fakeChecker{}, Accepted: recorder{name: "accepted", log: &log}}
	if err := c.Run(ctx, NewSliceStream(change(1, 1, "/v/a.c", OpCheckin, EventCreateVersion))); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if err := c.Run(context.Background(), failingStream{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if len(log) != 0 {
		t.Fatalf("dispatched = %q, want nothing", log)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op, event string
		want      ChangeKind
	}{
		{op: OpCheckin, event: EventCreateVersion, want: ChangeFile},
		{op: OpCheckin, event: EventCreateDirectoryVersion, want: ChangeDirectory},
		{op: OpRemoveVersion, event: EventDestroyVersion, want: ChangeDestroyedVersion},
		{op: "mkbranch", event: "create branch", want: ChangeNone},
		{op: OpRemoveVersion, event: "destroy branch", want: ChangeNone},
	}
	for _, tt := range tests {
		if got := KindOf(&Element{Operation: tt.op, Event: tt.event}); got != tt.want {
			t.Fatalf("KindOf(%s, %s) = %v, want %v", tt.op, tt.event, got, tt.want)
		}
	}
}
