package view

import (
	"context"
	"errors"
	"io"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/thiagokokada/ccview-go/internal/ccase"
	"github.com/thiagokokada/ccview-go/internal/history"
)

func TestSplitArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "-all %path%", want: []string{"-all", "%path%"}},
		{in: "  -avobs\t-nco  ", want: []string{"-avobs", "-nco"}},
		{in: `-since "1 day" %path%`, want: []string{"-since", "1 day", "%path%"}},
		{in: `""`, want: []string{""}},
		{in: "", want: nil},
	}
	for _, tt := range tests {
		if got := splitArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("splitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHistoryArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec string
		opts Options
		want [][]string
	}{
		{
			name: "branches from spec",
			spec: branchSpec,
			want: [][]string{
				{"-branch", "dev", "-all", viewWhole},
				{"-branch", "main", "-all", viewWhole},
			},
		},
		{
			name: "explicit branches",
			spec: branchSpec,
			opts: Options{Branches: []string{"release"}, HistoryOptions: []string{"-all %path%", `-since "1 day" %path%/src`}},
			want: [][]string{
				{"-branch", "release", "-all", viewWhole},
				{"-branch", "release", "-since", "1 day", viewWhole + "/src"},
			},
		},
		{
			name: "no restriction",
			spec: branchSpec,
			opts: Options{Branches: []string{}},
			want: [][]string{{"-all", viewWhole}},
		},
		{
			name: "label only spec",
			spec: "element * REL_1\n",
			want: [][]string{{"-all", viewWhole}},
		},
	}
	for _, tt := range tests {
		c := newTestConnection(t, &fakeBackend{}, tt.spec, tt.opts)
		got, err := c.HistoryArgs()
		if err != nil {
			t.Fatalf("%s: HistoryArgs(): %v", tt.name, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s: HistoryArgs() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

var baseDate = time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)

func change(id int64, minutes int, objectName, version string) *history.Element {
	date := baseDate.Add(time.Duration(minutes) * time.Minute)
	return &history.Element{
		EventID:    id,
		User:       "ana",
		Date:       date,
		DateString: date.Format(history.DateLayout),
		ObjectName: objectName,
		Kind:       history.KindVersion,
		Version:    version,
		Operation:  history.OpCheckin,
		Event:      history.EventCreateVersion,
	}
}

func branchNotFound(branch string) error {
	return &ccase.CommandError{
		Op:     "lshistory",
		Args:   []string{"-branch", branch},
		Stderr: `cleartool: Error: Branch type not found: "` + branch + `".`,
		Err:    errors.New("exit status 1"),
	}
}

// failingStream returns its elements and then err.
type failingStream struct {
	elements []*history.Element
	err      error
	closed   bool
}

func (s *failingStream) Next() (*history.Element, error) {
	if len(s.elements) == 0 {
		return nil, s.err
	}
	e := s.elements[0]
	s.elements = s.elements[1:]
	return e, nil
}

func (s *failingStream) Close() error {
	s.closed = true
	return s.err
}

func TestOpenHistoryToleratesUnknownBranchTypes(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{}
	b.startHistoryStreamFunc = func(_ *history.Revision, options []string) (history.Stream, error) {
		switch options[1] {
		case "gone":
			return nil, branchNotFound("gone")
		case "late":
			return &failingStream{
				elements: []*history.Element{change(3, 3, fileA, "/main/late/1")},
				err:      branchNotFound("late"),
			}, nil
		default:
			return history.NewSliceStream(
				change(2, 2, fileA, "/main/2"),
				change(1, 1, fileA, "/main/1"),
			), nil
		}
	}
	c := newTestConnection(t, b, "element * /main/LATEST\n", Options{Branches: []string{"gone", "late", "main"}})

	s, err := c.openHistory(context.Background(), history.First())
	if err != nil {
		t.Fatalf("openHistory(): %v", err)
	}
	got, err := history.Drain(s)
	if err != nil {
		t.Fatalf("Drain(): %v", err)
	}
	var ids []int64
	for _, e := range got {
		ids = append(ids, e.EventID)
	}
	if want := []int64{3, 2, 1}; !slices.Equal(ids, want) {
		t.Fatalf("event ids = %v, want %v", ids, want)
	}
	if len(b.historyOptions) != 3 {
		t.Fatalf("started %d streams, want 3", len(b.historyOptions))
	}
}

func TestOpenHistoryClosesStartedStreamsOnError(t *testing.T) {
	t.Parallel()

	started := &failingStream{err: io.EOF}
	boom := errors.New("boom")
	b := &fakeBackend{}
	b.startHistoryStreamFunc = func(_ *history.Revision, options []string) (history.Stream, error) {
		if options[1] == "bad" {
			return nil, boom
		}
		return started, nil
	}
	c := newTestConnection(t, b, "element * /main/LATEST\n", Options{Branches: []string{"main", "bad"}})

	if _, err := c.openHistory(context.Background(), history.First()); !errors.Is(err, boom) {
		t.Fatalf("openHistory() error = %v, want %v", err, boom)
	}
	if !started.closed {
		t.Fatalf("started stream was not closed")
	}
}

func TestCurrentRevision(t *testing.T) {
	t.Parallel()

	last := change(10, 30, fileA, "/main/4")
	b := &fakeBackend{}
	b.startHistoryStreamFunc = func(since *history.Revision, options []string) (history.Stream, error) {
		if since == nil {
			if !slices.Equal(options, []string{"-all"}) {
				t.Errorf("last change options = %q, want [-all]", options)
			}
			return history.NewSliceStream(last), nil
		}
		want := history.FromDate(last.Date.Add(-15 * time.Minute))
		if !since.Equal(want) {
			t.Errorf("since = %v, want %v", since, want)
		}
		return history.NewSliceStream(
			last,
			change(12, 29, fileA, "/main/3"),
			change(9, 20, fileA, "/main/2"),
		), nil
	}
	c := newTestConnection(t, b, "element * /main/LATEST\n", Options{Branches: []string{}})

	got, err := c.CurrentRevision(context.Background(), 0)
	if err != nil {
		t.Fatalf("CurrentRevision(0): %v", err)
	}
	if want := history.FromChange(10, last.Date); !got.Equal(want) {
		t.Fatalf("CurrentRevision(0) = %v, want %v", got, want)
	}

	got, err = c.CurrentRevision(context.Background(), 15)
	if err != nil {
		t.Fatalf("CurrentRevision(15): %v", err)
	}
	if want := history.FromChange(12, last.Date); !got.Equal(want) {
		t.Fatalf("CurrentRevision(15) = %v, want %v", got, want)
	}
}

func TestCurrentRevisionEmptyHistory(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{}
	b.startHistoryStreamFunc = func(*history.Revision, []string) (history.Stream, error) {
		return history.Empty(), nil
	}
	c := newTestConnection(t, b, "element * /main/LATEST\n", Options{})

	got, err := c.CurrentRevision(context.Background(), 10)
	if err != nil {
		t.Fatalf("CurrentRevision(): %v", err)
	}
	if !got.IsFirst() {
		t.Fatalf("CurrentRevision() = %v, want FIRST", got)
	}
}

func TestRevisionTime(t *testing.T) {
	t.Parallel()

	if got := revisionTime(history.First()); !got.IsZero() {
		t.Fatalf("revisionTime(FIRST) = %v, want zero", got)
	}
	if got := revisionTime(history.FromChange(3, baseDate)); !got.Equal(baseDate) {
		t.Fatalf("revisionTime() = %v, want %v", got, baseDate)
	}
}
