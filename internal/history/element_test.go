package history

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func record(id, date, object, version, op, event, comment string) string {
	return "event " + id + ": " + strings.Join([]string{"alice", date, object, "version", version, op, event, comment, "act1"}, Delimiter)
}

func TestParse(t *testing.T) {
	t.Parallel()

	e, err := Parse(record("123", "20200115.103000", "/v/dir/file.c", "/main/3", OpCheckin, EventCreateVersion, "fix"), ParseOptions{Location: time.UTC})
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	want := &Element{
		EventID:    123,
		User:       "alice",
		Date:       time.Date(2020, time.January, 15, 10, 30, 0, 0, time.UTC),
		DateString: "20200115.103000",
		ObjectName: "/v/dir/file.c",
		Kind:       "version",
		Version:    "/main/3",
		Operation:  OpCheckin,
		Event:      EventCreateVersion,
		Comment:    "fix",
		Activity:   "act1",
	}
	if !e.Date.Equal(want.Date) {
		t.Fatalf("Date = %v, want %v", e.Date, want.Date)
	}
	want.Date = e.Date
	if *e != *want {
		t.Fatalf("Parse() = %+v, want %+v", e, want)
	}
	if n, err := e.VersionInt(); err != nil || n != 3 {
		t.Fatalf("VersionInt() = %d, %v, want 3", n, err)
	}
	if got := e.LastBranch(); got != "main" {
		t.Fatalf("LastBranch() = %q, want main", got)
	}
}

func TestParseWithoutActivity(t *testing.T) {
	t.Parallel()

	line := "event 5: bob" + Delimiter + "20200115.103000" + Delimiter + "/v/a.c" + Delimiter + "version" +
		Delimiter + "/main/1" + Delimiter + OpCheckin + Delimiter + EventCreateVersion + Delimiter + ""
	e, err := Parse(line, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if e.Activity != "" || e.User != "bob" || e.EventID != 5 {
		t.Fatalf("Parse() = %+v", e)
	}
}

func TestParseDestroyedVersion(t *testing.T) {
	t.Parallel()

	line := record("7", "20200115.103000", "/v/file.c", "/main", OpRemoveVersion, EventDestroyVersion, `Destroyed version "/main/4".`)
	e, err := Parse(line, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if e.Kind != KindVersion || e.Version != "/main/4" {
		t.Fatalf("Parse() kind, version = %q, %q, want version, /main/4", e.Kind, e.Version)
	}
}

func TestParseNormalizesObjectName(t *testing.T) {
	t.Parallel()

	line := record("8", "20200115.103000", "/v/dir@@/main/br/2/sub/main/1/file.c", "/main/2", OpCheckin, EventCreateVersion, "")
	e, err := Parse(line, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if want := "/v/dir@@/main/br/2/sub@@/main/1/file.c"; e.ObjectName != want {
		t.Fatalf("ObjectName = %q, want %q", e.ObjectName, want)
	}

	e, err = Parse(line, ParseOptions{KeepObjectNames: true})
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if want := "/v/dir@@/main/br/2/sub/main/1/file.c"; e.ObjectName != want {
		t.Fatalf("ObjectName = %q, want %q", e.ObjectName, want)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
	}{
		{name: "no_prefix", line: "bogus"},
		{name: "no_colon", line: "event 12"},
		{name: "bad_id", line: "event x: a#--#b"},
		{name: "few_fields", line: "event 1: a#--#b#--#c"},
		{name: "bad_date", line: record("1", "2020-01-15", "/v/a", "/main/1", OpCheckin, EventCreateVersion, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.line, ParseOptions{})
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse(%q) error = %v, want ParseError", tt.line, err)
			}
		})
	}
}

func TestNewer(t *testing.T) {
	t.Parallel()

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		a, b *Element
		want bool
	}{
		{a: &Element{EventID: 1, Date: base.Add(time.Second)}, b: &Element{EventID: 9, Date: base}, want: true},
		{a: &Element{EventID: 9, Date: base}, b: &Element{EventID: 1, Date: base.Add(time.Second)}, want: false},
		{a: &Element{EventID: 101, Date: base}, b: &Element{EventID: 100, Date: base}, want: true},
		{a: &Element{EventID: 100, Date: base}, b: &Element{EventID: 101, Date: base}, want: false},
	}
	for _, tt := range tests {
		if got := Newer(tt.a, tt.b); got != tt.want {
			t.Fatalf("Newer(%d, %d) = %v, want %v", tt.a.EventID, tt.b.EventID, got, tt.want)
		}
	}
}
