// Package history parses lshistory records, merges history streams and
// classifies the resulting change events.
package history

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
)

const (
	// Delimiter separates the fields of one record.
	Delimiter = "#--#"
	// RecordEnd terminates a record, which may span several lines when
	// the comment does.
	RecordEnd = "###----###"
	// Format is the lshistory -fmt argument producing records readable by
	// Parse.
	Format = "%u" + Delimiter + "%Nd" + Delimiter + "%En" + Delimiter + "%m" + Delimiter + "%Vn" +
		Delimiter + "%o" + Delimiter + "%e" + Delimiter + "%Nc" + Delimiter + "%[activity]p" + RecordEnd + `\n`

	// DateLayout is the layout of the %Nd field.
	DateLayout = "20060102.150405"

	recordPrefix = "event "
	fieldCount   = 9
)

const (
	OpCheckin       = "checkin"
	OpRemoveVersion = "rmver"

	EventCreateVersion          = "create version"
	EventCreateDirectoryVersion = "create directory version"
	EventDestroyVersion         = "destroy version on branch"

	KindVersion = "version"
)

// Element is one change event. It is not modified after parsing.
type Element struct {
	EventID    int64
	User       string
	Date       time.Time
	DateString string
	ObjectName string
	Kind       string
	Version    string
	Operation  string
	Event      string
	Comment    string
	Activity   string
}

// ParseError reports a record that cannot be parsed.
type ParseError struct {
	Record string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed history record %q: %s", e.Record, e.Reason)
}

// ParseOptions tune Parse.
type ParseOptions struct {
	// KeepObjectNames disables NormalizeObjectName on the object field.
	KeepObjectNames bool
	// Location is the zone of the record dates. Nil means time.Local.
	Location *time.Location
}

// Parse decodes one record of the form "event <id>: f1#--#f2...", without
// its RecordEnd suffix.
func Parse(record string, opts ParseOptions) (*Element, error) {
	if !strings.HasPrefix(record, recordPrefix) {
		return nil, &ParseError{Record: record, Reason: "missing event prefix"}
	}
	idText, rest, ok := strings.Cut(record[len(recordPrefix):], ":")
	if !ok {
		return nil, &ParseError{Record: record, Reason: "missing event id separator"}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
	if err != nil {
		return nil, &ParseError{Record: record, Reason: fmt.Sprintf("event id: %v", err)}
	}
	fields := strings.SplitN(strings.TrimSpace(rest), Delimiter, fieldCount)
	if len(fields) < fieldCount-1 {
		return nil, &ParseError{Record: record, Reason: fmt.Sprintf("got %d fields, want %d", len(fields), fieldCount)}
	}
	if len(fields) == fieldCount-1 {
		fields = append(fields, "")
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	date, err := time.ParseInLocation(DateLayout, fields[1], loc)
	if err != nil {
		return nil, &ParseError{Record: record, Reason: fmt.Sprintf("date: %v", err)}
	}

	e := &Element{
		EventID:    id,
		User:       fields[0],
		Date:       date,
		DateString: fields[1],
		ObjectName: fields[2],
		Kind:       fields[3],
		Version:    fields[4],
		Operation:  fields[5],
		Event:      fields[6],
		Comment:    fields[7],
		Activity:   fields[8],
	}
	if !opts.KeepObjectNames {
		e.ObjectName = NormalizeObjectName(e.ObjectName, false)
	}
	if e.Operation == OpRemoveVersion && e.Event == EventDestroyVersion {
		if v, ok := quotedVersion(e.Comment); ok {
			e.Kind = KindVersion
			e.Version = v
		}
	}
	return e, nil
}

// quotedVersion extracts the text between the first and the last double
// quote of a destroy comment, e.g. `Destroyed version "/main/3".`.
func quotedVersion(comment string) (string, bool) {
	first, last := strings.Index(comment, `"`), strings.LastIndex(comment, `"`)
	if first < 0 || first >= last {
		return "", false
	}
	return comment[first+1 : last], true
}

// VersionInt is the ordinal of the element version.
func (e *Element) VersionInt() (int, error) {
	return ccpath.VersionInt(e.Version)
}

// LastBranch is the branch owning the element version.
func (e *Element) LastBranch() string {
	return ccpath.LastBranch(e.Version)
}

func (e *Element) String() string {
	return fmt.Sprintf("%d: %s(%s)=>%s", e.EventID, e.ObjectName, e.Operation, e.Event)
}

func (e *Element) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("event", e.EventID),
		slog.String("object", e.ObjectName),
		slog.String("version", e.Version),
		slog.String("date", e.DateString),
		slog.String("operation", e.Operation),
		slog.String("event_text", e.Event),
	)
}

// Newer orders elements newest first: the later date wins, and on equal
// dates the higher event id does. Replicated VOBs can produce equal dates
// for distinct events.
func Newer(a, b *Element) bool {
	if a.Date.Equal(b.Date) {
		return a.EventID > b.EventID
	}
	return a.Date.After(b.Date)
}
