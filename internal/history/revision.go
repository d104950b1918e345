package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// RevisionDateLayout is the date form used in revision strings and
	// lshistory -since arguments.
	RevisionDateLayout = "02-January-2006.15:04:05"

	firstRevision     = "FIRST"
	revisionSeparator = "@"
)

// Revision is a point in the history of a view: either FIRST, before every
// change, or a date optionally paired with the event id of the change at
// that date.
type Revision struct {
	first      bool
	eventID    int64
	hasEventID bool
	date       time.Time
}

func First() Revision {
	return Revision{first: true}
}

func FromChange(eventID int64, date time.Time) Revision {
	return Revision{eventID: eventID, hasEventID: true, date: date}
}

func FromDate(date time.Time) Revision {
	return Revision{date: date}
}

// ParseRevision reads a string produced by Revision.String. A "#..." suffix
// is ignored. The legacy form where the event id and the '@' were packed
// into a single number is also accepted.
func ParseRevision(s string) (Revision, error) {
	s, _, _ = strings.Cut(s, "#")
	if s == firstRevision {
		return First(), nil
	}
	s = unpackLegacy(s)

	idText, dateText, hasID := strings.Cut(s, revisionSeparator)
	if !hasID {
		dateText = s
	}
	date, err := time.ParseInLocation(RevisionDateLayout, dateText, time.Local)
	if err != nil {
		return Revision{}, fmt.Errorf("parse revision %q: %w", s, err)
	}
	if !hasID {
		return FromDate(date), nil
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return Revision{}, fmt.Errorf("parse revision %q: %w", s, err)
	}
	return FromChange(id, date), nil
}

func unpackLegacy(s string) string {
	if strings.Contains(s, revisionSeparator) {
		return s
	}
	daySep := strings.IndexByte(s, '-')
	if daySep <= 2 {
		return s
	}
	packed, err := strconv.ParseInt(s[:daySep-2], 10, 64)
	if err != nil {
		return s
	}
	return strconv.FormatInt(packed-'@', 10) + revisionSeparator + s[daySep-2:]
}

func (r Revision) IsFirst() bool { return r.first }

// Date is the revision date; ok is false for FIRST.
func (r Revision) Date() (date time.Time, ok bool) {
	return r.date, !r.first
}

func (r Revision) EventID() (int64, bool) {
	return r.eventID, r.hasEventID
}

// BeforeOrEquals compares event ids when both revisions carry one and dates
// otherwise. FIRST precedes everything.
func (r Revision) BeforeOrEquals(o Revision) bool {
	switch {
	case r.first:
		return true
	case o.first:
		return false
	case r.hasEventID && o.hasEventID:
		return r.eventID <= o.eventID
	default:
		return !r.date.After(o.date)
	}
}

// ShiftToPast moves the revision back by the given minutes and drops the
// event id.
func (r Revision) ShiftToPast(minutes int) Revision {
	if r.first {
		return r
	}
	return FromDate(r.date.Add(-time.Duration(minutes) * time.Minute))
}

// LSHistoryArgs are the lshistory arguments selecting changes since r.
func (r Revision) LSHistoryArgs() []string {
	if r.first {
		return nil
	}
	return []string{"-since", r.DateString()}
}

func (r Revision) DateString() string {
	if r.first {
		return firstRevision
	}
	return r.date.Format(RevisionDateLayout)
}

func (r Revision) String() string {
	if r.first || !r.hasEventID {
		return r.DateString()
	}
	return strconv.FormatInt(r.eventID, 10) + revisionSeparator + r.DateString()
}

func (r Revision) Equal(o Revision) bool {
	if r.first || o.first {
		return r.first == o.first
	}
	return r.date.Equal(o.date) && r.hasEventID == o.hasEventID && r.eventID == o.eventID
}
