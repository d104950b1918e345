package ccase

import "strings"

// RecordKind identifies a line of cleartool output.
type RecordKind int

const (
	RecordUnknown RecordKind = iota
	RecordDirectoryElement
	RecordFileElement
	RecordVersion
	RecordViewAttributes
	RecordViewTag
	RecordCurrentView
	RecordHistory
	RecordToolVersion
)

// Record is one tokenized output line. Text is the line with the matched
// prefix removed and surrounding blanks trimmed.
type Record struct {
	Kind RecordKind
	Text string
}

const notLoaded = "[not loaded]"

// Longer prefixes sharing a start with shorter ones come first.
var recordPrefixes = []struct {
	prefix string
	kind   RecordKind
}{
	{prefix: "directory element", kind: RecordDirectoryElement},
	{prefix: "file element", kind: RecordFileElement},
	{prefix: "version ", kind: RecordVersion},
	{prefix: "View attributes:", kind: RecordViewAttributes},
	{prefix: "Tag:", kind: RecordViewTag},
	{prefix: "event ", kind: RecordHistory},
	{prefix: "ClearCase version", kind: RecordToolVersion},
	{prefix: "cleartool ", kind: RecordToolVersion},
	{prefix: "*", kind: RecordCurrentView},
}

// Tokenize classifies one line of cleartool output.
func Tokenize(line string) Record {
	line = strings.TrimRight(line, "\r\n")
	for _, p := range recordPrefixes {
		if strings.HasPrefix(line, p.prefix) {
			text := line
			if p.kind != RecordHistory {
				text = line[len(p.prefix):]
			}
			return Record{Kind: p.kind, Text: strings.TrimSpace(text)}
		}
	}
	return Record{Kind: RecordUnknown, Text: strings.TrimSpace(line)}
}

// ChildPath returns the element path of a directory or file element
// record, without the "[not loaded]" marker and the trailing "@@".
func (r Record) ChildPath() (string, bool) {
	if r.Kind != RecordDirectoryElement && r.Kind != RecordFileElement {
		return "", false
	}
	p := strings.TrimSpace(strings.TrimSuffix(r.Text, notLoaded))
	p = strings.TrimSpace(strings.TrimSuffix(p, "@@"))
	return p, p != ""
}

// Field returns the first blank-separated word of Text.
func (r Record) Field() string {
	if f := strings.Fields(r.Text); len(f) > 0 {
		return f[0]
	}
	return ""
}
