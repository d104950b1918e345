package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Stream yields history elements newest first. Next returns io.EOF once the
// stream is exhausted.
type Stream interface {
	Next() (*Element, error)
	Close() error
}

// ReaderStream reads records produced with Format from an io.Reader.
// Records that cannot be parsed are logged and skipped.
type ReaderStream struct {
	reader  *bufio.Reader
	closer  io.Closer
	opts    ParseOptions
	skipped int
}

// NewReaderStream wraps r. If r is an io.Closer, Close closes it.
func NewReaderStream(r io.Reader, opts ParseOptions) *ReaderStream {
	s := &ReaderStream{reader: bufio.NewReader(r), opts: opts}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *ReaderStream) Next() (*Element, error) {
	for {
		record, err := s.readRecord()
		if err != nil {
			return nil, err
		}
		if record == "" {
			continue
		}
		e, err := Parse(record, s.opts)
		if err != nil {
			s.skipped++
			slog.Warn("skipping history record", slog.Any("error", err))
			continue
		}
		return e, nil
	}
}

// readRecord joins lines with '\n' until one ends with RecordEnd. A final
// unterminated record is returned as is.
func (s *ReaderStream) readRecord() (string, error) {
	var record strings.Builder
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read history: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if record.Len() > 0 {
			record.WriteByte('\n')
		}
		record.WriteString(line)
		if strings.HasSuffix(line, RecordEnd) {
			return strings.TrimSuffix(record.String(), RecordEnd), nil
		}
		if err != nil {
			if strings.TrimSpace(record.String()) == "" {
				return "", io.EOF
			}
			return record.String(), nil
		}
	}
}

// Skipped is the number of malformed records seen so far.
func (s *ReaderStream) Skipped() int {
	return s.skipped
}

func (s *ReaderStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SliceStream yields the given elements in order.
type SliceStream struct {
	elements []*Element
}

func NewSliceStream(elements ...*Element) *SliceStream {
	return &SliceStream{elements: elements}
}

// Empty is a stream without elements.
func Empty() Stream {
	return &SliceStream{}
}

func (s *SliceStream) Next() (*Element, error) {
	if len(s.elements) == 0 {
		return nil, io.EOF
	}
	e := s.elements[0]
	s.elements = s.elements[1:]
	return e, nil
}

func (s *SliceStream) Close() error { return nil }

// Drain reads s to the end and closes it.
func Drain(s Stream) (elements []*Element, err error) {
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	for {
		e, err := s.Next()
		if errors.Is(err, io.EOF) {
			return elements, nil
		}
		if err != nil {
			return elements, err
		}
		elements = append(elements, e)
	}
}
