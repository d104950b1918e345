package history

import (
	"errors"
	"io"
)

type mergeStream struct {
	streams []Stream
	heads   []*Element
	primed  bool
}

// Merge interleaves several newest-first streams into one, preserving the
// order defined by Newer. On ties the earlier stream wins.
func Merge(streams ...Stream) Stream {
	switch len(streams) {
	case 0:
		return Empty()
	case 1:
		return streams[0]
	}
	return &mergeStream{streams: streams, heads: make([]*Element, len(streams))}
}

func (m *mergeStream) prime() error {
	for i := range m.streams {
		if err := m.advance(i); err != nil {
			return err
		}
	}
	m.primed = true
	return nil
}

func (m *mergeStream) advance(i int) error {
	e, err := m.streams[i].Next()
	if errors.Is(err, io.EOF) {
		m.heads[i] = nil
		return nil
	}
	if err != nil {
		return err
	}
	m.heads[i] = e
	return nil
}

func (m *mergeStream) Next() (*Element, error) {
	if !m.primed {
		if err := m.prime(); err != nil {
			return nil, err
		}
	}
	best := -1
	for i, e := range m.heads {
		if e == nil {
			continue
		}
		if best < 0 || Newer(e, m.heads[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil, io.EOF
	}
	e := m.heads[best]
	if err := m.advance(best); err != nil {
		return nil, err
	}
	return e, nil
}

func (m *mergeStream) Close() error {
	var errs []error
	for _, s := range m.streams {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
