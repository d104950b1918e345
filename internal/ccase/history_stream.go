package ccase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/thiagokokada/ccview-go/internal/history"
)

// historyStream reads lshistory output while the command runs.
type historyStream struct {
	args   []string
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	r      *history.ReaderStream

	finished bool
	waitOnce sync.Once
	waitErr  error
}

func startHistoryStream(ctx context.Context, c *cleartool, args []string) (*historyStream, error) {
	if c == nil || c.viewPath == "" {
		return nil, fmt.Errorf("view path not set")
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := c.command(ctx, args)
	stream := &historyStream{args: args, cancel: cancel, cmd: cmd}
	cmd.Stderr = &stream.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("cleartool lshistory stdout: %w", err)
	}
	stream.stdout = stdout
	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdout.Close()
		return nil, &CommandError{Op: "cleartool lshistory", Args: args, Stderr: strings.TrimSpace(stream.stderr.String()), Err: err}
	}
	stream.r = history.NewReaderStream(stdout, c.parse)
	return stream, nil
}

func (s *historyStream) Next() (*history.Element, error) {
	e, err := s.r.Next()
	if errors.Is(err, io.EOF) {
		s.finished = true
		if waitErr := s.wait(); waitErr != nil {
			return nil, waitErr
		}
		return nil, io.EOF
	}
	return e, err
}

// Close stops the command. A command cut short by Close is not an error.
func (s *historyStream) Close() error {
	if s.finished {
		return s.wait()
	}
	s.cancel()
	_ = s.stdout.Close()
	_ = s.wait()
	return nil
}

func (s *historyStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		s.cancel()
	})
	if s.waitErr == nil {
		return nil
	}
	return &CommandError{Op: "cleartool lshistory", Args: s.args, Stderr: strings.TrimSpace(s.stderr.String()), Err: s.waitErr}
}
