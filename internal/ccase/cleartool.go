package ccase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/thiagokokada/ccview-go/internal/history"
)

const DefaultExecutable = "cleartool"

// Options configure Open.
type Options struct {
	// Executable is the cleartool binary. Empty means DefaultExecutable.
	Executable string
	// SkipVersionCheck disables the minimum release check.
	SkipVersionCheck bool
	// KeepHistoryObjectNames disables history.NormalizeObjectName on
	// lshistory output.
	KeepHistoryObjectNames bool
}

type cleartool struct {
	executable string
	viewPath   string
	parse      history.ParseOptions
}

// Open returns a Backend running cleartool inside viewPath.
func Open(ctx context.Context, viewPath string, opts Options) (Backend, error) {
	exe := opts.Executable
	if exe == "" {
		exe = DefaultExecutable
	}
	if !opts.SkipVersionCheck {
		if _, err := ToolVersion(ctx, exe); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(viewPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open view: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open view: %s is not a directory", abs)
	}
	return &cleartool{
		executable: exe,
		viewPath:   abs,
		parse:      history.ParseOptions{KeepObjectNames: opts.KeepHistoryObjectNames},
	}, nil
}

func (c *cleartool) ViewPath() string {
	if c == nil {
		return ""
	}
	return c.viewPath
}

func (c *cleartool) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.executable, args...)
	cmd.Dir = c.viewPath
	return cmd
}

func (c *cleartool) runCommand(ctx context.Context, args []string, op string) (string, error) {
	if c == nil || c.viewPath == "" {
		return "", fmt.Errorf("view path not set")
	}
	cmd := c.command(ctx, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	slog.Debug("cleartool command",
		slog.String("op", op),
		slog.Any("args", args),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil),
	)
	if err != nil {
		return "", &CommandError{Op: op, Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.String(), nil
}

func (c *cleartool) runLines(ctx context.Context, args []string, op string) ([]string, error) {
	out, err := c.runCommand(ctx, args, op)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}
