package ccase

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/history"
)

func (c *cleartool) ListVersionTree(ctx context.Context, elementPath string, isDir bool) ([]string, error) {
	p, err := ccpath.InsertDots(elementPath, isDir)
	if err != nil {
		return nil, err
	}
	return c.runLines(ctx, []string{"lsvtree", "-obs", "-all", p}, "cleartool lsvtree")
}

func (c *cleartool) ListChildren(ctx context.Context, dirPathWithVersion string) ([]history.Child, error) {
	p, err := ccpath.InsertDots(dirPathWithVersion, true)
	if err != nil {
		return nil, err
	}
	out, err := c.runCommand(ctx, []string{"ls", "-long", p}, "cleartool ls")
	if err != nil {
		return nil, err
	}
	return parseChildren(out), nil
}

func parseChildren(out string) []history.Child {
	var children []history.Child
	for _, line := range strings.Split(out, "\n") {
		rec := Tokenize(line)
		p, ok := rec.ChildPath()
		if !ok {
			continue
		}
		kind := history.ChildFile
		if rec.Kind == RecordDirectoryElement {
			kind = history.ChildDirectory
		}
		children = append(children, history.Child{
			Name: path.Base(ccpath.NormalizeSeparators(p)),
			Kind: kind,
			Path: p,
		})
	}
	return children
}

func (c *cleartool) Describe(ctx context.Context, versionPath string, isDir bool) (Description, error) {
	p, err := ccpath.InsertDots(versionPath, isDir)
	if err != nil {
		return Description{}, err
	}
	out, err := c.runCommand(ctx, []string{"describe", "-fmt", "%c", "-pname", p}, "cleartool describe")
	if err != nil {
		return Description{}, err
	}
	comment, _, _ := strings.Cut(out, "\n")
	return Description{Path: versionPath, Comment: strings.TrimRight(comment, "\r")}, nil
}

func (c *cleartool) PreviousVersion(ctx context.Context, versionPath string, isDir bool) (string, error) {
	p, err := ccpath.InsertDots(versionPath, isDir)
	if err != nil {
		return "", err
	}
	lines, err := c.runLines(ctx, []string{"describe", "-s", "-pre", p}, "cleartool describe")
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("cleartool describe: no predecessor reported for %s", versionPath)
	}
	return strings.TrimSpace(lines[0]), nil
}

func (c *cleartool) ConfigSpecText(ctx context.Context) (string, error) {
	out, err := c.runCommand(ctx, []string{"catcs"}, "cleartool catcs")
	if err == nil {
		return out, nil
	}
	tag, tagErr := c.viewTag(ctx)
	if tagErr != nil || tag == "" {
		return "", err
	}
	slog.Debug("catcs failed in view directory, retrying by tag", slog.String("tag", tag), slog.Any("error", err))
	return c.runCommand(ctx, []string{"catcs", "-tag", tag}, "cleartool catcs")
}

func (c *cleartool) viewTag(ctx context.Context) (string, error) {
	lines, err := c.runLines(ctx, []string{"lsview", "-cview"}, "cleartool lsview")
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return parseViewTag(lines[0]), nil
}

// parseViewTag reads the tag from an lsview line such as
// "* my_view   /net/host/views/my_view.vws".
func parseViewTag(line string) string {
	rec := Tokenize(strings.TrimSpace(line))
	return rec.Field()
}

func (c *cleartool) IsDynamicView(ctx context.Context) (bool, error) {
	out, err := c.runCommand(ctx, []string{"lsview", "-cview", "-long"}, "cleartool lsview")
	if err != nil {
		return false, err
	}
	return parseViewIsDynamic(out), nil
}

// parseViewIsDynamic looks for the "View attributes:" line, which lists
// "snapshot" for snapshot views. Without it the view is taken as dynamic.
func parseViewIsDynamic(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		rec := Tokenize(line)
		if rec.Kind == RecordViewAttributes {
			return !strings.Contains(rec.Text, "snapshot")
		}
	}
	return true
}

func (c *cleartool) StartHistoryStream(ctx context.Context, since *history.Revision, options []string) (history.Stream, error) {
	return startHistoryStream(ctx, c, historyArgs(since, options))
}

func historyArgs(since *history.Revision, options []string) []string {
	args := []string{"lshistory", "-eventid"}
	if since == nil {
		args = append(args, "-last", "1")
	} else {
		args = append(args, since.LSHistoryArgs()...)
	}
	args = append(args, "-fmt", history.Format)
	return append(args, options...)
}
