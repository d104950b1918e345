package ccase

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Oldest cleartool release whose lshistory supports -eventid and the
// %[activity]p format directive.
var minToolVersion = toolVersion{major: 7, minor: 0}

type toolVersion struct {
	major int
	minor int
	patch int
}

func MinToolVersion() string {
	return minToolVersion.String()
}

func (v toolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v toolVersion) less(other toolVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// parseToolVersionOutput reads the first release number of cleartool
// -version, which looks like:
//
//	ClearCase version 8.0.1.9 (Tue Sep 15 14:32:06 EDT 2015)
//	@(#) MVFS version 8.0.1.9 (Tue Sep 15 14:32:06 EDT 2015)
//	cleartool                         8.0.1.9 (Mon Sep 14 21:02:01 2015)
func parseToolVersionOutput(out string) (toolVersion, bool) {
	for _, line := range strings.Split(out, "\n") {
		rec := Tokenize(line)
		if rec.Kind != RecordToolVersion {
			continue
		}
		if v, ok := parseReleaseNumber(rec.Field()); ok {
			return v, true
		}
	}
	return toolVersion{}, false
}

func parseReleaseNumber(s string) (toolVersion, bool) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return toolVersion{}, false
	}
	var nums [3]int
	for i := 0; i < len(parts) && i < len(nums); i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			if i < 2 {
				return toolVersion{}, false
			}
			break
		}
		nums[i] = n
	}
	return toolVersion{major: nums[0], minor: nums[1], patch: nums[2]}, true
}

func validateToolVersionOutput(out string) error {
	got, ok := parseToolVersionOutput(out)
	if !ok {
		return fmt.Errorf("unable to parse cleartool version output: %q", strings.TrimSpace(out))
	}
	if got.less(minToolVersion) {
		return fmt.Errorf("cleartool %s is too old; ccview requires cleartool >= %s", got, minToolVersion)
	}
	return nil
}

type versionProbe struct {
	once sync.Once
	out  string
	err  error
}

var versionProbes sync.Map

func probeToolVersion(ctx context.Context, executable string) *versionProbe {
	p, _ := versionProbes.LoadOrStore(executable, &versionProbe{})
	probe := p.(*versionProbe)
	probe.once.Do(func() {
		outBytes, err := exec.CommandContext(ctx, executable, "-version").CombinedOutput()
		probe.out = strings.TrimSpace(string(outBytes))
		if err != nil {
			if probe.out != "" {
				probe.err = fmt.Errorf("%s -version: %v: %s", executable, err, probe.out)
				return
			}
			probe.err = fmt.Errorf("%s -version: %w", executable, err)
			return
		}
		probe.err = validateToolVersionOutput(probe.out)
	})
	return probe
}

// ToolVersion returns the raw -version output of executable.
func ToolVersion(ctx context.Context, executable string) (string, error) {
	p := probeToolVersion(ctx, executable)
	return p.out, p.err
}
