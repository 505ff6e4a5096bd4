// Package version reports the build of the unistack binary.
package version

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/yaklabco/unistack/internal/ui"
)

// Version is the CLI version. It can be overridden at build time via:
//
//	-ldflags "-X github.com/yaklabco/unistack/cmd/unistack/version.Version=v0.0.0"
var Version = "dev" //nolint:gochecknoglobals // Populated by goreleaser ldflags.

// Commit is the git commit hash, set the same way as Version.
var Commit = "" //nolint:gochecknoglobals // Populated by goreleaser ldflags.

// BuildDate is the RFC3339 timestamp of the build, set the same way as
// Version.
var BuildDate = "" //nolint:gochecknoglobals // Populated by goreleaser ldflags.

// buildSetting returns a setting recorded by the Go toolchain.
func buildSetting(key string) string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// EffectiveVersion returns the best-effort version string for the binary.
// Precedence:
//  1. Version from ldflags, unless it is "dev" or empty.
//  2. The module version from `go install module@version`.
//  3. The VCS revision, with "-dirty" for a modified tree.
//  4. "dev".
func EffectiveVersion(_ context.Context) string {
	if v := strings.TrimSpace(Version); v != "" && v != "dev" {
		return v
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		if mv := strings.TrimSpace(bi.Main.Version); mv != "" && mv != "(devel)" {
			return mv
		}
	}
	if rev := buildSetting("vcs.revision"); rev != "" {
		if buildSetting("vcs.modified") == "true" {
			return rev + "-dirty"
		}
		return rev
	}
	return "dev"
}

// EffectiveCommit returns the commit from ldflags or the VCS revision.
func EffectiveCommit(_ context.Context) string {
	if c := strings.TrimSpace(Commit); c != "" {
		return c
	}
	return buildSetting("vcs.revision")
}

// EffectiveBuildTime returns the build time from ldflags or the VCS commit
// time.
func EffectiveBuildTime() (time.Time, bool) {
	for _, raw := range []string{strings.TrimSpace(BuildDate), buildSetting("vcs.time")} {
		if raw == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// OverallVersionString renders version, commit and build time.
func OverallVersionString(ctx context.Context) string {
	return strings.Join(parts(ctx), "-")
}

// OverallVersionStringColorized renders a version line with fang-consistent colors.
func OverallVersionStringColorized(ctx context.Context) string {
	cs := ui.GetFangScheme()
	styles := []lipgloss.Style{
		lipgloss.NewStyle().Foreground(cs.QuotedString),
		lipgloss.NewStyle().Foreground(cs.Program),
		lipgloss.NewStyle().Foreground(cs.Flag),
	}

	rendered := parts(ctx)
	for i := range rendered {
		rendered[i] = styles[min(i, len(styles)-1)].Render(rendered[i])
	}
	return strings.Join(rendered, lipgloss.NewStyle().Foreground(cs.Base).Render("-"))
}

func parts(ctx context.Context) []string {
	out := []string{EffectiveVersion(ctx)}
	if c := EffectiveCommit(ctx); c != "" {
		out = append(out, c)
	}
	if t, ok := EffectiveBuildTime(); ok {
		out = append(out, t.In(time.Local).Format(time.RFC3339))
	}
	return out
}
