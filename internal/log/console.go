package log

import (
	stdlog "log"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/yaklabco/unistack/internal/ui"
)

// Console echoes bundler and server command lines in verbose mode. It writes
// plain lines, not key/value records, tagged with the process that ran them.
//
//nolint:gochecknoglobals // shared by every command runner in the process
var Console = stdlog.New(os.Stderr, ConsolePrefix(""), 0)

// ConsolePrefix renders the tag Console lines start with, e.g. "[CORE] ".
func ConsolePrefix(process string) string {
	tag := "unistack"
	if process != "" {
		tag = process
	}
	return lipgloss.NewStyle().
		Foreground(ui.GetFangScheme().Flag).
		Render("[" + strings.ToUpper(tag) + "] ")
}
