package ui

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/reflow/wordwrap"
	"github.com/yaklabco/unistack/pkg/ipc"
)

const (
	defaultWidth = 80
	minWidth     = 20
)

// StatusPrinter writes worker status events to the supervisor console, one
// styled line per event, wrapped to the terminal width.
type StatusPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	width int

	label   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	notice  lipgloss.Style
	muted   lipgloss.Style
}

// NewStatusPrinter returns a printer for w. When w is a terminal the wrap
// width follows its size.
func NewStatusPrinter(w io.Writer) *StatusPrinter {
	scheme := GetFangScheme()
	return &StatusPrinter{
		w:       w,
		width:   detectWidth(w),
		label:   lipgloss.NewStyle().Bold(true).Foreground(scheme.Flag),
		success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		notice:  lipgloss.NewStyle().Foreground(scheme.QuotedString),
		muted:   lipgloss.NewStyle().Faint(true),
	}
}

func detectWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return defaultWidth
	}
	if width, _, err := term.GetSize(f.Fd()); err == nil && width > minWidth {
		return width
	}
	return defaultWidth
}

// Print renders status.
func (p *StatusPrinter) Print(status ipc.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var marker, kind string
	switch status.Kind() {
	case ipc.StatusSuccess:
		marker, kind = p.success.Render("✔"), p.success.Render(status.Type)
	case ipc.StatusError:
		marker, kind = p.failure.Render("✖"), p.failure.Render(status.Type)
	case ipc.StatusBundleBuilt:
		marker, kind = p.success.Render("•"), p.label.Render(status.Type)
	case ipc.StatusCommandNotFound:
		marker, kind = p.notice.Render("?"), p.notice.Render(status.Type)
	case ipc.StatusUnrecognized:
		marker, kind = p.muted.Render("?"), p.muted.Render(status.Type)
	}

	body := wordwrap.String(Describe(status), max(p.width-len(status.Type)-4, minWidth))
	body = strings.ReplaceAll(body, "\n", "\n    ")
	_, _ = lipgloss.Fprintln(p.w, marker+" "+kind+"  "+body)
}

// Describe returns the plain-text body of a status line.
func Describe(status ipc.Status) string {
	detail, ok := status.Detail()
	if !ok {
		if len(status.Data) == 0 {
			return ""
		}
		return string(status.Data)
	}

	var sb strings.Builder
	sb.WriteString(detail.Message)
	if detail.Target != "" {
		sb.WriteString(" " + detail.Target)
	}
	if detail.Duration != "" {
		sb.WriteString(" (" + detail.Duration + ")")
	}
	for _, k := range slices.Sorted(maps.Keys(detail.Template)) {
		fmt.Fprintf(&sb, " %s=%s", k, detail.Template[k])
	}
	return sb.String()
}
