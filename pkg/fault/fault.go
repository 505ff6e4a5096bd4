// Package fault defines the error values shared by the supervisor and the
// core worker: fatal errors that carry a process exit status, and coded errors
// whose message is a stable key understood by the status protocol.
package fault

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ExitStatuser is implemented by errors that decide the process exit status,
// including the *exec.ExitError of a finished child.
type ExitStatuser interface {
	ExitStatus() int
}

// exitError pairs an exit status with an optional cause. With no cause its
// message is empty and the command line prints nothing: that is how the
// worker exits 100 or 101 after it has already reported over the channel.
type exitError struct {
	status int
	cause  error
}

func (e exitError) Error() string {
	if e.cause == nil {
		return ""
	}
	return e.cause.Error()
}

func (e exitError) ExitStatus() int { return e.status }

func (e exitError) Unwrap() error { return e.cause }

// Fatal returns an error that exits the process with status. args, if any,
// form the message.
func Fatal(status int, args ...any) error {
	e := exitError{status: status}
	if len(args) > 0 {
		e.cause = errors.New(fmt.Sprint(args...))
	}
	return e
}

// Fatalf is Fatal with a formatted message; %w keeps the cause in the chain.
func Fatalf(status int, format string, args ...any) error {
	return exitError{status: status, cause: fmt.Errorf(format, args...)}
}

// ExitStatus is 0 for nil, the carried status for an ExitStatuser anywhere in
// the chain, and 1 for anything else.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exit ExitStatuser
	if errors.As(err, &exit) {
		return exit.ExitStatus()
	}
	return 1
}

// CodedError is an error identified by a stable message key such as
// INVALID_CONFIG_PATH. Template holds the values the key's human-readable
// form is rendered with.
type CodedError struct {
	Code     string
	Template map[string]string
	Err      error
}

func (e *CodedError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code)
	if len(e.Template) > 0 {
		for _, k := range slices.Sorted(maps.Keys(e.Template)) {
			fmt.Fprintf(&sb, " %s=%q", k, e.Template[k])
		}
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// Is matches another CodedError with the same code, so that
// errors.Is(err, fault.Coded(code, nil)) works regardless of template.
func (e *CodedError) Is(target error) bool {
	var other *CodedError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Coded returns a CodedError with the given key and template.
func Coded(code string, template map[string]string) error {
	return &CodedError{Code: code, Template: template}
}

// Wrap returns a CodedError with the given key that wraps err.
func Wrap(code string, template map[string]string, err error) error {
	return &CodedError{Code: code, Template: template, Err: err}
}

// CodeOf returns the key of the first CodedError in err's chain.
func CodeOf(err error) (string, bool) {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, true
	}
	return "", false
}
