package ipc

import (
	"encoding/json"
	"errors"

	"github.com/yaklabco/unistack/pkg/fault"
)

// StatusKind is the closed set of status types the supervisor understands.
type StatusKind int

const (
	// StatusUnrecognized is any wire type not listed below. It is kept
	// so newer workers can talk to older supervisors.
	StatusUnrecognized StatusKind = iota
	StatusError
	StatusSuccess
	StatusCommandNotFound
	StatusBundleBuilt
)

// Wire values of the known status types.
const (
	StatusTypeError           = "error"
	StatusTypeSuccess         = "success"
	StatusTypeCommandNotFound = "command_not_found"
	StatusTypeBundleBuilt     = "bundle_built"
)

// Status messages.
const (
	MessageUnknownCoreExitCode = "UNKNOWN_CORE_EXIT_CODE"
	MessageUnknownCoreExit     = "UNKNOWN_CORE_EXIT"
	MessageCoreExit            = "CORE_EXIT"
	MessageBundleBuilt         = "BUNDLE_BUILT"
	MessageCommandNotFound     = "COMMAND_NOT_FOUND"
)

func (k StatusKind) String() string {
	switch k {
	case StatusError:
		return StatusTypeError
	case StatusSuccess:
		return StatusTypeSuccess
	case StatusCommandNotFound:
		return StatusTypeCommandNotFound
	case StatusBundleBuilt:
		return StatusTypeBundleBuilt
	default:
		return "unrecognized"
	}
}

// Status is the generic status/error/success event reported by the worker.
// Data is kept raw: its shape depends on Type, and for unrecognized types it
// is whatever the worker sent.
type Status struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Detail is the common shape of Status.Data.
type Detail struct {
	Message  string            `json:"message"`
	Template map[string]string `json:"template,omitempty"`
	Target   string            `json:"target,omitempty"`
	Duration string            `json:"duration,omitempty"`
	// Command echoes a command the worker did not recognize, payload
	// included.
	Command json.RawMessage `json:"command,omitempty"`
}

// Kind maps the wire type onto a StatusKind.
func (s Status) Kind() StatusKind {
	switch s.Type {
	case StatusTypeError:
		return StatusError
	case StatusTypeSuccess:
		return StatusSuccess
	case StatusTypeCommandNotFound:
		return StatusCommandNotFound
	case StatusTypeBundleBuilt:
		return StatusBundleBuilt
	default:
		return StatusUnrecognized
	}
}

// Detail decodes Data as a Detail. It reports false when Data is absent or has
// a different shape.
func (s Status) Detail() (Detail, bool) {
	var detail Detail
	if len(s.Data) == 0 {
		return detail, false
	}
	if err := json.Unmarshal(s.Data, &detail); err != nil {
		return Detail{}, false
	}
	return detail, detail.Message != ""
}

// NewStatus builds a Status with arbitrary data.
func NewStatus(statusType string, data any) (Status, error) {
	status := Status{Type: statusType}
	if data == nil {
		return status, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Status{}, err
	}
	status.Data = raw
	return status, nil
}

// DetailStatus builds a Status whose data is a Detail.
func DetailStatus(statusType string, detail Detail) Status {
	// A Detail holds strings and output of json.Marshal, so encoding cannot
	// fail.
	raw, _ := json.Marshal(detail) //nolint:errchkjson // see above
	return Status{Type: statusType, Data: raw}
}

// MessageStatus builds a Status whose data is {message}.
func MessageStatus(statusType, message string) Status {
	return DetailStatus(statusType, Detail{Message: message})
}

// CommandNotFoundStatus answers a command the worker does not know. The
// whole command is sent back.
func CommandNotFoundStatus(cmd Command) Status {
	detail := Detail{
		Message:  MessageCommandNotFound,
		Template: map[string]string{"command": cmd.Type},
	}
	if raw, err := json.Marshal(cmd); err == nil {
		detail.Command = raw
	}
	return DetailStatus(StatusTypeCommandNotFound, detail)
}

// ErrorStatus converts err into an error Status. Coded errors keep their key
// and template; anything else uses the error text as the message.
func ErrorStatus(err error) Status {
	var coded *fault.CodedError
	if errors.As(err, &coded) {
		return DetailStatus(StatusTypeError, Detail{Message: coded.Code, Template: coded.Template})
	}
	return MessageStatus(StatusTypeError, err.Error())
}
