package ipc

import "encoding/json"

// CommandKind is the closed set of commands the worker understands.
type CommandKind int

const (
	CommandUnrecognized CommandKind = iota
	CommandTerminate
)

// CommandTypeTerminate requests a graceful shutdown of the worker.
const CommandTypeTerminate = "terminate"

func (k CommandKind) String() string {
	if k == CommandTerminate {
		return CommandTypeTerminate
	}
	return "unrecognized"
}

// Command is sent by the supervisor. Fields beyond Type are carried in Data
// and interpreted per command.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Kind maps the wire type onto a CommandKind.
func (c Command) Kind() CommandKind {
	if c.Type == CommandTypeTerminate {
		return CommandTerminate
	}
	return CommandUnrecognized
}

// Terminate returns the terminate command.
func Terminate() Command {
	return Command{Type: CommandTypeTerminate}
}
