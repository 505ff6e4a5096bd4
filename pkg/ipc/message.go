// Package ipc implements the control protocol spoken between the supervisor
// and the core worker: JSON messages, one per line, over a pair of pipes the
// worker inherits as extra file descriptors.
package ipc

import (
	"encoding/json"
	"fmt"
)

// MessageType names a control message on the wire.
type MessageType string

const (
	// TypeCoreReady is sent once by the worker when the handshake is complete.
	TypeCoreReady MessageType = "core::ready"

	// TypeCoreStatus carries a Status from the worker to the supervisor.
	TypeCoreStatus MessageType = "core::status"

	// TypeCLICommand carries a Command from the supervisor to the worker.
	TypeCLICommand MessageType = "cli::command"
)

// Message is the envelope every control message travels in.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a Message of the given type. A nil payload
// produces a message without one.
func NewMessage(msgType MessageType, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}
	msg.Payload = raw
	return msg, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: %s", ErrNoPayload, m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Type, err)
	}
	return nil
}

// ProtocolVersion is the protocol a worker built from this module speaks.
const ProtocolVersion = "1.0.0"

// Ready is the optional payload of TypeCoreReady.
type Ready struct {
	Protocol string `json:"protocol,omitempty"`
	PID      int    `json:"pid,omitempty"`
}
