package bridge

import "encoding/json"

// MessageType identifies a protocol message.
type MessageType string

// Protocol message types. These literals are mirrored by the generated
// SDK preludes and must not change independently.
const (
	MsgToolCall   MessageType = "tool_call"
	MsgToolResult MessageType = "tool_result"
	MsgToolError  MessageType = "tool_error"
)

// Message is one line of the wire protocol. ID correlates a tool_call
// with its single response; every call receives exactly one correlated
// response or the enclosing execution times out.
type Message struct {
	Type    MessageType    `json:"type"`
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload,omitempty"`
}

// encode renders the message as a single JSON line.
func (m Message) encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// resultMessage builds the success response for a call.
func resultMessage(id string, result any) Message {
	return Message{
		Type:    MsgToolResult,
		ID:      id,
		Payload: map[string]any{"result": result},
	}
}

// errorMessage builds the failure response for a call.
func errorMessage(id string, err error) Message {
	return Message{
		Type:    MsgToolError,
		ID:      id,
		Payload: map[string]any{"error": err.Error()},
	}
}
