// Package protocol defines the WebSocket messages of the local control API.
package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeAuth is sent by client immediately after connection to authenticate
	TypeAuth MessageType = "auth"

	// TypeStatus is pushed by the server on every state change
	TypeStatus MessageType = "status"

	// TypeCommand is sent by client to request a transition
	TypeCommand MessageType = "command"

	// TypeResult answers a command
	TypeResult MessageType = "result"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Command actions accepted in a CommandPayload
const (
	ActionRecord        = "record"
	ActionStopMacro     = "stop_macro"
	ActionListen        = "listen"
	ActionStopListening = "stop_listening"
	ActionCopy          = "copy_transcript"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// AuthPayload is the payload for TypeAuth
type AuthPayload struct {
	Token         string `json:"token"`
	ClientName    string `json:"client_name"`
	ClientVersion string `json:"client_version"`
}

// CommandPayload is the payload for TypeCommand
type CommandPayload struct {
	Action string `json:"action"`
}

// ResultPayload is the payload for TypeResult
type ResultPayload struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	// Text carries the transcript for listen/copy actions
	Text string `json:"text,omitempty"`
}
