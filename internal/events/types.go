// Package events defines the publish-subscribe event types shared by the
// zanrcon frontends: the interactive console, the HTTP bridge, and the
// MQTT mirror.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Console stream events
	EventConsoleOutput EventType = "console_output"
	EventCommandSent   EventType = "command_sent"

	// Session lifecycle events
	EventSessionState EventType = "session_state"
	EventServerUpdate EventType = "server_update"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ConsoleOutputPayload carries one chunk of server console text exactly
// as the session delivered it, color escapes included. Subscribers strip
// or render the escapes for their own medium.
type ConsoleOutputPayload struct {
	Server string    `json:"server"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// CommandSentPayload records a console command dispatched to the server.
type CommandSentPayload struct {
	Server  string    `json:"server"`
	Command string    `json:"command"`
	At      time.Time `json:"at"`
}

// SessionStatePayload reports a session state transition.
type SessionStatePayload struct {
	Server string `json:"server"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

// ServerUpdatePayload mirrors the most recent server-pushed scoreboard.
type ServerUpdatePayload struct {
	Server     string   `json:"server"`
	MapName    string   `json:"map_name"`
	Players    []string `json:"players"`
	AdminCount int      `json:"admin_count"`
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string
	Key     string
	Value   interface{}
}
