package checkin

// Event names on the server → client side of the realtime contract.
const (
	EventSessionUpdate  = "session-update"
	EventActiveSessions = "active-sessions-update"
	EventDurationUpdate = "duration-update"
	EventError          = "error"
)

// Event is the envelope every server → client message is wrapped in.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// SessionUpdate carries a check-in or check-out notification.
// Type is "checkin" or "checkout".
type SessionUpdate struct {
	Type    string         `json:"type"`
	Session map[string]any `json:"session"`
	Message string         `json:"message"`
}

// ActiveSessions is the full-state snapshot of currently open sessions.
// Clients replace their local view with it; it is never a delta.
type ActiveSessions struct {
	Count    int              `json:"count"`
	Sessions []map[string]any `json:"sessions"`
}

// DurationUpdate carries the live elapsed minutes of a still-open session.
type DurationUpdate struct {
	SessionID string `json:"sessionId"`
	Duration  int    `json:"duration"`
}

// ErrorMessage is unicast back to the connection that issued a failing
// command.
type ErrorMessage struct {
	Message string `json:"message"`
}

// ClientError builds an EventError envelope for unicast delivery back to
// the connection that issued a failing command.
func ClientError(message string) Event {
	return Event{Name: EventError, Data: ErrorMessage{Message: message}}
}
