package manager

// Lifecycle event names.
const (
	EventSessionOpen    = "session_open"
	EventSessionClose   = "session_close"
	EventSessionExpire  = "session_expire"
	EventSessionReject  = "session_reject"
	EventGenerateDone   = "generate_done"
	EventGenerateFailed = "generate_failed"
)

// Event represents a session lifecycle event.
// Minimal and stable: name, session and model plus optional fields.
type Event struct {
	Name      string
	SessionID string
	Model     string
	Fields    map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
