package autoload

// EventKind describes the outcome of a Register call.
type EventKind int

const (
	// EventRegistered indicates the registration won and its resolver was installed.
	EventRegistered EventKind = iota
	// EventSkipped indicates an equal or newer version was already registered.
	EventSkipped
)

// String returns a human-readable representation of the EventKind.
func (k EventKind) String() string {
	switch k {
	case EventRegistered:
		return "registered"
	case EventSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Event reports the outcome of a single Register call.
type Event struct {
	Kind EventKind
	// Registration is the candidate passed to Register (normalized).
	Registration Registration
	// Previous is the entry that was replaced or that caused the skip.
	// Zero when the namespace had no entry.
	Previous Registration
}

// Listener receives registry events. Listeners run synchronously after the
// table lock is released.
type Listener func(Event)
