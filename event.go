package dsm

// Event is any value fed to a machine. Transitions match on KindFor(event),
// so plain structs work as events without further ceremony.
type Event = any

// KindedEvent lets an event value choose its kind instead of being keyed by
// its Go type.
type KindedEvent interface {
	EventKind() Kind
}

// NamedEvent is an event identified by a runtime name rather than a type.
type NamedEvent struct {
	Name    string
	Payload any
}

// NewEvent creates a named event carrying an optional payload
func NewEvent(name string, payload any) NamedEvent {
	return NamedEvent{Name: name, Payload: payload}
}

// EventKind implements KindedEvent
func (e NamedEvent) EventKind() Kind {
	return NamedKind(e.Name)
}

// String returns the event name
func (e NamedEvent) String() string {
	return e.Name
}

// EventName returns a printable name for an event, "anonymous" for nil.
func EventName(evt Event) string {
	if evt == nil {
		return "anonymous"
	}
	return KindFor(evt).String()
}

// TrigEvent returns the event that last entered or exited s, if it has type E.
func TrigEvent[E any](s State) (E, bool) {
	e, ok := s.base().trigEvent.(E)
	return e, ok
}

// queued is an entry of the posted or pending queue: either an event or a
// deferred transit closure.
type queued struct {
	event    Event
	deferred bool
	run      func()
}
