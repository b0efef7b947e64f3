package dsm

import "fmt"

// State is implemented by every node of a machine tree. Types become states
// by embedding BaseState and overriding the hooks they care about.
type State interface {
	// OnEntry runs when the state becomes active
	OnEntry() error
	// OnExit runs when the state is deactivated
	OnExit() error
	// OnError receives failures raised by this state's hooks and transitions
	OnError(err error)

	base() *BaseState
}

// StatesProvider declares child states, consumed by Machine.Setup
type StatesProvider interface {
	States() []StateDef
}

// TransitionsProvider declares the transitions a state owns, consumed by Machine.Setup
type TransitionsProvider interface {
	Transitions() []TransitionDef
}

// HistoryProvider declares the history mode of each region, consumed by Machine.Setup
type HistoryProvider interface {
	RegionHistory(region int) History
}

// StateDef is a child declaration returned by StatesProvider.States
type StateDef struct {
	State   State
	Options []StateOption
}

// Child declares a child state for StatesProvider implementations
func Child(state State, opts ...StateOption) StateDef {
	return StateDef{State: state, Options: opts}
}

// BaseState carries the engine bookkeeping of a state. Embed it by value.
type BaseState struct {
	m    *Machine
	id   nodeID
	kind Kind
	name string

	trigEvent Event
}

func (s *BaseState) base() *BaseState {
	return s
}

func (s *BaseState) node() *node {
	if s.m == nil {
		return nil
	}
	return s.m.nodes[s.id]
}

// Name returns the state name, its type name unless set with Named
func (s *BaseState) Name() string {
	return s.name
}

// Kind returns the identifier the state is registered under
func (s *BaseState) Kind() Kind {
	return s.kind
}

// Machine returns the machine the state belongs to, nil before registration
func (s *BaseState) Machine() *Machine {
	return s.m
}

// Started reports whether the state is active
func (s *BaseState) Started() bool {
	n := s.node()
	return n != nil && n.started
}

// TrigEvent returns the event that last entered or exited the state. It is
// nil for anonymous transits and machine start/stop.
func (s *BaseState) TrigEvent() Event {
	return s.trigEvent
}

// Store returns the machine store, nil before registration
func (s *BaseState) Store() any {
	if s.m == nil {
		return nil
	}
	return s.m.store
}

// Transit performs an anonymous transition from this state to dst
func (s *BaseState) Transit(dst Kind) {
	s.TransitWith(dst, nil)
}

// TransitWith performs a transition from this state to dst triggered by evt
func (s *BaseState) TransitWith(dst Kind, evt Event) {
	if s.m == nil {
		return
	}
	s.m.transitFrom(s.id, dst, evt)
}

// PostEvent queues evt for processing once the current dispatch completes
func (s *BaseState) PostEvent(evt Event) {
	if s.m != nil {
		s.m.PostEvent(evt)
	}
}

// DeferEvent queues evt until some active state can handle it
func (s *BaseState) DeferEvent(evt Event) {
	if s.m != nil {
		s.m.DeferEvent(evt)
	}
}

// CheckStates checks the active chain on the owning machine
func (s *BaseState) CheckStates(chain ...Kind) bool {
	return s.m != nil && s.m.CheckStates(chain...)
}

// ClearHistory forgets the last visited children of the state k, on all regions
// or only the listed ones
func (s *BaseState) ClearHistory(k Kind, recursive bool, regions ...int) {
	if s.m != nil {
		s.m.ClearHistory(k, recursive, regions...)
	}
}

// Ancestor returns the nearest ancestor registered as k, or nil
func (s *BaseState) Ancestor(k Kind) State {
	n := s.node()
	if n == nil {
		return nil
	}
	for p := n.parent; p != noNode; p = s.m.nodes[p].parent {
		if s.m.nodes[p].kind == k {
			return s.m.nodes[p].state
		}
	}
	return nil
}

// Descendant returns the state registered as k below this one, or nil
func (s *BaseState) Descendant(k Kind) State {
	n := s.node()
	if n == nil {
		return nil
	}
	id, ok := s.m.byKind[k]
	if !ok || id == s.id || !s.m.contains(s.id, id) {
		return nil
	}
	return s.m.nodes[id].state
}

// OnEntry logs the entry at debug level
func (s *BaseState) OnEntry() error {
	s.logf(LevelDebug, "Entering state %s through event %s", s.name, EventName(s.trigEvent))
	return nil
}

// OnExit logs the exit at debug level
func (s *BaseState) OnExit() error {
	s.logf(LevelDebug, "Leaving state %s through event %s", s.name, EventName(s.trigEvent))
	return nil
}

// OnError logs err at error level
func (s *BaseState) OnError(err error) {
	s.logf(LevelError, "Error in state %s: %v", s.name, err)
}

func (s *BaseState) logf(level Level, format string, args ...any) {
	if s.m != nil {
		s.m.logger.Write(s.m.module, level, fmt.Sprintf(format, args...))
	}
}

// StateOption configures how AddState places a state in the tree
type StateOption func(*stateConfig)

type stateConfig struct {
	parent    Kind
	hasParent bool
	region    int
	entry     bool
	name      string
	kind      Kind
}

// Under places the state below parent. Without it the state is a child of the root.
func Under(parent Kind) StateOption {
	return func(c *stateConfig) {
		c.parent = parent
		c.hasParent = true
	}
}

// InRegion places the state in the given region of its parent, 0 by default
func InRegion(region int) StateOption {
	return func(c *stateConfig) {
		c.region = region
	}
}

// Entry marks the state as the entry child of its region
func Entry() StateOption {
	return func(c *stateConfig) {
		c.entry = true
	}
}

// Named overrides the name used in logs and dumps
func Named(name string) StateOption {
	return func(c *stateConfig) {
		c.name = name
	}
}

// WithKind registers the state under k instead of its Go type
func WithKind(k Kind) StateOption {
	return func(c *stateConfig) {
		c.kind = k
	}
}

// GetState returns the state of type S registered under KindOf[S]
func GetState[S State](m *Machine) (S, bool) {
	var zero S
	st := m.Lookup(KindOf[S]())
	if st == nil {
		return zero, false
	}
	s, ok := st.(S)
	return s, ok
}

// StoreAs returns the machine store as T
func StoreAs[T any](m *Machine) (T, bool) {
	t, ok := m.store.(T)
	return t, ok
}

func (s *BaseState) String() string {
	return fmt.Sprintf("%s(%s)", s.name, s.kind)
}
