package definition

import "github.com/anggasct/dsm"

// MachineBuilder provides the main entry point for building definitions in code
type MachineBuilder interface {
	State(name string) StateBuilder
	History(region int, h dsm.History) MachineBuilder
	Store(key string, value any) MachineBuilder
	Build() (*Definition, error)
}

// StateBuilder configures one state. State adds a sibling, Child a nested
// state and Parent moves one level up.
type StateBuilder interface {
	To(target string) TransitionBuilder
	ToSelf() TransitionBuilder

	Initial() StateBuilder
	InRegion(region int) StateBuilder
	History(region int, h dsm.History) StateBuilder
	OnEntry(hook string) StateBuilder
	OnExit(hook string) StateBuilder

	State(name string) StateBuilder
	Child(name string) StateBuilder
	Parent() StateBuilder
	Build() (*Definition, error)
}

// TransitionBuilder configures the transition created by To or ToSelf
type TransitionBuilder interface {
	On(event string) TransitionBuilder
	When(guard string) TransitionBuilder
	Do(action string) TransitionBuilder

	// Multiple transitions from the same state
	To(target string) TransitionBuilder
	ToSelf() TransitionBuilder

	// Navigation back
	State(name string) StateBuilder
	Child(name string) StateBuilder
	Build() (*Definition, error)
}

type machineBuilderImpl struct {
	def *Definition
}

// NewMachine starts a definition called name
func NewMachine(name string) MachineBuilder {
	return &machineBuilderImpl{def: &Definition{Name: name}}
}

func (mb *machineBuilderImpl) State(name string) StateBuilder {
	s := &StateSpec{Name: name}
	mb.def.States = append(mb.def.States, s)
	return &stateBuilderImpl{machine: mb, spec: s}
}

func (mb *machineBuilderImpl) History(region int, h dsm.History) MachineBuilder {
	if mb.def.History == nil {
		mb.def.History = map[int]string{}
	}
	mb.def.History[region] = h.String()
	return mb
}

func (mb *machineBuilderImpl) Store(key string, value any) MachineBuilder {
	if mb.def.Store == nil {
		mb.def.Store = map[string]any{}
	}
	mb.def.Store[key] = value
	return mb
}

// Build validates and returns the definition
func (mb *machineBuilderImpl) Build() (*Definition, error) {
	if err := mb.def.Validate(); err != nil {
		return nil, err
	}
	return mb.def, nil
}

type stateBuilderImpl struct {
	machine *machineBuilderImpl
	parent  *stateBuilderImpl // nil for top-level states
	spec    *StateSpec
}

func (sb *stateBuilderImpl) To(target string) TransitionBuilder {
	sb.spec.Transitions = append(sb.spec.Transitions, TransitionSpec{To: target})
	return &transitionBuilderImpl{source: sb, index: len(sb.spec.Transitions) - 1}
}

// ToSelf creates an internal transition
func (sb *stateBuilderImpl) ToSelf() TransitionBuilder {
	return sb.To("")
}

// Initial marks the state as the entry state of its region
func (sb *stateBuilderImpl) Initial() StateBuilder {
	sb.spec.Entry = true
	return sb
}

func (sb *stateBuilderImpl) InRegion(region int) StateBuilder {
	sb.spec.Region = region
	return sb
}

func (sb *stateBuilderImpl) History(region int, h dsm.History) StateBuilder {
	if sb.spec.History == nil {
		sb.spec.History = map[int]string{}
	}
	sb.spec.History[region] = h.String()
	return sb
}

func (sb *stateBuilderImpl) OnEntry(hook string) StateBuilder {
	sb.spec.OnEntry = hook
	return sb
}

func (sb *stateBuilderImpl) OnExit(hook string) StateBuilder {
	sb.spec.OnExit = hook
	return sb
}

func (sb *stateBuilderImpl) State(name string) StateBuilder {
	if sb.parent == nil {
		return sb.machine.State(name)
	}
	return sb.parent.Child(name)
}

func (sb *stateBuilderImpl) Child(name string) StateBuilder {
	s := &StateSpec{Name: name}
	sb.spec.States = append(sb.spec.States, s)
	return &stateBuilderImpl{machine: sb.machine, parent: sb, spec: s}
}

// Parent returns the enclosing state. Top-level states return themselves.
func (sb *stateBuilderImpl) Parent() StateBuilder {
	if sb.parent == nil {
		return sb
	}
	return sb.parent
}

func (sb *stateBuilderImpl) Build() (*Definition, error) {
	return sb.machine.Build()
}

type transitionBuilderImpl struct {
	source *stateBuilderImpl
	index  int
}

func (tb *transitionBuilderImpl) spec() *TransitionSpec {
	return &tb.source.spec.Transitions[tb.index]
}

func (tb *transitionBuilderImpl) On(event string) TransitionBuilder {
	tb.spec().On = event
	return tb
}

func (tb *transitionBuilderImpl) When(guard string) TransitionBuilder {
	tb.spec().Guard = guard
	return tb
}

func (tb *transitionBuilderImpl) Do(action string) TransitionBuilder {
	tb.spec().Action = action
	return tb
}

func (tb *transitionBuilderImpl) To(target string) TransitionBuilder {
	return tb.source.To(target)
}

func (tb *transitionBuilderImpl) ToSelf() TransitionBuilder {
	return tb.source.ToSelf()
}

func (tb *transitionBuilderImpl) State(name string) StateBuilder {
	return tb.source.State(name)
}

func (tb *transitionBuilderImpl) Child(name string) StateBuilder {
	return tb.source.Child(name)
}

func (tb *transitionBuilderImpl) Build() (*Definition, error) {
	return tb.source.Build()
}
