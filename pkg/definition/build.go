package definition

import (
	"errors"
	"fmt"

	"github.com/anggasct/dsm"
)

// HookFunc runs on entry or exit of a Node. A returned error is reported to
// the node's OnError.
type HookFunc func(n *Node) error

// Bindings resolves the guard, action and hook names used by a definition
type Bindings struct {
	Guards  map[string]dsm.GuardFunc
	Actions map[string]dsm.ActionFunc
	Hooks   map[string]HookFunc
}

func (b Bindings) check(def *Definition) error {
	var errs []error
	checkTransitions := func(owner string, transitions []TransitionSpec) {
		for _, t := range transitions {
			if t.Guard != "" && b.Guards[t.Guard] == nil {
				errs = append(errs, fmt.Errorf("state %q: unknown guard %q", owner, t.Guard))
			}
			if t.Action != "" && b.Actions[t.Action] == nil {
				errs = append(errs, fmt.Errorf("state %q: unknown action %q", owner, t.Action))
			}
		}
	}

	checkTransitions(def.Name, def.Transitions)
	def.Walk(func(s, _ *StateSpec) {
		checkTransitions(s.Name, s.Transitions)
		for _, hook := range []string{s.OnEntry, s.OnExit} {
			if hook != "" && b.Hooks[hook] == nil {
				errs = append(errs, fmt.Errorf("state %q: unknown hook %q", s.Name, hook))
			}
		}
	})
	return errors.Join(errs...)
}

// Node is the state type of machines built from a definition. Nodes are
// registered under dsm.NamedKind of their name and receive dsm.NamedEvent
// events.
type Node struct {
	dsm.BaseState

	spec     *StateSpec
	bindings *Bindings
}

// Spec returns the declaration the node was built from
func (n *Node) Spec() *StateSpec {
	return n.spec
}

func (n *Node) runHook(name string) error {
	if name == "" {
		return nil
	}
	return n.bindings.Hooks[name](n)
}

func (n *Node) OnEntry() error {
	n.BaseState.OnEntry()
	return n.runHook(n.spec.OnEntry)
}

func (n *Node) OnExit() error {
	n.BaseState.OnExit()
	return n.runHook(n.spec.OnExit)
}

// States implements dsm.StatesProvider
func (n *Node) States() []dsm.StateDef {
	defs := make([]dsm.StateDef, 0, len(n.spec.States))
	for _, c := range n.spec.States {
		opts := []dsm.StateOption{dsm.WithKind(Kind(c.Name)), dsm.InRegion(c.Region)}
		if c.Entry {
			opts = append(opts, dsm.Entry())
		}
		defs = append(defs, dsm.Child(&Node{spec: c, bindings: n.bindings}, opts...))
	}
	return defs
}

// Transitions implements dsm.TransitionsProvider
func (n *Node) Transitions() []dsm.TransitionDef {
	defs := make([]dsm.TransitionDef, 0, len(n.spec.Transitions))
	for _, t := range n.spec.Transitions {
		dst := n.Kind()
		if !t.Internal() {
			dst = Kind(t.To)
		}
		opts := []dsm.TransitionOption{dsm.Describe(t.Guard, t.Action)}
		if t.Guard != "" {
			opts = append(opts, dsm.GuardOn(dsm.NoKind, n.bindings.Guards[t.Guard]))
		}
		if t.Action != "" {
			opts = append(opts, dsm.ActionOn(dsm.NoKind, n.bindings.Actions[t.Action]))
		}
		defs = append(defs, dsm.TransitionOf(dsm.NoKind, Kind(t.On), dst, opts...))
	}
	return defs
}

// RegionHistory implements dsm.HistoryProvider
func (n *Node) RegionHistory(region int) dsm.History {
	h, _ := dsm.ParseHistory(n.spec.History[region])
	return h
}

// rootSpec views the document as the root state
func (d *Definition) rootSpec() *StateSpec {
	return &StateSpec{
		Name:        d.Name,
		History:     d.History,
		States:      d.States,
		Transitions: d.Transitions,
	}
}

// Build validates def, resolves its bindings and returns a stopped machine
// named after the definition. The initial store values are copied into a
// dsm.MapStore unless opts provide another store.
func Build(def *Definition, bindings Bindings, opts ...dsm.Option) (*dsm.Machine, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}
	if err := bindings.check(def); err != nil {
		return nil, fmt.Errorf("invalid bindings: %w", err)
	}

	store := dsm.NewMapStore()
	for k, v := range def.Store {
		store.Set(k, v)
	}

	root := &Node{spec: def.rootSpec(), bindings: &bindings}
	all := append([]dsm.Option{dsm.WithName(def.Name), dsm.WithStore(store)}, opts...)
	all = append(all, dsm.WithRoot(root))

	m := dsm.NewMachine(all...)
	if err := m.Setup(); err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", def.Name, err)
	}
	return m, nil
}

// Kind returns the kind a state or event called name is registered under
func Kind(name string) dsm.Kind {
	return dsm.NamedKind(name)
}

// Event creates the event triggering transitions declared with on: name
func Event(name string, payload any) dsm.NamedEvent {
	return dsm.NewEvent(name, payload)
}

// Lookup returns the node called name
func Lookup(m *dsm.Machine, name string) (*Node, bool) {
	n, ok := m.Lookup(Kind(name)).(*Node)
	return n, ok
}

// IsActive reports whether the state called name is active
func IsActive(m *dsm.Machine, name string) bool {
	return m.IsActive(Kind(name))
}
