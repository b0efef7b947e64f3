package dsm

import "fmt"

// GuardFunc decides whether a transition fires. It receives the host state.
type GuardFunc func(host State, evt Event) bool

// ActionFunc runs when a transition fires, before the states change.
type ActionFunc func(host State, evt Event) error

// TransitionDef describes a transition to register with Machine.AddTransition
// or to return from TransitionsProvider.Transitions.
type TransitionDef struct {
	source      Kind
	event       Kind
	destination Kind
	self        bool // destination is the source, resolved at registration

	host     Kind
	hostType Kind
	guard    GuardFunc
	action   ActionFunc
	err      error

	GuardName  string
	ActionName string
}

// TransitionOption configures a TransitionDef
type TransitionOption func(*TransitionDef)

// Transition declares an external transition from Src to Dst on events of
// type E. Src == Dst declares an internal transition.
func Transition[Src State, E any, Dst State](opts ...TransitionOption) TransitionDef {
	return TransitionOf(KindOf[Src](), KindOf[E](), KindOf[Dst](), opts...)
}

// Internal declares a transition of Src on E that runs guard and action only
func Internal[Src State, E any](opts ...TransitionOption) TransitionDef {
	k := KindOf[Src]()
	return TransitionOf(k, KindOf[E](), k, opts...)
}

// On declares a transition owned by the providing state
func On[E any, Dst State](opts ...TransitionOption) TransitionDef {
	return TransitionOf(NoKind, KindOf[E](), KindOf[Dst](), opts...)
}

// OnSelf declares an internal transition owned by the providing state
func OnSelf[E any](opts ...TransitionOption) TransitionDef {
	def := TransitionOf(NoKind, KindOf[E](), NoKind, opts...)
	def.self = true
	return def
}

// TransitionOf declares a transition between runtime kinds. A NoKind source
// is filled with the providing state during Setup.
func TransitionOf(src, evt, dst Kind, opts ...TransitionOption) TransitionDef {
	def := TransitionDef{
		source:      src,
		event:       evt,
		destination: dst,
	}
	for _, opt := range opts {
		opt(&def)
	}
	return def
}

// Source returns the source kind
func (d TransitionDef) Source() Kind { return d.source }

// Event returns the event kind
func (d TransitionDef) Event() Kind { return d.event }

// Destination returns the destination kind
func (d TransitionDef) Destination() Kind {
	if d.self {
		return d.source
	}
	return d.destination
}

func (d *TransitionDef) bindHost(k Kind, typed bool) {
	switch {
	case typed && d.hostType == NoKind && d.host == NoKind:
		d.hostType = k
	case !typed && d.host == NoKind && d.hostType == NoKind:
		d.host = k
	case typed && d.hostType == k, !typed && d.host == k:
	default:
		d.err = fmt.Errorf("guard and action are bound to different hosts")
	}
}

// Guard attaches a guard evaluated on the nearest state of type H containing
// the source, which is the source itself in the common case.
func Guard[H State, E any](fn func(H, E) bool) TransitionOption {
	return func(d *TransitionDef) {
		d.bindHost(KindOf[H](), true)
		d.guard = func(host State, evt Event) bool {
			h, _ := host.(H)
			e, _ := evt.(E)
			return fn(h, e)
		}
	}
}

// Action attaches an action run on the nearest state of type H containing the source
func Action[H State, E any](fn func(H, E) error) TransitionOption {
	return func(d *TransitionDef) {
		d.bindHost(KindOf[H](), true)
		d.action = func(host State, evt Event) error {
			h, _ := host.(H)
			e, _ := evt.(E)
			return fn(h, e)
		}
	}
}

// GuardOn attaches a guard evaluated on the state registered as host.
// NoKind means the source.
func GuardOn(host Kind, fn GuardFunc) TransitionOption {
	return func(d *TransitionDef) {
		d.bindHost(host, false)
		d.guard = fn
	}
}

// ActionOn attaches an action run on the state registered as host.
// NoKind means the source.
func ActionOn(host Kind, fn ActionFunc) TransitionOption {
	return func(d *TransitionDef) {
		d.bindHost(host, false)
		d.action = fn
	}
}

// Describe labels the guard and action, used by visualizations and logs
func Describe(guard, action string) TransitionOption {
	return func(d *TransitionDef) {
		d.GuardName = guard
		d.ActionName = action
	}
}

// transitionData is the resolved path of an external transition
type transitionData struct {
	commonAncestor nodeID
	srcOutermost   nodeID
	dstOutermost   nodeID
	src            nodeID
	dst            nodeID
}

type transition struct {
	def    TransitionDef
	src    nodeID
	host   nodeID
	dst    nodeID
	self   bool
	data   transitionData
	guard  GuardFunc
	action ActionFunc
}

// safeEvaluateGuard safely evaluates a guard function with panic recovery
func safeEvaluateGuard(guard GuardFunc, host State, evt Event) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("guard panic: %v", r)
		}
	}()

	return guard(host, evt), nil
}

// safeExecuteAction safely executes an action function with panic recovery
func safeExecuteAction(action ActionFunc, host State, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()

	return action(host, evt)
}

// fire runs a matched transition. It reports whether the transition was taken.
func (m *Machine) fire(t *transition, evt Event) bool {
	src := m.nodes[t.src]
	host := m.nodes[t.host].state

	if t.guard != nil {
		ok, err := safeEvaluateGuard(t.guard, host, evt)
		if err != nil {
			m.reportError(src, NewHookError("guard", src.name, err))
			return false
		}
		m.observers.NotifyGuardEvaluation(m, src.name, m.nodes[t.dst].name, evt, ok)
		if !ok {
			return false
		}
	}

	if t.action != nil {
		if err := safeExecuteAction(t.action, host, evt); err != nil {
			m.reportError(src, NewHookError("action", src.name, err))
			return false
		}
	}

	if !t.self {
		m.transit(rootNode, evt, t.data, false)
	}
	m.observers.NotifyTransition(m, src.name, m.nodes[t.dst].name, evt)
	return true
}

// transit walks the active configuration down to the common ancestor, then
// exits the source side and enters the destination side.
func (m *Machine) transit(id nodeID, evt Event, d transitionData, p bool) bool {
	if id == d.commonAncestor {
		// srcOutermost and dstOutermost share a region. Its current child is
		// srcOutermost unless a queued transit ran after the source moved on.
		r := m.parentRegion(m.nodes[d.dstOutermost])
		if cur := r.current; cur != noNode && m.nodes[cur].started {
			m.stopNode(cur, evt)
		}
		prop := propagate(p, r)
		m.startAncestors(d.dst, evt, d, noNode, &prop)
		return true
	}

	for _, r := range m.nodes[id].regions {
		if r.current == noNode {
			continue
		}
		if m.transit(r.current, evt, d, propagate(p, r)) {
			return true
		}
	}
	return false
}

// startAncestors enters every state between the common ancestor and id,
// outermost first, then starts id through its region.
func (m *Machine) startAncestors(id nodeID, evt Event, d transitionData, previous nodeID, p *bool) {
	if id == d.commonAncestor {
		return
	}
	n := m.nodes[id]
	m.startAncestors(n.parent, evt, d, id, p)

	r := m.parentRegion(n)
	prop := propagate(*p, r)
	if id == d.dst {
		m.startRegion(r, evt, prop, id)
		return
	}

	r.current = id
	m.startNode(id, evt, false, false)
	for _, nr := range n.regions {
		if previous != noNode && nr.index == m.nodes[previous].region {
			continue
		}
		m.startRegion(nr, evt, prop, noNode)
	}
	*p = prop
}

// pathData resolves a transition from src to dst. It fails when one is
// nested in the other or they live in orthogonal regions.
func (m *Machine) pathData(src, dst nodeID) (transitionData, bool) {
	for cand := dst; ; {
		c := m.nodes[cand]
		if c.parent == noNode {
			return transitionData{}, false
		}
		r := m.parentRegion(c)
		for _, child := range r.children {
			if child != cand && m.contains(child, src) {
				return transitionData{
					commonAncestor: c.parent,
					srcOutermost:   child,
					dstOutermost:   cand,
					src:            src,
					dst:            dst,
				}, true
			}
		}
		cand = c.parent
	}
}

// activeData resolves an anonymous transition to dst from whatever is active
// in the nearest started ancestor's region.
func (m *Machine) activeData(dst nodeID) (transitionData, bool) {
	for cand := dst; ; {
		c := m.nodes[cand]
		if c.parent == noNode {
			return transitionData{}, false
		}
		if p := m.nodes[c.parent]; p.started {
			cur := m.parentRegion(c).current
			return transitionData{
				commonAncestor: c.parent,
				srcOutermost:   cur,
				dstOutermost:   cand,
				src:            cur,
				dst:            dst,
			}, true
		}
		cand = c.parent
	}
}
