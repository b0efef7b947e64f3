package dsm

import "strings"

// nodeID is a handle into Machine.nodes. Parents and region children are
// referenced through handles only; the arena owns the nodes.
type nodeID int32

const noNode nodeID = -1

const rootNode nodeID = 0

type node struct {
	id      nodeID
	kind    Kind
	name    string
	state   State
	started bool

	parent nodeID
	region int // index of the region of parent holding this node

	regions     []*region // sorted by index
	transitions map[Kind]*transition
}

func newNode(id nodeID, kind Kind, name string, state State, parent nodeID, region int) *node {
	return &node{
		id:          id,
		kind:        kind,
		name:        name,
		state:       state,
		parent:      parent,
		region:      region,
		transitions: make(map[Kind]*transition),
	}
}

// regionAt returns the region with the given index, nil when absent
func (n *node) regionAt(index int) *region {
	for _, r := range n.regions {
		if r.index == index {
			return r
		}
	}
	return nil
}

// ensureRegion returns the region with the given index, creating it in order
func (n *node) ensureRegion(index int) *region {
	for i, r := range n.regions {
		if r.index == index {
			return r
		}
		if r.index > index {
			nr := newRegion(n.id, index)
			n.regions = append(n.regions[:i], append([]*region{nr}, n.regions[i:]...)...)
			return nr
		}
	}
	nr := newRegion(n.id, index)
	n.regions = append(n.regions, nr)
	return nr
}

// contains reports whether b is a or one of its descendants
func (m *Machine) contains(a, b nodeID) bool {
	for id := b; id != noNode; id = m.nodes[id].parent {
		if id == a {
			return true
		}
	}
	return false
}

// parentRegion returns the region holding n, nil for the root
func (m *Machine) parentRegion(n *node) *region {
	if n.parent == noNode {
		return nil
	}
	return m.nodes[n.parent].regionAt(n.region)
}

func (m *Machine) startNode(id nodeID, evt Event, propagate bool, recurse bool) {
	n := m.nodes[id]
	st := n.state.base()

	n.started = true
	st.trigEvent = evt
	m.runHook(n, "entry", n.state.OnEntry)
	m.observers.NotifyStateEnter(m, n.name)

	if !recurse {
		return
	}
	for _, r := range n.regions {
		m.startRegion(r, evt, propagate, noNode)
	}
}

func (m *Machine) stopNode(id nodeID, evt Event) {
	n := m.nodes[id]
	n.state.base().trigEvent = evt

	for _, r := range n.regions {
		m.stopRegion(r, evt)
	}
	m.runHook(n, "exit", n.state.OnExit)
	m.observers.NotifyStateExit(m, n.name)
	n.started = false
}

// visit walks the active configuration depth first
func (m *Machine) visit(id nodeID, v Visitor) {
	n := m.nodes[id]
	v.Visit(n.state)
	for _, r := range n.regions {
		if r.current != noNode {
			m.visit(r.current, v)
		}
	}
}

func (m *Machine) dump(id nodeID, b *strings.Builder) {
	n := m.nodes[id]
	b.WriteString(n.name)
	if len(n.regions) > 1 {
		b.WriteByte('[')
	}
	for i, r := range n.regions {
		if i > 0 {
			b.WriteByte('|')
		}
		if r.current != noNode {
			b.WriteString("->")
			m.dump(r.current, b)
		}
	}
	if len(n.regions) > 1 {
		b.WriteByte(']')
	}
}
