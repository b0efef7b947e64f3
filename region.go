package dsm

import "fmt"

// History selects what a region resumes when it is entered again
type History int

const (
	// NoHistory enters the entry child every time
	NoHistory History = iota
	// Shallow resumes the last active child, its own regions start fresh
	Shallow
	// Deep resumes the whole last active sub-configuration
	Deep
)

func (h History) String() string {
	switch h {
	case NoHistory:
		return "none"
	case Shallow:
		return "shallow"
	case Deep:
		return "deep"
	default:
		return fmt.Sprintf("history(%d)", int(h))
	}
}

// ParseHistory converts "none", "shallow" or "deep" into a History
func ParseHistory(name string) (History, error) {
	switch name {
	case "", "none":
		return NoHistory, nil
	case "shallow":
		return Shallow, nil
	case "deep":
		return Deep, nil
	}
	return NoHistory, fmt.Errorf("unknown history mode %q", name)
}

type region struct {
	index int
	owner nodeID

	children    []nodeID // insertion order
	entry       nodeID
	current     nodeID
	lastVisited nodeID
	history     History
}

func newRegion(owner nodeID, index int) *region {
	return &region{
		index:       index,
		owner:       owner,
		entry:       noNode,
		current:     noNode,
		lastVisited: noNode,
	}
}

// propagate reports whether history is forced on the regions below r
func propagate(p bool, r *region) bool {
	return p || (r != nil && r.history == Deep)
}

func (m *Machine) startRegion(r *region, evt Event, p bool, explicit nodeID) {
	switch {
	case explicit != noNode:
		r.current = noNode
		if e := m.nodes[explicit]; e.parent == r.owner && e.region == r.index {
			r.current = explicit
		}
	case r.lastVisited != noNode && (r.history != NoHistory || p):
		r.current = r.lastVisited
	default:
		r.current = r.entry
	}

	if r.current != noNode {
		m.startNode(r.current, evt, propagate(p, r), true)
	}
}

// stopRegion always records the last active child. Whether it is resumed is
// decided on the next start.
func (m *Machine) stopRegion(r *region, evt Event) {
	if r.current != noNode {
		m.stopNode(r.current, evt)
	}
	r.lastVisited = r.current
	r.current = noNode
}

// deepAbove reports whether r or a region on the path above it has deep history
func (m *Machine) deepAbove(r *region) bool {
	for {
		if r.history == Deep {
			return true
		}
		owner := m.nodes[r.owner]
		r = m.parentRegion(owner)
		if r == nil {
			return false
		}
	}
}

// deepBelow reports whether a region of some descendant of r has deep history
func (m *Machine) deepBelow(r *region) bool {
	for _, c := range r.children {
		for _, cr := range m.nodes[c].regions {
			if cr.history == Deep || m.deepBelow(cr) {
				return true
			}
		}
	}
	return false
}

func (m *Machine) setRegionHistory(n *node, r *region, h History) error {
	switch h {
	case Deep:
		if m.deepAbove(r) || m.deepBelow(r) {
			return NewConstructionError(ErrCodeHistoryConflict, n.name,
				fmt.Sprintf("cannot set deep history on region %d: deep history already set on this path", r.index))
		}
	case Shallow:
		if m.deepAbove(r) {
			return NewConstructionError(ErrCodeHistoryConflict, n.name,
				fmt.Sprintf("cannot set shallow history on region %d: deep history already set above", r.index))
		}
	}
	r.history = h
	r.lastVisited = noNode
	return nil
}

func (m *Machine) clearRegionHistory(r *region, recursive bool, reset bool) {
	if reset {
		r.history = NoHistory
	}
	r.lastVisited = noNode
	if !recursive {
		return
	}
	for _, c := range r.children {
		for _, cr := range m.nodes[c].regions {
			m.clearRegionHistory(cr, true, reset)
		}
	}
}
