package dsm

// ProcessEvent dispatches evt, then runs everything posted meanwhile. It
// reports whether some transition consumed evt. Calls made while another
// event is being processed are queued like PostEvent and report false.
func (m *Machine) ProcessEvent(evt Event) bool {
	if !m.Started() {
		return false
	}
	if m.processing {
		m.enqueue(queued{event: evt})
		return false
	}

	var handled bool
	m.run(func() {
		handled = m.dispatchRoot(evt)
	})
	return handled
}

// PostEvent queues evt behind the event being processed. Outside of event
// processing it is ProcessEvent.
func (m *Machine) PostEvent(evt Event) {
	if !m.Started() {
		return
	}
	if m.processing {
		m.enqueue(queued{event: evt})
		return
	}
	m.ProcessEvent(evt)
}

// DeferEvent keeps evt queued until some active state handles it. Outside of
// event processing evt is tried at once and only kept if nothing handled it.
func (m *Machine) DeferEvent(evt Event) {
	if !m.Started() {
		return
	}
	if m.processing {
		m.enqueue(queued{event: evt, deferred: true})
		return
	}
	if m.ProcessEvent(evt) || !m.Started() {
		return
	}
	m.pending = append(m.pending, queued{event: evt, deferred: true})
	m.observers.NotifyEventQueued(m, evt, true)
}

// Transit performs an anonymous transition from the active configuration to
// dst. The optional event is recorded as the triggering event.
func (m *Machine) Transit(dst Kind, evt ...Event) {
	var e Event
	if len(evt) > 0 {
		e = evt[0]
	}
	m.transitFrom(rootNode, dst, e)
}

// TransitWith is Transit with an explicit triggering event
func (m *Machine) TransitWith(dst Kind, evt Event) {
	m.transitFrom(rootNode, dst, evt)
}

// Pending returns the number of posted and deferred items waiting
func (m *Machine) Pending() int {
	return len(m.posted) + len(m.pending)
}

func (m *Machine) transitFrom(from nodeID, dst Kind, evt Event) {
	if !m.Started() {
		return
	}
	d, ok := m.stateNode(dst)
	if !ok {
		m.logf(LevelWarning, "Transit to unknown state %s ignored", dst)
		return
	}
	if d.started {
		return
	}

	var (
		data  transitionData
		valid bool
	)
	if from == rootNode {
		data, valid = m.activeData(d.id)
	} else {
		data, valid = m.pathData(from, d.id)
	}
	if !valid {
		m.logf(LevelWarning, "Transit from %s to %s ignored: no path", m.nodes[from].name, d.name)
		return
	}

	cb := func() {
		// the configuration may have changed while the transit was queued
		if !m.Started() || m.nodes[data.dst].started {
			return
		}
		src := m.nodes[from].name
		if from == rootNode {
			if cur := m.parentRegion(m.nodes[data.dstOutermost]).current; cur != noNode {
				src = m.nodes[cur].name
			}
		}
		if m.transit(rootNode, evt, data, false) {
			m.observers.NotifyTransition(m, src, m.nodes[data.dst].name, evt)
		}
	}
	if m.processing {
		m.enqueue(queued{run: cb})
		return
	}
	m.run(cb)
}

func (m *Machine) enqueue(q queued) {
	m.posted = append(m.posted, q)
	if q.run == nil {
		m.observers.NotifyEventQueued(m, q.event, q.deferred)
	}
}

// run executes fn as one processing step and drains the queues afterwards
func (m *Machine) run(fn func()) {
	m.processing = true
	defer func() {
		m.processing = false
	}()

	fn()
	m.drain()
}

// drain moves posted items behind the pending ones and walks them in order.
// Deferred events nobody handled stay pending. It repeats until nothing new
// was posted.
func (m *Machine) drain() {
	epoch := m.epoch
	for {
		m.pending = append(m.pending, m.posted...)
		m.posted = nil

		items := m.pending
		m.pending = nil
		for i, q := range items {
			if m.epoch != epoch {
				return
			}
			if q.run != nil {
				q.run()
				continue
			}
			if !m.dispatchRoot(q.event) && q.deferred {
				m.pending = append(m.pending, items[i])
			}
		}

		if len(m.posted) == 0 {
			return
		}
	}
}

func (m *Machine) dispatchRoot(evt Event) bool {
	if !m.Started() {
		return false
	}
	handled := m.dispatch(rootNode, evt, KindFor(evt))
	if !handled {
		m.observers.NotifyEventRejected(m, evt, "no transition accepted the event")
	}
	return handled
}

// dispatch offers evt to the node's own transition first. If it is missing
// or declines, every active child gets the event and the results are ORed.
func (m *Machine) dispatch(id nodeID, evt Event, k Kind) bool {
	n := m.nodes[id]
	if t, ok := n.transitions[k]; ok && m.fire(t, evt) {
		return true
	}

	handled := false
	for _, r := range n.regions {
		if r.current != noNode && m.dispatch(r.current, evt, k) {
			handled = true
		}
	}
	return handled
}
