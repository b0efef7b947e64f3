package dsm

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Machine owns a state tree and drives it. The root of the tree is the
// machine's own state, set with WithRoot. A Machine is not safe for
// concurrent use; all calls must come from one goroutine.
type Machine struct {
	id        string
	name      string
	logger    Logger
	module    string
	store     any
	observers *ObserverManager
	rootState State

	nodes  []*node
	byKind map[Kind]nodeID

	processing bool
	posted     []queued
	pending    []queued
	epoch      int
}

type machineRoot struct {
	BaseState
}

// NewMachine creates a stopped machine holding only its root state
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		id:        uuid.New().String(),
		logger:    NopLogger,
		module:    DefaultLogModule,
		observers: NewObserverManager(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMapStore()
	}
	if m.rootState == nil {
		m.rootState = &machineRoot{}
	}
	m.initRoot()
	return m
}

func (m *Machine) initRoot() {
	st := m.rootState
	kind := KindFor(st)
	if m.name == "" {
		m.name = typeName(reflect.TypeOf(st))
	}

	b := st.base()
	b.m = m
	b.id = rootNode
	b.kind = kind
	b.name = m.name
	b.trigEvent = nil

	m.nodes = []*node{newNode(rootNode, kind, m.name, st, noNode, 0)}
	m.byKind = map[Kind]nodeID{kind: rootNode}
}

// ID returns the machine instance identifier
func (m *Machine) ID() string {
	return m.id
}

// Name returns the machine name, also the name of the root state
func (m *Machine) Name() string {
	return m.name
}

// Kind returns the kind of the root state
func (m *Machine) Kind() Kind {
	return m.nodes[rootNode].kind
}

// Root returns the root state
func (m *Machine) Root() State {
	return m.rootState
}

// Store returns the user store shared by every state
func (m *Machine) Store() any {
	return m.store
}

// Started reports whether the machine is running
func (m *Machine) Started() bool {
	return m.nodes[rootNode].started
}

// Processing reports whether an event is being dispatched
func (m *Machine) Processing() bool {
	return m.processing
}

// AddObserver registers an observer
func (m *Machine) AddObserver(observer Observer) {
	m.observers.AddObserver(observer)
}

// RemoveObserver unregisters an observer
func (m *Machine) RemoveObserver(observer Observer) {
	m.observers.RemoveObserver(observer)
}

func (m *Machine) logf(level Level, format string, args ...any) {
	m.logger.Write(m.module, level, fmt.Sprintf(format, args...))
}

// reportError hands err to the state's OnError and to observers
func (m *Machine) reportError(n *node, err error) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.logf(LevelError, "OnError of state %s panicked: %v", n.name, r)
			}
		}()
		n.state.OnError(err)
	}()
	m.observers.NotifyError(m, err)
}

// constructionFailed routes a tree edit failure to the root state and returns it
func (m *Machine) constructionFailed(err error) error {
	m.reportError(m.nodes[rootNode], err)
	return err
}

func (m *Machine) runHook(n *node, hook string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panic: %v", hook, r)
			}
		}()
		return fn()
	}()
	if err != nil {
		m.reportError(n, NewHookError(hook, n.name, err))
	}
}

// AddState adds state to the tree. By default it becomes a non-entry child
// in region 0 of the root.
func (m *Machine) AddState(state State, opts ...StateOption) error {
	cfg := stateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return m.addState(state, cfg)
}

func (m *Machine) addState(state State, cfg stateConfig) error {
	b := state.base()
	kind := cfg.kind
	if kind == NoKind {
		kind = kinds.forType(reflect.TypeOf(state))
	}
	name := cfg.name
	if name == "" {
		name = kind.String()
	}

	if m.Started() {
		return m.constructionFailed(NewMachineStartedError(name, "add states"))
	}
	if b.m != nil {
		return m.constructionFailed(NewConstructionError(ErrCodeDuplicateState, name, "state instance is already part of a machine"))
	}
	if _, ok := m.byKind[kind]; ok {
		return m.constructionFailed(NewDuplicateStateError(name))
	}

	parentID := rootNode
	if cfg.hasParent {
		id, ok := m.byKind[cfg.parent]
		if !ok {
			return m.constructionFailed(NewParentNotFoundError(name, cfg.parent.String()))
		}
		parentID = id
	}
	parent := m.nodes[parentID]

	existing := parent.regionAt(cfg.region)
	if cfg.entry && existing != nil && existing.entry != noNode {
		return m.constructionFailed(NewConstructionError(ErrCodeSecondEntry, name,
			fmt.Sprintf("region %d of '%s' already has entry state '%s'", cfg.region, parent.name, m.nodes[existing.entry].name)))
	}

	id := nodeID(len(m.nodes))
	n := newNode(id, kind, name, state, parentID, cfg.region)
	m.nodes = append(m.nodes, n)
	m.byKind[kind] = id

	r := parent.ensureRegion(cfg.region)
	r.children = append(r.children, id)
	if cfg.entry {
		r.entry = id
	}

	b.m = m
	b.id = id
	b.kind = kind
	b.name = name
	b.trigEvent = nil
	return nil
}

// AddTransition registers def. Failures are returned and reported to the
// root state's OnError.
func (m *Machine) AddTransition(def TransitionDef) error {
	if m.Started() {
		return m.constructionFailed(NewTransitionError(ErrCodeMachineStarted, def.source.String(), def.event.String(),
			def.Destination().String(), "cannot add transitions while the machine is started"))
	}
	t, err := m.resolveTransition(def)
	if err != nil {
		return m.constructionFailed(err)
	}
	m.nodes[t.src].transitions[def.event] = t
	return nil
}

func (m *Machine) resolveTransition(def TransitionDef) (*transition, error) {
	fail := func(code ErrorCode, reason string) error {
		return NewTransitionError(code, def.source.String(), def.event.String(), def.Destination().String(), reason)
	}

	if def.err != nil {
		return nil, fail(ErrCodeHostMismatch, def.err.Error())
	}
	src, ok := m.byKind[def.source]
	if !ok {
		return nil, fail(ErrCodeSourceNotFound, "source state not found")
	}
	dst, ok := m.byKind[def.Destination()]
	if !ok {
		return nil, fail(ErrCodeDestinationNotFound, "destination state not found")
	}
	host, err := m.resolveHost(def, src)
	if err != nil {
		return nil, err
	}
	if _, ok := m.nodes[src].transitions[def.event]; ok {
		return nil, fail(ErrCodeDuplicateTransition, "a transition for this event already exists on the source")
	}

	t := &transition{
		def:    def,
		src:    src,
		host:   host,
		dst:    dst,
		self:   src == dst,
		guard:  def.guard,
		action: def.action,
	}
	if !t.self {
		data, ok := m.pathData(src, dst)
		if !ok {
			return nil, fail(ErrCodeImpossibleTransition, "states are nested or in orthogonal regions")
		}
		t.data = data
	}
	return t, nil
}

func (m *Machine) resolveHost(def TransitionDef, src nodeID) (nodeID, error) {
	fail := func(code ErrorCode, reason string) error {
		return NewTransitionError(code, def.source.String(), def.event.String(), def.Destination().String(), reason)
	}

	switch {
	case def.host != NoKind:
		host, ok := m.byKind[def.host]
		if !ok {
			return noNode, fail(ErrCodeHostNotFound, fmt.Sprintf("host '%s' not found", def.host))
		}
		if !m.contains(host, src) {
			return noNode, fail(ErrCodeHostNotAncestor, fmt.Sprintf("host '%s' does not contain the source", def.host))
		}
		return host, nil
	case def.hostType != NoKind:
		for id := src; id != noNode; id = m.nodes[id].parent {
			if typeKind(m.nodes[id].state) == def.hostType {
				return id, nil
			}
		}
		for _, n := range m.nodes {
			if typeKind(n.state) == def.hostType {
				return noNode, fail(ErrCodeHostNotAncestor, fmt.Sprintf("host '%s' does not contain the source", def.hostType))
			}
		}
		return noNode, fail(ErrCodeHostNotFound, fmt.Sprintf("host '%s' not found", def.hostType))
	default:
		return src, nil
	}
}

// Setup builds the tree declared through StatesProvider, TransitionsProvider
// and HistoryProvider, starting from the root. It is a no-op while started.
func (m *Machine) Setup() error {
	if m.Started() {
		return nil
	}
	var errs []error
	m.setupStates(rootNode, &errs)

	// children are appended after their parent, so nodes is in tree order
	for _, n := range slices.Clone(m.nodes) {
		tp, ok := n.state.(TransitionsProvider)
		if !ok {
			continue
		}
		for _, def := range tp.Transitions() {
			if def.source == NoKind {
				def.source = n.kind
			}
			if def.self {
				def.destination = def.source
				def.self = false
			}
			if err := m.AddTransition(def); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, n := range m.nodes {
		hp, ok := n.state.(HistoryProvider)
		for _, r := range n.regions {
			h := NoHistory
			if ok {
				h = hp.RegionHistory(r.index)
			}
			if err := m.setRegionHistory(n, r, h); err != nil {
				m.logf(LevelError, "Failed to set history: %v", err)
				errs = append(errs, m.constructionFailed(err))
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Machine) setupStates(id nodeID, errs *[]error) {
	sp, ok := m.nodes[id].state.(StatesProvider)
	if !ok {
		return
	}
	for _, def := range sp.States() {
		cfg := stateConfig{parent: m.nodes[id].kind, hasParent: true}
		for _, opt := range def.Options {
			opt(&cfg)
		}
		if err := m.addState(def.State, cfg); err != nil {
			*errs = append(*errs, err)
			continue
		}
		m.setupStates(def.State.base().id, errs)
	}
}

// Teardown removes every state and transition below the root. It is a
// no-op while started.
func (m *Machine) Teardown() {
	if m.Started() {
		return
	}
	for _, n := range m.nodes[1:] {
		b := n.state.base()
		b.m = nil
		b.id = 0
		b.trigEvent = nil
	}
	m.initRoot()
}

// Start enters the root and every entry path below it. It is idempotent.
func (m *Machine) Start() {
	if m.Started() {
		return
	}
	m.run(func() {
		m.startNode(rootNode, nil, false, true)
		m.observers.NotifyMachineStarted(m)
	})
}

// Stop exits every active state, innermost first. It is idempotent.
func (m *Machine) Stop() {
	if !m.Started() {
		return
	}
	m.stopNode(rootNode, nil)
	m.observers.NotifyMachineStopped(m)
}

// Close stops the machine, tears the tree down and drops queued work
func (m *Machine) Close() {
	m.Stop()
	m.Teardown()
	m.posted = nil
	m.pending = nil
	m.epoch++
}

func (m *Machine) stateNode(k Kind) (*node, bool) {
	id, ok := m.byKind[k]
	if !ok {
		return nil, false
	}
	return m.nodes[id], true
}

// regionsOf returns the regions of n selected by indexes, all when empty
func (m *Machine) regionsOf(n *node, op string, indexes []int) []*region {
	if len(indexes) == 0 {
		return n.regions
	}
	var out []*region
	for _, i := range indexes {
		r := n.regionAt(i)
		if r == nil {
			m.logf(LevelError, "Failed to %s on state '%s' and region %d. Region not found", op, n.name, i)
			m.reportError(m.nodes[rootNode], NewConstructionError(ErrCodeRegionNotFound, n.name, fmt.Sprintf("region %d not found", i)))
			continue
		}
		out = append(out, r)
	}
	return out
}

// SetHistory sets the history mode of the regions of state k, all regions or
// only the listed ones. Rejected modes are logged and left unchanged.
func (m *Machine) SetHistory(k Kind, h History, regions ...int) {
	if m.Started() {
		return
	}
	n, ok := m.stateNode(k)
	if !ok {
		return
	}
	for _, r := range m.regionsOf(n, "set history", regions) {
		if err := m.setRegionHistory(n, r, h); err != nil {
			m.logf(LevelError, "Failed to set %s history on state '<%s, %d>': %v", h, n.name, r.index, err)
			m.reportError(m.nodes[rootNode], err)
		}
	}
}

// ResetHistory removes the history mode and last visited children of state k
func (m *Machine) ResetHistory(k Kind, recursive bool, regions ...int) {
	if m.Started() {
		return
	}
	n, ok := m.stateNode(k)
	if !ok {
		return
	}
	for _, r := range m.regionsOf(n, "reset history", regions) {
		m.clearRegionHistory(r, recursive, true)
	}
}

// ClearHistory forgets the last visited children of state k, keeping the mode.
// Allowed while running.
func (m *Machine) ClearHistory(k Kind, recursive bool, regions ...int) {
	n, ok := m.stateNode(k)
	if !ok {
		return
	}
	for _, r := range m.regionsOf(n, "clear history", regions) {
		m.clearRegionHistory(r, recursive, false)
	}
}

// History returns the history mode of a region of state k
func (m *Machine) History(k Kind, region int) History {
	n, ok := m.stateNode(k)
	if !ok {
		return NoHistory
	}
	if r := n.regionAt(region); r != nil {
		return r.history
	}
	return NoHistory
}

// Lookup returns the state registered as k, nil if absent
func (m *Machine) Lookup(k Kind) State {
	if n, ok := m.stateNode(k); ok {
		return n.state
	}
	return nil
}

// IsActive reports whether the state registered as k is active
func (m *Machine) IsActive(k Kind) bool {
	n, ok := m.stateNode(k)
	return ok && n.started
}

// CheckStates reports whether chain names active states, each a direct child
// of the previous one. The first may be any active state, including the root.
func (m *Machine) CheckStates(chain ...Kind) bool {
	if len(chain) == 0 {
		return false
	}
	prev := noNode
	seen := make(map[nodeID]bool, len(chain))
	for _, k := range chain {
		n, ok := m.stateNode(k)
		if !ok || !n.started || seen[n.id] {
			return false
		}
		if prev != noNode && n.parent != prev {
			return false
		}
		seen[n.id] = true
		prev = n.id
	}
	return true
}

// Visitor receives the active states of a machine
type Visitor interface {
	Visit(s State)
}

// VisitorFunc adapts a function to the Visitor interface
type VisitorFunc func(s State)

// Visit implements Visitor
func (f VisitorFunc) Visit(s State) {
	f(s)
}

// Visit calls v on the root and every active state, parents before children,
// regions in index order.
func (m *Machine) Visit(v Visitor) {
	if !m.Started() {
		return
	}
	m.visit(rootNode, v)
}

// ActiveStates returns the names of the active states in visit order
func (m *Machine) ActiveStates() []string {
	var names []string
	m.Visit(VisitorFunc(func(s State) {
		names = append(names, s.base().name)
	}))
	return names
}

// String dumps the active configuration, e.g. "Player->Playing[->Normal|->Audio]"
func (m *Machine) String() string {
	var b strings.Builder
	if !m.Started() {
		b.WriteString(m.name)
		return b.String()
	}
	m.dump(rootNode, &b)
	return b.String()
}

// typeKind returns the kind of the Go type of s, ignoring WithKind overrides
func typeKind(s State) Kind {
	return kinds.forType(reflect.TypeOf(s))
}
