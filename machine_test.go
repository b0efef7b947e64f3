package dsm

import (
	"testing"
)

type outer struct{ tracked }

func (o *outer) States() []StateDef {
	return []StateDef{
		Child(&S2{}, Entry()),
		Child(&S3{}),
	}
}

func (o *outer) Transitions() []TransitionDef {
	return []TransitionDef{
		On[E2, *S0](),
		Transition[*S2, E3, *S3](),
	}
}

func (o *outer) RegionHistory(region int) History {
	return Shallow
}

type setupRoot struct{ tracked }

func (r *setupRoot) States() []StateDef {
	return []StateDef{
		Child(&S0{}, Entry()),
		Child(&outer{}),
	}
}

func (r *setupRoot) Transitions() []TransitionDef {
	return []TransitionDef{
		TransitionOf(KindOf[*S0](), KindOf[E1](), KindOf[*outer]()),
	}
}

func TestMachine_New(t *testing.T) {
	m, j := newTestMachine()

	if m.ID() == "" {
		t.Error("Expected a generated machine ID")
	}
	if m.Name() != "testRoot" {
		t.Errorf("Expected name testRoot, got %s", m.Name())
	}
	if m.Kind() != KindOf[*testRoot]() {
		t.Errorf("Expected root kind %s, got %s", KindOf[*testRoot](), m.Kind())
	}
	if m.Started() {
		t.Error("Expected a new machine to be stopped")
	}
	if m.Store() != j {
		t.Error("Expected the configured store")
	}

	named := NewMachine(WithName("player"), WithID("id-1"))
	if named.Name() != "player" || named.ID() != "id-1" {
		t.Errorf("Expected player/id-1, got %s/%s", named.Name(), named.ID())
	}
	if _, ok := StoreAs[*MapStore](named); !ok {
		t.Error("Expected the default store to be a MapStore")
	}
}

func TestMachine_StartStop(t *testing.T) {
	m, j := newTestMachine()
	observer := NewTestObserver()
	m.AddObserver(observer)
	mustAdd(m, Child(&S0{}, Entry()), Child(&S1{}))

	m.Start()
	m.Start()
	if !m.Started() {
		t.Fatal("Expected machine to be started")
	}
	if j.String() != "+testRoot +S0" {
		t.Errorf("Expected '+testRoot +S0', got '%s'", j)
	}

	j.reset()
	m.Stop()
	m.Stop()
	if m.Started() {
		t.Fatal("Expected machine to be stopped")
	}
	if j.String() != "-S0 -testRoot" {
		t.Errorf("Expected '-S0 -testRoot', got '%s'", j)
	}
	if observer.Started != 1 || observer.Stopped != 1 {
		t.Errorf("Expected one start and one stop notification, got %d/%d", observer.Started, observer.Stopped)
	}
}

func TestMachine_StartWithoutEntry(t *testing.T) {
	m, j := newTestMachine()
	mustAdd(m, Child(&S0{}), Child(&S1{}))

	m.Start()
	if j.String() != "+testRoot" {
		t.Errorf("Expected only the root to be entered, got '%s'", j)
	}
	if m.IsActive(KindOf[*S0]()) || m.IsActive(KindOf[*S1]()) {
		t.Error("Expected no active child without an entry state")
	}
}

func TestMachine_AddStateErrors(t *testing.T) {
	tests := []struct {
		name string
		add  func(m *Machine) error
		code ErrorCode
	}{
		{
			name: "duplicate kind",
			add: func(m *Machine) error {
				return m.AddState(&S0{})
			},
			code: ErrCodeDuplicateState,
		},
		{
			name: "parent not found",
			add: func(m *Machine) error {
				return m.AddState(&S1{}, Under(KindOf[*S5]()))
			},
			code: ErrCodeParentNotFound,
		},
		{
			name: "second entry",
			add: func(m *Machine) error {
				return m.AddState(&S1{}, Entry())
			},
			code: ErrCodeSecondEntry,
		},
		{
			name: "started",
			add: func(m *Machine) error {
				m.Start()
				return m.AddState(&S1{})
			},
			code: ErrCodeMachineStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, j := newTestMachine()
			mustAdd(m, Child(&S0{}, Entry()))

			err := tt.add(m)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !IsConstructionError(err) {
				t.Errorf("Expected a ConstructionError, got %T", err)
			}
			if GetErrorCode(err) != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, GetErrorCode(err))
			}
			if len(j.errs) != 1 || j.errs[0] != err {
				t.Errorf("Expected the error to reach the root OnError, got %v", j.errs)
			}
		})
	}
}

func TestMachine_EntryPerRegion(t *testing.T) {
	m, _ := newTestMachine()
	mustAdd(m,
		Child(&S0{}, Entry()),
		Child(&S1{}, Under(KindOf[*S0]()), Entry()),
		Child(&S2{}, Under(KindOf[*S0]()), InRegion(1), Entry()),
	)

	if err := m.AddState(&S3{}, Under(KindOf[*S0]()), InRegion(1), Entry()); err == nil {
		t.Error("Expected a second entry in region 1 to be rejected")
	}
	if err := m.AddState(&S3{}, Under(KindOf[*S0]()), InRegion(1)); err != nil {
		t.Errorf("Expected a non-entry state to be accepted, got %v", err)
	}
}

func TestMachine_CheckStates(t *testing.T) {
	m, _ := newTestMachine()
	root := m.Kind()
	s0, s1, s2 := KindOf[*S0](), KindOf[*S1](), KindOf[*S2]()
	mustAdd(m,
		Child(&S0{}, Entry()),
		Child(&S1{}, Under(s0), Entry()),
		Child(&S2{}, Under(s0), InRegion(1), Entry()),
	)

	if m.CheckStates(s0) {
		t.Error("Expected CheckStates to fail before start")
	}

	m.Start()

	tests := []struct {
		name  string
		chain []Kind
		want  bool
	}{
		{"empty", nil, false},
		{"root", []Kind{root}, true},
		{"root and child", []Kind{root, s0}, true},
		{"full path", []Kind{root, s0, s1}, true},
		{"nested region 0", []Kind{s0, s1}, true},
		{"nested region 1", []Kind{s0, s2}, true},
		{"siblings", []Kind{s1, s2}, false},
		{"skipping a level", []Kind{root, s1}, false},
		{"repeated", []Kind{s0, s1, s1}, false},
		{"unknown", []Kind{KindOf[*S5]()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.CheckStates(tt.chain...); got != tt.want {
				t.Errorf("CheckStates(%v) = %v, want %v", tt.chain, got, tt.want)
			}
		})
	}
}

func TestMachine_VisitAndString(t *testing.T) {
	m, _ := newTestMachine()
	s0 := KindOf[*S0]()
	mustAdd(m,
		Child(&S0{}, Entry()),
		Child(&S1{}, Under(s0), Entry()),
		Child(&S2{}, Under(s0), InRegion(1), Entry()),
		Child(&S3{}),
	)

	if m.String() != "testRoot" {
		t.Errorf("Expected stopped dump 'testRoot', got '%s'", m)
	}

	m.Start()

	var visited []string
	m.Visit(VisitorFunc(func(s State) {
		visited = append(visited, s.base().Name())
	}))
	want := []string{"testRoot", "S0", "S1", "S2"}
	if len(visited) != len(want) {
		t.Fatalf("Expected %v, got %v", want, visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, visited)
			break
		}
	}

	if got := m.String(); got != "testRoot->S0[->S1|->S2]" {
		t.Errorf("Expected 'testRoot->S0[->S1|->S2]', got '%s'", got)
	}
}

func TestMachine_Lookup(t *testing.T) {
	m, _ := newTestMachine()
	s0 := &S0{}
	mustAdd(m, Child(s0, Entry()), Child(&S1{}, Under(KindOf[*S0]()), Named("inner")))

	got, ok := GetState[*S0](m)
	if !ok || got != s0 {
		t.Error("Expected GetState to return the registered instance")
	}
	if _, ok := GetState[*S4](m); ok {
		t.Error("Expected GetState to miss unknown states")
	}

	inner := m.Lookup(KindOf[*S1]())
	if inner == nil || inner.base().Name() != "inner" {
		t.Fatal("Expected the named child")
	}
	if inner.base().Ancestor(KindOf[*S0]()) != s0 {
		t.Error("Expected S0 as ancestor of the inner state")
	}
	if s0.Descendant(KindOf[*S1]()) != inner {
		t.Error("Expected the inner state as descendant of S0")
	}
	if s0.Descendant(m.Kind()) != nil {
		t.Error("Expected the root not to be a descendant")
	}
}

func TestMachine_Setup(t *testing.T) {
	j := &journal{}
	m := NewMachine(WithRoot(&setupRoot{}), WithStore(j))

	if err := m.Setup(); err != nil {
		t.Fatalf("Expected no setup error, got %v", err)
	}
	if m.History(KindOf[*outer](), 0) != Shallow {
		t.Errorf("Expected shallow history on outer, got %s", m.History(KindOf[*outer](), 0))
	}

	m.Start()
	steps := []struct {
		event Event
		log   string
		chain []Kind
	}{
		{E1{}, "-S0 +outer +S2", []Kind{KindOf[*outer](), KindOf[*S2]()}},
		{E3{}, "-S2 +S3", []Kind{KindOf[*outer](), KindOf[*S3]()}},
		{E2{}, "-S3 -outer +S0", []Kind{m.Kind(), KindOf[*S0]()}},
		{E1{}, "-S0 +outer +S3", []Kind{KindOf[*outer](), KindOf[*S3]()}},
	}
	for _, step := range steps {
		j.reset()
		if !m.ProcessEvent(step.event) {
			t.Fatalf("Expected %s to be handled", EventName(step.event))
		}
		if j.String() != step.log {
			t.Errorf("After %s expected '%s', got '%s'", EventName(step.event), step.log, j)
		}
		AssertStates(t, m, step.chain...)
	}

	// a second setup while running changes nothing
	if err := m.Setup(); err != nil {
		t.Errorf("Expected setup while started to be a no-op, got %v", err)
	}
}

func TestMachine_TeardownAndClose(t *testing.T) {
	m, j := newTestMachine()
	s0 := &S0{}
	mustAdd(m, Child(s0, Entry()), Child(&S1{}), Transition[*S0, E1, *S1]())
	m.Start()

	m.Teardown()
	if m.Lookup(KindOf[*S0]()) == nil {
		t.Error("Expected teardown to be ignored while started")
	}

	j.reset()
	m.DeferEvent(E2{})
	if m.Pending() != 1 {
		t.Fatalf("Expected one deferred event, got %d", m.Pending())
	}

	m.Close()
	if j.String() != "-S0 -testRoot" {
		t.Errorf("Expected close to stop the machine, got '%s'", j)
	}
	if m.Lookup(KindOf[*S0]()) != nil {
		t.Error("Expected close to remove every state")
	}
	if s0.Machine() != nil {
		t.Error("Expected removed states to be detached")
	}
	if m.Pending() != 0 {
		t.Errorf("Expected close to drop queued events, got %d", m.Pending())
	}

	if err := m.AddState(s0, Entry()); err != nil {
		t.Fatalf("Expected a detached state to be reusable, got %v", err)
	}
	if m.Lookup(m.Kind()) != m.Root() {
		t.Error("Expected the root to survive teardown")
	}
}
