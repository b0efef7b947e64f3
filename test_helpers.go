package dsm

import (
	"sync"
	"testing"
)

// TestObserver is an observer for tests that records every notification
type TestObserver struct {
	mutex        sync.RWMutex
	Transitions  []TransitionRecord
	StateEnters  []string
	StateExits   []string
	EventRejects []Event
	Queued       []QueueRecord
	Errors       []error
	Guards       []GuardRecord
	Started      int
	Stopped      int
}

type TransitionRecord struct {
	From  string
	To    string
	Event Event
}

type QueueRecord struct {
	Event    Event
	Deferred bool
}

type GuardRecord struct {
	From   string
	To     string
	Event  Event
	Result bool
}

// NewTestObserver creates a new test observer
func NewTestObserver() *TestObserver {
	return &TestObserver{}
}

func (o *TestObserver) OnTransition(m *Machine, from string, to string, event Event) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = append(o.Transitions, TransitionRecord{From: from, To: to, Event: event})
}

func (o *TestObserver) OnStateEnter(m *Machine, state string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateEnters = append(o.StateEnters, state)
}

func (o *TestObserver) OnStateExit(m *Machine, state string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateExits = append(o.StateExits, state)
}

func (o *TestObserver) OnGuardEvaluation(m *Machine, from string, to string, event Event, result bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Guards = append(o.Guards, GuardRecord{From: from, To: to, Event: event, Result: result})
}

func (o *TestObserver) OnEventRejected(m *Machine, event Event, reason string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.EventRejects = append(o.EventRejects, event)
}

func (o *TestObserver) OnEventQueued(m *Machine, event Event, deferred bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Queued = append(o.Queued, QueueRecord{Event: event, Deferred: deferred})
}

func (o *TestObserver) OnError(m *Machine, err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

func (o *TestObserver) OnMachineStarted(m *Machine) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Started++
}

func (o *TestObserver) OnMachineStopped(m *Machine) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Stopped++
}

// Reset forgets everything recorded so far
func (o *TestObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = nil
	o.StateEnters = nil
	o.StateExits = nil
	o.EventRejects = nil
	o.Queued = nil
	o.Errors = nil
	o.Guards = nil
	o.Started = 0
	o.Stopped = 0
}

func (o *TestObserver) TransitionCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Transitions)
}

func (o *TestObserver) StateEnterCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.StateEnters)
}

func (o *TestObserver) StateExitCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.StateExits)
}

func (o *TestObserver) LastTransition() *TransitionRecord {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	if len(o.Transitions) == 0 {
		return nil
	}
	return &o.Transitions[len(o.Transitions)-1]
}

// AssertStates fails the test unless chain is an active nested chain
func AssertStates(t testing.TB, m *Machine, chain ...Kind) {
	t.Helper()
	if !m.CheckStates(chain...) {
		t.Errorf("Expected active chain %v, got %s", chain, m)
	}
}

// AssertObserverCalled checks if observer methods were called expected number of times
func AssertObserverCalled(t testing.TB, observer *TestObserver, transitions, enters, exits int) {
	t.Helper()
	if observer.TransitionCount() != transitions {
		t.Errorf("Expected %d transitions, got %d", transitions, observer.TransitionCount())
	}
	if observer.StateEnterCount() != enters {
		t.Errorf("Expected %d state enters, got %d", enters, observer.StateEnterCount())
	}
	if observer.StateExitCount() != exits {
		t.Errorf("Expected %d state exits, got %d", exits, observer.StateExitCount())
	}
}
