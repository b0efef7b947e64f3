package dsm

import "fmt"

// Observer represents an entity that observes state machine lifecycle
type Observer interface {
	// OnTransition is called when a transition has been taken
	OnTransition(m *Machine, from string, to string, event Event)

	// OnStateEnter is called when a state becomes active
	OnStateEnter(m *Machine, state string)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnStateExit is called when a state is deactivated
	OnStateExit(m *Machine, state string)

	// OnGuardEvaluation is called after a guard has been evaluated
	OnGuardEvaluation(m *Machine, from string, to string, event Event, result bool)

	// OnEventRejected is called when no active state handled an event
	OnEventRejected(m *Machine, event Event, reason string)

	// OnEventQueued is called when an event is posted or deferred
	OnEventQueued(m *Machine, event Event, deferred bool)

	// OnError is called when a hook, guard or action fails
	OnError(m *Machine, err error)

	// OnMachineStarted is called when the state machine starts
	OnMachineStarted(m *Machine)

	// OnMachineStopped is called when the state machine stops
	OnMachineStopped(m *Machine)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

func (o *BaseObserver) OnTransition(m *Machine, from string, to string, event Event) {}

func (o *BaseObserver) OnStateEnter(m *Machine, state string) {}

func (o *BaseObserver) OnStateExit(m *Machine, state string) {}

func (o *BaseObserver) OnGuardEvaluation(m *Machine, from string, to string, event Event, result bool) {
}

func (o *BaseObserver) OnEventRejected(m *Machine, event Event, reason string) {}

func (o *BaseObserver) OnEventQueued(m *Machine, event Event, deferred bool) {}

func (o *BaseObserver) OnError(m *Machine, err error) {}

func (o *BaseObserver) OnMachineStarted(m *Machine) {}

func (o *BaseObserver) OnMachineStopped(m *Machine) {}

// ObserverManager manages a collection of observers
type ObserverManager struct {
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager) Len() int {
	return len(om.observers)
}

// notify calls fn on a snapshot of the observers. A panicking observer is
// reported to its own OnError when it has one and never reaches the caller.
func (om *ObserverManager) notify(m *Machine, hook string, fn func(Observer)) {
	if len(om.observers) == 0 {
		return
	}
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)

	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if extObs, ok := observer.(ExtendedObserver); ok {
						func() {
							defer func() { recover() }()
							extObs.OnError(m, fmt.Errorf("observer panic in %s: %v", hook, r))
						}()
					}
				}
			}()
			fn(observer)
		}()
	}
}

// notifyExtended is notify restricted to observers implementing ExtendedObserver
func (om *ObserverManager) notifyExtended(m *Machine, hook string, fn func(ExtendedObserver)) {
	om.notify(m, hook, func(o Observer) {
		if extObs, ok := o.(ExtendedObserver); ok {
			fn(extObs)
		}
	})
}

// NotifyTransition notifies all observers of a transition
func (om *ObserverManager) NotifyTransition(m *Machine, from string, to string, event Event) {
	om.notify(m, "OnTransition", func(o Observer) {
		o.OnTransition(m, from, to, event)
	})
}

// NotifyStateEnter notifies all observers of state entry
func (om *ObserverManager) NotifyStateEnter(m *Machine, state string) {
	om.notify(m, "OnStateEnter", func(o Observer) {
		o.OnStateEnter(m, state)
	})
}

// NotifyStateExit notifies all observers of state exit
func (om *ObserverManager) NotifyStateExit(m *Machine, state string) {
	om.notifyExtended(m, "OnStateExit", func(o ExtendedObserver) {
		o.OnStateExit(m, state)
	})
}

// NotifyGuardEvaluation notifies all observers of guard evaluation
func (om *ObserverManager) NotifyGuardEvaluation(m *Machine, from string, to string, event Event, result bool) {
	om.notifyExtended(m, "OnGuardEvaluation", func(o ExtendedObserver) {
		o.OnGuardEvaluation(m, from, to, event, result)
	})
}

// NotifyEventRejected notifies all observers of event rejection
func (om *ObserverManager) NotifyEventRejected(m *Machine, event Event, reason string) {
	om.notifyExtended(m, "OnEventRejected", func(o ExtendedObserver) {
		o.OnEventRejected(m, event, reason)
	})
}

// NotifyEventQueued notifies all observers of a posted or deferred event
func (om *ObserverManager) NotifyEventQueued(m *Machine, event Event, deferred bool) {
	om.notifyExtended(m, "OnEventQueued", func(o ExtendedObserver) {
		o.OnEventQueued(m, event, deferred)
	})
}

// NotifyError notifies all observers of errors
func (om *ObserverManager) NotifyError(m *Machine, err error) {
	for _, observer := range om.observers {
		if extObs, ok := observer.(ExtendedObserver); ok {
			func() {
				defer func() { recover() }()
				extObs.OnError(m, err)
			}()
		}
	}
}

// NotifyMachineStarted notifies all observers that the machine has started
func (om *ObserverManager) NotifyMachineStarted(m *Machine) {
	om.notifyExtended(m, "OnMachineStarted", func(o ExtendedObserver) {
		o.OnMachineStarted(m)
	})
}

// NotifyMachineStopped notifies all observers that the machine has stopped
func (om *ObserverManager) NotifyMachineStopped(m *Machine) {
	om.notifyExtended(m, "OnMachineStopped", func(o ExtendedObserver) {
		o.OnMachineStopped(m)
	})
}
