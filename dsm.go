// Package dsm provides hierarchical state machines following UML statechart
// semantics: nested states, orthogonal regions, entry and exit hooks, guarded
// transitions with actions, shallow and deep history, and run-to-completion
// dispatch with posted and deferred events.
//
// States are Go types embedding BaseState, or any State registered under a
// runtime Kind. A Machine owns the tree; it is built with AddState and
// AddTransition, or declaratively through Setup from StatesProvider,
// TransitionsProvider and HistoryProvider implementations.
//
//	m := dsm.NewMachine(dsm.WithName("turnstile"))
//	m.AddState(&Locked{}, dsm.Entry())
//	m.AddState(&Unlocked{})
//	m.AddTransition(dsm.Transition[*Locked, Coin, *Unlocked]())
//	m.Start()
//	m.ProcessEvent(Coin{})
package dsm
