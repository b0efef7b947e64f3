package observers

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anggasct/dsm"
)

// MetricsObserver exports state machine activity as prometheus metrics.
// Every series carries a "machine" label with the machine name.
type MetricsObserver struct {
	stateEntries   *prometheus.CounterVec
	stateExits     *prometheus.CounterVec
	stateDuration  *prometheus.HistogramVec
	transitions    *prometheus.CounterVec
	eventsRejected *prometheus.CounterVec
	eventsQueued   *prometheus.CounterVec
	errors         *prometheus.CounterVec
	activeStates   *prometheus.GaugeVec

	lastStateEntry map[string]time.Time
	mutex          sync.Mutex
}

// NewMetricsObserver creates the collectors and registers them on reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		stateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsm_state_entries_total",
			Help: "Total number of state entries",
		}, []string{"machine", "state"}),
		stateExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsm_state_exits_total",
			Help: "Total number of state exits",
		}, []string{"machine", "state"}),
		stateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsm_state_duration_seconds",
			Help:    "Time spent in a state between entry and exit",
			Buckets: prometheus.DefBuckets,
		}, []string{"machine", "state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsm_transitions_total",
			Help: "Total number of transitions taken",
		}, []string{"machine", "from", "to"}),
		eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsm_events_rejected_total",
			Help: "Total number of events no active state handled",
		}, []string{"machine", "event"}),
		eventsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsm_events_queued_total",
			Help: "Total number of posted and deferred events",
		}, []string{"machine", "deferred"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsm_errors_total",
			Help: "Total number of hook, guard, action and construction errors",
		}, []string{"machine"}),
		activeStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dsm_active_states",
			Help: "Number of active states, the root included",
		}, []string{"machine"}),
		lastStateEntry: make(map[string]time.Time),
	}

	for _, c := range o.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *MetricsObserver) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		o.stateEntries, o.stateExits, o.stateDuration, o.transitions,
		o.eventsRejected, o.eventsQueued, o.errors, o.activeStates,
	}
}

// Unregister removes the collectors from reg
func (o *MetricsObserver) Unregister(reg prometheus.Registerer) {
	for _, c := range o.collectors() {
		reg.Unregister(c)
	}
}

func machineName(m *dsm.Machine) string {
	if m == nil {
		return ""
	}
	return m.Name()
}

// OnStateEnter records state entry metrics
func (o *MetricsObserver) OnStateEnter(m *dsm.Machine, state string) {
	name := machineName(m)
	o.stateEntries.WithLabelValues(name, state).Inc()
	o.activeStates.WithLabelValues(name).Inc()

	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.lastStateEntry[name+"/"+state] = time.Now()
}

// OnStateExit records state exit metrics
func (o *MetricsObserver) OnStateExit(m *dsm.Machine, state string) {
	name := machineName(m)
	o.stateExits.WithLabelValues(name, state).Inc()
	o.activeStates.WithLabelValues(name).Dec()

	o.mutex.Lock()
	defer o.mutex.Unlock()
	key := name + "/" + state
	if entryTime, ok := o.lastStateEntry[key]; ok {
		o.stateDuration.WithLabelValues(name, state).Observe(time.Since(entryTime).Seconds())
		delete(o.lastStateEntry, key)
	}
}

// OnTransition records transition metrics
func (o *MetricsObserver) OnTransition(m *dsm.Machine, from string, to string, event dsm.Event) {
	o.transitions.WithLabelValues(machineName(m), from, to).Inc()
}

// OnGuardEvaluation is a no-op
func (o *MetricsObserver) OnGuardEvaluation(m *dsm.Machine, from string, to string, event dsm.Event, result bool) {
}

// OnEventRejected records unhandled events
func (o *MetricsObserver) OnEventRejected(m *dsm.Machine, event dsm.Event, reason string) {
	o.eventsRejected.WithLabelValues(machineName(m), dsm.EventName(event)).Inc()
}

// OnEventQueued records posted and deferred events
func (o *MetricsObserver) OnEventQueued(m *dsm.Machine, event dsm.Event, deferred bool) {
	o.eventsQueued.WithLabelValues(machineName(m), strconv.FormatBool(deferred)).Inc()
}

// OnError records error metrics
func (o *MetricsObserver) OnError(m *dsm.Machine, err error) {
	o.errors.WithLabelValues(machineName(m)).Inc()
}

func (o *MetricsObserver) OnMachineStarted(m *dsm.Machine) {}

func (o *MetricsObserver) OnMachineStopped(m *dsm.Machine) {}
