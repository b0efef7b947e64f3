package observers

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"

	"github.com/anggasct/dsm"
)

type idle struct{ dsm.BaseState }
type busy struct{ dsm.BaseState }

type broken struct{ dsm.BaseState }

func (s *broken) OnEntry() error {
	return errors.New("no power")
}

type start struct{}
type stop struct{}
type fail struct{}

// newWorker builds worker: idle --start--> busy --stop--> idle, busy --fail--> broken
func newWorker(t *testing.T, observers ...dsm.Observer) *dsm.Machine {
	t.Helper()
	m := dsm.NewMachine(dsm.WithName("worker"))
	for _, o := range observers {
		m.AddObserver(o)
	}
	require.NoError(t, m.AddState(&idle{}, dsm.Entry()))
	require.NoError(t, m.AddState(&busy{}))
	require.NoError(t, m.AddState(&broken{}))
	require.NoError(t, m.AddTransition(dsm.Transition[*idle, start, *busy]()))
	require.NoError(t, m.AddTransition(dsm.Transition[*busy, stop, *idle]()))
	require.NoError(t, m.AddTransition(dsm.Transition[*busy, fail, *broken]()))
	return m
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	m := newWorker(t, metrics)
	m.Start()
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.activeStates.WithLabelValues("worker")))

	assert.True(t, m.ProcessEvent(start{}))
	assert.False(t, m.ProcessEvent(start{}))
	m.DeferEvent(stop{})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.stateEntries.WithLabelValues("worker", "idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stateEntries.WithLabelValues("worker", "busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stateExits.WithLabelValues("worker", "idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("worker", "idle", "busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("worker", "busy", "idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.eventsRejected.WithLabelValues("worker", "start")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.eventsQueued.WithLabelValues("worker", "true")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.stateDuration))

	m.ProcessEvent(start{})
	m.ProcessEvent(fail{})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.errors.WithLabelValues("worker")))

	m.Stop()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.activeStates.WithLabelValues("worker")))
}

func TestMetricsObserver_DeferredQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	m := newWorker(t, metrics)
	m.Start()

	m.DeferEvent(stop{})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.eventsQueued.WithLabelValues("worker", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.eventsRejected.WithLabelValues("worker", "stop")))
	assert.Equal(t, 1, m.Pending())

	m.ProcessEvent(start{})
	assert.True(t, m.IsActive(dsm.KindOf[*idle]()), "the deferred stop runs right after start")
	assert.Equal(t, 0, m.Pending())
}

func TestMetricsObserver_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	_, err = NewMetricsObserver(reg)
	assert.Error(t, err, "collectors are already registered")

	metrics.Unregister(reg)
	_, err = NewMetricsObserver(reg)
	assert.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families, "no series before any observation")
}

func TestLoggingObserver(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	logging := NewLoggingObserver(zap.New(core), LogInfo)

	m := newWorker(t, logging)
	m.Start()
	m.ProcessEvent(start{})

	transitions := logs.FilterMessage("Transition").All()
	require.Len(t, transitions, 1)
	fields := transitions[0].ContextMap()
	assert.Equal(t, "idle", fields["from"])
	assert.Equal(t, "busy", fields["to"])
	assert.Equal(t, "start", fields["event"])
	assert.Equal(t, "worker", fields["machine"])

	assert.Equal(t, 3, logs.FilterMessage("Entering state").Len())
	assert.Equal(t, 1, logs.FilterMessage("Machine started").Len())
	assert.Zero(t, logs.FilterMessage("Guard evaluated").Len())

	m.ProcessEvent(fail{})
	errs := logs.FilterMessage("Error").All()
	require.Len(t, errs, 1)
	assert.Equal(t, zapcore.ErrorLevel, errs[0].Level)
	assert.Equal(t, "hook failed", errs[0].ContextMap()["code"])
	assert.Contains(t, errs[0].ContextMap()["error"], "no power")
}

func TestLoggingObserver_Levels(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	logging := NewLoggingObserver(zap.New(core), LogError)

	m := newWorker(t, logging)
	m.Start()
	m.ProcessEvent(start{})
	assert.Zero(t, logs.Len(), "info entries are filtered")

	logging.SetLevel(LogDebug)
	m.ProcessEvent(start{})
	rejected := logs.FilterMessage("Event rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
}

func TestValidationObserver(t *testing.T) {
	validation := NewValidationObserver()
	validation.AddExpectedState("idle")
	validation.AddExpectedState("busy")
	validation.AddExpectedState("broken")
	validation.AddAllowedTransition("idle", "busy")
	validation.AddAllowedTransition("busy", "broken")

	m := newWorker(t, validation)
	m.Start()
	m.ProcessEvent(start{})
	assert.False(t, validation.HasViolations())
	assert.Equal(t, []string{"broken"}, validation.GetUnvisitedStates())

	m.ProcessEvent(stop{})
	violations := validation.GetViolations()
	require.Len(t, violations, 1)
	assert.True(t, strings.Contains(violations[0], "from 'busy' to 'idle'"), violations[0])

	validation.Reset()
	assert.False(t, validation.HasViolations())
	assert.Len(t, validation.GetUnvisitedStates(), 3)
}
