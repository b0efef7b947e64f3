// Package observers provides observers for monitoring state machine events
package observers

import (
	"sync"

	"go.uber.org/zap"

	"github.com/anggasct/dsm"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// LogError logs only errors
	LogError LogLevel = iota
	// LogWarning logs errors and warnings
	LogWarning
	// LogInfo logs errors, warnings, and info
	LogInfo
	// LogDebug logs errors, warnings, info, and debug
	LogDebug
)

// LoggingObserver logs state machine events as structured zap entries
type LoggingObserver struct {
	level LogLevel
	log   *zap.Logger
	mutex sync.RWMutex
}

// NewLoggingObserver creates a new logging observer. A nil logger uses the
// global zap logger.
func NewLoggingObserver(log *zap.Logger, level LogLevel) *LoggingObserver {
	if log == nil {
		log = zap.L()
	}
	return &LoggingObserver{
		level: level,
		log:   log,
	}
}

// NewDefaultLoggingObserver creates a logging observer on the global zap logger at LogInfo
func NewDefaultLoggingObserver() *LoggingObserver {
	return NewLoggingObserver(nil, LogInfo)
}

// SetLevel changes the logging level
func (o *LoggingObserver) SetLevel(level LogLevel) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.level = level
}

// write logs a message at the specified level
func (o *LoggingObserver) write(level LogLevel, m *dsm.Machine, msg string, fields ...zap.Field) {
	o.mutex.RLock()
	enabled := level <= o.level
	o.mutex.RUnlock()
	if !enabled {
		return
	}

	if m != nil {
		fields = append(fields, zap.String("machine", m.Name()))
	}
	switch level {
	case LogError:
		o.log.Error(msg, fields...)
	case LogWarning:
		o.log.Warn(msg, fields...)
	case LogInfo:
		o.log.Info(msg, fields...)
	default:
		o.log.Debug(msg, fields...)
	}
}

// OnStateEnter logs state entry
func (o *LoggingObserver) OnStateEnter(m *dsm.Machine, state string) {
	o.write(LogInfo, m, "Entering state", zap.String("state", state))
}

// OnStateExit logs state exit
func (o *LoggingObserver) OnStateExit(m *dsm.Machine, state string) {
	o.write(LogInfo, m, "Exiting state", zap.String("state", state))
}

// OnTransition logs transitions
func (o *LoggingObserver) OnTransition(m *dsm.Machine, from string, to string, event dsm.Event) {
	o.write(LogInfo, m, "Transition",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("event", dsm.EventName(event)))
}

// OnGuardEvaluation logs guard results
func (o *LoggingObserver) OnGuardEvaluation(m *dsm.Machine, from string, to string, event dsm.Event, result bool) {
	o.write(LogDebug, m, "Guard evaluated",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("event", dsm.EventName(event)),
		zap.Bool("result", result))
}

// OnEventRejected logs events no active state handled
func (o *LoggingObserver) OnEventRejected(m *dsm.Machine, event dsm.Event, reason string) {
	o.write(LogWarning, m, "Event rejected",
		zap.String("event", dsm.EventName(event)),
		zap.String("reason", reason))
}

// OnEventQueued logs posted and deferred events
func (o *LoggingObserver) OnEventQueued(m *dsm.Machine, event dsm.Event, deferred bool) {
	o.write(LogDebug, m, "Event queued",
		zap.String("event", dsm.EventName(event)),
		zap.Bool("deferred", deferred))
}

// OnError logs errors
func (o *LoggingObserver) OnError(m *dsm.Machine, err error) {
	o.write(LogError, m, "Error", zap.Error(err), zap.Stringer("code", dsm.GetErrorCode(err)))
}

// OnMachineStarted logs the machine start
func (o *LoggingObserver) OnMachineStarted(m *dsm.Machine) {
	o.write(LogInfo, m, "Machine started", zap.String("id", m.ID()))
}

// OnMachineStopped logs the machine stop
func (o *LoggingObserver) OnMachineStopped(m *dsm.Machine) {
	o.write(LogInfo, m, "Machine stopped", zap.String("id", m.ID()))
}
