package dsm

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogModule is the module name the engine logs under
const DefaultLogModule = "dsm"

// Level is the severity of a log message
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name into a Level
func ParseLevel(name string) (Level, error) {
	switch name {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger is the sink every machine writes its diagnostics to
type Logger interface {
	Write(module string, level Level, msg string)
}

// LoggerFunc adapts a function to the Logger interface
type LoggerFunc func(module string, level Level, msg string)

// Write implements Logger
func (f LoggerFunc) Write(module string, level Level, msg string) {
	f(module, level, msg)
}

type nopLogger struct{}

func (nopLogger) Write(string, Level, string) {}

// NopLogger discards everything. It is the default sink.
var NopLogger Logger = nopLogger{}

type zapLogger struct {
	log *zap.Logger
}

// NewZapLogger writes engine messages to a zap logger with a "module" field.
// Fatal messages are logged at error level; the engine never exits the process.
func NewZapLogger(log *zap.Logger) Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &zapLogger{log: log.WithOptions(zap.AddCallerSkip(2))}
}

func (z *zapLogger) Write(module string, level Level, msg string) {
	switch level {
	case LevelDebug:
		z.log.Debug(msg, zap.String("module", module))
	case LevelInfo:
		z.log.Info(msg, zap.String("module", module))
	case LevelWarning:
		z.log.Warn(msg, zap.String("module", module))
	case LevelError:
		z.log.Error(msg, zap.String("module", module))
	default:
		z.log.Error(msg, zap.String("module", module), zap.Bool("fatal", true))
	}
}

// ZapLevel maps a Level onto the zap level used by NewZapLogger
func ZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
