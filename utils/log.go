package utils

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

// zap has no trace level; it sits one step below debug.
const traceLevel = zapcore.DebugLevel - 1

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case TRACE:
		return traceLevel
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel
	}
}

// ParseLogLevel maps a flag value onto a level, defaulting to INFO.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

// Logger is a printf-style leveled logger backed by zap.
type Logger struct {
	mu    sync.Mutex
	zl    *zap.Logger
	level zap.AtomicLevel
	file  *os.File
}

// NewFileLogger appends to filePath and optionally mirrors every line to stdout.
func NewFileLogger(filePath string, minLevel LogLevel, alsoStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(f)}
	if alsoStdout {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	l := newLogger(zapcore.NewMultiWriteSyncer(sinks...), minLevel)
	l.file = f
	return l, nil
}

// NewWriterLogger writes to w only. Used by tests and tools that capture output.
func NewWriterLogger(w io.Writer, minLevel LogLevel) *Logger {
	return newLogger(zapcore.AddSync(w), minLevel)
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return &Logger{
		zl:    zap.NewNop(),
		level: zap.NewAtomicLevelAt(zapcore.FatalLevel),
	}
}

func newLogger(ws zapcore.WriteSyncer, minLevel LogLevel) *Logger {
	level := zap.NewAtomicLevelAt(minLevel.zapLevel())
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:      encodeLevel,
		ConsoleSeparator: " ",
	})
	return &Logger{
		zl:    zap.New(zapcore.NewCore(enc, ws, level), zap.ErrorOutput(zapcore.Lock(os.Stderr))),
		level: level,
	}
}

func encodeLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var name string
	switch {
	case lvl <= traceLevel:
		name = TRACE.String()
	case lvl == zapcore.DebugLevel:
		name = DEBUG.String()
	case lvl == zapcore.InfoLevel:
		name = INFO.String()
	case lvl == zapcore.WarnLevel:
		name = WARN.String()
	case lvl == zapcore.ErrorLevel:
		name = ERROR.String()
	default:
		name = CRITICAL.String()
	}
	enc.AppendString("[" + name + "]")
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.zl.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) SetMinLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	lvl := level.zapLevel()
	if !l.level.Enabled(lvl) {
		return
	}
	if ce := l.zl.Check(lvl, fmt.Sprintf(msg, args...)); ce != nil {
		ce.Write()
	}
}

func (l *Logger) Trace(msg string, args ...any)    { l.log(TRACE, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)    { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)     { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)     { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any)    { l.log(ERROR, msg, args...) }
func (l *Logger) Critical(msg string, args ...any) { l.log(CRITICAL, msg, args...) }
