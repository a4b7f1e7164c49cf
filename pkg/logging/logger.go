package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Level  int8
	Format string
)

const (
	// Note: Numerically speaking, zap supports levels above or below those for
	// which it has defined constants. This is how we implement our own Discard
	// and Trace levels.
	DiscardLevel Level = Level(zapcore.FatalLevel + 1)
	ErrorLevel   Level = Level(zapcore.ErrorLevel)
	InfoLevel    Level = Level(zapcore.InfoLevel)
	DebugLevel   Level = Level(zapcore.DebugLevel)
	TraceLevel   Level = DebugLevel - 1

	ConsoleFormat Format = "console"
	JSONFormat    Format = "json"
	DefaultFormat Format = ConsoleFormat

	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"
)

type loggerContextKey struct{}

var (
	writer       zapcore.WriteSyncer
	globalLogger *Logger
)

func init() {
	level := InfoLevel
	if l := os.Getenv(LogLevelEnvVar); l != "" {
		var err error
		if level, err = ParseLevel(l); err != nil {
			panic(err)
		}
	}

	format := DefaultFormat
	if formatStr := os.Getenv(LogFormatEnvVar); formatStr != "" {
		format = Format(formatStr)
	}

	// Logs always go to stderr. Stdout is reserved for the logging commands the
	// build agent parses.
	var err error
	if writer, _, err = zap.Open("stderr"); err != nil {
		panic(err)
	}

	if globalLogger, err = newLoggerInternal(level, format, writer); err != nil {
		panic(err)
	}
}

// Logger is a simple wrapper around zap.Logger that provides a more ergonomic
// API.
type Logger struct {
	logger *zap.SugaredLogger
}

// NewDiscardLoggerOrDie returns a new *Logger that discards all log output or
// panics if there is an error configuring the logger. This is primarily useful
// for tests.
func NewDiscardLoggerOrDie() *Logger {
	return NewLoggerOrDie(DiscardLevel, ConsoleFormat)
}

// NewLoggerOrDie returns a new *Logger with the provided log level or panics if
// there is an error configuring the logger.
func NewLoggerOrDie(level Level, format Format) *Logger {
	logger, err := NewLogger(level, format)
	if err != nil {
		panic(err)
	}
	return logger
}

// NewLogger returns a new *Logger with the provided log level.
func NewLogger(level Level, format Format) (*Logger, error) {
	return newLoggerInternal(level, format, writer)
}

func newLoggerInternal(
	level Level,
	format Format,
	w zapcore.WriteSyncer,
) (*Logger, error) {
	if level == DiscardLevel {
		return &Logger{
			logger: zap.NewNop().Sugar(),
		}, nil
	}
	if level < TraceLevel || level > ErrorLevel {
		return nil, fmt.Errorf("invalid log level: %d", level)
	}
	// Re-parsing the format we were given has the side effects of validating and
	// normalizing it.
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = func(
		time time.Time,
		encoder zapcore.PrimitiveArrayEncoder,
	) {
		zapcore.RFC3339TimeEncoder(time.UTC(), encoder)
	}
	encoderCfg.EncodeLevel = traceEncoder

	var encoder zapcore.Encoder
	switch format { // format was already validated above
	case ConsoleFormat:
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case JSONFormat:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, w, zap.NewAtomicLevelAt(zapcore.Level(level)))
	return Wrap(zap.New(core, zap.AddCaller())), nil
}

func traceEncoder(
	level zapcore.Level,
	enc zapcore.PrimitiveArrayEncoder,
) {
	if level == zapcore.Level(TraceLevel) {
		enc.AppendString("TRACE")
	} else {
		zapcore.CapitalLevelEncoder(level, enc)
	}
}

// Wrap returns a new *Logger that wraps the provided zap.Logger.
func Wrap(zapLogger *zap.Logger) *Logger {
	return &Logger{
		logger: zapLogger.Sugar().WithOptions(zap.AddCallerSkip(1)),
	}
}

// ContextWithLogger returns a context.Context that has been augmented with
// the provided *Logger.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext extracts a *Logger from the provided context.Context and
// returns it. If no *Logger is found, a global *Logger is returned.
func LoggerFromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return logger
	}
	return globalLogger
}

// WithValues adds key-value pairs to a logger's context.
func (l *Logger) WithValues(keysAndValues ...any) *Logger {
	return &Logger{
		logger: l.logger.With(keysAndValues...),
	}
}

// Error logs a message at the error level.
func (l *Logger) Error(err error, msg string, keysAndValues ...any) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.logger.Errorw(msg, keysAndValues...)
}

// Info logs a message at the info level.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.logger.Infow(msg, keysAndValues...)
}

// Debug logs a message at the debug level.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

// Trace logs a message at the trace level.
func (l *Logger) Trace(msg string, keysAndValues ...any) {
	// Zap doesn't have a Trace method, but numerically speaking, does support
	// arbitrary levels. TraceLevel is one less than DebugLevel, so an entry
	// written as follows is logged as `TRACE`.
	l.logger.With(keysAndValues...).Log(zapcore.Level(TraceLevel), msg)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.logger.Sync()
}
