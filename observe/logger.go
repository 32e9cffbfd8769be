package observe

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jonwraymond/callguard/execctx"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown levels are info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Log entry keys added from the context.
const (
	KeyCorrelationID = "correlation_id"
	KeyUserID        = "user_id"
	KeyOrgID         = "org_id"
	KeyTraceID       = "trace_id"
	KeySpanID        = "span_id"
)

var redacted = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = true
	}
	return m
}()

func isRedactedField(key string) bool {
	return redacted[key]
}

// zapLogger is the JSON structured logger behind NewLogger.
type zapLogger struct {
	z      *zap.Logger
	closer io.Closer
}

var (
	_ Logger    = (*zapLogger)(nil)
	_ io.Closer = (*zapLogger)(nil)
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

// NewLogger creates a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return newZapLogger(ParseLogLevel(level), zapcore.AddSync(w), nil)
}

// NewLoggerFromConfig creates a JSON logger for service. When cfg.File is
// set the output goes to that file and is rotated by size.
func NewLoggerFromConfig(service string, cfg LoggingConfig) Logger {
	level := ParseLogLevel(cfg.Level)
	if cfg.File == "" {
		l := newZapLogger(level, zapcore.AddSync(os.Stderr), nil)
		return l.with(zap.String("service", service))
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 7
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 7
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	l := newZapLogger(level, zapcore.AddSync(file), file)
	return l.with(zap.String("service", service))
}

// NewZapLogger adapts an existing zap logger.
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

func newZapLogger(level LogLevel, ws zapcore.WriteSyncer, closer io.Closer) *zapLogger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.Lock(ws),
		level.zapLevel(),
	)
	return &zapLogger{z: zap.New(core), closer: closer}
}

func (l *zapLogger) with(fields ...zap.Field) *zapLogger {
	return &zapLogger{z: l.z.With(fields...), closer: l.closer}
}

// WithCommand returns a logger with command fields attached.
func (l *zapLogger) WithCommand(meta CommandMeta) Logger {
	fields := []zap.Field{zap.String("command.call_type", meta.CallType)}
	if meta.Service != "" {
		fields = append(fields, zap.String("command.service", meta.Service))
	}
	return l.with(fields...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *zapLogger) log(ctx context.Context, level zapcore.Level, msg string, fields []Field) {
	ce := l.z.Check(level, msg)
	if ce == nil {
		return
	}

	zf := contextFields(ctx, make([]zap.Field, 0, len(fields)+5))
	for _, f := range fields {
		if isRedactedField(f.Key) {
			zf = append(zf, zap.String(f.Key, "[REDACTED]"))
			continue
		}
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	ce.Write(zf...)
}

// contextFields appends the execution context and span ids found in ctx.
func contextFields(ctx context.Context, dst []zap.Field) []zap.Field {
	if ctx == nil {
		return dst
	}
	if ec, ok := execctx.FromContext(ctx); ok {
		dst = append(dst, zap.String(KeyCorrelationID, ec.CorrelationID()))
		if ec.UserID() != "" {
			dst = append(dst, zap.String(KeyUserID, ec.UserID()))
		}
		if ec.OrgID() != "" {
			dst = append(dst, zap.String(KeyOrgID, ec.OrgID()))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		dst = append(dst,
			zap.String(KeyTraceID, sc.TraceID().String()),
			zap.String(KeySpanID, sc.SpanID().String()),
		)
	}
	return dst
}

// Close flushes buffered entries and closes a rotated log file.
func (l *zapLogger) Close() error {
	_ = l.z.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
