// Package logger provides the process-wide zap logger and helpers that read
// job, connector and task attribution from a context.
package logger

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
)

type contextKey string

const (
	// JobIDKey is the context key for the run identifier
	JobIDKey contextKey = "job_id"
	// ConnectorKey is the context key for the connector name
	ConnectorKey contextKey = "connector"
	// TaskIndexKey is the context key for the split index of a sub-task
	TaskIndexKey contextKey = "task_index"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
	// File, when set, replaces OutputPaths with a size-rotated log file
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init builds a logger from cfg and installs it as the global logger.
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

func newLogger(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.File != "" {
		return newFileLogger(cfg, level, encoderConfig), nil
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		// stdout is reserved for command output such as plans and reports
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return logger, nil
}

func newFileLogger(cfg Config, level zapcore.Level, encoderConfig zapcore.EncoderConfig) *zap.Logger {
	var enc zapcore.Encoder
	if cfg.Encoding == "console" {
		enc = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		enc = zapcore.NewJSONEncoder(encoderConfig)
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	ws := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
	return zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(os.Stderr))))
}

// Get returns the global logger, creating an info-level JSON logger on first use.
func Get() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		l, err := newLogger(Config{})
		if err != nil {
			l, _ = zap.NewProduction()
		}
		globalLogger = l
	}
	return globalLogger
}

// Replace installs l as the global logger and returns a function restoring
// the previous one. Tests use it with zaptest or observer cores.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prev := globalLogger
	globalLogger = l
	mu.Unlock()
	return func() {
		mu.Lock()
		globalLogger = prev
		mu.Unlock()
	}
}

// WithTask returns a context carrying the split index of a sub-task.
func WithTask(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, TaskIndexKey, index)
}

// WithJob returns a context carrying the job and connector names.
func WithJob(ctx context.Context, jobID, connector string) context.Context {
	ctx = context.WithValue(ctx, JobIDKey, jobID)
	return context.WithValue(ctx, ConnectorKey, connector)
}

// WithContext returns the global logger with the context's attribution
func WithContext(ctx context.Context) *zap.Logger {
	return Get().With(Fields(ctx)...)
}

// Fields returns the job, connector and task fields carried by ctx
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if jobID, ok := ctx.Value(JobIDKey).(string); ok {
		fields = append(fields, zap.String("job_id", jobID))
	}
	if connector, ok := ctx.Value(ConnectorKey).(string); ok {
		fields = append(fields, zap.String("connector", connector))
	}
	if index, ok := ctx.Value(TaskIndexKey).(int); ok {
		fields = append(fields, zap.Int("task_index", index))
	}
	return fields
}

// With creates a child logger with additional fields
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
