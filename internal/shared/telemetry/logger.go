// Package telemetry provides the structured logger shared by every
// component. It is a thin facade over zap so call sites stay simple
// key/value maps.
package telemetry

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	mu   sync.RWMutex
	base *zap.SugaredLogger
)

// Init builds the process logger. Mode "prod"/"production" selects the
// JSON production encoder; anything else gets the development console
// encoder. Safe to call more than once; the last call wins.
func Init(mode string) error {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	mu.Lock()
	base = logger.Sugar()
	mu.Unlock()
	return nil
}

// Sync flushes buffered log entries. Call on process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(func(l *zap.SugaredLogger, kv []any) { l.Infow(msg, kv...) }, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(func(l *zap.SugaredLogger, kv []any) { l.Warnw(msg, kv...) }, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(func(l *zap.SugaredLogger, kv []any) { l.Errorw(msg, kv...) }, fields)
}

func write(emit func(*zap.SugaredLogger, []any), fields map[string]any) {
	mu.RLock()
	logger := base
	mu.RUnlock()
	if logger == nil {
		// Logging before Init is a programming slip in tools and tests;
		// fall back to a no-op rather than panic.
		return
	}
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	emit(logger, kv)
}
