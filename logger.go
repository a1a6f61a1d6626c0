package chunkstore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with chunkstore-specific context, following the
// same method-per-event-kind shape as other slog-backed loggers in this
// dependency family.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger from an arbitrary handler. A nil handler falls
// back to a text handler on stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that emits JSON records at the given level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that emits human-readable text at the
// given level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

// Warn and Error satisfy internal/partition.Logger.
func (l *Logger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.Logger.Error(msg, args...) }

// LogSave logs an Engine.SaveBlock outcome.
func (l *Logger) LogSave(ctx context.Context, x, y, z int16, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed", "x", x, "y", y, "z", z, "error", err)
		return
	}
	l.DebugContext(ctx, "save completed", "x", x, "y", y, "z", z, "bytes", bytes)
}

// LogLoad logs a LoadBlock outcome.
func (l *Logger) LogLoad(ctx context.Context, x, y, z int16, result LoadResult, hit bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "x", x, "y", y, "z", z, "error", err)
		return
	}
	l.DebugContext(ctx, "load completed", "x", x, "y", y, "z", z, "result", result.String(), "cacheHit", hit)
}

// LogDelete logs an Engine.DeleteBlock outcome.
func (l *Logger) LogDelete(ctx context.Context, x, y, z int16, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed", "x", x, "y", y, "z", z, "error", err)
		return
	}
	l.DebugContext(ctx, "delete completed", "x", x, "y", y, "z", z)
}

// LogFlush logs a Flush/ForceFlush pass.
func (l *Logger) LogFlush(ctx context.Context, partitions int, duration_ms int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed", "partitions", partitions, "duration_ms", duration_ms, "error", err)
		return
	}
	l.InfoContext(ctx, "flush completed", "partitions", partitions, "duration_ms", duration_ms)
}

// LogHitRate logs a PrintHitRate report: instantaneous TPS read/write
// since the previous call, running totals, hit ratio, and cache count/bytes.
func (l *Logger) LogHitRate(ctx context.Context, readTPS, writeTPS, total, cache1, cache2 uint64, hitRatio float64, cacheCount int32, cacheBytes int64) {
	l.InfoContext(ctx, "hit rate",
		"read_tps", readTPS,
		"write_tps", writeTPS,
		"total_loads", total,
		"cache1_hits", cache1,
		"cache2_hits", cache2,
		"hit_ratio", hitRatio,
		"cache_count", cacheCount,
		"cache_bytes", cacheBytes,
	)
}

// LogBackup logs an Engine.Backup pass.
func (l *Logger) LogBackup(ctx context.Context, partitions int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed", "partitions", partitions, "error", err)
		return
	}
	l.InfoContext(ctx, "backup completed", "partitions", partitions)
}
