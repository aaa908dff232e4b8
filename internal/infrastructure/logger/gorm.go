package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM output into zap, tagged with the request's correlation IDs.
// Statements themselves go out at debug, slow ones at warn and failures at error.
type GormLogger struct {
	log          *zap.Logger
	level        gormlogger.LogLevel
	slowAfter    time.Duration
	reportMisses bool
}

// GormLoggerOption customises a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold marks statements slower than d; zero disables the check
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowAfter = d }
}

// WithIgnoreRecordNotFoundError controls whether lookups that find nothing are logged.
// A scan of a new product always misses, so misses are ignored unless set to false.
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.reportMisses = !ignore }
}

func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		log:       Named(zapLogger, "gorm"),
		level:     level,
		slowAfter: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, args)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, args)
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, args)
}

func (l *GormLogger) printf(ctx context.Context, need gormlogger.LogLevel, at zapcore.Level, msg string, args []any) {
	if l.level < need {
		return
	}
	Enrich(ctx, l.log).Sugar().Logf(at, msg, args...)
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	took := time.Since(begin)
	slow := l.slowAfter > 0 && took > l.slowAfter
	miss := errors.Is(err, gormlogger.ErrRecordNotFound)

	var at zapcore.Level
	var msg string
	switch {
	case err != nil && l.level >= gormlogger.Error:
		if miss && !l.reportMisses {
			return
		}
		at, msg = zapcore.ErrorLevel, "SQL Error"
	case slow && l.level >= gormlogger.Warn:
		at, msg = zapcore.WarnLevel, "SQL Slow"
	case l.level >= gormlogger.Info:
		at, msg = zapcore.DebugLevel, "SQL Query"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", took)}
	if slow {
		fields = append(fields, zap.Duration("threshold", l.slowAfter))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if ce := Enrich(ctx, l.log).Check(at, msg); ce != nil {
		ce.Write(fields...)
	}
}

// MapGormLogLevel turns the process log level into the GORM level; debug and info show statements
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error", "fatal":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
