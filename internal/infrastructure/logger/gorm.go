package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowSQL = 200 * time.Millisecond
	maxLoggedSQL   = 512
)

// SQLLogConfig tunes the gorm to zap adapter.
type SQLLogConfig struct {
	Level          gormlogger.LogLevel
	SlowThreshold  time.Duration // zero keeps the default; negative disables slow query warnings
	FullSQL        bool          // log statements untruncated
	ReportNotFound bool          // log gorm.ErrRecordNotFound as an error
}

// SQLLogger routes gorm statement logs to zap, carrying the request fields
// found in the statement context. Successful statements are logged at debug.
type SQLLogger struct {
	log *zap.Logger
	cfg SQLLogConfig
}

func NewSQLLogger(base *zap.Logger, cfg SQLLogConfig) *SQLLogger {
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = defaultSlowSQL
	}
	return &SQLLogger{log: base.Named("gorm"), cfg: cfg}
}

// GormLevel maps the application log level onto gorm's coarser scale
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *SQLLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.cfg.Level >= gormlogger.Info {
		Enrich(ctx, l.log).Sugar().Infof(msg, args...)
	}
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		Enrich(ctx, l.log).Sugar().Warnf(msg, args...)
	}
}

func (l *SQLLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.cfg.Level >= gormlogger.Error {
		Enrich(ctx, l.log).Sugar().Errorf(msg, args...)
	}
}

// Trace logs one executed statement.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	if err != nil && !l.cfg.ReportNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
	case slow && l.cfg.Level >= gormlogger.Warn:
	case err == nil && !slow && l.cfg.Level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	if !l.cfg.FullSQL && len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}
	log := Enrich(ctx, l.log).With(
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)

	switch {
	case err != nil:
		log.Error("sql failed", zap.Error(err))
	case slow:
		log.Warn("slow sql", zap.Duration("threshold", l.cfg.SlowThreshold))
	default:
		log.Debug("sql")
	}
}

var _ gormlogger.Interface = (*SQLLogger)(nil)
