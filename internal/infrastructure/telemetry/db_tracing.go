package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQuery = 200 * time.Millisecond

// DBTracingConfig controls query spans and slow query reporting.
type DBTracingConfig struct {
	Enabled    bool
	LogFullSQL bool // bind variables end up in spans
	SlowQuery  time.Duration
	DBSystem   string // postgresql or sqlite
}

// DBTracer adds otelgorm spans to a gorm handle and annotates them with
// table, row count and slow query markers.
type DBTracer struct {
	cfg    DBTracingConfig
	logger *zap.Logger
}

func NewDBTracer(cfg DBTracingConfig, logger *zap.Logger) *DBTracer {
	if cfg.SlowQuery <= 0 {
		cfg.SlowQuery = defaultSlowQuery
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracer{cfg: cfg, logger: logger}
}

type queryStartedAt struct{}

// callbackName is the prefix of the callbacks installed on each processor
const callbackName = "ledger_timing"

// Instrument installs the plugin on db. It is a no-op when tracing is
// disabled and fails if db is already instrumented.
func (t *DBTracer) Instrument(db *gorm.DB) error {
	if !t.cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(t.cfg.DBSystem)}
	if !t.cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// annotate must run before otelgorm ends the span and restores the
	// caller's context
	cb := db.Callback()
	hooks := []struct {
		op            string
		before, after registrar
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create").Before("otel:after:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query").Before("otel:after:select")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update").Before("otel:after:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete").Before("otel:after:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row").Before("otel:after:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw").Before("otel:after:raw")},
	}
	for _, h := range hooks {
		if err := h.before.Register(callbackName+":before_"+h.op, t.markStart); err != nil {
			return err
		}
		if err := h.after.Register(callbackName+":after_"+h.op, t.annotate); err != nil {
			return err
		}
	}

	t.logger.Info("Database tracing enabled",
		zap.String("db_system", t.cfg.DBSystem),
		zap.Bool("log_full_sql", t.cfg.LogFullSQL),
		zap.Duration("slow_query", t.cfg.SlowQuery),
	)
	return nil
}

// registrar is satisfied by the callbacks returned from gorm's Before and After
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (t *DBTracer) markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartedAt{}, time.Now())
	}
}

func (t *DBTracer) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	start, ok := ctx.Value(queryStartedAt{}).(time.Time)
	elapsed := time.Since(start)
	slow := ok && elapsed > t.cfg.SlowQuery
	if slow {
		t.logger.Warn("Slow query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", t.cfg.SlowQuery),
		)
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{attribute.Int64("db.rows_affected", db.Statement.RowsAffected)}
	if db.Statement.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", db.Statement.Table))
	}
	if slow {
		attrs = append(attrs,
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("threshold_ms", t.cfg.SlowQuery.Milliseconds()),
		))
	}
	span.SetAttributes(attrs...)

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
