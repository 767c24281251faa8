package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/gamekeys/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueryObserver receives the duration of every database operation
type QueryObserver interface {
	ObserveQuery(operation, table string, duration time.Duration, err error)
}

type queryStartKey struct{}

// DBInstrumentation registers otelgorm spans and per-query timing on a gorm DB
type DBInstrumentation struct {
	config   config.TelemetryConfig
	observer QueryObserver
	logger   *zap.Logger
}

// NewDBInstrumentation creates the instrumentation. observer may be nil.
func NewDBInstrumentation(cfg config.TelemetryConfig, observer QueryObserver, logger *zap.Logger) *DBInstrumentation {
	if cfg.DBSlowQueryThresh <= 0 {
		cfg.DBSlowQueryThresh = 200 * time.Millisecond
	}
	return &DBInstrumentation{config: cfg, observer: observer, logger: logger}
}

// Register installs the callbacks. otelgorm spans are added only when
// tracing and DB tracing are both enabled; timing runs whenever an observer
// is set.
func (d *DBInstrumentation) Register(db *gorm.DB) error {
	tracing := d.config.Enabled && d.config.DBTraceEnabled
	if tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
		if !d.config.DBLogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}
	if !tracing && d.observer == nil {
		return nil
	}

	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("gamekeys:before_create", d.before) },
		func() error { return cb.Query().Before("gorm:query").Register("gamekeys:before_query", d.before) },
		func() error { return cb.Update().Before("gorm:update").Register("gamekeys:before_update", d.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("gamekeys:before_delete", d.before) },
		func() error { return cb.Row().Before("gorm:row").Register("gamekeys:before_row", d.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("gamekeys:before_raw", d.before) },
		func() error { return cb.Create().After("gorm:create").Register("gamekeys:after_create", d.after("create")) },
		func() error { return cb.Query().After("gorm:query").Register("gamekeys:after_query", d.after("query")) },
		func() error { return cb.Update().After("gorm:update").Register("gamekeys:after_update", d.after("update")) },
		func() error { return cb.Delete().After("gorm:delete").Register("gamekeys:after_delete", d.after("delete")) },
		func() error { return cb.Row().After("gorm:row").Register("gamekeys:after_row", d.after("row")) },
		func() error { return cb.Raw().After("gorm:raw").Register("gamekeys:after_raw", d.after("raw")) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	d.logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", tracing),
		zap.Duration("slow_query_threshold", d.config.DBSlowQueryThresh),
	)
	return nil
}

func (d *DBInstrumentation) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (d *DBInstrumentation) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)

		dbErr := db.Error
		if errors.Is(dbErr, gorm.ErrRecordNotFound) {
			dbErr = nil
		}
		if d.observer != nil {
			d.observer.ObserveQuery(operation, db.Statement.Table, elapsed, dbErr)
		}

		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if dbErr != nil {
			span.SetStatus(codes.Error, dbErr.Error())
		}
		if elapsed > d.config.DBSlowQueryThresh {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", d.config.DBSlowQueryThresh.Milliseconds()),
			))
		}
	}
}
