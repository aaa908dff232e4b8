package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const queryStartKey = "scanstock:query_start"

// DBConfig controls inventory store instrumentation
type DBConfig struct {
	Trace      bool          // emit otelgorm spans
	LogFullSQL bool          // keep bound variables in span statements
	SlowAfter  time.Duration // queries slower than this are counted and flagged
	System     string        // db.system reported on spans
}

// DBPlugins returns the GORM plugins for the store in registration order. The query
// plugin comes first so its after hooks see the otelgorm span before it ends.
func DBPlugins(meter metric.Meter, cfg DBConfig) ([]gorm.Plugin, error) {
	qp, err := newQueryPlugin(meter, cfg.SlowAfter)
	if err != nil {
		return nil, err
	}
	if !cfg.Trace {
		return []gorm.Plugin{qp}, nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.System)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	return []gorm.Plugin{qp, otelgorm.NewPlugin(opts...)}, nil
}

type queryPlugin struct {
	total     *Counter
	slow      *Counter
	duration  *Histogram
	slowAfter time.Duration
}

func newQueryPlugin(meter metric.Meter, slowAfter time.Duration) (*queryPlugin, error) {
	if slowAfter <= 0 {
		slowAfter = 200 * time.Millisecond
	}
	total, err := NewCounter(meter, "db_query_total", "Statements run against the inventory store", "{query}")
	if err != nil {
		return nil, err
	}
	slow, err := NewCounter(meter, "db_slow_query_total", "Statements slower than the slow query threshold", "{query}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, "db_query_duration_seconds", "Statement latency", "s", DBDurationBuckets)
	if err != nil {
		return nil, err
	}
	return &queryPlugin{total: total, slow: slow, duration: duration, slowAfter: slowAfter}, nil
}

func (p *queryPlugin) Name() string {
	return "scanstock:query"
}

func (p *queryPlugin) Initialize(db *gorm.DB) error {
	return registerAround(db, "scanstock_query", p.start, p.finish)
}

func (p *queryPlugin) start(db *gorm.DB, _ string) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (p *queryPlugin) finish(db *gorm.DB, processor string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var elapsed time.Duration
	if v, ok := db.InstanceGet(queryStartKey); ok {
		elapsed = time.Since(v.(time.Time))
	}

	op := AttrDBOperation.String(statementKind(processor, db.Statement.SQL.String()))
	p.total.Inc(ctx, op)
	p.duration.RecordDuration(ctx, elapsed, op)
	isSlow := elapsed > p.slowAfter
	if isSlow {
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		p.slow.Inc(ctx, AttrDBTable.String(table))
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
	if isSlow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}

// statementKind names the statement for the operation label. Create, query, update
// and delete map directly; row and raw statements are classified by their verb.
func statementKind(processor, statement string) string {
	switch processor {
	case "create":
		return "INSERT"
	case "query":
		return "SELECT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	}
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch verb := strings.ToUpper(fields[0]); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return verb
	default:
		return "OTHER"
	}
}

// registerAround hooks before and after every GORM processor, named
// prefix:before_<processor> and prefix:after_<processor>.
func registerAround(db *gorm.DB, prefix string, before, after func(*gorm.DB, string)) error {
	cb := db.Callback()
	hooks := []struct {
		processor string
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		processor := h.processor
		if err := h.before(prefix+":before_"+processor, func(db *gorm.DB) { before(db, processor) }); err != nil {
			return fmt.Errorf("register %s: %w", processor, err)
		}
		if err := h.after(prefix+":after_"+processor, func(db *gorm.DB) { after(db, processor) }); err != nil {
			return fmt.Errorf("register %s: %w", processor, err)
		}
	}
	return nil
}

// RegisterPoolMetrics observes the connection pool on every collection.
// The returned function unregisters the callback.
func RegisterPoolMetrics(meter metric.Meter, sqlDB *sql.DB) (func() error, error) {
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Pool connections by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("gauge db_pool_connections: %w", err)
	}
	limit, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Pool size limit"), metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("gauge db_pool_connections_max: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sqlDB.Stats()
		o.ObserveInt64(limit, int64(s.MaxOpenConnections))
		for state, n := range map[string]int{"idle": s.Idle, "in_use": s.InUse, "open": s.OpenConnections} {
			o.ObserveInt64(conns, int64(n), metric.WithAttributes(AttrDBState.String(state)))
		}
		return nil
	}, conns, limit)
	if err != nil {
		return nil, fmt.Errorf("pool callback: %w", err)
	}
	return reg.Unregister, nil
}
