package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/scanstock/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type shelfItem struct {
	Barcode string `gorm:"primaryKey"`
	Stock   int64
}

func openShelf(t *testing.T, plugins ...gorm.Plugin) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	for _, p := range plugins {
		require.NoError(t, db.Use(p))
	}
	require.NoError(t, db.AutoMigrate(&shelfItem{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestDBPlugins_CountsStatementsByOperation(t *testing.T) {
	reader, mp := newManualMeter(t)
	plugins, err := telemetry.DBPlugins(mp.Meter("db"), telemetry.DBConfig{SlowAfter: time.Hour})
	require.NoError(t, err)
	require.Len(t, plugins, 1, "no otelgorm without tracing")

	db := openShelf(t, plugins...)
	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&shelfItem{Barcode: "4006381333931", Stock: 3}).Error)
	require.NoError(t, db.WithContext(ctx).Model(&shelfItem{}).
		Where("barcode = ?", "4006381333931").Update("stock", gorm.Expr("stock + ?", 1)).Error)
	var item shelfItem
	require.NoError(t, db.WithContext(ctx).First(&item, "barcode = ?", "4006381333931").Error)
	assert.Equal(t, int64(4), item.Stock)
	require.NoError(t, db.WithContext(ctx).Exec("DELETE FROM shelf_items").Error)

	metrics := collect(t, reader)
	total := metrics["db_query_total"].Data.(metricdata.Sum[int64])
	ops := map[string]int64{}
	for _, dp := range total.DataPoints {
		op, _ := dp.Attributes.Value(telemetry.AttrDBOperation)
		ops[op.AsString()] += dp.Value
	}
	assert.GreaterOrEqual(t, ops["INSERT"], int64(1))
	assert.GreaterOrEqual(t, ops["UPDATE"], int64(1))
	assert.GreaterOrEqual(t, ops["SELECT"], int64(1))
	assert.GreaterOrEqual(t, ops["DELETE"], int64(1), "raw statements are classified by verb")

	_, slow := metrics["db_slow_query_total"]
	assert.False(t, slow)
}

func TestDBPlugins_SlowQueriesAreFlagged(t *testing.T) {
	recorder := setupRecorder(t)
	reader, mp := newManualMeter(t)
	plugins, err := telemetry.DBPlugins(mp.Meter("db"), telemetry.DBConfig{
		Trace:     true,
		SlowAfter: time.Nanosecond,
		System:    "sqlite",
	})
	require.NoError(t, err)
	require.Len(t, plugins, 2)

	db := openShelf(t, plugins...)
	require.NoError(t, db.WithContext(context.Background()).Create(&shelfItem{Barcode: "PART/42 A", Stock: 1}).Error)

	slow := collect(t, reader)["db_slow_query_total"].Data.(metricdata.Sum[int64])
	assert.GreaterOrEqual(t, sumOf(slow.DataPoints), int64(1))

	var flagged bool
	for _, s := range recorder.Ended() {
		if attrMap(s.Attributes())["db.slow_query"].AsBool() {
			flagged = true
		}
	}
	assert.True(t, flagged, "insert span carries db.slow_query")
}

func TestRegisterPoolMetrics(t *testing.T) {
	reader, mp := newManualMeter(t)
	db := openShelf(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)

	unregister, err := telemetry.RegisterPoolMetrics(mp.Meter("db"), sqlDB)
	require.NoError(t, err)

	metrics := collect(t, reader)
	limit := metrics["db_pool_connections_max"].Data.(metricdata.Gauge[int64])
	require.Len(t, limit.DataPoints, 1)
	assert.Equal(t, int64(4), limit.DataPoints[0].Value)

	conns := metrics["db_pool_connections"].Data.(metricdata.Gauge[int64])
	assert.Len(t, conns.DataPoints, 3)

	require.NoError(t, unregister())
}
