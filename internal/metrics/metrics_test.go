package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/SigNoz/storefront-api/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders("signoz-ingestion-key=abc, x-team = shop ,broken")
	assert.Equal(t, map[string]string{
		"signoz-ingestion-key": "abc",
		"x-team":               "shop",
	}, headers)
	assert.Empty(t, parseHeaders(""))
}

func TestRecordDBQuery(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(provider.Meter("test"), "storefront-test", "sqlite3")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordDBQuery(ctx, "SELECT", "products", "SELECT 1", time.Now(), true)
	m.RecordDBQuery(ctx, "UPDATE", "products", "UPDATE products", time.Now(), false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "db.client.queries.count" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}

func TestInitMetrics_Disabled(t *testing.T) {
	cfg := &config.Config{
		OTELMetricsEnabled: false,
		OTELServiceName:    "storefront-test",
		OTELServiceVersion: "0.0.1",
		DBDriver:           "sqlite3",
	}

	m, provider, err := InitMetrics(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewNoop(t *testing.T) {
	m := NewNoop()
	assert.NotPanics(t, func() {
		m.OrdersCreated.Add(context.Background(), 1)
	})
}
