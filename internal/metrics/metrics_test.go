package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"student-records/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumValue(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()

	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := metrics.New(provider.Meter("student-records-test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStudentCreated(ctx)
	m.RecordStudentCreated(ctx)
	m.RecordStudentViewed(ctx)
	m.RecordStudentDeleted(ctx)
	m.RecordQuery(ctx, "select", "school.student", 5*time.Millisecond, nil)
	m.RecordQuery(ctx, "insert", "school.student", time.Millisecond, errors.New("boom"))

	data := collect(t, reader)

	assert.Equal(t, int64(2), sumValue(t, data["student_records.students.created"]))
	assert.Equal(t, int64(1), sumValue(t, data["student_records.students.viewed"]))
	assert.Equal(t, int64(1), sumValue(t, data["student_records.students.deleted"]))
	assert.Equal(t, int64(1), sumValue(t, data["db.query.errors"]))

	hist, ok := data["db.query.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()

	var nilMetrics *metrics.Metrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordStudentCreated(ctx)
		nilMetrics.RecordQuery(ctx, "select", "school.student", time.Millisecond, nil)
	})

	mock := metrics.NewMock()
	assert.NotPanics(t, func() {
		mock.RecordStudentsExported(ctx)
		mock.RecordStudentsListViewed(ctx)
		mock.RecordQuery(ctx, "delete", "school.student", time.Millisecond, errors.New("x"))
	})
}

func TestMetrics_PublishAndRuntime(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	meter := provider.Meter("student-records-test")
	m, err := metrics.New(meter)
	require.NoError(t, err)
	require.NoError(t, metrics.RegisterRuntime(meter))

	ctx := context.Background()
	m.RecordPublish(ctx, "students.events.created", time.Millisecond, nil)
	m.RecordPublish(ctx, "students.events.created", time.Millisecond, nil)
	m.RecordPublish(ctx, "students.events.deleted", time.Millisecond, errors.New("nats: connection closed"))

	data := collect(t, reader)

	assert.Equal(t, int64(2), sumValue(t, data["messaging.messages.published"]))
	assert.Equal(t, int64(1), sumValue(t, data["messaging.publish.errors"]))

	goroutines, ok := data["runtime.go.goroutines"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.NotEmpty(t, goroutines.DataPoints)
	assert.Positive(t, goroutines.DataPoints[0].Value)
}
