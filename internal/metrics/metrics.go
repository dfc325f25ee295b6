package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is nil-safe: every Record* method is a no-op on a nil receiver or
// on an instance built by NewMock.
type Metrics struct {
	studentsCreated    metric.Int64Counter
	studentsViewed     metric.Int64Counter
	studentsListViewed metric.Int64Counter
	studentsUpdated    metric.Int64Counter
	studentsDeleted    metric.Int64Counter
	studentsExported   metric.Int64Counter

	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter

	connectionsOpen  metric.Int64ObservableGauge
	connectionsInUse metric.Int64ObservableGauge
	connectionsIdle  metric.Int64ObservableGauge

	messagesPublished metric.Int64Counter
	publishErrors     metric.Int64Counter
	publishDuration   metric.Float64Histogram
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.studentsCreated, err = meter.Int64Counter(
		"student_records.students.created",
		metric.WithDescription("Total number of students created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsViewed, err = meter.Int64Counter(
		"student_records.students.viewed",
		metric.WithDescription("Total number of students viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsListViewed, err = meter.Int64Counter(
		"student_records.students.list_viewed",
		metric.WithDescription("Total number of times students list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsUpdated, err = meter.Int64Counter(
		"student_records.students.updated",
		metric.WithDescription("Total number of students updated"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeleted, err = meter.Int64Counter(
		"student_records.students.deleted",
		metric.WithDescription("Total number of students deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsExported, err = meter.Int64Counter(
		"student_records.students.exported",
		metric.WithDescription("Total number of spreadsheet exports"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 1ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
	m.queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
		),
	)
	if err != nil {
		return nil, err
	}

	m.queryErrors, err = meter.Int64Counter(
		"db.query.errors",
		metric.WithDescription("Database query errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.connectionsOpen, err = meter.Int64ObservableGauge(
		"db.connections.open",
		metric.WithDescription("Current number of open database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	m.connectionsInUse, err = meter.Int64ObservableGauge(
		"db.connections.in_use",
		metric.WithDescription("Current number of in-use database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	m.connectionsIdle, err = meter.Int64ObservableGauge(
		"db.connections.idle",
		metric.WithDescription("Current number of idle database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	m.messagesPublished, err = meter.Int64Counter(
		"messaging.messages.published",
		metric.WithDescription("Total number of student events published"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	m.publishErrors, err = meter.Int64Counter(
		"messaging.publish.errors",
		metric.WithDescription("Total number of failed event publications"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.publishDuration, err = meter.Float64Histogram(
		"messaging.publish.duration",
		metric.WithDescription("Time to hand an event to the broker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NewMock creates a no-op Metrics instance for testing
func NewMock() *Metrics {
	return &Metrics{}
}

// RegisterDB reports connection pool stats on every collection.
func (m *Metrics) RegisterDB(db *sql.DB, meter metric.Meter) error {
	if m == nil || m.connectionsOpen == nil {
		return nil
	}

	_, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats := db.Stats()
			observer.ObserveInt64(m.connectionsOpen, int64(stats.OpenConnections))
			observer.ObserveInt64(m.connectionsInUse, int64(stats.InUse))
			observer.ObserveInt64(m.connectionsIdle, int64(stats.Idle))
			return nil
		},
		m.connectionsOpen,
		m.connectionsInUse,
		m.connectionsIdle,
	)
	return err
}

// RegisterRuntime reports goroutine count, heap usage and uptime.
func RegisterRuntime(meter metric.Meter) error {
	startTime := time.Now()

	goroutines, err := meter.Int64ObservableGauge(
		"runtime.go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return err
	}

	heapAlloc, err := meter.Int64ObservableGauge(
		"runtime.go.mem.heap_alloc",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	uptime, err := meter.Float64ObservableCounter(
		"service.uptime",
		metric.WithDescription("Service uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)

			observer.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
			observer.ObserveInt64(heapAlloc, int64(mem.HeapAlloc))
			observer.ObserveFloat64(uptime, time.Since(startTime).Seconds())
			return nil
		},
		goroutines,
		heapAlloc,
		uptime,
	)
	return err
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	if m == nil || m.queryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("table", table),
	}

	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.queryErrors != nil {
		m.queryErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordStudentCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentViewed(ctx context.Context) {
	if m != nil && m.studentsViewed != nil {
		m.studentsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsListViewed(ctx context.Context) {
	if m != nil && m.studentsListViewed != nil {
		m.studentsListViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentUpdated(ctx context.Context) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentDeleted(ctx context.Context) {
	if m != nil && m.studentsDeleted != nil {
		m.studentsDeleted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsExported(ctx context.Context) {
	if m != nil && m.studentsExported != nil {
		m.studentsExported.Add(ctx, 1)
	}
}

func (m *Metrics) RecordPublish(ctx context.Context, subject string, duration time.Duration, err error) {
	if m == nil || m.messagesPublished == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("subject", subject))
	m.publishDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.publishErrors.Add(ctx, 1, attrs)
		return
	}
	m.messagesPublished.Add(ctx, 1, attrs)
}
