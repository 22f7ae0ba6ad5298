package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetricsCollector samples Go runtime health into OTel instruments
// on a fixed cadence. The configured exporter decides where the samples
// go; with the Prometheus exporter they surface on /metrics.
type SystemMetricsCollector struct {
	goroutines metric.Int64Gauge
	heapBytes  metric.Int64Gauge
	allocBytes metric.Int64Gauge
	sysBytes   metric.Int64Gauge
	gcPause    metric.Float64Histogram
	uptime     metric.Float64Gauge

	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
}

// NewSystemMetricsCollector registers the runtime instruments on the meter
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	c := &SystemMetricsCollector{
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}

	var err error
	if c.goroutines, err = meter.Int64Gauge("system_goroutines",
		metric.WithDescription("Number of active goroutines")); err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}
	if c.heapBytes, err = meter.Int64Gauge("system_memory_usage_bytes",
		metric.WithDescription("Live heap memory in bytes"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}
	if c.allocBytes, err = meter.Int64Gauge("system_memory_allocated_bytes",
		metric.WithDescription("Cumulative bytes allocated by the Go runtime"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}
	if c.sysBytes, err = meter.Int64Gauge("system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}
	if c.gcPause, err = meter.Float64Histogram("system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}
	if c.uptime, err = meter.Float64Gauge("system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	return c, nil
}

// sample reads the runtime counters and records them
func (c *SystemMetricsCollector) sample(ctx context.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
	c.heapBytes.Record(ctx, int64(ms.Alloc))
	c.allocBytes.Record(ctx, int64(ms.TotalAlloc))
	c.sysBytes.Record(ctx, int64(ms.Sys))
	c.uptime.Record(ctx, time.Since(c.startTime).Seconds())

	// PauseNs is a ring buffer indexed by GC cycle
	if ms.NumGC > 0 {
		pause := time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
		c.gcPause.Record(ctx, pause.Seconds())
	}
}

// Start samples immediately, then on every tick until Stop or context
// cancellation. Run it on its own goroutine.
func (c *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample(ctx)
	for {
		select {
		case <-ticker.C:
			c.sample(ctx)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the sampling loop
func (c *SystemMetricsCollector) Stop() {
	close(c.stopCh)
}
