package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	loginregister "github.com/Anonymus123-11/login-register"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[loginregister.MetricID]uint64
	hist     map[loginregister.MetricID][]uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() loginregister.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := loginregister.MetricsSnapshot{
		Counters:   make(map[loginregister.MetricID]uint64, len(f.counters)),
		Histograms: make(map[loginregister.MetricID][]uint64, len(f.hist)),
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	for k, b := range f.hist {
		out.Histograms[k] = append([]uint64(nil), b...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints[0].Value, true
			case metricdata.Gauge[int64]:
				return data.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterCollects(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		counters: map[loginregister.MetricID]uint64{loginregister.MetricLoginSuccess: 3},
		hist:     map[loginregister.MetricID][]uint64{loginregister.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1}},
		dropped:  1,
	}

	exp, err := NewExporter(provider.Meter("login-register-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if v, ok := findSum(rm, "credential_login_success_total"); !ok || v != 3 {
		t.Fatalf("login_success = %d (found %v), want 3", v, ok)
	}
	if v, ok := findSum(rm, "credential_validate_latency_seconds_count"); !ok || v != 8 {
		t.Fatalf("validate count = %d (found %v), want 8", v, ok)
	}
	if v, ok := findSum(rm, "credential_validate_latency_seconds_bucket_le_0_01"); !ok || v != 2 {
		t.Fatalf("second bucket = %d (found %v), want 2", v, ok)
	}
	if v, ok := findSum(rm, "credential_audit_dropped_total"); !ok || v != 1 {
		t.Fatalf("audit dropped = %d (found %v), want 1", v, ok)
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader()
	if _, err := NewExporter(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{counters: map[loginregister.MetricID]uint64{loginregister.MetricLoginSuccess: 1}}

	exp, err := NewExporter(provider.Meter("login-register-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[loginregister.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
