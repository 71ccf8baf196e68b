package observe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the data point carrying key=value, or -1.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDetection(ctx, "north_sentry")
	m.RecordDetection(ctx, "north_sentry")
	m.RecordDetection(ctx, "dock_watch")
	m.RecordEscalation(ctx, "dock_clerk", "north_sentry")
	m.RecordCatch(ctx, "north_sentry")
	m.RecordTrustStep(ctx, "dock_clerk")
	m.RecordDialogueEnding(ctx, "foreman", "high")
	m.RecordCommand(ctx, "choose", "ok")

	rm := collect(t, reader)
	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"stealth.detections", "guard_id", "north_sentry", 2},
		{"stealth.detections", "guard_id", "dock_watch", 1},
		{"stealth.escalations", "npc_id", "dock_clerk", 1},
		{"stealth.catches", "guard_id", "north_sentry", 1},
		{"stealth.trust.steps", "npc_id", "dock_clerk", 1},
		{"stealth.dialogue.endings", "tier", "high", 1},
		{"stealth.commands", "status", "ok", 1},
	}
	for _, tt := range tests {
		t.Run(tt.metric+"/"+tt.value, func(t *testing.T) {
			if got := sumFor(t, rm, tt.metric, tt.key, tt.value); got != tt.want {
				t.Errorf("value = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestActiveChases(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGuardTransition(ctx, "north_sentry", "patrol", "chase")
	m.RecordGuardTransition(ctx, "dock_watch", "dialogue", "chase")
	m.RecordGuardTransition(ctx, "dock_watch", "chase", "patrol")
	m.RecordGuardTransition(ctx, "north_sentry", "chase", "caught")
	m.RecordGuardTransition(ctx, "dock_watch", "patrol", "follow")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "stealth.active_chases", "", ""); got != 0 {
		t.Errorf("active chases = %d, want 0", got)
	}
	if got := sumFor(t, rm, "stealth.guard.transitions", "state", "chase"); got != 2 {
		t.Errorf("chase transitions = %d, want 2", got)
	}
}

func TestTickDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordTick(ctx, 0.0004)
	m.RecordTick(ctx, 0.002)

	rm := collect(t, reader)
	met := findMetric(rm, "stealth.tick.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestMiddleware(t *testing.T) {
	m, reader := newTestMetrics(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := Middleware(m, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
	if findMetric(collect(t, reader), "stealth.http.request.duration") == nil {
		t.Error("request duration not recorded")
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
