package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/refraction.v1.SimulationControl/SetSource"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("SimulationControl", "SetSource", "OK")); got != 1 {
		t.Fatalf("refraction_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "refraction_rpc_duration_seconds", map[string]string{
		"service": "SimulationControl",
		"method":  "SetSource",
	}); count != 1 {
		t.Fatalf("refraction_rpc_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/refraction.v1.SimulationControl/ConfigureLayers"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("SimulationControl", "ConfigureLayers", "InvalidArgument")); got != 1 {
		t.Fatalf("refraction_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestObserveFrameRecordsRaysAndHits(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveFrame(FrameSample{Lit: 80, Shadowed: 15, Discarded: 5, Hits: 3, Duration: 2 * time.Millisecond})
	collector.ObserveFrame(FrameSample{Lit: 90, Shadowed: 10, Hits: 4, Duration: time.Millisecond})

	if got := testutil.ToFloat64(collector.FramesTotal); got != 2 {
		t.Fatalf("refraction_frames_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Rays.WithLabelValues(RayOutcomeLit)); got != 170 {
		t.Fatalf("lit rays = %v, want 170", got)
	}
	if got := testutil.ToFloat64(collector.Rays.WithLabelValues(RayOutcomeDiscarded)); got != 5 {
		t.Fatalf("discarded rays = %v, want 5", got)
	}
	if got := testutil.ToFloat64(collector.ObserverHits); got != 4 {
		t.Fatalf("refraction_observer_hits = %v, want 4", got)
	}
	if count := histogramSampleCount(t, reg, "refraction_frame_duration_seconds", nil); count != 2 {
		t.Fatalf("refraction_frame_duration_seconds sample_count = %d, want 2", count)
	}

	collector.IncHitResets()
	collector.IncFramesDropped()
	if got := testutil.ToFloat64(collector.ObserverHits); got != 0 {
		t.Fatalf("hits gauge after reset = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.HitResets); got != 1 {
		t.Fatalf("refraction_hit_resets_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.FramesDropped); got != 1 {
		t.Fatalf("refraction_frames_dropped_total = %v, want 1", got)
	}
}

func TestNewSimCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("first NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}

	first.ObserveFrame(FrameSample{Lit: 1})
	if got := testutil.ToFloat64(second.FramesTotal); got != 1 {
		t.Fatalf("collectors on one registry should share counters, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.ObserveFrame(FrameSample{Lit: 1})
	c.IncHitResets()
	c.IncFramesDropped()
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestMetricsHandlerExposesFrameMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveFrame(FrameSample{Lit: 7, Shadowed: 3, Hits: 2, Duration: time.Millisecond})
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"refraction_rpc_requests_total",
		"refraction_rpc_duration_seconds",
		"refraction_frames_total",
		"refraction_rays_total",
		"refraction_observer_hits 2",
		"refraction_frame_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"":                                        {"unknown", "unknown"},
		"/refraction.v1.SimulationControl/SetView": {"SimulationControl", "SetView"},
		"noslash":                                 {"unknown", "unknown"},
	}
	for in, want := range cases {
		svc, method := SplitMethod(in)
		if svc != want[0] || method != want[1] {
			t.Fatalf("SplitMethod(%q) = %q, %q; want %q, %q", in, svc, method, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
