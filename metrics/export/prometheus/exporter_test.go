package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/signpanel"
)

type fakeSource struct {
	snapshot signpanel.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) Metrics() signpanel.MetricsSnapshot { return f.snapshot }
func (f fakeSource) DroppedNotifications() uint64       { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: signpanel.MetricsSnapshot{
			Counters:   map[signpanel.MetricID]uint64{},
			Histograms: map[signpanel.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: signpanel.MetricsSnapshot{
			Counters: map[signpanel.MetricID]uint64{
				signpanel.MetricCodeSendSuccess: 7,
			},
			Histograms: map[signpanel.MetricID][]uint64{
				signpanel.MetricBackendLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"signpanel_code_send_success_total 7",
		"signpanel_login_failure_total 0",
		"signpanel_backend_latency_seconds_bucket{le=\"0.005\"} 1",
		"signpanel_backend_latency_seconds_bucket{le=\"+Inf\"} 36",
		"signpanel_backend_latency_seconds_count 36",
		"signpanel_notifications_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerServesPanelMetrics(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sum":3}`))
	}))
	defer backend.Close()

	cfg := signpanel.DefaultConfig()
	cfg.Backend.BaseURL = backend.URL
	p, err := signpanel.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer p.Close()

	if _, err := p.CalculateSum(context.Background(), "1", "2"); err != nil {
		t.Fatalf("CalculateSum failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	NewExporter(p).Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "signpanel_calculate_success_total 1") {
		t.Fatalf("expected calculate counter, got:\n%s", body)
	}
	if !strings.Contains(body, "signpanel_backend_latency_seconds_count 1") {
		t.Fatalf("expected one latency sample, got:\n%s", body)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: signpanel.MetricsSnapshot{
			Counters: map[signpanel.MetricID]uint64{
				signpanel.MetricCodeSendSuccess:  1000,
				signpanel.MetricCodeSendCooldown: 40,
				signpanel.MetricLoginSuccess:     800,
				signpanel.MetricLoginFailure:     10,
			},
			Histograms: map[signpanel.MetricID][]uint64{
				signpanel.MetricBackendLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
