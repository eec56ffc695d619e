package signpanel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/backend/stubserver"
	"github.com/MrEthical07/signpanel/internal/stores"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type recordingControl struct {
	mu       sync.Mutex
	disabled bool
	label    string
	history  []bool
	dead     bool
}

func (c *recordingControl) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = disabled
	c.history = append(c.history, disabled)
}

func (c *recordingControl) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
}

func (c *recordingControl) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

func (c *recordingControl) state() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled, c.label
}

func (c *recordingControl) toggles() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.history...)
}

type testEnv struct {
	panel    *Panel
	stub     *stubserver.Server
	url      string
	sink     *NotificationChannelSink
	store    Storage
	requests *atomic.Int64
}

type envOption func(*envSettings)

type envSettings struct {
	cfg     Config
	handler http.Handler
	builder func(*Builder)
	stub    []stubserver.Option
}

func withConfig(mutate func(*Config)) envOption {
	return func(s *envSettings) { mutate(&s.cfg) }
}

// withHandler replaces the stub backend; the stub is still created for LastCode.
func withHandler(h http.Handler) envOption {
	return func(s *envSettings) { s.handler = h }
}

func withBuilder(f func(*Builder)) envOption {
	return func(s *envSettings) { s.builder = f }
}

func withStubOptions(opts ...stubserver.Option) envOption {
	return func(s *envSettings) { s.stub = append(s.stub, opts...) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	settings := envSettings{cfg: DefaultConfig()}
	settings.cfg.Notify.DefaultDuration = 0
	settings.cfg.Notify.BufferSize = 256
	settings.cfg.Notify.DropIfFull = false
	for _, opt := range opts {
		opt(&settings)
	}

	stub := stubserver.New(settings.stub...)
	handler := settings.handler
	if handler == nil {
		handler = stub
	}

	requests := &atomic.Int64{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	settings.cfg.Backend.BaseURL = srv.URL

	sink := NewNotificationChannelSink(256)
	store := stores.NewMemoryStore()

	b := New().WithConfig(settings.cfg).WithStorage(store).WithNotificationSink(sink)
	if settings.builder != nil {
		settings.builder(b)
	}
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(p.Close)

	return &testEnv{
		panel:    p,
		stub:     stub,
		url:      srv.URL,
		sink:     sink,
		store:    store,
		requests: requests,
	}
}

// nextToast returns the next shown toast, skipping updates and dismissals.
func (e *testEnv) nextToast(t *testing.T) NotificationEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.sink.Events():
			if ev.EventType == NotificationShown {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for toast")
		}
	}
}

func (e *testEnv) expectToast(t *testing.T, message string, isError bool) {
	t.Helper()
	ev := e.nextToast(t)
	if ev.Message != message || ev.IsError != isError {
		t.Fatalf("expected toast %q (error=%v), got %q (error=%v)", message, isError, ev.Message, ev.IsError)
	}
}

// seedUser registers an account directly against the stub, bypassing the panel.
func (e *testEnv) seedUser(t *testing.T, username, email, password string) {
	t.Helper()
	ctx := context.Background()
	client := backend.NewClient(e.url)
	if _, err := client.SendCode(ctx, "register", email); err != nil {
		t.Fatalf("seed SendCode failed: %v", err)
	}
	code, ok := e.stub.LastCode(email)
	if !ok {
		t.Fatalf("seed: no code for %s", email)
	}
	if _, err := client.Register(ctx, username, email, code, password); err != nil {
		t.Fatalf("seed Register failed: %v", err)
	}
}

func isCountdownLabel(label string) bool {
	return strings.HasSuffix(label, "s后重试")
}
