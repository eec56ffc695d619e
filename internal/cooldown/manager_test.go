package cooldown

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{now: time.UnixMilli(ms)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeControl struct {
	mu       sync.Mutex
	disabled bool
	label    string
	dead     bool
	enables  int
	labels   []string
}

func (c *fakeControl) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled && !disabled {
		c.enables++
	}
	c.disabled = disabled
}

func (c *fakeControl) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
	c.labels = append(c.labels, label)
}

func (c *fakeControl) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

func (c *fakeControl) kill() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
}

func (c *fakeControl) state() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled, c.label
}

type mapStore struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
	getErr error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

func (s *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *mapStore) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

type idleTicker struct{ c chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.c }
func (t idleTicker) Stop()               {}

const t0 = int64(1_700_000_000_000)

// newManualManager returns a manager whose loops never tick on their own; tests
// drive render steps through step().
func newManualManager(t *testing.T, store Store, clock Clock, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	m := New(store, Config{}, opts...)
	m.newTicker = func(time.Duration) ticker { return idleTicker{c: make(chan time.Time)} }
	t.Cleanup(m.Close)
	return m
}

func currentLoop(m *Manager, channel string) *loop {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loops[channel]
}

func step(t *testing.T, m *Manager, channel string) outcome {
	t.Helper()
	l := currentLoop(m, channel)
	if l == nil {
		t.Fatalf("no running loop for %q", channel)
	}
	return m.advance(l)
}

func remainingFromLabel(t *testing.T, label string) int {
	t.Helper()
	n, err := strconv.Atoi(strings.TrimSuffix(label, "s后重试"))
	if err != nil {
		t.Fatalf("label %q is not a countdown: %v", label, err)
	}
	return n
}

func TestEntryRemainingRoundsUp(t *testing.T) {
	e := Entry{Channel: "register", ExpiresAt: 10_000}

	cases := []struct {
		now  int64
		want int64
	}{
		{now: 0, want: 10},
		{now: 1, want: 10},
		{now: 999, want: 10},
		{now: 1000, want: 9},
		{now: 9_999, want: 1},
		{now: 10_000, want: 0},
		{now: 20_000, want: 0},
	}
	for _, tc := range cases {
		if got := e.Remaining(tc.now); got != tc.want {
			t.Fatalf("Remaining(%d): expected %d, got %d", tc.now, tc.want, got)
		}
	}
	if e.Active(10_000) {
		t.Fatal("expected entry to be inactive at its expiry instant")
	}
}

func TestParseEntryRejectsMalformedValues(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "12.5", "-5", "0"} {
		if _, err := ParseEntry("reset", raw); !errors.Is(err, ErrMalformedEntry) {
			t.Fatalf("ParseEntry(%q): expected ErrMalformedEntry, got %v", raw, err)
		}
	}

	e, err := ParseEntry("reset", " 1700000045000 ")
	if err != nil {
		t.Fatalf("ParseEntry failed: %v", err)
	}
	if e.ExpiresAt != 1_700_000_045_000 || e.Channel != "reset" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestStartRendersCountdownAfterThirtySeconds(t *testing.T) {
	clock := newFakeClock(t0)
	store := newMapStore()
	m := newManualManager(t, store, clock)
	btn := &fakeControl{}

	if err := m.Start(context.Background(), btn, "register"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if disabled, label := btn.state(); !disabled || label != "60s后重试" {
		t.Fatalf("expected disabled 60s countdown, got disabled=%v label=%q", disabled, label)
	}

	clock.Advance(30 * time.Second)
	if got := step(t, m, "register"); got != outcomeRunning {
		t.Fatalf("expected running, got %v", got)
	}

	disabled, label := btn.state()
	if !disabled {
		t.Fatal("expected control disabled at t=30s")
	}
	if label != "30s后重试" {
		t.Fatalf("expected 30s后重试, got %q", label)
	}

	raw, ok := store.value("lynx_timer_register")
	if !ok || raw != strconv.FormatInt(t0+60_000, 10) {
		t.Fatalf("expected persisted expiry %d, got %q (present=%v)", t0+60_000, raw, ok)
	}
}

func TestRestoreResumesActiveEntry(t *testing.T) {
	clock := newFakeClock(t0 + 10_000)
	store := newMapStore()
	store.data["lynx_timer_reset"] = strconv.FormatInt(t0+45_000, 10)

	m := newManualManager(t, store, clock)
	btn := &fakeControl{}
	m.Bind("reset", btn)
	m.Restore(context.Background())

	disabled, label := btn.state()
	if !disabled {
		t.Fatal("expected control disabled while cooldown active")
	}
	if label != "35s后重试" {
		t.Fatalf("expected 35s后重试, got %q", label)
	}
	if m.Running() != 1 {
		t.Fatalf("expected one running loop, got %d", m.Running())
	}
}

func TestRestoreClearsExpiredEntry(t *testing.T) {
	clock := newFakeClock(t0)
	store := newMapStore()
	store.data["lynx_timer_reset"] = strconv.FormatInt(t0-1000, 10)

	m := newManualManager(t, store, clock)
	btn := &fakeControl{disabled: true, label: "stale"}
	m.Bind("reset", btn)
	m.Restore(context.Background())

	if _, ok := store.value("lynx_timer_reset"); ok {
		t.Fatal("expected expired entry to be removed")
	}
	disabled, label := btn.state()
	if disabled || label != DefaultLabel {
		t.Fatalf("expected enabled default label, got disabled=%v label=%q", disabled, label)
	}
	if m.Running() != 0 {
		t.Fatalf("expected no running loop, got %d", m.Running())
	}
}

func TestRestoreWithoutEntryLeavesControlEnabled(t *testing.T) {
	store := newMapStore()
	m := newManualManager(t, store, newFakeClock(t0))
	btn := &fakeControl{}
	m.Bind("register", btn)
	m.Restore(context.Background())

	disabled, label := btn.state()
	if disabled || label != DefaultLabel {
		t.Fatalf("expected enabled default label, got disabled=%v label=%q", disabled, label)
	}
	if _, ok := store.value("lynx_timer_register"); ok {
		t.Fatal("expected no entry to be created")
	}
}

func TestRestoreTreatsMalformedAndUnreadableEntriesAsAbsent(t *testing.T) {
	store := newMapStore()
	store.data["lynx_timer_register"] = "not-a-timestamp"

	m := newManualManager(t, store, newFakeClock(t0))
	btn := &fakeControl{disabled: true}
	m.Bind("register", btn)
	m.Restore(context.Background())

	if disabled, label := btn.state(); disabled || label != DefaultLabel {
		t.Fatalf("malformed: expected enabled default, got disabled=%v label=%q", disabled, label)
	}
	if _, ok := store.value("lynx_timer_register"); ok {
		t.Fatal("expected malformed entry to be removed")
	}

	store.data["lynx_timer_reset"] = strconv.FormatInt(t0+45_000, 10)
	store.getErr = errors.New("backend down")
	btn2 := &fakeControl{disabled: true}
	m.Bind("reset", btn2)
	m.Restore(context.Background())
	if disabled, _ := btn2.state(); disabled {
		t.Fatal("unreadable: expected control enabled")
	}
	if _, ok := store.value("lynx_timer_reset"); !ok {
		t.Fatal("unreadable: expected persisted entry to survive a failed read")
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	clock := newFakeClock(t0 + 10_000)
	store := newMapStore()
	store.data["lynx_timer_reset"] = strconv.FormatInt(t0+45_000, 10)
	store.data["lynx_timer_register"] = strconv.FormatInt(t0+12_500, 10)

	m := newManualManager(t, store, clock)
	reset := &fakeControl{}
	register := &fakeControl{}
	m.Bind("reset", reset)
	m.Bind("register", register)

	m.Restore(context.Background())
	d1, l1 := reset.state()
	rd1, rl1 := register.state()

	for i := 0; i < 5; i++ {
		m.Restore(context.Background())
	}

	d2, l2 := reset.state()
	rd2, rl2 := register.state()
	if d1 != d2 || l1 != l2 || rd1 != rd2 || rl1 != rl2 {
		t.Fatalf("state changed across restores: (%v %q %v %q) vs (%v %q %v %q)", d1, l1, rd1, rl1, d2, l2, rd2, rl2)
	}
	if m.Running() != 2 {
		t.Fatalf("expected exactly two loops, got %d", m.Running())
	}
}

func TestCountdownIsMonotonicAndReenablesOnce(t *testing.T) {
	clock := newFakeClock(t0)
	store := newMapStore()
	m := newManualManager(t, store, clock)
	btn := &fakeControl{}

	if err := m.Start(context.Background(), btn, "register"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	prev := 60
	for i := 0; i < 200; i++ {
		clock.Advance(700 * time.Millisecond)
		if step(t, m, "register") != outcomeRunning {
			break
		}
		_, label := btn.state()
		got := remainingFromLabel(t, label)
		if got > prev {
			t.Fatalf("countdown increased from %d to %d", prev, got)
		}
		prev = got
	}

	disabled, label := btn.state()
	if disabled || label != DefaultLabel {
		t.Fatalf("expected re-enabled default label, got disabled=%v label=%q", disabled, label)
	}
	if btn.enables != 1 {
		t.Fatalf("expected control re-enabled exactly once, got %d", btn.enables)
	}
	if currentLoop(m, "register") != nil {
		t.Fatal("expected loop to be removed after expiry")
	}
	if _, ok := store.value("lynx_timer_register"); ok {
		t.Fatal("expected entry removed after expiry")
	}

	m.Bind("register", btn)
	m.Restore(context.Background())
	if disabled, label := btn.state(); disabled || label != DefaultLabel {
		t.Fatalf("expected restore after expiry to leave control enabled, got disabled=%v label=%q", disabled, label)
	}
	if _, ok := store.value("lynx_timer_register"); ok {
		t.Fatal("expected restore not to recreate the entry")
	}
}

func TestStartTwiceKeepsSingleEntryAndLoop(t *testing.T) {
	clock := newFakeClock(t0)
	store := newMapStore()
	m := newManualManager(t, store, clock)
	btn := &fakeControl{}
	ctx := context.Background()

	if err := m.Start(ctx, btn, "register"); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	first := currentLoop(m, "register")

	clock.Advance(5 * time.Second)
	if err := m.Start(ctx, btn, "register"); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	raw, ok := store.value("lynx_timer_register")
	if !ok || raw != strconv.FormatInt(t0+5_000+60_000, 10) {
		t.Fatalf("expected second expiry, got %q (present=%v)", raw, ok)
	}
	if m.Running() != 1 {
		t.Fatalf("expected one loop, got %d", m.Running())
	}

	clock.Advance(2 * time.Second)
	if got := m.advance(first); got != outcomeDetached {
		t.Fatalf("expected replaced loop to stand down, got %v", got)
	}
	if _, label := btn.state(); label != "60s后重试" {
		t.Fatalf("replaced loop must not render, label=%q", label)
	}

	step(t, m, "register")
	if _, label := btn.state(); label != "58s后重试" {
		t.Fatalf("expected current loop to render 58s, got %q", label)
	}
}

func TestExpiryKeepsNewerEntryWrittenElsewhere(t *testing.T) {
	clock := newFakeClock(t0)
	store := newMapStore()
	m := newManualManager(t, store, clock)
	btn := &fakeControl{}

	if err := m.Start(context.Background(), btn, "reset"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	newer := strconv.FormatInt(t0+120_000, 10)
	store.data["lynx_timer_reset"] = newer

	clock.Advance(61 * time.Second)
	if got := step(t, m, "reset"); got != outcomeExpired {
		t.Fatalf("expected expired, got %v", got)
	}
	if raw, _ := store.value("lynx_timer_reset"); raw != newer {
		t.Fatalf("expected newer entry to survive, got %q", raw)
	}
}

func TestDeadControlStopsLoopAndKeepsEntry(t *testing.T) {
	clock := newFakeClock(t0)
	store := newMapStore()

	var events []Event
	var mu sync.Mutex
	m := newManualManager(t, store, clock, WithObserver(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	btn := &fakeControl{}

	if err := m.Start(context.Background(), btn, "register"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	btn.kill()
	clock.Advance(time.Second)

	if got := step(t, m, "register"); got != outcomeDetached {
		t.Fatalf("expected detached, got %v", got)
	}
	if m.Running() != 0 {
		t.Fatalf("expected no running loops, got %d", m.Running())
	}
	if _, ok := store.value("lynx_timer_register"); !ok {
		t.Fatal("expected entry to remain for a later restore")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0].Kind != EventStarted || events[1].Kind != EventDetached {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestStartPersistFailureStillCountsDown(t *testing.T) {
	store := newMapStore()
	store.setErr = errors.New("quota exceeded")
	m := newManualManager(t, store, newFakeClock(t0))
	btn := &fakeControl{}

	err := m.Start(context.Background(), btn, "register")
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("expected ErrPersistFailed, got %v", err)
	}
	if disabled, _ := btn.state(); !disabled {
		t.Fatal("expected control disabled despite persist failure")
	}
	if !m.Active(context.Background(), "register") {
		t.Fatal("expected in-memory cooldown to be active")
	}
}

func TestRestoreKeepsUnpersistedCountdown(t *testing.T) {
	store := newMapStore()
	store.setErr = errors.New("quota exceeded")
	m := newManualManager(t, store, newFakeClock(t0))
	btn := &fakeControl{}
	m.Bind("register", btn)

	if err := m.Start(context.Background(), btn, "register"); !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("expected ErrPersistFailed, got %v", err)
	}
	_, before := btn.state()

	m.Restore(context.Background())

	if m.Running() != 1 {
		t.Fatalf("expected the in-memory loop to keep running, got %d loops", m.Running())
	}
	if disabled, label := btn.state(); !disabled || label != before {
		t.Fatalf("expected countdown untouched, got disabled=%v label=%q (was %q)", disabled, label, before)
	}
}

func TestLookupIgnoresExpiredEntries(t *testing.T) {
	clock := newFakeClock(t0)
	store := newMapStore()
	store.data["lynx_timer_reset"] = strconv.FormatInt(t0-1, 10)
	store.data["lynx_timer_register"] = strconv.FormatInt(t0+1500, 10)
	m := newManualManager(t, store, clock)

	if _, ok := m.Lookup(context.Background(), "reset"); ok {
		t.Fatal("expected expired entry to be treated as absent")
	}
	e, ok := m.Lookup(context.Background(), "register")
	if !ok || e.Remaining(clock.Now().UnixMilli()) != 2 {
		t.Fatalf("expected active entry with 2s remaining, got %+v ok=%v", e, ok)
	}
}

func TestCloseStopsLoopsAndRejectsStart(t *testing.T) {
	store := newMapStore()
	m := New(store, Config{}, WithClock(newFakeClock(t0)))
	m.newTicker = func(time.Duration) ticker { return idleTicker{c: make(chan time.Time)} }

	if err := m.Start(context.Background(), &fakeControl{}, "register"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	m.Close()

	if m.Running() != 0 {
		t.Fatalf("expected loops stopped, got %d", m.Running())
	}
	if _, ok := store.value("lynx_timer_register"); !ok {
		t.Fatal("expected entry kept after Close")
	}
	if err := m.Start(context.Background(), &fakeControl{}, "register"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func TestRealTickerReenablesControl(t *testing.T) {
	store := newMapStore()
	m := New(store, Config{Window: 50 * time.Millisecond, TickInterval: 5 * time.Millisecond})
	defer m.Close()
	btn := &fakeControl{}

	if err := m.Start(context.Background(), btn, "register"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, label := btn.state(); label != "1s后重试" {
		t.Fatalf("expected 1s countdown, got %q", label)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("loop did not finish: %v", err)
	}

	disabled, label := btn.state()
	if disabled || label != DefaultLabel {
		t.Fatalf("expected re-enabled default label, got disabled=%v label=%q", disabled, label)
	}
	if _, ok := store.value("lynx_timer_register"); ok {
		t.Fatal("expected entry removed after expiry")
	}
}
