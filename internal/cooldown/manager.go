package cooldown

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWindow          = 60 * time.Second
	DefaultTickInterval    = time.Second
	DefaultStoreTimeout    = 3 * time.Second
	DefaultKeyPrefix       = "lynx_timer_"
	DefaultLabel           = "获取验证码"
	DefaultCountdownFormat = "%ds后重试"
)

// Config holds cooldown tuning parameters. Zero fields take the defaults above.
type Config struct {
	Window          time.Duration
	TickInterval    time.Duration
	StoreTimeout    time.Duration
	KeyPrefix       string
	DefaultLabel    string
	CountdownFormat string
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.DefaultLabel == "" {
		c.DefaultLabel = DefaultLabel
	}
	if c.CountdownFormat == "" {
		c.CountdownFormat = DefaultCountdownFormat
	}
	return c
}

// EventKind classifies lifecycle events reported to an Observer.
type EventKind uint8

const (
	// EventStarted: Start opened a new window.
	EventStarted EventKind = iota
	// EventResumed: Restore found an active entry and resumed rendering.
	EventResumed
	// EventExpired: the window closed and the control was re-enabled.
	EventExpired
	// EventDetached: the bound control went away and the loop stopped.
	EventDetached
	// EventCleared: Restore found nothing usable and left the control enabled.
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventResumed:
		return "resumed"
	case EventExpired:
		return "expired"
	case EventDetached:
		return "detached"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to the Observer after the manager mutex is released.
type Event struct {
	Kind      EventKind
	Channel   string
	ExpiresAt int64
}

// Observer receives lifecycle events. It must not call back into the Manager synchronously.
type Observer func(Event)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

type outcome uint8

const (
	outcomeRunning outcome = iota
	outcomeExpired
	outcomeDetached
)

type loop struct {
	channel   string
	control   Control
	expiresAt int64
	stop      chan struct{}
	stopOnce  sync.Once
}

func (l *loop) halt() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Manager tracks one cooldown per channel. It is the explicit context object that
// holds the store handle and the control bound to each channel.
type Manager struct {
	store     Store
	cfg       Config
	clock     Clock
	logger    *zap.Logger
	observer  Observer
	newTicker func(time.Duration) ticker

	mu       sync.Mutex
	controls map[string]Control
	loops    map[string]*loop
	closed   bool
	wg       sync.WaitGroup
}

// New creates a Manager over store. store must not be nil.
func New(store Store, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		cfg:    cfg.withDefaults(),
		clock:  systemClock{},
		logger: zap.NewNop(),
		newTicker: func(d time.Duration) ticker {
			return timeTicker{t: time.NewTicker(d)}
		},
		controls: make(map[string]Control),
		loops:    make(map[string]*loop),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Key returns the storage key for channel.
func (m *Manager) Key(channel string) string {
	return m.cfg.KeyPrefix + channel
}

// Bind associates control with channel for Restore. A later Start for the same
// channel rebinds it to the control passed there.
func (m *Manager) Bind(channel string, control Control) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controls[channel] = control
}

// Start opens a new window for channel ending Window from now, persists it and
// begins rendering on control. A running loop for the same channel is replaced.
// If persisting fails the countdown still runs and ErrPersistFailed is returned.
func (m *Manager) Start(ctx context.Context, control Control, channel string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	entry := Entry{Channel: channel, ExpiresAt: m.nowMillis() + m.cfg.Window.Milliseconds()}

	var persistErr error
	if err := m.store.Set(ctx, m.Key(channel), entry.Encode()); err != nil {
		persistErr = fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	events := m.runLocked(channel, control, entry.ExpiresAt, EventStarted)
	m.mu.Unlock()

	if persistErr != nil {
		m.logger.Warn("cooldown entry not persisted",
			zap.String("channel", channel),
			zap.Int64("expires_at", entry.ExpiresAt),
			zap.Error(persistErr))
	}
	m.emit(events)

	return persistErr
}

// Restore checks every bound channel once. Active entries resume rendering. A loop
// still running in memory (its entry could not be persisted) is kept. Otherwise the
// control is left enabled with its default label and missing, expired or malformed
// entries are removed; an unreadable entry is left in place. Calling Restore
// repeatedly yields the same state.
func (m *Manager) Restore(ctx context.Context) {
	m.mu.Lock()
	channels := make([]string, 0, len(m.controls))
	for channel := range m.controls {
		channels = append(channels, channel)
	}
	m.mu.Unlock()

	sort.Strings(channels)
	for _, channel := range channels {
		m.resume(ctx, channel)
	}
}

func (m *Manager) resume(ctx context.Context, channel string) {
	m.mu.Lock()
	control, ok := m.controls[channel]
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}

	var events []Event
	now := m.nowMillis()
	entry, found, readErr := m.loadLocked(ctx, channel)
	switch {
	case found && entry.Active(now):
		events = m.runLocked(channel, control, entry.ExpiresAt, EventResumed)
	case m.loopActiveLocked(channel, now):
		// unpersisted window still counting down
	default:
		m.stopLocked(channel)
		if readErr == nil {
			if err := m.store.Remove(ctx, m.Key(channel)); err != nil {
				m.logger.Warn("stale cooldown entry not removed",
					zap.String("channel", channel),
					zap.Error(err))
			}
		}
		if control.Alive() {
			control.SetDisabled(false)
			control.SetLabel(m.cfg.DefaultLabel)
		}
		events = append(events, Event{Kind: EventCleared, Channel: channel})
	}
	m.mu.Unlock()

	m.emit(events)
}

// Lookup returns the active entry for channel. Expired entries report ok=false.
func (m *Manager) Lookup(ctx context.Context, channel string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowMillis()
	if l, ok := m.loops[channel]; ok {
		entry := Entry{Channel: channel, ExpiresAt: l.expiresAt}
		if entry.Active(now) {
			return entry, true
		}
	}

	entry, found, _ := m.loadLocked(ctx, channel)
	if !found || !entry.Active(now) {
		return Entry{}, false
	}
	return entry, true
}

// Active reports whether channel is inside a cooldown window.
func (m *Manager) Active(ctx context.Context, channel string) bool {
	_, ok := m.Lookup(ctx, channel)
	return ok
}

// Stop halts the render loop for channel without touching the control or the store.
func (m *Manager) Stop(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(channel)
}

// Running reports how many render loops are active.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loops)
}

// Wait blocks until every render loop has exited or ctx is done.
// Loops must not be started concurrently with Wait.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops all loops and waits for them. Persisted entries are kept so a later
// Restore can resume them.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for channel := range m.loops {
		m.stopLocked(channel)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) runLocked(channel string, control Control, expiresAt int64, kind EventKind) []Event {
	m.stopLocked(channel)
	m.controls[channel] = control

	l := &loop{
		channel:   channel,
		control:   control,
		expiresAt: expiresAt,
		stop:      make(chan struct{}),
	}

	events := []Event{{Kind: kind, Channel: channel, ExpiresAt: expiresAt}}
	switch m.renderLocked(l) {
	case outcomeExpired:
		m.clearLocked(l)
		return append(events, Event{Kind: EventExpired, Channel: channel, ExpiresAt: expiresAt})
	case outcomeDetached:
		return append(events, Event{Kind: EventDetached, Channel: channel, ExpiresAt: expiresAt})
	}

	m.loops[channel] = l
	m.wg.Add(1)
	go m.tick(l)

	return events
}

func (m *Manager) tick(l *loop) {
	defer m.wg.Done()

	t := m.newTicker(m.cfg.TickInterval)
	defer t.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-t.C():
			if m.advance(l) != outcomeRunning {
				return
			}
		}
	}
}

// advance performs one render step for l if it is still the current loop of its channel.
func (m *Manager) advance(l *loop) outcome {
	m.mu.Lock()
	if m.loops[l.channel] != l {
		m.mu.Unlock()
		return outcomeDetached
	}

	result := m.renderLocked(l)
	var events []Event
	switch result {
	case outcomeExpired:
		delete(m.loops, l.channel)
		m.clearLocked(l)
		events = append(events, Event{Kind: EventExpired, Channel: l.channel, ExpiresAt: l.expiresAt})
	case outcomeDetached:
		delete(m.loops, l.channel)
		events = append(events, Event{Kind: EventDetached, Channel: l.channel, ExpiresAt: l.expiresAt})
	}
	m.mu.Unlock()

	m.emit(events)
	return result
}

func (m *Manager) renderLocked(l *loop) outcome {
	if !l.control.Alive() {
		return outcomeDetached
	}

	remaining := Entry{Channel: l.channel, ExpiresAt: l.expiresAt}.Remaining(m.nowMillis())
	if remaining > 0 {
		l.control.SetDisabled(true)
		l.control.SetLabel(fmt.Sprintf(m.cfg.CountdownFormat, remaining))
		return outcomeRunning
	}

	l.control.SetDisabled(false)
	l.control.SetLabel(m.cfg.DefaultLabel)
	return outcomeExpired
}

// clearLocked removes the persisted entry only if it still holds l's expiry, so a
// newer window written by another writer is left alone.
func (m *Manager) clearLocked(l *loop) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
	defer cancel()

	key := m.Key(l.channel)
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("cooldown entry lookup failed on expiry",
			zap.String("channel", l.channel),
			zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if stored, perr := ParseEntry(l.channel, raw); perr == nil && stored.ExpiresAt != l.expiresAt {
		return
	}
	if err := m.store.Remove(ctx, key); err != nil {
		m.logger.Warn("expired cooldown entry not removed",
			zap.String("channel", l.channel),
			zap.Error(err))
	}
}

// loadLocked reads channel's entry. Malformed values report found=false with a nil
// error; the error is set only when the store itself could not be read.
func (m *Manager) loadLocked(ctx context.Context, channel string) (Entry, bool, error) {
	raw, ok, err := m.store.Get(ctx, m.Key(channel))
	if err != nil {
		m.logger.Warn("cooldown entry unreadable, treating as absent",
			zap.String("channel", channel),
			zap.Error(err))
		return Entry{}, false, err
	}
	if !ok {
		return Entry{}, false, nil
	}

	entry, err := ParseEntry(channel, raw)
	if err != nil {
		m.logger.Warn("malformed cooldown entry, treating as absent",
			zap.String("channel", channel),
			zap.String("value", raw),
			zap.Error(err))
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (m *Manager) loopActiveLocked(channel string, nowMs int64) bool {
	l, ok := m.loops[channel]
	return ok && l.expiresAt > nowMs
}

func (m *Manager) stopLocked(channel string) {
	if l, ok := m.loops[channel]; ok {
		l.halt()
		delete(m.loops, channel)
	}
}

func (m *Manager) nowMillis() int64 {
	return m.clock.Now().UnixMilli()
}

func (m *Manager) emit(events []Event) {
	for _, ev := range events {
		m.logger.Debug("cooldown event",
			zap.String("event", ev.Kind.String()),
			zap.String("channel", ev.Channel),
			zap.Int64("expires_at", ev.ExpiresAt))
		if m.observer != nil {
			m.observer(ev)
		}
	}
}
