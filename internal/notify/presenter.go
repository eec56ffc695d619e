package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is how long a toast stays up when the caller does not choose.
const DefaultDuration = 3 * time.Second

// Presenter shows toasts and schedules their automatic dismissal.
type Presenter struct {
	dispatcher      *Dispatcher
	defaultDuration time.Duration
	now             func() time.Time

	mu     sync.Mutex
	open   map[string]*Toast
	closed bool
}

// NewPresenter creates a presenter publishing through d. A nil d discards events.
func NewPresenter(d *Dispatcher, defaultDuration time.Duration) *Presenter {
	if defaultDuration < 0 {
		defaultDuration = DefaultDuration
	}
	return &Presenter{
		dispatcher:      d,
		defaultDuration: defaultDuration,
		now:             time.Now,
		open:            make(map[string]*Toast),
	}
}

// Show displays message. duration > 0 dismisses the toast after that long,
// duration == 0 keeps it until closed, and duration < 0 uses the default.
func (p *Presenter) Show(ctx context.Context, message string, isError bool, duration time.Duration) *Toast {
	if duration < 0 {
		duration = p.defaultDuration
	}

	t := &Toast{
		ID:       uuid.NewString(),
		p:        p,
		message:  message,
		isError:  isError,
		duration: duration,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		t.closed = true
		return t
	}
	p.open[t.ID] = t
	p.mu.Unlock()

	p.emit(ctx, t, EventShown)

	if duration > 0 {
		t.mu.Lock()
		t.timer = time.AfterFunc(duration, t.Close)
		t.mu.Unlock()
	}
	return t
}

// Success shows a non-error toast with the default duration.
func (p *Presenter) Success(ctx context.Context, message string) *Toast {
	return p.Show(ctx, message, false, -1)
}

// Error shows an error toast with the default duration.
func (p *Presenter) Error(ctx context.Context, message string) *Toast {
	return p.Show(ctx, message, true, -1)
}

// Open returns the number of toasts not yet dismissed.
func (p *Presenter) Open() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}

// Close dismisses every open toast and stops accepting new ones. The dispatcher
// is owned by the caller and is not closed here.
func (p *Presenter) Close() {
	p.mu.Lock()
	p.closed = true
	open := make([]*Toast, 0, len(p.open))
	for _, t := range p.open {
		open = append(open, t)
	}
	p.mu.Unlock()

	for _, t := range open {
		t.Close()
	}
}

func (p *Presenter) emit(ctx context.Context, t *Toast, eventType string) {
	t.mu.Lock()
	ev := Event{
		Timestamp: p.now(),
		EventType: eventType,
		ToastID:   t.ID,
		Message:   t.message,
		IsError:   t.isError,
		Duration:  t.duration,
	}
	t.mu.Unlock()

	p.dispatcher.Emit(ctx, ev)
}

func (p *Presenter) forget(id string) {
	p.mu.Lock()
	delete(p.open, id)
	p.mu.Unlock()
}

// Toast is a handle to a shown notification.
type Toast struct {
	ID string

	p        *Presenter
	mu       sync.Mutex
	message  string
	isError  bool
	duration time.Duration
	timer    *time.Timer
	closed   bool
}

// Text returns the current message.
func (t *Toast) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

// UpdateText replaces the message of an open toast.
func (t *Toast) UpdateText(text string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.message = text
	t.mu.Unlock()

	t.p.emit(context.Background(), t, EventUpdated)
}

// Close dismisses the toast. Only the first call has an effect.
func (t *Toast) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	t.p.forget(t.ID)
	t.p.emit(context.Background(), t, EventDismissed)
}
