package signpanel

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/cooldown"
	"github.com/MrEthical07/signpanel/internal/notify"
	"github.com/MrEthical07/signpanel/internal/validate"
	"go.uber.org/zap"
)

// Panel is the running sign-in panel. Build it with [Builder].
type Panel struct {
	config     Config
	logger     *zap.Logger
	store      Storage
	cooldowns  *cooldown.Manager
	client     *backend.Client
	dispatcher *notify.Dispatcher
	presenter  *notify.Presenter
	rules      validate.Rules
	metrics    *Metrics
	now        func() time.Time

	mu             sync.Mutex
	sendControls   map[string]Control
	submitControls map[Form]SubmitControl
	sending        map[string]struct{}
	signUpActive   bool
	forgotActive   bool
	closed         bool
}

// Config returns a copy of the configuration the panel was built with.
func (p *Panel) Config() Config {
	return cloneConfig(p.config)
}

// BindSendControl attaches the send-code control for channel. Restore renders onto it.
func (p *Panel) BindSendControl(channel string, control Control) {
	p.mu.Lock()
	p.sendControls[channel] = control
	p.mu.Unlock()

	p.cooldowns.Bind(channel, control)
}

// BindSubmitControl attaches the submit control disabled while form is in flight.
func (p *Panel) BindSubmitControl(form Form, control SubmitControl) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitControls[form] = control
}

// Restore is the page-load hook: every bound channel with an active persisted
// window resumes its countdown, everything else is reset to the enabled state.
func (p *Panel) Restore(ctx context.Context) {
	p.cooldowns.Restore(ctx)
}

// Cooldown returns the active window for channel, if any.
func (p *Panel) Cooldown(ctx context.Context, channel string) (CooldownEntry, bool) {
	return p.cooldowns.Lookup(ctx, channel)
}

// Remaining returns the whole seconds left in channel's window, zero when none is active.
func (p *Panel) Remaining(ctx context.Context, channel string) int64 {
	entry, ok := p.cooldowns.Lookup(ctx, channel)
	if !ok {
		return 0
	}
	return entry.Remaining(p.now().UnixMilli())
}

// Running reports how many countdowns are rendering.
func (p *Panel) Running() int {
	return p.cooldowns.Running()
}

// Wait blocks until every running countdown has finished or ctx is done.
func (p *Panel) Wait(ctx context.Context) error {
	return p.cooldowns.Wait(ctx)
}

// ShowSignUp switches to the sign-up page and leaves password reset.
func (p *Panel) ShowSignUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signUpActive = true
	p.forgotActive = false
}

// ShowSignIn switches back to the sign-in page.
func (p *Panel) ShowSignIn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signUpActive = false
	p.forgotActive = false
}

// ShowForgot overlays the password-reset page.
func (p *Panel) ShowForgot() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forgotActive = true
}

func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Panel) viewLocked() View {
	switch {
	case p.forgotActive:
		return ViewForgot
	case p.signUpActive:
		return ViewSignUp
	default:
		return ViewSignIn
	}
}

// Metrics returns a snapshot of the panel counters.
func (p *Panel) Metrics() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// DroppedNotifications reports toast events discarded because the sink fell behind.
func (p *Panel) DroppedNotifications() uint64 {
	return p.dispatcher.Dropped()
}

// Close stops every countdown, dismisses open toasts and flushes the notification
// sink. Persisted cooldowns survive so a later panel can Restore them.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cooldowns.Close()
	p.presenter.Close()
	p.dispatcher.Close()
	_ = p.logger.Sync()
}

func (p *Panel) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// claimSend marks channel as having a request in flight. It reports false when
// another send already holds it.
func (p *Panel) claimSend(channel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.sending[channel]; busy {
		return false
	}
	p.sending[channel] = struct{}{}
	return true
}

func (p *Panel) releaseSend(channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sending, channel)
}

func (p *Panel) sendControl(channel string) Control {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.sendControls[channel]; ok {
		return c
	}
	return nopControl{}
}

func (p *Panel) submitControl(form Form) SubmitControl {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.submitControls[form]; ok {
		return c
	}
	return nopControl{}
}

func (p *Panel) validationFailed(ctx context.Context, err error) error {
	p.metrics.Inc(MetricValidationFailure)
	p.presenter.Error(ctx, validate.Message(err))
	return err
}
