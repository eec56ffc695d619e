package signpanel

import (
	"context"
	"errors"

	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/cooldown"
	"github.com/MrEthical07/signpanel/internal/validate"
	"go.uber.org/zap"
)

const (
	msgCodeSent       = "验证码已发送，请查收邮件"
	msgCodeSendFailed = "发送失败："
)

// SendCode requests a verification code for email on channel.
//
// While the channel's window is open it returns ErrCodeCooldownActive without
// contacting the backend; while another send on the channel is awaiting the
// backend it returns ErrSendInFlight. Otherwise the bound control is disabled for the request;
// on acceptance a new window starts, on failure the control is re-enabled unless
// another window became active meanwhile.
func (p *Panel) SendCode(ctx context.Context, channel, email string) error {
	if p.isClosed() {
		return ErrPanelClosed
	}

	if err := validate.Email(email); err != nil {
		return p.validationFailed(ctx, err)
	}

	if !p.claimSend(channel) {
		p.metrics.Inc(MetricCodeSendCooldown)
		return ErrSendInFlight
	}
	defer p.releaseSend(channel)

	if p.cooldowns.Active(ctx, channel) {
		p.metrics.Inc(MetricCodeSendCooldown)
		return ErrCodeCooldownActive
	}

	control := p.sendControl(channel)
	control.SetDisabled(true)

	if _, err := p.client.SendCode(ctx, channel, email); err != nil {
		p.metrics.Inc(MetricCodeSendFailure)
		p.presenter.Error(ctx, msgCodeSendFailed+backend.Reason(err))
		if !p.cooldowns.Active(ctx, channel) {
			control.SetDisabled(false)
		}
		return err
	}

	p.metrics.Inc(MetricCodeSendSuccess)
	p.presenter.Success(ctx, msgCodeSent)

	err := p.cooldowns.Start(ctx, control, channel)
	switch {
	case errors.Is(err, cooldown.ErrPersistFailed):
		p.metrics.Inc(MetricCooldownPersistFailure)
		return nil
	case errors.Is(err, cooldown.ErrClosed):
		p.logger.Warn("code sent after close; cooldown not started", zap.String("channel", channel))
		return ErrPanelClosed
	}
	return err
}
