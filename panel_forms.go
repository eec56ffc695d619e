package signpanel

import (
	"context"
	"errors"

	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/validate"
	"go.uber.org/zap"
)

const (
	msgRegistered     = "注册成功！正在切换到登录页..."
	msgLoggedIn       = "登录成功！"
	msgPasswordReset  = "密码重置成功！请使用新密码登录..."
	msgRegisterFailed = "注册失败："
	msgLoginFailed    = "登录失败："
	msgResetFailed    = "修改失败："
)

// Register validates and submits the sign-up form. On success the panel returns
// to the sign-in page. A *FieldError with ClearPasswords set asks the caller to
// empty both password inputs.
func (p *Panel) Register(ctx context.Context, req RegisterRequest) error {
	if p.isClosed() {
		return ErrPanelClosed
	}

	err := p.rules.Register(validate.RegisterFields{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		PasswordAgain: req.PasswordAgain,
		Code:          req.Code,
	})
	if err != nil {
		return p.validationFailed(ctx, err)
	}

	err = p.submit(ctx, FormRegister, func() error {
		_, err := p.client.Register(ctx, req.Username, req.Email, req.Code, req.Password)
		return err
	})
	if err != nil {
		p.metrics.Inc(MetricRegisterFailure)
		p.presenter.Error(ctx, msgRegisterFailed+backend.Reason(err))
		return err
	}

	p.metrics.Inc(MetricRegisterSuccess)
	p.mu.Lock()
	p.signUpActive = false
	p.mu.Unlock()
	p.presenter.Success(ctx, msgRegistered)
	return nil
}

// Login validates and submits the sign-in form. A returned session is persisted
// under Storage.SessionKey; a failed write is logged and does not fail the login.
func (p *Panel) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if p.isClosed() {
		return nil, ErrPanelClosed
	}

	err := p.rules.Login(validate.LoginFields{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return nil, p.validationFailed(ctx, err)
	}

	var session *Session
	err = p.submit(ctx, FormLogin, func() error {
		s, err := p.client.Login(ctx, req.Username, req.Password)
		session = s
		return err
	})
	if err != nil {
		p.metrics.Inc(MetricLoginFailure)
		p.presenter.Error(ctx, msgLoginFailed+backend.Reason(err))
		return nil, err
	}

	p.metrics.Inc(MetricLoginSuccess)
	p.presenter.Success(ctx, msgLoggedIn)

	if err := p.saveSession(ctx, session); err != nil {
		p.logger.Warn("session not persisted",
			zap.String("username", session.Username),
			zap.Error(err))
	}
	return session, nil
}

// ResetPassword validates and submits the password-reset form. On success the
// reset page is closed.
func (p *Panel) ResetPassword(ctx context.Context, req ResetRequest) error {
	if p.isClosed() {
		return ErrPanelClosed
	}

	err := p.rules.Reset(validate.ResetFields{
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		Code:            req.Code,
	})
	if err != nil {
		return p.validationFailed(ctx, err)
	}

	err = p.submit(ctx, FormReset, func() error {
		_, err := p.client.ResetPassword(ctx, req.Email, req.Code, req.NewPassword)
		return err
	})
	if err != nil {
		p.metrics.Inc(MetricResetFailure)
		p.presenter.Error(ctx, msgResetFailed+backend.Reason(err))
		return err
	}

	p.metrics.Inc(MetricResetSuccess)
	p.presenter.Success(ctx, msgPasswordReset)
	p.mu.Lock()
	p.forgotActive = false
	p.mu.Unlock()
	return nil
}

// submit keeps the form's submit control disabled for the duration of call.
func (p *Panel) submit(ctx context.Context, form Form, call func() error) error {
	control := p.submitControl(form)
	control.SetDisabled(true)
	defer control.SetDisabled(false)

	err := call()
	if err != nil {
		p.logger.Debug("form rejected",
			zap.Stringer("form", form),
			zap.Error(err))
	}
	return err
}

// Session returns the persisted login session. An expired session is removed and
// reported as ErrNoSession.
func (p *Panel) Session(ctx context.Context) (*Session, error) {
	raw, ok, err := p.store.Get(ctx, p.config.Storage.SessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSession
	}

	session, err := backend.DecodeSession(raw)
	if err != nil {
		_ = p.store.Remove(ctx, p.config.Storage.SessionKey)
		return nil, errors.Join(ErrNoSession, err)
	}
	if session.Expired(p.now()) {
		_ = p.store.Remove(ctx, p.config.Storage.SessionKey)
		return nil, ErrNoSession
	}
	return session, nil
}

// Logout forgets the persisted session.
func (p *Panel) Logout(ctx context.Context) error {
	return p.store.Remove(ctx, p.config.Storage.SessionKey)
}

func (p *Panel) saveSession(ctx context.Context, session *Session) error {
	raw, err := backend.EncodeSession(session)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, p.config.Storage.SessionKey, raw)
}
