package backend

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const (
	ActionRegister = "register"
	ActionLogin    = "login"
	ActionReset    = "reset"

	msgConflict      = "该用户名或邮箱已被注册，请直接登录"
	msgActionFailed  = "操作失败"
	msgRequestFailed = "请求失败 (%d)"
)

type RegisterPayload struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type LoginPayload struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResetPayload struct {
	Action      string `json:"action"`
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// Submit posts a form payload and applies the panel's rejection rules in order:
// 409 conflict, an "error" field, status "fail", then any non-2xx status.
func (c *Client) Submit(ctx context.Context, payload interface{}) (*Response, error) {
	status, raw, err := c.postJSON(ctx, c.paths.Submit, payload)
	if err != nil {
		return nil, err
	}

	r, err := decodeResponse(status, raw)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusConflict:
		return r, &RejectedError{StatusCode: status, Message: msgConflict}
	case r.Error != "":
		return r, &RejectedError{StatusCode: status, Message: r.Error}
	case r.Status == "fail":
		return r, &RejectedError{StatusCode: status, Message: firstNonEmpty(r.Message, msgActionFailed)}
	case !isSuccess(status):
		return r, &RejectedError{StatusCode: status, Message: fmt.Sprintf(msgRequestFailed, status)}
	}
	return r, nil
}

func (c *Client) Register(ctx context.Context, username, email, code, password string) (*Response, error) {
	return c.Submit(ctx, RegisterPayload{
		Action:   ActionRegister,
		Username: username,
		Email:    email,
		Code:     code,
		Password: password,
	})
}

// Login submits credentials. When the backend returns a token its claims are
// decoded into the session; a missing token yields a session without claims.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	r, err := c.Submit(ctx, LoginPayload{
		Action:   ActionLogin,
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	session := &Session{Username: username, Message: r.Message}
	if r.Token != "" {
		if err := session.decodeToken(r.Token); err != nil {
			c.logger.Warn("login token not decodable", zap.Error(err))
		}
	}
	return session, nil
}

func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) (*Response, error) {
	return c.Submit(ctx, ResetPayload{
		Action:      ActionReset,
		Email:       email,
		Code:        code,
		NewPassword: newPassword,
	})
}
