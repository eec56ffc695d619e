package backend

import "context"

const msgSendFailed = "发送失败"

type verifyRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
	Type   string `json:"type"`
}

// SendCode asks the backend to mail a verification code to email for channel.
// A nil error means the send was accepted.
func (c *Client) SendCode(ctx context.Context, channel, email string) (*Response, error) {
	status, raw, err := c.postJSON(ctx, c.paths.Verify, verifyRequest{
		Action: "verify",
		Email:  email,
		Type:   channel,
	})
	if err != nil {
		return nil, err
	}

	r, err := decodeResponse(status, raw)
	if err != nil {
		return nil, err
	}

	if !isSuccess(status) || r.Status == "fail" {
		msg := firstNonEmpty(r.Message, r.Error, msgSendFailed)
		return r, &RejectedError{StatusCode: status, Message: msg}
	}
	return r, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
