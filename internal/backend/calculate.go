package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const msgCalculateError = "Calculate error"

type sumRequest struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type sumResponse struct {
	Sum *float64 `json:"sum"`
}

// Sum asks the backend for a+b.
func (c *Client) Sum(ctx context.Context, a, b float64) (float64, error) {
	status, raw, err := c.postJSON(ctx, c.paths.Calculate, sumRequest{A: a, B: b})
	if err != nil {
		return 0, err
	}
	if !isSuccess(status) {
		return 0, &RejectedError{StatusCode: status, Message: "Lynx-server error"}
	}

	var r sumResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if r.Sum == nil {
		return 0, fmt.Errorf("%w: missing sum", ErrMalformedResponse)
	}
	return *r.Sum, nil
}

type evaluateRequest struct {
	Expr string `json:"expr"`
}

type evaluateResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Evaluate sends expr to the backend and returns its result rendered as text.
func (c *Client) Evaluate(ctx context.Context, expr string) (string, error) {
	status, raw, err := c.postJSON(ctx, c.paths.Calculate, evaluateRequest{Expr: expr})
	if err != nil {
		return "", err
	}

	var r evaluateResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !isSuccess(status) {
		return "", &RejectedError{StatusCode: status, Message: firstNonEmpty(r.Error, msgCalculateError)}
	}
	if len(r.Result) == 0 {
		return "", fmt.Errorf("%w: missing result", ErrMalformedResponse)
	}
	return renderResult(r.Result), nil
}

// renderResult prints numbers and strings the way a text node would show them.
func renderResult(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(string(raw))
}
