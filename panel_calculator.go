package signpanel

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/validate"
)

const (
	// SumRetry is shown in place of a sum the backend could not produce.
	SumRetry = "retry"

	msgCalculateError = "Calculate error"
	msgCannotConnect  = "Cannot connect Lynx-Server"
)

// CalculateSum validates both operands and asks the backend for their sum. Invalid
// operands yield every failing *FieldError joined and no request. A backend failure
// returns SumRetry together with the error.
func (p *Panel) CalculateSum(ctx context.Context, a, b string) (string, error) {
	x, errA := validate.Number(validate.FieldNumberA, a)
	y, errB := validate.Number(validate.FieldNumberB, b)
	if err := errors.Join(errA, errB); err != nil {
		p.metrics.Inc(MetricValidationFailure)
		return "", err
	}

	sum, err := p.client.Sum(ctx, x, y)
	if err != nil {
		p.metrics.Inc(MetricCalculateFailure)
		return SumRetry, err
	}

	p.metrics.Inc(MetricCalculateSuccess)
	return strconv.FormatFloat(sum, 'f', -1, 64), nil
}

// Evaluate sends the trimmed expression to the backend. An empty expression is a
// no-op returning "" and nil. Failures are *CalculatorError values whose Message is
// the backend's error text, or a fixed text when the backend is unreachable.
func (p *Panel) Evaluate(ctx context.Context, expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", nil
	}

	result, err := p.client.Evaluate(ctx, expr)
	if err != nil {
		p.metrics.Inc(MetricCalculateFailure)
		msg := msgCalculateError
		var rejected *backend.RejectedError
		switch {
		case errors.As(err, &rejected):
			msg = rejected.Message
		case errors.Is(err, backend.ErrUnavailable):
			msg = msgCannotConnect
		}
		return "", &CalculatorError{Message: msg, Err: err}
	}

	p.metrics.Inc(MetricCalculateSuccess)
	return result, nil
}

// FilterExpression strips characters that cannot appear in an arithmetic expression.
func (p *Panel) FilterExpression(raw string) string {
	return validate.FilterExpression(raw)
}
