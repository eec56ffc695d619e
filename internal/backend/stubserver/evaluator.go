package stubserver

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrBadExpression  = errors.New("invalid expression")
)

// arithmeticInput is the calculator alphabet: decimal numbers, + - * / and parentheses.
var arithmeticInput = regexp.MustCompile(`^[0-9.+\-*/()\s]+$`)

// Arithmetic evaluates + - * / and parentheses over decimal numbers in float64.
// It is the evaluator installed by `signpanel serve-stub --evaluate`. A non-finite
// result, which this alphabet only reaches by dividing by zero, is ErrDivisionByZero.
func Arithmetic(input string) (float64, error) {
	if strings.TrimSpace(input) == "" || !arithmeticInput.MatchString(input) ||
		strings.Contains(input, "**") || strings.Contains(input, "..") {
		return 0, ErrBadExpression
	}

	program, err := expr.Compile(input, expr.AsFloat64())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadExpression, err)
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadExpression, err)
	}

	v, ok := out.(float64)
	if !ok {
		return 0, ErrBadExpression
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrDivisionByZero
	}
	return v, nil
}
