package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	FieldNumberA    = "number1"
	FieldNumberB    = "number2"
	FieldExpression = "expression"

	MsgNumber = "请输入有效的数字"
)

var expressionNoise = regexp.MustCompile(`[^\d+\-*/().\s]`)

// Number parses a calculator operand. Empty, non-numeric or non-finite input fails.
func Number(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &FieldError{Field: field, Message: MsgNumber}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FieldError{Field: field, Message: MsgNumber}
	}
	return v, nil
}

// FilterExpression drops every character that cannot appear in an arithmetic
// expression: only digits, + - * / ( ) . and whitespace survive.
func FilterExpression(raw string) string {
	return expressionNoise.ReplaceAllString(raw, "")
}
