// Package currency turns locale-ambiguous money input into numbers.
//
// Strings such as "R$ 50,90", "1.234,56" and "1,234.56" are accepted. When
// both separators appear the one that occurs last is the decimal point. A
// lone comma is always decimal. A lone dot is decimal only when exactly two
// digits follow the last dot; otherwise dots are thousands grouping, so
// "12.500" is 12500.
package currency

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalid = errors.New("invalid amount")

var prefixes = []string{"us$", "r$", "$", "€", "£"}

// Parse accepts a string or a number and returns a finite float64.
func Parse(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, ErrInvalid
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return ParseString(n.String())
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	case string:
		return ParseString(n)
	default:
		return 0, ErrInvalid
	}
}

// ParseString normalizes s and parses the result.
func ParseString(s string) (float64, error) {
	normalized := Normalize(s)
	if normalized == "" {
		return 0, ErrInvalid
	}
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, ErrInvalid
	}
	return finite(f)
}

// Normalize strips whitespace and a currency prefix and rewrites the
// separators so that only a dot marks the decimal point.
func Normalize(s string) string {
	raw := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	raw = stripPrefix(raw)

	hasComma := strings.Contains(raw, ",")
	hasDot := strings.Contains(raw, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(raw, ",") > strings.LastIndex(raw, ".") {
			return strings.Replace(strings.ReplaceAll(raw, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(raw, ",", "")
	case hasComma:
		return strings.Replace(strings.ReplaceAll(raw, ".", ""), ",", ".", 1)
	case hasDot:
		decimals := len(raw) - strings.LastIndex(raw, ".") - 1
		if decimals == 2 {
			return raw
		}
		return strings.ReplaceAll(raw, ".", "")
	default:
		return raw
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

func stripPrefix(s string) string {
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return s[len(p):]
		}
	}
	return s
}

func finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalid
	}
	return f, nil
}
