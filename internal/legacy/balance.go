// Package legacy converts balance values inherited from the previous
// document store into canonical decimals.
package legacy

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var wrapperPattern = regexp.MustCompile(`^(?i)(?:NumberDecimal|Decimal128|Decimal)\(\s*['"]?([^'")]*)['"]?\s*\)$`)

// Balance is the outcome of importing one raw balance value.
type Balance struct {
	Value decimal.Decimal
	// Clean is true when the raw value was already a plain decimal number.
	Clean bool
	// Recovered is true when a value was extracted, clean or not.
	Recovered bool
}

// ParseBalance coerces raw into a decimal rounded to 2 places.
// Accepted encodings: plain decimals ("12.50", "1.25E+1"), extended JSON
// ({"$numberDecimal": "12.50"}), NumberDecimal("12.5") / Decimal128('12.5')
// wrappers, and any of those wrapped in quotes. Anything else yields zero
// with Recovered=false.
func ParseBalance(raw string) Balance {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Balance{Value: decimal.Zero}
	}

	if d, err := decimal.NewFromString(s); err == nil {
		return Balance{Value: d.Round(2), Clean: d.Equal(d.Round(2)), Recovered: true}
	}

	if inner, ok := unwrap(s); ok {
		if d, err := decimal.NewFromString(inner); err == nil {
			return Balance{Value: d.Round(2), Recovered: true}
		}
	}

	return Balance{Value: decimal.Zero}
}

func unwrap(s string) (string, bool) {
	for i := 0; i < 3; i++ {
		switch {
		case len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]:
			s = strings.TrimSpace(s[1 : len(s)-1])
		case strings.HasPrefix(s, "{"):
			var doc map[string]interface{}
			if err := json.Unmarshal([]byte(s), &doc); err != nil {
				return "", false
			}
			v, ok := doc["$numberDecimal"]
			if !ok {
				return "", false
			}
			switch t := v.(type) {
			case string:
				s = strings.TrimSpace(t)
			case float64:
				return decimal.NewFromFloat(t).String(), true
			default:
				return "", false
			}
		default:
			if m := wrapperPattern.FindStringSubmatch(s); m != nil {
				s = strings.TrimSpace(m[1])
			}
			return s, true
		}
	}
	return s, true
}
