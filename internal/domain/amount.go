package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// MonetaryValue keeps the raw stored representation of an amount, which may be
// a plain number or a locale-formatted string such as "R$ 1.234,56".
type MonetaryValue string

// Float coerces the raw value into a number.
func (v MonetaryValue) Float() float64 {
	return CoerceAmount(string(v))
}

// IsZero reports whether the value is absent or coerces to zero.
func (v MonetaryValue) IsZero() bool {
	return v.Float() == 0
}

// MonetaryFromFloat formats a number into its canonical raw form.
func MonetaryFromFloat(f float64) MonetaryValue {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return MonetaryValue(strconv.FormatFloat(f, 'f', -1, 64))
}

// UnmarshalJSON accepts numbers, strings and null.
func (v *MonetaryValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = MonetaryValue(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = MonetaryValue(n.String())
	return nil
}

// MarshalJSON writes the coerced number so consumers never see locale strings.
func (v MonetaryValue) MarshalJSON() ([]byte, error) {
	if strings.TrimSpace(string(v)) == "" {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.Float(), 'f', -1, 64)), nil
}

// CoerceAmount parses a numeric or locale-formatted string. It never fails:
// anything unparseable yields 0.
//
// Only digits, '.', ',' and a leading '-' survive. With both separators
// present the right-most one is the decimal mark; a separator repeated more
// than once is grouping; a single occurrence is a decimal mark.
func CoerceAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	var b strings.Builder
	negative := false
	seenDigit := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			seenDigit = true
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-' && !seenDigit && b.Len() == 0:
			negative = true
		}
	}
	cleaned := b.String()
	if !seenDigit {
		return 0
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	decimal := byte(0)
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimal = '.'
		} else {
			decimal = ','
		}
	case lastDot >= 0:
		if strings.Count(cleaned, ".") == 1 {
			decimal = '.'
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 {
			decimal = ','
		}
	}

	var num strings.Builder
	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]
		switch {
		case c >= '0' && c <= '9':
			num.WriteByte(c)
		case c == decimal:
			num.WriteByte('.')
		}
	}
	out, err := strconv.ParseFloat(num.String(), 64)
	if err != nil || math.IsNaN(out) || math.IsInf(out, 0) {
		return 0
	}
	if negative {
		out = -out
	}
	return out
}
