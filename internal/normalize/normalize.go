// Package normalize maps raw column values to canonical comparable forms.
// Equality after normalization is exact string equality; there is no
// rounding and no fuzzy matching.
package normalize

import (
	"strconv"
	"strings"
)

// Value is a normalized comparison operand. Present is false for nil, empty,
// and whitespace-only inputs, which keeps "absent" distinct from every real
// value.
type Value struct {
	Text    string
	Present bool
}

// Absent is the normalized form of a missing value.
var Absent = Value{}

// Generic trims whitespace and marks blank values absent.
func Generic(raw *string) Value {
	if raw == nil {
		return Absent
	}
	text := strings.TrimSpace(*raw)
	if text == "" {
		return Absent
	}
	return Value{Text: text, Present: true}
}

var (
	buyTokens  = map[string]bool{"buy": true, "b": true, "purchase": true, "long": true}
	sellTokens = map[string]bool{"sell": true, "s": true, "short": true, "dispose": true}
)

// Side normalizes trade-side tokens to canonical buy/sell. Tokens outside the
// synonym sets pass through lower-cased so an unexpected value still compares
// against itself.
func Side(raw *string) Value {
	if raw == nil {
		return Absent
	}
	token := strings.ToLower(strings.TrimSpace(*raw))
	if token == "" {
		return Absent
	}
	switch {
	case buyTokens[token]:
		token = "buy"
	case sellTokens[token]:
		token = "sell"
	}
	return Value{Text: token, Present: true}
}

// Amount renders a numeric source value in the same canonical text form the
// extraction path produces, so REAL source columns compare cleanly against
// extracted text (e.g. -1250.50 and "-1250.5" both become "-1250.5").
func Amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Equal reports whether two normalized values are both present and identical.
func Equal(a, b Value) bool {
	return a.Present && b.Present && a.Text == b.Text
}
