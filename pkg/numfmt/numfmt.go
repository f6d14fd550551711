// Package numfmt converts between query-string text and float64 operands,
// and renders results the way they appear in multsvc response bodies.
package numfmt

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Exponent notation is used outside [1e-6, 1e21).
const (
	expUpper = 1e21
	expLower = 1e-6
)

// ErrNotNumber is returned by ParseRendered when the text is not a
// rendering produced by FormatFloat.
var ErrNotNumber = errors.New("numfmt: not a rendered number")

// ParseFloatOrDefault parses text as a decimal float64. Empty, malformed,
// hexadecimal input and the literal inf/nan spellings yield def. Decimals too
// large for a float64 overflow to ±Inf.
func ParseFloatOrDefault(text string, def float64) float64 {
	s := strings.TrimSpace(text)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return def
		}
		return v
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// FormatFloat renders f with the shortest representation that round-trips.
// Integral values carry no decimal point and negative zero renders as "0".
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= expUpper || abs < expLower {
		return trimExponent(strconv.FormatFloat(f, 'e', -1, 64))
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// trimExponent turns "1.5e-07" into "1.5e-7".
func trimExponent(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 >= len(s) {
		return s
	}
	digits := strings.TrimLeft(s[i+2:], "0")
	if digits == "" {
		digits = "0"
	}
	return s[:i+2] + digits
}

// ParseRendered is the inverse of FormatFloat.
func ParseRendered(s string) (float64, error) {
	switch s = strings.TrimSpace(s); s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrNotNumber
	}
	return v, nil
}
