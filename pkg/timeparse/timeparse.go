// Package timeparse normalizes free-text effort annotations such as
// "45m", "1,5h" or "2h 30m" into fractional hours.
package timeparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// rule pairs a token pattern with the conversion applied to its capture
// groups. Rules are evaluated in order and the first match wins.
type rule struct {
	re      *regexp.Regexp
	convert func(groups []string) float64
}

// The rule order is load-bearing: a bare-minute token like "45m" must
// be claimed by the minutes rule before the bare-number rule can
// misread it, and the embedded-decimal fallback only runs when nothing
// stricter matched. Historical reports were produced with exactly this
// precedence.
var rules = []rule{
	// Whole minutes with an m or p suffix ("45m", "30p").
	{regexp.MustCompile(`^(\d+)[mp]$`), func(g []string) float64 {
		return round2(number(g[1]) / 60)
	}},
	// Decimal hours with an explicit unit ("1h", "1.5h", "1,5h").
	{regexp.MustCompile(`^(\d+(?:[.,]\d+)?)h$`), func(g []string) float64 {
		return number(g[1])
	}},
	// Bare number, interpreted as hours ("2", "1.5").
	{regexp.MustCompile(`^(\d+(?:[.,]\d+)?)$`), func(g []string) float64 {
		return number(g[1])
	}},
	// Compound hours and minutes ("2h 30m").
	{regexp.MustCompile(`^(\d+)h\s+(\d+)[mp]$`), func(g []string) float64 {
		return number(g[1]) + round2(number(g[2])/60)
	}},
	// Fallback: first decimal embedded anywhere in the token.
	{regexp.MustCompile(`(\d+[.,]\d+)`), func(g []string) float64 {
		return number(g[1])
	}},
}

// Hours converts a duration token to fractional hours. Unrecognized
// input yields 0, never an error: the reporting pipeline must keep
// going on messy human text.
func Hours(token string) float64 {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" || token == "n/a" {
		return 0
	}
	for _, r := range rules {
		if g := r.re.FindStringSubmatch(token); g != nil {
			return r.convert(g)
		}
	}
	return 0
}

// number parses a decimal that may use a comma as its separator.
func number(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
