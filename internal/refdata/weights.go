package refdata

import (
	"strconv"
	"strings"
)

// DefaultWeight applies to rows whose HCC category is empty, non-numeric or
// absent from categoryWeights.
const DefaultWeight = 0.1

// categoryWeights maps HCC V28 category codes to RAF risk weights. The values
// are a closed, hand-curated set; scores are only comparable against them.
var categoryWeights = map[int]float64{
	1: 0.80, 2: 0.65, 6: 0.45, 8: 0.25, 9: 0.35,
	10: 0.40, 11: 0.30, 12: 0.28, 17: 0.60, 18: 0.55,
	19: 0.38, 20: 0.42, 21: 0.32, 22: 0.30, 23: 0.70,
	29: 0.45, 33: 0.35, 36: 0.40, 37: 0.38, 38: 0.35,
	39: 0.32, 43: 0.35, 46: 0.48, 47: 0.42, 48: 0.38,
	52: 0.45, 54: 0.38, 55: 0.35, 56: 0.38, 65: 0.40,
	72: 0.38, 75: 0.35, 78: 0.32, 85: 0.42, 92: 0.32,
	93: 0.30, 95: 0.38, 96: 0.35, 98: 0.35, 99: 0.38,
	100: 0.32, 106: 0.35, 108: 0.38, 109: 0.42, 111: 0.35,
	112: 0.38, 114: 0.45, 115: 0.40, 127: 0.38, 141: 0.35,
	155: 0.35, 158: 0.32, 168: 0.28, 182: 0.35, 186: 0.38,
	202: 0.45, 227: 0.40, 263: 0.35, 280: 0.38, 282: 0.42,
	283: 0.35, 387: 0.28, 395: 0.38, 454: 0.45,
}

// WeightForCategory returns the risk weight for a raw HCC column value.
func WeightForCategory(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultWeight
	}
	code, ok := parseCategory(raw)
	if !ok {
		return DefaultWeight
	}
	if w, ok := categoryWeights[code]; ok {
		return w
	}
	return DefaultWeight
}

// parseCategory parses a signed decimal integer. Single underscores between
// digits are allowed as separators, so "1_0" is 10.
func parseCategory(s string) (int, bool) {
	sign := ""
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		sign, s = s[:1], s[1:]
	}
	if strings.HasPrefix(s, "_") || strings.HasSuffix(s, "_") || strings.Contains(s, "__") {
		return 0, false
	}
	code, err := strconv.Atoi(sign + strings.ReplaceAll(s, "_", ""))
	if err != nil {
		return 0, false
	}
	return code, true
}
