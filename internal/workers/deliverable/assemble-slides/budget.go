package assembleslides

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var numberRun = regexp.MustCompile(`\d(?:[\d.,'\x{00A0}\x{202F} ]*\d)?`)

var budgetSplit = []budgetLine{
	{Category: "Creative & production", Percent: 40},
	{Category: "Media", Percent: 35},
	{Category: "Activation & events", Percent: 15},
	{Category: "Measurement & contingency", Percent: 10},
}

// parseBudget reads the first numeric run of s. Thousands separators
// (space, dot, comma, apostrophe), k/M suffixes and currency markers are
// understood; a lone separator followed by exactly three digits is a
// thousands separator, otherwise a decimal point.
func parseBudget(s string) (float64, string, bool) {
	loc := numberRun.FindStringIndex(s)
	if loc == nil {
		return 0, "", false
	}
	value, ok := parseNumber(s[loc[0]:loc[1]])
	if !ok {
		return 0, "", false
	}
	value *= multiplier(s[loc[1]:])
	return value, currencyOf(s), value > 0
}

func parseNumber(run string) (float64, bool) {
	run = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\'' || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, run)

	lastDot, lastComma := strings.LastIndex(run, "."), strings.LastIndex(run, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			run = strings.ReplaceAll(run, ",", "")
		} else {
			run = strings.ReplaceAll(run, ".", "")
			run = strings.Replace(run, ",", ".", 1)
		}
	case lastComma >= 0:
		run = normalizeSeparator(run, ",")
	case lastDot >= 0:
		run = normalizeSeparator(run, ".")
	}
	v, err := strconv.ParseFloat(run, 64)
	return v, err == nil
}

func normalizeSeparator(run, sep string) string {
	if strings.Count(run, sep) > 1 || len(run)-strings.LastIndex(run, sep)-1 == 3 {
		return strings.ReplaceAll(run, sep, "")
	}
	return strings.Replace(run, sep, ".", 1)
}

func multiplier(rest string) float64 {
	rest = strings.TrimLeft(rest, " \u00a0\u202f")
	lower := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(lower, "million"), strings.HasPrefix(lower, "mio"):
		return 1e6
	case strings.HasPrefix(lower, "milliard"), strings.HasPrefix(lower, "billion"):
		return 1e9
	case strings.HasPrefix(lower, "mille"):
		return 1e3
	}
	if rest == "" {
		return 1
	}
	r := rune(lower[0])
	if r != 'k' && r != 'm' {
		return 1
	}
	if len(rest) > 1 && unicode.IsLetter(rune(rest[1])) && !strings.HasPrefix(rest[1:], "€") {
		return 1
	}
	if r == 'k' {
		return 1e3
	}
	return 1e6
}

func currencyOf(s string) string {
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(s, "€"), strings.Contains(upper, "EUR"):
		return "EUR"
	case strings.Contains(s, "$"), strings.Contains(upper, "USD"), strings.Contains(upper, "DOLLAR"):
		return "USD"
	case strings.Contains(s, "£"), strings.Contains(upper, "GBP"):
		return "GBP"
	case strings.Contains(upper, "CHF"):
		return "CHF"
	}
	return ""
}

// apportion splits total by budgetSplit. Amounts are rounded to the cent and
// the last line absorbs the rounding so the lines sum to total.
func apportion(total float64) []map[string]interface{} {
	out := make([]map[string]interface{}, len(budgetSplit))
	allocated := 0.0
	for i, line := range budgetSplit {
		amount := math.Round(total*float64(line.Percent)) / 100
		if i == len(budgetSplit)-1 {
			amount = math.Round((total-allocated)*100) / 100
		}
		allocated += amount
		out[i] = map[string]interface{}{
			"category": line.Category,
			"percent":  line.Percent,
			"amount":   amount,
		}
	}
	return out
}
