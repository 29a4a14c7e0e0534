package assembleslides

import (
	"math"
	"regexp"
	"strconv"
)

var (
	monthCount = regexp.MustCompile(`(?i)(\d+)\s*(?:months?|mois|mo\b)`)
	yearCount  = regexp.MustCompile(`(?i)(\d+)\s*(?:years?|ans?\b|année)`)
	weekCount  = regexp.MustCompile(`(?i)(\d+)\s*(?:weeks?|semaines?)`)
)

var phases = [3]phase{
	{Name: "Discovery & strategy", Activities: []string{"Audit and stakeholder interviews", "Audience and competitor research", "Creative platform"}},
	{Name: "Production & launch", Activities: []string{"Content production", "Media plan activation", "Launch event"}},
	{Name: "Optimisation & reporting", Activities: []string{"Performance monitoring", "Creative optimisation", "Final report and recommendations"}},
}

// parseMonths returns the month count stated in s. Years and weeks are
// converted; weeks round up to whole months.
func parseMonths(s string) (int, bool) {
	if m := monthCount.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil && n > 0
	}
	if m := yearCount.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n * 12, err == nil && n > 0
	}
	if m := weekCount.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return int(math.Ceil(float64(n) / 4)), err == nil && n > 0
	}
	return 0, false
}

// splitMonths apportions total 25/50/25. Each phase lasts at least a month,
// so totals under three come back as three one-month phases.
func splitMonths(total int) [3]int {
	edge := int(math.Round(float64(total) * 0.25))
	if edge < 1 {
		edge = 1
	}
	middle := total - 2*edge
	if middle < 1 {
		middle = 1
	}
	return [3]int{edge, middle, edge}
}
