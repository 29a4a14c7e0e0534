package extractpdf

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	typographic = strings.NewReplacer(
		"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "″", `"`,
		"«", `"`, "»", `"`,
		"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "―", "-", "−", "-",
	)

	hyphenBreak = regexp.MustCompile(`(\p{L})-[ \t]*\n[ \t]*`)
	hspaceRun   = regexp.MustCompile(`[ \t\f\v\x{00a0}\x{2007}\x{202f}]{2,}`)
)

// CleanPage normalizes the raw text of one page: ASCII quotes and dashes,
// words rejoined across hyphenated line breaks, horizontal whitespace runs
// collapsed, empty lines dropped.
func CleanPage(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = typographic.Replace(s)
	s = hyphenBreak.ReplaceAllString(s, "$1")
	s = hspaceRun.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimFunc(line, unicode.IsSpace)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// JoinPages keeps a blank line between consecutive non-empty pages.
func JoinPages(pages []string) string {
	nonEmpty := make([]string, 0, len(pages))
	for _, p := range pages {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func hasPrintable(s string) bool {
	for _, r := range s {
		if unicode.IsGraphic(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
