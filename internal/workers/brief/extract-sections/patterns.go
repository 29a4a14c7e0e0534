package extractsections

import (
	"regexp"
	"sort"
	"strings"

	"agency-assistant/internal/common/validation"
	"agency-assistant/internal/models"
)

// headerPatterns holds one compiled header regex per canonical section,
// built from the shared synonym table.
var headerPatterns = buildHeaderPatterns()

func buildHeaderPatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(models.Sections))
	for _, section := range models.Sections {
		seen := map[string]bool{}
		var alts []string
		for _, name := range validation.HeaderSynonyms(section) {
			for _, variant := range []string{name, validation.FoldKey(name)} {
				if !seen[variant] {
					seen[variant] = true
					alts = append(alts, variant)
				}
			}
		}
		sort.SliceStable(alts, func(i, j int) bool {
			return len([]rune(alts[i])) > len([]rune(alts[j]))
		})
		for i, a := range alts {
			alts[i] = strings.ReplaceAll(regexp.QuoteMeta(a), " ", `[ \t]+`)
		}

		out[section] = regexp.MustCompile(
			`(?im)^[ \t]*(?:(?:[-*•#>]+|\d{1,2}[.)])[ \t]*)?(?:` + strings.Join(alts, "|") + `)` +
				`(?:[ \t]*:[ \t]*|[ \t]+-[ \t]+|[ \t]+[^:\n]{1,40}:[ \t]*|[ \t]*$)`,
		)
	}
	return out
}

// cueWords trigger the sentence-level fallback. They are compared against
// folded, punctuation-free sentences.
var cueWords = map[string][]string{
	models.SectionProblem:     {"problem", "probleme", "problematique", "challenge", "enjeu", "enjeux", "issue", "difficulte"},
	models.SectionObjectives:  {"objective", "objectives", "objectif", "objectifs", "goal", "goals", "buts", "aim", "ambition"},
	models.SectionKPIs:        {"kpi", "kpis", "indicateur", "indicateurs", "metric", "metrics", "mesure", "mesurer"},
	models.SectionBudget:      {"budget", "budgetaire", "euros", "eur", "financement", "enveloppe"},
	models.SectionTimeline:    {"timeline", "calendrier", "planning", "mois", "months", "month", "semaines", "weeks", "deadline", "echeance"},
	models.SectionConstraints: {"constraint", "constraints", "contrainte", "contraintes", "limitation", "interdit", "obligatoire"},
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}%+]+`)

// cueOf returns the first section, in canonical order, cued by sentence.
func cueOf(sentence string) string {
	folded := " " + strings.TrimSpace(nonWord.ReplaceAllString(validation.FoldKey(sentence), " ")) + " "
	if strings.Contains(sentence, "€") {
		folded += "eur "
	}
	for _, section := range models.Sections {
		for _, cue := range cueWords[section] {
			if strings.Contains(folded, " "+cue+" ") {
				return section
			}
		}
	}
	return ""
}

// findHeaders returns the accepted header matches in document order. When
// matches overlap the earlier start wins, then the longer match.
func findHeaders(text string) []headerMatch {
	var all []headerMatch
	for _, section := range models.Sections {
		for _, loc := range headerPatterns[section].FindAllStringIndex(text, -1) {
			all = append(all, headerMatch{section: section, start: loc[0], end: loc[1], contentStart: loc[1]})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end-all[i].start > all[j].end-all[j].start
	})

	var accepted []headerMatch
	lastEnd := -1
	for _, m := range all {
		if m.start < lastEnd {
			continue
		}
		accepted = append(accepted, m)
		lastEnd = m.end
	}
	return accepted
}

// splitSentences cuts a block at line breaks and after terminal punctuation
// followed by whitespace.
func splitSentences(block string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(block)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t' || runes[i+1] == '\n') {
			flush()
		}
	}
	flush()
	return out
}
