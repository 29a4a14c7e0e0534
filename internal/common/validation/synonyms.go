package validation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"agency-assistant/internal/models"
)

// Synonym lists every accepted name of one canonical brief section.
type Synonym struct {
	Concept string
	English string
	French  string
	Aliases []string
}

// Names returns all names of the concept, English and French first.
func (s Synonym) Names() []string {
	out := []string{s.English}
	if s.French != s.English {
		out = append(out, s.French)
	}
	return append(out, s.Aliases...)
}

// SynonymTable is the single source of truth for section naming. The
// section extractor reads its header patterns from it and the validator
// uses it to rename keys into a schema's canonical language.
var SynonymTable = []Synonym{
	{
		Concept: models.SectionTitle, English: "title", French: "titre",
		Aliases: []string{"project name", "nom du projet", "campaign name", "nom de campagne", "intitulé", "project", "projet"},
	},
	{
		Concept: models.SectionProblem, English: "problem", French: "problème",
		Aliases: []string{"problem statement", "problématique", "challenge", "enjeux", "enjeu"},
	},
	{
		Concept: models.SectionObjectives, English: "objectives", French: "objectifs",
		Aliases: []string{"objective", "objectif", "goals", "goal", "buts", "aims"},
	},
	{
		Concept: models.SectionKPIs, English: "kpis", French: "kpis",
		Aliases: []string{"kpi", "key performance indicators", "indicateurs clés", "indicateurs de performance", "indicateurs", "success metrics"},
	},
	{
		Concept: models.SectionBudget, English: "budget", French: "budget",
		Aliases: []string{"enveloppe budgétaire", "financement", "enveloppe"},
	},
	{
		Concept: models.SectionTimeline, English: "timeline", French: "calendrier",
		Aliases: []string{"rétroplanning", "planning", "échéancier", "schedule", "délais", "durée"},
	},
	{
		Concept: models.SectionConstraints, English: "constraints", French: "contraintes",
		Aliases: []string{"constraint", "contrainte", "limitations", "restrictions"},
	},
}

var conceptIndex = buildConceptIndex()

func buildConceptIndex() map[string]string {
	idx := make(map[string]string)
	for _, s := range SynonymTable {
		for _, n := range s.Names() {
			idx[FoldKey(n)] = s.Concept
		}
	}
	return idx
}

// FoldKey lowercases, strips diacritics and collapses separators so that
// "Problème", "probleme" and "PROBLEME" compare equal.
func FoldKey(key string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, key)
	if err != nil {
		folded = key
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("_", " ", "-", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// LookupConcept maps any known section name to its canonical concept.
func LookupConcept(key string) (string, bool) {
	c, ok := conceptIndex[FoldKey(key)]
	return c, ok
}

// HeaderSynonyms returns the names a section header may use, longest first.
func HeaderSynonyms(concept string) []string {
	for _, s := range SynonymTable {
		if s.Concept != concept {
			continue
		}
		names := s.Names()
		out := make([]string, len(names))
		copy(out, names)
		// longest alternative first so regex alternation prefers it
		for i := 1; i < len(out); i++ {
			for j := i; j > 0 && len([]rune(out[j])) > len([]rune(out[j-1])); j-- {
				out[j], out[j-1] = out[j-1], out[j]
			}
		}
		return out
	}
	return nil
}

// NameIn returns the concept's name in the given language ("en" or "fr").
func NameIn(concept, lang string) string {
	for _, s := range SynonymTable {
		if s.Concept == concept {
			if lang == "fr" {
				return s.French
			}
			return s.English
		}
	}
	return concept
}
