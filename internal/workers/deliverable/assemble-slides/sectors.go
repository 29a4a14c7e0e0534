package assembleslides

import (
	"strings"
	"unicode"
)

const sectorDefault = "default"

var sectorPriorities = map[string][]string{
	"retail": {
		"Drive store and online traffic",
		"Grow basket size and loyalty",
		"Unify the omnichannel experience",
		"Sharpen price and value perception",
	},
	"luxury": {
		"Protect brand desirability",
		"Craft exclusive client experiences",
		"Tell the heritage and savoir-faire story",
		"Reach the next generation of clients",
	},
	"food": {
		"Build everyday consumption moments",
		"Prove product quality and origin",
		"Win at the shelf",
		"Engage communities around taste",
	},
	"tech": {
		"Simplify the value proposition",
		"Accelerate adoption and activation",
		"Build trust in data and security",
		"Turn users into advocates",
	},
	"finance": {
		"Build trust and transparency",
		"Make offers simple to understand",
		"Digitise the customer journey",
		"Reach younger customers",
	},
	"automotive": {
		"Own the electric transition narrative",
		"Generate qualified test drives",
		"Support the dealer network",
		"Strengthen model desirability",
	},
	"travel": {
		"Inspire destination desire",
		"Convert inspiration into bookings",
		"Extend the season",
		"Reward repeat travellers",
	},
	"health": {
		"Educate with credible expertise",
		"Build trust with practitioners",
		"Encourage healthy habits",
		"Support patients through their journey",
	},
	sectorDefault: {
		"Increase brand awareness",
		"Engage the core audience",
		"Drive measurable conversion",
		"Build long-term loyalty",
	},
}

var sectorValues = map[string][]string{
	"retail":      {"Accessibility", "Proximity", "Value"},
	"luxury":      {"Excellence", "Heritage", "Exclusivity"},
	"food":        {"Authenticity", "Taste", "Conviviality"},
	"tech":        {"Simplicity", "Innovation", "Reliability"},
	"finance":     {"Trust", "Transparency", "Security"},
	"automotive":  {"Performance", "Safety", "Innovation"},
	"travel":      {"Discovery", "Freedom", "Care"},
	"health":      {"Expertise", "Care", "Prevention"},
	sectorDefault: {"Authenticity", "Engagement", "Quality"},
}

// sectorKeywords is checked in declaration order; the sector with the most
// keyword hits wins and ties go to the earlier sector.
var sectorKeywords = []struct {
	sector string
	terms  []string
}{
	{"retail", []string{"retail", "store", "stores", "shop", "shopping", "magasin", "magasins", "boutique", "commerce", "ecommerce", "distribution"}},
	{"luxury", []string{"luxury", "luxe", "premium", "couture", "haute", "maison", "joaillerie", "jewellery", "jewelry"}},
	{"food", []string{"food", "restaurant", "beverage", "drink", "drinks", "snack", "alimentaire", "boisson", "boissons", "cuisine", "recette"}},
	{"tech", []string{"app", "application", "software", "saas", "platform", "plateforme", "digital", "numérique", "tech", "startup"}},
	{"finance", []string{"bank", "banque", "insurance", "assurance", "credit", "crédit", "fintech", "savings", "épargne", "invest"}},
	{"automotive", []string{"car", "cars", "automotive", "automobile", "vehicle", "véhicule", "voiture", "ev", "electric", "électrique"}},
	{"travel", []string{"travel", "voyage", "tourism", "tourisme", "hotel", "hôtel", "airline", "destination", "vacances", "holiday"}},
	{"health", []string{"health", "santé", "pharma", "pharmacy", "pharmacie", "patient", "patients", "wellness", "médical", "medical"}},
}

var audienceKeywords = []struct {
	audience string
	terms    []string
}{
	{"Gen Z (18-25)", []string{"genz", "gen z", "students", "étudiants", "teens", "ados", "18-25"}},
	{"Millennials (25-40)", []string{"millennials", "milléniaux", "young professionals", "jeunes actifs", "25-40", "25-35"}},
	{"Families", []string{"family", "families", "famille", "familles", "parents", "kids", "enfants"}},
	{"Seniors", []string{"seniors", "retirees", "retraités", "60+", "65+"}},
	{"B2B decision makers", []string{"b2b", "decision makers", "décideurs", "professionals", "professionnels", "entreprises", "companies"}},
}

const defaultAudience = "General public"

func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = true
	}
	return out
}

func inferSector(text string) string {
	tokens := words(text)
	best, bestHits := sectorDefault, 0
	for _, s := range sectorKeywords {
		hits := 0
		for _, term := range s.terms {
			if tokens[term] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = s.sector, hits
		}
	}
	return best
}

// inferAudience matches multi-word and punctuated cues as substrings.
func inferAudience(text string) string {
	lower := strings.ToLower(text)
	tokens := words(text)
	for _, a := range audienceKeywords {
		for _, term := range a.terms {
			if strings.ContainsAny(term, " +-") {
				if strings.Contains(lower, term) {
					return a.audience
				}
			} else if tokens[term] {
				return a.audience
			}
		}
	}
	return defaultAudience
}

func knownSector(sector string) bool {
	_, ok := sectorPriorities[sector]
	return ok
}
