package analyzecorpus

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var positiveTerms = set(
	"good", "great", "excellent", "amazing", "awesome", "love", "loved", "loving",
	"best", "happy", "satisfied", "recommend", "perfect", "innovative", "success",
	"successful", "strong", "growth", "win", "winning", "positive", "fantastic",
	"bon", "bonne", "super", "génial", "geniale", "excellent", "excellente",
	"adore", "aime", "parfait", "parfaite", "réussite", "succès", "satisfait",
	"satisfaite", "recommande", "croissance", "innovant", "innovante", "top",
	"ravi", "ravie", "efficace", "qualité",
)

var negativeTerms = set(
	"bad", "poor", "terrible", "awful", "hate", "worst", "disappointed",
	"disappointing", "broken", "slow", "expensive", "problem", "problems", "issue",
	"issues", "complaint", "fail", "failed", "failure", "weak", "decline", "negative",
	"mauvais", "mauvaise", "nul", "nulle", "déçu", "déçue", "décevant", "décevante",
	"cher", "chère", "lent", "lente", "problème", "problèmes", "panne", "plainte",
	"échec", "faible", "baisse", "horrible", "pire", "insatisfait", "arnaque",
)

// negators flip the polarity of the next lexicon hit.
var negators = set("not", "no", "never", "pas", "jamais", "sans")

var stopWords = set(
	// english
	"about", "above", "after", "again", "also", "been", "before", "being", "below",
	"between", "both", "could", "does", "doing", "down", "during", "each", "from",
	"further", "have", "having", "here", "into", "just", "more", "most", "much",
	"only", "other", "over", "same", "some", "such", "than", "that", "their",
	"theirs", "them", "then", "there", "these", "they", "this", "those", "through",
	"under", "until", "very", "were", "what", "when", "where", "which", "while",
	"will", "with", "would", "your", "yours",
	// french
	"alors", "aussi", "autre", "avec", "avoir", "cela", "celle", "celui", "cette",
	"comme", "dans", "depuis", "donc", "elle", "elles", "encore", "être", "faire",
	"leur", "leurs", "mais", "même", "nous", "notre", "nos", "pour", "plus", "quand",
	"quel", "quelle", "sans", "sont", "sous", "tout", "tous", "toute", "très",
	"vers", "votre", "vous",
)

type themeDef struct {
	name  string
	terms map[string]bool
}

// themes is scanned in this order; ties in score keep it.
var themes = []themeDef{
	{"brand", set("brand", "marque", "image", "notoriété", "awareness", "logo", "identity", "identité")},
	{"customer_experience", set("service", "support", "client", "clients", "customer", "customers", "experience", "expérience", "accueil")},
	{"digital", set("digital", "numérique", "online", "social", "instagram", "tiktok", "app", "application", "site", "website")},
	{"innovation", set("innovation", "innovative", "innovant", "innovante", "launch", "lancement", "nouveau", "nouvelle", "new")},
	{"price", set("price", "prices", "prix", "cost", "coût", "tarif", "tarifs", "promo", "promotion", "discount", "cheap", "expensive", "cher")},
	{"product", set("product", "products", "produit", "produits", "collection", "range", "gamme", "quality", "qualité")},
	{"sustainability", set("sustainable", "sustainability", "durable", "écologique", "eco", "green", "recyclé", "recycled", "carbon", "carbone")},
}
