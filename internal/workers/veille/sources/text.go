package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText renders an HTML fragment as whitespace-collapsed text. Input
// that does not parse is returned with whitespace collapsed.
func plainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// headline shortens s to at most n runes on a word boundary.
func headline(s string, n int) string {
	s = collapse(s)
	if line, _, ok := strings.Cut(s, ". "); ok && len([]rune(line)) <= n {
		return line
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}
