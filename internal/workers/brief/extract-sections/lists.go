package extractsections

import (
	"regexp"
	"strings"
)

var (
	bulletLine   = regexp.MustCompile(`^[ \t]*(?:[-•*]|\d{1,2}[.)])[ \t]+`)
	inlineBullet = regexp.MustCompile(`[ \t]*•[ \t]*`)
)

// splitList turns section content into items. Lines are items when any
// line starts with a bullet or number; otherwise wrapped lines are joined.
// Items are further split on semicolons and inline bullets.
func splitList(content string) []string {
	lines := strings.Split(content, "\n")

	bulleted := false
	for _, l := range lines {
		if bulletLine.MatchString(l) {
			bulleted = true
			break
		}
	}

	var pieces []string
	if bulleted {
		for _, l := range lines {
			l = bulletLine.ReplaceAllString(l, "")
			if strings.TrimSpace(l) == "" {
				continue
			}
			pieces = append(pieces, l)
		}
	} else {
		pieces = []string{joinLines(content)}
	}

	var items []string
	for _, p := range pieces {
		for _, part := range inlineBullet.Split(p, -1) {
			for _, item := range strings.Split(part, ";") {
				item = strings.TrimSpace(item)
				item = strings.TrimRight(item, ",")
				item = strings.TrimSpace(item)
				if item != "" {
					items = append(items, item)
				}
			}
		}
	}
	return items
}

// joinLines merges wrapped lines into one trimmed value.
func joinLines(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
