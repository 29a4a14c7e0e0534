package assembleslides

import "agency-assistant/internal/models"

var defaultStyle = models.Style{
	Primary:    "#1A1A2E",
	Secondary:  "#16213E",
	Accent:     "#E94560",
	Background: "#FFFFFF",
	Font:       "Montserrat",
}

// emphasis slides are drawn on the primary colour.
var emphasis = map[models.SlideType]bool{
	models.SlideCover:      true,
	models.SlideIdeaHeader: true,
}

func resolveStyle(s models.Style) models.Style {
	if s.Primary == "" {
		s.Primary = defaultStyle.Primary
	}
	if s.Secondary == "" {
		s.Secondary = defaultStyle.Secondary
	}
	if s.Accent == "" {
		s.Accent = defaultStyle.Accent
	}
	if s.Background == "" {
		s.Background = defaultStyle.Background
	}
	if s.Font == "" {
		s.Font = defaultStyle.Font
	}
	return s
}

// slideStyle builds a fresh map per slide so decks never share state.
func slideStyle(s models.Style, t models.SlideType) map[string]string {
	m := map[string]string{
		"primary":    s.Primary,
		"secondary":  s.Secondary,
		"accent":     s.Accent,
		"background": s.Background,
		"text":       s.Primary,
		"font":       s.Font,
	}
	if emphasis[t] {
		m["background"] = s.Primary
		m["text"] = s.Background
	}
	return m
}
