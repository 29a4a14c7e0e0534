package models

// SlideType enumerates the slide kinds a deck may contain.
type SlideType string

const (
	SlideCover         SlideType = "cover"
	SlidePriorities    SlideType = "priorities"
	SlideSommaire      SlideType = "sommaire"
	SlideBrandOverview SlideType = "brand_overview"
	SlideStateOfPlay   SlideType = "state_of_play"
	SlideIdeaHeader    SlideType = "idea_header"
	SlideIdeaExecution SlideType = "idea_execution"
	SlideIdeaResults   SlideType = "idea_results"
	SlideTimeline      SlideType = "timeline"
	SlideBudget        SlideType = "budget"
	SlideConclusion    SlideType = "conclusion"
)

// AllSlideTypes lists every slide type.
var AllSlideTypes = []SlideType{
	SlideCover, SlidePriorities, SlideSommaire, SlideBrandOverview, SlideStateOfPlay,
	SlideIdeaHeader, SlideIdeaExecution, SlideIdeaResults, SlideTimeline, SlideBudget,
	SlideConclusion,
}

// Style is the colour descriptor applied to a deck.
type Style struct {
	Primary    string `json:"primary,omitempty"`
	Secondary  string `json:"secondary,omitempty"`
	Accent     string `json:"accent,omitempty"`
	Background string `json:"background,omitempty"`
	Font       string `json:"font,omitempty"`
}

type Slide struct {
	Type    SlideType              `json:"type"`
	Title   string                 `json:"title"`
	Content map[string]interface{} `json:"content"`
	Style   map[string]string      `json:"style"`
	Layout  string                 `json:"layout"`
}

type Deck struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// Count returns how many slides have the given type.
func (d *Deck) Count(t SlideType) int {
	n := 0
	for _, s := range d.Slides {
		if s.Type == t {
			n++
		}
	}
	return n
}
