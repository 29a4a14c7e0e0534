package collectsources

import "agency-assistant/internal/models"

// dedupe remembers URLs and (source, title) pairs already emitted. Items
// with neither a URL nor a title are never considered duplicates.
type dedupe struct {
	urls   map[string]bool
	titles map[[2]string]bool
}

func newDedupe() *dedupe {
	return &dedupe{urls: make(map[string]bool), titles: make(map[[2]string]bool)}
}

// duplicate reports whether item was seen and records it otherwise.
func (d *dedupe) duplicate(item *models.VeilleItem) bool {
	key := [2]string{item.Source, item.Title}
	if item.URL != "" && d.urls[item.URL] {
		return true
	}
	if item.Title != "" && d.titles[key] {
		return true
	}
	if item.URL != "" {
		d.urls[item.URL] = true
	}
	if item.Title != "" {
		d.titles[key] = true
	}
	return false
}
