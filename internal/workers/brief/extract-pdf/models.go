package extractpdf

// Input names a PDF on disk or carries its bytes. Data wins when both are set.
type Input struct {
	Path string `json:"path,omitempty"`
	Data []byte `json:"-"`
}

// Document is the cleaned, page-indexed text of a PDF.
type Document struct {
	Text       string   `json:"text"`
	Pages      []string `json:"pages"`
	PageCount  int      `json:"page_count"`
	EmptyPages []int    `json:"empty_pages,omitempty"` // 1-based
	Backend    string   `json:"backend"`
}
