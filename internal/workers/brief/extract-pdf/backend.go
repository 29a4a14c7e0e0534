package extractpdf

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Backend turns PDF bytes into raw per-page text.
type Backend interface {
	Name() string
	ExtractPages(data []byte) ([]string, error)
}

// LedongthucBackend is the pure-Go backend. The parser panics on some
// malformed inputs; those panics are returned as errors.
type LedongthucBackend struct{}

func (LedongthucBackend) Name() string { return "ledongthuc" }

func (LedongthucBackend) ExtractPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
