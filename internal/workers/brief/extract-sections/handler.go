package extractsections

import (
	"context"
	"strings"

	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/models"
)

const TaskType = "extract-sections"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute recovers canonical sections from cleaned text. Required sections
// that stay empty are filled with placeholders and reported in
// AutoDefaulted; callers decide whether that is acceptable.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.ReplaceAll(input.Text, "\r\n", "\n")
	out := &Output{
		Sections:      make(map[string]interface{}),
		AutoDefaulted: []string{},
		Methods:       make(map[string]string),
	}

	raw := make(map[string]string)
	headers := findHeaders(text)
	headed := make(map[string]bool, len(headers))
	for _, m := range headers {
		headed[m.section] = true
	}

	preamble := text
	if len(headers) > 0 {
		preamble = text[:headers[0].start]
	}
	unclaimed := []string{preamble}

	for i, m := range headers {
		if _, done := raw[m.section]; done {
			continue
		}
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1].start
		}
		content, rest := cutAtCue(text[m.contentStart:end], headed)
		if rest != "" {
			unclaimed = append(unclaimed, rest)
		}
		if content == "" {
			continue
		}
		raw[m.section] = content
		out.Methods[m.section] = MethodHeader
	}

	for section, content := range h.fallback(strings.Join(unclaimed, "\n\n"), raw) {
		raw[section] = content
		out.Methods[section] = MethodFallback
	}

	if _, ok := raw[models.SectionTitle]; !ok {
		if line := h.firstLine(preamble); line != "" {
			raw[models.SectionTitle] = line
			out.Methods[models.SectionTitle] = MethodFirstLine
		}
	}

	for _, section := range models.Sections {
		content, ok := raw[section]
		if !ok {
			continue
		}
		if models.ListSections[section] {
			if items := splitList(content); len(items) > 0 {
				out.Sections[section] = items
			}
			continue
		}
		if v := joinLines(content); v != "" {
			out.Sections[section] = v
		}
	}

	for _, section := range models.RequiredSections {
		if _, ok := out.Sections[section]; ok {
			continue
		}
		placeholder := h.config.Placeholders[section]
		if models.ListSections[section] {
			out.Sections[section] = []string{placeholder}
		} else {
			out.Sections[section] = placeholder
		}
		out.AutoDefaulted = append(out.AutoDefaulted, section)
		out.Methods[section] = MethodDefault
	}

	h.logger.Debug("sections extracted", map[string]interface{}{
		"headers":       len(headers),
		"methods":       out.Methods,
		"autoDefaulted": out.AutoDefaulted,
	})
	return out, nil
}

// fallback scans unclaimed text sentence by sentence. A cue sentence opens
// its section; following sentences belong to it until another cue or a
// blank line. A cue without followers contributes itself.
func (h *Handler) fallback(text string, found map[string]string) map[string]string {
	collected := make(map[string][]string)
	cueSentence := make(map[string]string)
	pending := func(section string) bool {
		if _, ok := found[section]; ok {
			return false
		}
		_, opened := cueSentence[section]
		return !opened
	}

	for _, block := range strings.Split(text, "\n\n") {
		current := ""
		for _, sentence := range splitSentences(block) {
			if section := cueOf(sentence); section != "" {
				current = ""
				if pending(section) {
					current = section
					cueSentence[section] = sentence
				}
				continue
			}
			if current != "" {
				collected[current] = append(collected[current], sentence)
			}
		}
	}

	out := make(map[string]string)
	for section, cue := range cueSentence {
		sentences := collected[section]
		if len(sentences) == 0 {
			sentences = []string{cue}
		}
		sep := " "
		if models.ListSections[section] {
			sep = "; "
		}
		out[section] = strings.Join(sentences, sep)
	}
	return out
}

// cutAtCue ends header content before the first later block that opens
// with a cue for a section no header names. The remainder is returned for
// the sentence fallback.
func cutAtCue(content string, headed map[string]bool) (string, string) {
	offset := 0
	for {
		i := strings.Index(content[offset:], "\n\n")
		if i < 0 {
			return strings.TrimSpace(content), ""
		}
		next := offset + i + 2
		block := strings.TrimLeft(content[next:], "\n \t")
		if j := strings.IndexByte(block, '\n'); j >= 0 {
			block = block[:j]
		}
		if sentences := splitSentences(block); len(sentences) > 0 {
			if section := cueOf(sentences[0]); section != "" && !headed[section] {
				return strings.TrimSpace(content[:offset+i]), strings.TrimSpace(content[next:])
			}
		}
		offset = next
	}
}

// firstLine returns the document's opening line when it reads like a title.
func (h *Handler) firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len([]rune(line)) > h.config.TitleMaxLength || cueOf(line) != "" {
			return ""
		}
		return line
	}
	return ""
}
