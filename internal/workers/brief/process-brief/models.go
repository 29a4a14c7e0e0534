package processbrief

// Input selects the brief source: plain text skips PDF extraction, raw PDF
// bytes skip the file read, otherwise Path is opened.
type Input struct {
	Path        string `json:"path,omitempty"`
	Data        []byte `json:"-"`
	Content     string `json:"content,omitempty"`
	SchemaName  string `json:"schema,omitempty"`
	OutputDir   string `json:"output_dir,omitempty"`
	AutoDefault *bool  `json:"auto_default,omitempty"`
}

func (i *Input) source() string {
	switch {
	case i.Content != "":
		return "text"
	case i.Data != nil:
		if i.Path != "" {
			return i.Path
		}
		return "bytes"
	default:
		return i.Path
	}
}
