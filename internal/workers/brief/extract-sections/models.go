package extractsections

const (
	MethodHeader    = "header"
	MethodFallback  = "fallback"
	MethodFirstLine = "first_line"
	MethodDefault   = "default"
)

type Input struct {
	Text string `json:"text"`
}

// Output holds canonical section keys mapped to a string or []string.
type Output struct {
	Sections      map[string]interface{} `json:"sections"`
	AutoDefaulted []string               `json:"auto_defaulted"`
	Methods       map[string]string      `json:"methods"`
}

// Strings returns a list-valued section, or nil.
func (o *Output) Strings(section string) []string {
	v, _ := o.Sections[section].([]string)
	return v
}

// String returns a scalar section, or "".
func (o *Output) String(section string) string {
	v, _ := o.Sections[section].(string)
	return v
}

type headerMatch struct {
	section      string
	start        int
	end          int
	contentStart int
}
