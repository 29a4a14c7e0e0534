package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
)

// Normalize renames keys into the schema's canonical language, coerces
// list-valued properties, drops empty values and validates the result.
// Every violation is reported in a single ValidationError.
func (r *Registry) Normalize(schemaName string, candidate map[string]interface{}) (map[string]interface{}, error) {
	s, err := r.Get(schemaName)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(candidate))
	for k := range candidate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]interface{}, len(candidate))
	exact := make(map[string]bool)
	for _, k := range keys {
		target := s.targetKey(k)
		value := s.coerce(target, candidate[k])
		if value == nil {
			continue
		}
		isExact := target == k
		if _, taken := out[target]; taken && (exact[target] || !isExact) {
			continue
		}
		out[target] = value
		exact[target] = isExact
	}

	if err := s.validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateDocument checks an arbitrary document against a named schema.
func (r *Registry) ValidateDocument(schemaName string, doc interface{}) error {
	s, err := r.Get(schemaName)
	if err != nil {
		return err
	}
	return s.validate(doc)
}

// ToBrief maps a normalized map of the named schema onto the Brief model.
func (r *Registry) ToBrief(schemaName string, normalized map[string]interface{}) (models.Brief, error) {
	s, err := r.Get(schemaName)
	if err != nil {
		return models.Brief{}, err
	}
	get := func(concept string) interface{} {
		if p, ok := s.Property(concept); ok {
			return normalized[p]
		}
		return normalized[concept]
	}
	return models.Brief{
		Title:       asString(get(models.SectionTitle)),
		Problem:     asString(get(models.SectionProblem)),
		Objectives:  asStrings(get(models.SectionObjectives)),
		KPIs:        asStrings(get(models.SectionKPIs)),
		Budget:      asString(get(models.SectionBudget)),
		Timeline:    asString(get(models.SectionTimeline)),
		Constraints: asStrings(get(models.SectionConstraints)),
	}, nil
}

// FromBrief renders a Brief as a candidate map keyed by canonical concept.
func FromBrief(b models.Brief) map[string]interface{} {
	m := map[string]interface{}{
		models.SectionTitle:      b.Title,
		models.SectionProblem:    b.Problem,
		models.SectionObjectives: b.Objectives,
		models.SectionKPIs:       b.KPIs,
	}
	if b.Budget != "" {
		m[models.SectionBudget] = b.Budget
	}
	if b.Timeline != "" {
		m[models.SectionTimeline] = b.Timeline
	}
	if len(b.Constraints) > 0 {
		m[models.SectionConstraints] = b.Constraints
	}
	return m
}

func (s *Schema) targetKey(key string) string {
	if _, ok := s.properties[key]; ok {
		return key
	}
	if concept, ok := LookupConcept(key); ok {
		if p, ok := s.byConcept[concept]; ok {
			return p
		}
		return NameIn(concept, s.Language)
	}
	return key
}

func (s *Schema) coerce(key string, v interface{}) interface{} {
	p, known := s.properties[key]
	switch {
	case known && p.isList:
		items := toList(v)
		if len(items) == 0 {
			return nil
		}
		return items
	case known && p.isText:
		str := asString(v)
		if str == "" {
			return nil
		}
		return str
	}
	if str, ok := v.(string); ok {
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		return str
	}
	return v
}

func toList(v interface{}) []interface{} {
	var out []interface{}
	add := func(x interface{}) {
		if str, ok := x.(string); ok {
			if str = strings.TrimSpace(str); str != "" {
				out = append(out, str)
			}
			return
		}
		if x != nil {
			out = append(out, x)
		}
	}
	switch val := v.(type) {
	case nil:
	case string:
		for _, part := range strings.Split(val, ";") {
			add(part)
		}
	case []string:
		for _, x := range val {
			add(x)
		}
	case []interface{}:
		for _, x := range val {
			add(x)
		}
	default:
		add(val)
	}
	return out
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, "; ")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, x := range val {
			if s := asString(x); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func asStrings(v interface{}) []string {
	items := toList(v)
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, x := range items {
		if s := asString(x); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *Schema) validate(doc interface{}) error {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return apperrors.NewInvalidFormatError("JSON document", err)
	}
	if result.Valid() {
		return nil
	}

	fields := make([]apperrors.FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		fields = append(fields, apperrors.FieldError{
			Path:    errorPath(desc),
			Message: desc.Description(),
		})
	}
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Path != fields[j].Path {
			return fields[i].Path < fields[j].Path
		}
		return fields[i].Message < fields[j].Message
	})
	return apperrors.NewValidationError(s.Name, fields)
}

// errorPath turns gojsonschema contexts into dotted paths. Required and
// additional-property errors are reported at the parent, so the property
// name from the details is appended.
func errorPath(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == "(root)" {
		field = ""
	}
	switch desc.Type() {
	case "required", "additional_property_not_allowed":
		if prop, ok := desc.Details()["property"].(string); ok && prop != "" {
			if field == "" {
				return prop
			}
			return field + "." + prop
		}
	}
	if field == "" {
		return "$"
	}
	return field
}
