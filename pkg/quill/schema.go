package quill

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nibsbin/quillmark/pkg/parse"
)

// FieldSchema describes one frontmatter field declared in the manifest's
// [fields] table. A field is required of documents only when Required is
// set and no Default exists; a Default always satisfies the requirement.
type FieldSchema struct {
	Description string `toml:"description"`
	Type        string `toml:"type"`
	Required    bool   `toml:"required"`
	Default     any    `toml:"default"`
}

// required reports whether documents must supply the field themselves.
func (f FieldSchema) required() bool {
	return f.Required && f.Default == nil
}

// Schema returns the declared field schemas keyed by field name.
func (q *Quill) Schema() map[string]FieldSchema { return q.fields }

// ApplyDefaults returns a copy of the document's top-level fields with
// schema defaults filled in for anything missing. Values present in the
// document always win. The document itself is not modified.
func (q *Quill) ApplyDefaults(doc *parse.Document) map[string]parse.Value {
	fields := make(map[string]parse.Value, len(doc.Fields())+len(q.fields))
	for k, v := range doc.Fields() {
		fields[k] = v
	}
	for name, fs := range q.fields {
		if fs.Default == nil {
			continue
		}
		if _, ok := fields[name]; !ok {
			fields[name] = parse.FromAny(fs.Default)
		}
	}
	return fields
}

// ValidationError reports every way a document fails its quill's schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "quill: document does not match schema: " + strings.Join(e.Problems, "; ")
}

// ValidateDocument checks the document, after defaults, against the
// declared field schemas: required fields must be present and typed fields
// must hold the declared type. A failure is a *ValidationError.
func (q *Quill) ValidateDocument(doc *parse.Document) error {
	fields := q.ApplyDefaults(doc)

	var problems []string
	for _, name := range q.fieldNames() {
		fs := q.fields[name]
		v, ok := fields[name]
		if !ok {
			if fs.required() {
				problems = append(problems, fmt.Sprintf("missing required field %q", name))
			}
			continue
		}
		if fs.Type != "" && !typeMatches(fs.Type, v) {
			problems = append(problems, fmt.Sprintf("field %q is not of type %s", name, fs.Type))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (q *Quill) fieldNames() []string {
	names := make([]string, 0, len(q.fields))
	for name := range q.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func typeMatches(declared string, v parse.Value) bool {
	switch declared {
	case "str", "string", "date", "datetime":
		_, ok := v.Str()
		return ok
	case "number":
		_, ok := v.Float()
		return ok
	case "bool", "boolean":
		_, ok := v.Bool()
		return ok
	case "array":
		_, ok := v.Seq()
		return ok
	case "dict", "object":
		_, ok := v.Map()
		return ok
	default:
		return true
	}
}

// SchemaJSON renders the field schemas as a JSON-Schema-shaped object:
// type, properties with description and format, and the required list.
func (q *Quill) SchemaJSON() ([]byte, error) {
	properties := map[string]any{}
	required := []string{}

	for _, name := range q.fieldNames() {
		fs := q.fields[name]
		prop := map[string]any{}
		if fs.Description != "" {
			prop["description"] = fs.Description
		}
		if fs.Type != "" {
			prop["type"] = jsonType(fs.Type)
			switch fs.Type {
			case "date":
				prop["format"] = "date"
			case "datetime":
				prop["format"] = "date-time"
			}
		}
		if fs.Default != nil {
			prop["default"] = fs.Default
		}
		properties[name] = prop
		if fs.required() {
			required = append(required, name)
		}
	}

	return json.MarshalIndent(map[string]any{
		"$schema":              "https://json-schema.org/draft/2019-09/schema",
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": true,
	}, "", "  ")
}

func jsonType(declared string) string {
	switch declared {
	case "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "array":
		return "array"
	case "dict", "object":
		return "object"
	default:
		return "string"
	}
}
