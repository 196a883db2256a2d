// Package glue composes glue templates: text templates that turn a parsed
// document into source for an output backend. The document's top-level
// fields form the template context, so {{.title}}, {{.BODY}} and
// {{range .CARDS}} address frontmatter, body, and cards directly.
package glue

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/nibsbin/quillmark/pkg/parse"
)

// Glue is one parsed glue template, safe for concurrent use.
type Glue struct {
	tmpl *template.Template
}

// New parses a glue template source.
func New(source string) (*Glue, error) {
	tmpl, err := template.New("glue").Option("missingkey=zero").Funcs(funcMap()).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("glue: parse template: %w", err)
	}
	return &Glue{tmpl: tmpl}, nil
}

// Compose executes the template against a context built with Context.
func (g *Glue) Compose(ctx map[string]any) (string, error) {
	var b strings.Builder
	if err := g.tmpl.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("glue: compose: %w", err)
	}
	return b.String(), nil
}

// ComposeDocument renders the document's fields directly, without default
// values or body preprocessing. The engine applies those first; this is the
// plain path.
func (g *Glue) ComposeDocument(doc *parse.Document) (string, error) {
	return g.Compose(Context(doc.Fields()))
}

// Context converts a field map into the plain-data template context.
func Context(fields map[string]parse.Value) map[string]any {
	ctx := make(map[string]any, len(fields))
	for k, v := range fields {
		ctx[k] = v.Interface()
	}
	return ctx
}
