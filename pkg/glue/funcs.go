package glue

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/nibsbin/quillmark/pkg/parse"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"quote": quoteFunc,
		"lines": linesFunc,
		"json":  jsonFunc,
		"upper": func(v any) string { return strings.ToUpper(toString(v)) },
		"lower": func(v any) string { return strings.ToLower(toString(v)) },
		"date":  dateFunc,
		"cards": cardsFunc,
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// quoteFunc renders a value as a double-quoted string literal, with inner
// quotes, backslashes and control characters escaped. The output is safe to
// splice into JSON, YAML, or most template languages.
func quoteFunc(v any) string {
	b, _ := json.Marshal(toString(v))
	return string(b)
}

// linesFunc splits text into its lines, dropping the trailing newline.
func linesFunc(v any) []string {
	s := strings.TrimRight(toString(v), "\r\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}

func jsonFunc(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("glue: json: %w", err)
	}
	return string(b), nil
}

// dateFunc reformats an RFC 3339 or 2006-01-02 date string using layout.
func dateFunc(layout string, v any) (string, error) {
	s := toString(v)
	for _, in := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(in, s); err == nil {
			return t.Format(layout), nil
		}
	}
	return "", fmt.Errorf("glue: cannot parse date %q", s)
}

// cardsFunc filters a card list down to cards of one type.
func cardsFunc(cardType string, v any) ([]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("glue: cards expects a card list, got %T", v)
	}
	var out []any
	for _, item := range list {
		if card, ok := item.(map[string]any); ok && card[parse.FieldCard] == cardType {
			out = append(out, item)
		}
	}
	return out, nil
}
