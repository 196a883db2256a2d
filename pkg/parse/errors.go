package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Kind identifies the category of a parse failure.
type Kind int

const (
	// KindInputTooLarge: the raw input exceeds MaxInputSize.
	KindInputTooLarge Kind = iota + 1
	// KindYamlBlockTooLarge: a single metadata block exceeds MaxYAMLSize.
	KindYamlBlockTooLarge
	// KindYamlSyntax: a metadata block is not valid YAML.
	KindYamlSyntax
	// KindYamlDepthExceeded: YAML nesting is deeper than MaxYAMLDepth.
	KindYamlDepthExceeded
	// KindReservedFieldCollision: user YAML defines a system-assigned key.
	KindReservedFieldCollision
	// KindMissingCardDirective: a non-first metadata block has no CARD key.
	KindMissingCardDirective
	// KindQuillDirectiveMisplaced: QUILL outside the opening frontmatter block.
	KindQuillDirectiveMisplaced
	// KindInvalidCardName: a CARD value fails the naming pattern.
	KindInvalidCardName
	// KindInvalidQuillName: a QUILL value is not a string or fails the pattern.
	KindInvalidQuillName
	// KindTooManyItems: top-level fields plus cards exceed MaxItemCount.
	KindTooManyItems
)

var kindNames = map[Kind]string{
	KindInputTooLarge:           "input_too_large",
	KindYamlBlockTooLarge:       "yaml_block_too_large",
	KindYamlSyntax:              "yaml_syntax",
	KindYamlDepthExceeded:       "yaml_depth_exceeded",
	KindReservedFieldCollision:  "reserved_field_collision",
	KindMissingCardDirective:    "missing_card_directive",
	KindQuillDirectiveMisplaced: "quill_directive_misplaced",
	KindInvalidCardName:         "invalid_card_name",
	KindInvalidQuillName:        "invalid_quill_name",
	KindTooManyItems:            "too_many_items",
}

// String returns the stable machine-readable name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a structured parse failure. Line and Column are 1-based document
// coordinates; zero means unknown. Hint, when non-empty, is a short
// corrective suggestion suitable for CLI or API diagnostics.
type Error struct {
	Kind   Kind
	Msg    string
	Line   int
	Column int
	Hint   string
	cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s (line %d, column %d)", e.Msg, e.Line, e.Column)
	case e.Line > 0:
		return fmt.Sprintf("%s (line %d)", e.Msg, e.Line)
	default:
		return e.Msg
	}
}

// Unwrap exposes the underlying cause, if any (such as a YAML library error).
func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the Kind carried by err, or zero if err is not a parse error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func errf(kind Kind, line int, format string, args ...any) *Error {
	return &Error{Kind: kind, Line: line, Msg: fmt.Sprintf(format, args...), Hint: defaultHint(kind)}
}

func defaultHint(kind Kind) string {
	switch kind {
	case KindMissingCardDirective:
		return "add a CARD: <type> line to the metadata block"
	case KindQuillDirectiveMisplaced:
		return "declare QUILL only in the opening frontmatter block"
	case KindInvalidCardName:
		return "card types must match [a-z_][a-z0-9_]*"
	case KindInvalidQuillName:
		return "quill names must match [a-z_][a-z0-9_]*"
	case KindReservedFieldCollision:
		return "rename the conflicting field"
	default:
		return ""
	}
}

var (
	yamlLineRe   = regexp.MustCompile(`line (\d+)`)
	yamlColumnRe = regexp.MustCompile(`column (\d+)`)
)

// yamlError converts a yaml.v3 error into a parse error, translating the
// library's block-relative line number into a document line using baseLine
// (the document line of the block's first content line).
func yamlError(err error, baseLine int) *Error {
	msg := err.Error()
	line, col := 0, 0
	if m := yamlLineRe.FindStringSubmatch(msg); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > 0 {
			line = baseLine + n - 1
		}
	}
	if m := yamlColumnRe.FindStringSubmatch(msg); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			col = n
		}
	}
	return &Error{
		Kind:   KindYamlSyntax,
		Msg:    "invalid YAML in metadata block: " + msg,
		Line:   line,
		Column: col,
		cause:  err,
	}
}
