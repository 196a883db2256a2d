package parse

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func decode(t *testing.T, raw string) map[string]Value {
	t.Helper()
	m, err := decodeBlock(raw, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestDecodeBlock_Scalars(t *testing.T) {
	m := decode(t, "s: hello\nn: 42\nf: 3.5\nb: true\nz: null\nq: '42'\n")

	if v, _ := m["s"].Str(); v != "hello" {
		t.Errorf("s = %q", v)
	}
	if v, ok := m["n"].Int(); !ok || v != 42 {
		t.Errorf("n = %v, want int 42", m["n"])
	}
	if v, ok := m["f"].Float(); !ok || v != 3.5 {
		t.Errorf("f = %v, want 3.5", m["f"])
	}
	if v, ok := m["b"].Bool(); !ok || !v {
		t.Errorf("b = %v, want true", m["b"])
	}
	if !m["z"].IsNull() {
		t.Errorf("z = %v, want null", m["z"])
	}
	if v, ok := m["q"].Str(); !ok || v != "42" {
		t.Errorf("q = %v, want string \"42\"", m["q"])
	}
}

func TestDecodeBlock_Collections(t *testing.T) {
	m := decode(t, "tags:\n  - a\n  - b\nmeta:\n  author: me\n")

	seq, ok := m["tags"].Seq()
	if !ok || len(seq) != 2 {
		t.Fatalf("tags = %v, want two-element array", m["tags"])
	}
	if s, _ := seq[1].Str(); s != "b" {
		t.Errorf("tags[1] = %q", s)
	}
	obj, ok := m["meta"].Map()
	if !ok {
		t.Fatalf("meta = %v, want object", m["meta"])
	}
	if s, _ := obj["author"].Str(); s != "me" {
		t.Errorf("meta.author = %q", s)
	}
}

func TestDecodeBlock_CustomTagStripped(t *testing.T) {
	m := decode(t, "a: !fill value\nb: !fill 42\nc: !fill 'quoted text'\n")

	for key, want := range map[string]string{"a": "value", "b": "42", "c": "quoted text"} {
		v, ok := m[key].Str()
		if !ok {
			t.Errorf("%s = %v, want string after tag strip", key, m[key])
			continue
		}
		if v != want {
			t.Errorf("%s = %q, want %q", key, v, want)
		}
	}
}

func TestDecodeBlock_CustomTagOnCollection(t *testing.T) {
	m := decode(t, "items: !list\n  - a\n")
	seq, ok := m["items"].Seq()
	if !ok || len(seq) != 1 {
		t.Fatalf("items = %v, want array", m["items"])
	}
}

func TestDecodeBlock_StandardTagsDecode(t *testing.T) {
	m := decode(t, "s: !!str 42\nbin: !!binary aGk=\n")
	if v, ok := m["s"].Str(); !ok || v != "42" {
		t.Errorf("s = %v, want string \"42\"", m["s"])
	}
	// Binary stays the raw base64 text in the JSON-like model.
	if v, ok := m["bin"].Str(); !ok || v != "aGk=" {
		t.Errorf("bin = %v, want raw text", m["bin"])
	}
}

func TestDecodeBlock_TimestampStaysText(t *testing.T) {
	m := decode(t, "date: 2024-01-15\n")
	if v, ok := m["date"].Str(); !ok || v != "2024-01-15" {
		t.Errorf("date = %v, want the literal text", m["date"])
	}
}

func TestDecodeBlock_Empty(t *testing.T) {
	for _, raw := range []string{"", "\n", "   \n\t\n", "# only a comment\n"} {
		m, err := decodeBlock(raw, 1)
		if err != nil {
			t.Fatalf("decodeBlock(%q): %v", raw, err)
		}
		if len(m) != 0 {
			t.Errorf("decodeBlock(%q) = %v, want empty map", raw, m)
		}
	}
}

func TestDecodeBlock_RootMustBeMapping(t *testing.T) {
	for _, raw := range []string{"- a\n- b\n", "just a scalar\n"} {
		_, err := decodeBlock(raw, 1)
		if KindOf(err) != KindYamlSyntax {
			t.Errorf("decodeBlock(%q) error = %v, want yaml_syntax", raw, err)
		}
	}
}

func TestDecodeBlock_RootErrorUsesBaseLine(t *testing.T) {
	_, err := decodeBlock("- a\n", 5)
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if pe.Line != 5 {
		t.Errorf("line = %d, want 5", pe.Line)
	}
}

func TestDecodeBlock_NonScalarKey(t *testing.T) {
	_, err := decodeBlock("? [1, 2]\n: value\n", 1)
	if KindOf(err) != KindYamlSyntax {
		t.Errorf("error = %v, want yaml_syntax", err)
	}
}

func TestDecodeBlock_DuplicateKeysLastWins(t *testing.T) {
	m := decode(t, "a: 1\na: 2\n")
	if v, _ := m["a"].Int(); v != 2 {
		t.Errorf("a = %v, want 2", m["a"])
	}
}

func TestDecodeBlock_Aliases(t *testing.T) {
	m := decode(t, "base: &b\n  x: 1\nother: *b\n")
	obj, ok := m["other"].Map()
	if !ok {
		t.Fatalf("other = %v, want object", m["other"])
	}
	if v, _ := obj["x"].Int(); v != 1 {
		t.Errorf("other.x = %v, want 1", obj["x"])
	}
}

func TestDecodeBlock_RecursiveAlias(t *testing.T) {
	_, err := decodeBlock("a: &x\n  b: *x\n", 1)
	if KindOf(err) != KindYamlSyntax {
		t.Errorf("error = %v, want yaml_syntax", err)
	}
}

func TestDecodeBlock_AliasExpansionBounded(t *testing.T) {
	// Seven levels of nine-fold aliasing expand to far more values than
	// the budget allows; the block itself stays tiny.
	var b strings.Builder
	b.WriteString("l1: &l1 [a, a, a, a, a, a, a, a, a]\n")
	for i := 2; i <= 7; i++ {
		refs := strings.TrimSuffix(strings.Repeat(fmt.Sprintf("*l%d, ", i-1), 9), ", ")
		fmt.Fprintf(&b, "l%d: &l%d [%s]\n", i, i, refs)
	}
	_, err := decodeBlock(b.String(), 1)
	if KindOf(err) != KindYamlBlockTooLarge {
		t.Errorf("error = %v, want yaml_block_too_large", err)
	}
}

func TestDecodeBlock_SizeLimit(t *testing.T) {
	raw := "x: " + strings.Repeat("a", MaxYAMLSize)
	_, err := decodeBlock(raw, 1)
	if KindOf(err) != KindYamlBlockTooLarge {
		t.Errorf("error = %v, want yaml_block_too_large", err)
	}
}

func TestDecodeBlock_HugeIntegerBecomesFloat(t *testing.T) {
	m := decode(t, "big: 9223372036854775808\n")
	if _, ok := m["big"].Int(); ok {
		t.Fatalf("big = %v, should not fit int64", m["big"])
	}
	if _, ok := m["big"].Float(); !ok {
		t.Errorf("big = %v, want float fallback", m["big"])
	}
}

func TestYamlError_LineMapping(t *testing.T) {
	pe := yamlError(errors.New("yaml: line 3: mapping values are not allowed in this context"), 10)
	if pe.Line != 12 {
		t.Errorf("line = %d, want 12", pe.Line)
	}
	if pe.Kind != KindYamlSyntax {
		t.Errorf("kind = %v, want yaml_syntax", pe.Kind)
	}
	if !strings.Contains(pe.Error(), "line 12") {
		t.Errorf("message %q should carry the document line", pe.Error())
	}
}

func TestYamlError_NoLocation(t *testing.T) {
	pe := yamlError(errors.New("yaml: some failure"), 10)
	if pe.Line != 0 {
		t.Errorf("line = %d, want 0", pe.Line)
	}
	if pe.Error() != "invalid YAML in metadata block: yaml: some failure" {
		t.Errorf("message = %q", pe.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("yaml: line 1: boom")
	pe := yamlError(cause, 1)
	if !errors.Is(pe, cause) {
		t.Error("yaml cause should be reachable through Unwrap")
	}
}
