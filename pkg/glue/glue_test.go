package glue

import (
	"strings"
	"testing"

	"github.com/nibsbin/quillmark/pkg/parse"
)

func mustDoc(t *testing.T, src string) *parse.Document {
	t.Helper()
	doc, err := parse.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func compose(t *testing.T, source, markdown string) string {
	t.Helper()
	g, err := New(source)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := g.ComposeDocument(mustDoc(t, markdown))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	return out
}

func TestCompose(t *testing.T) {
	out := compose(t, "Dear {{.title}},\n{{.BODY}}", "---\ntitle: Alice\n---\nHello.")
	if out != "Dear Alice,\nHello." {
		t.Errorf("out = %q", out)
	}
}

func TestComposeCards(t *testing.T) {
	src := "---\ntitle: Doc\n---\nIntro\n\n" +
		"---\nCARD: section\nheading: First\n---\none\n\n" +
		"---\nCARD: note\ntext: aside\n---\n\n" +
		"---\nCARD: section\nheading: Second\n---\ntwo"
	out := compose(t, `{{range cards "section" .CARDS}}{{.heading}};{{end}}`, src)
	if out != "First;Second;" {
		t.Errorf("out = %q", out)
	}
}

func TestComposeRangeAllCards(t *testing.T) {
	src := "---\nt: 1\n---\n\n---\nCARD: a\n---\nx\n---\nCARD: b\n---\ny"
	out := compose(t, "{{range .CARDS}}{{.CARD}}:{{.BODY}} {{end}}", src)
	if out != "a:x b:y " {
		t.Errorf("out = %q", out)
	}
}

func TestNewSyntaxError(t *testing.T) {
	if _, err := New("{{.unclosed"); err == nil {
		t.Error("expected parse error")
	}
}

func TestMissingFieldIsFalsy(t *testing.T) {
	out := compose(t, "{{if .missing}}x{{end}}ok", "body only")
	if out != "ok" {
		t.Errorf("out = %q", out)
	}
}

func TestQuoteFunc(t *testing.T) {
	out := compose(t, "{{quote .title}}", "---\ntitle: 'say \"hi\"'\n---\n")
	if out != `"say \"hi\""` {
		t.Errorf("out = %q", out)
	}
}

func TestLinesFunc(t *testing.T) {
	out := compose(t, "{{range lines .BODY}}[{{.}}]{{end}}", "a\nb\n")
	if out != "[a][b]" {
		t.Errorf("out = %q", out)
	}
}

func TestJSONFunc(t *testing.T) {
	out := compose(t, "{{json .tags}}", "---\ntags:\n  - x\n  - 1\n---\n")
	if out != `["x",1]` {
		t.Errorf("out = %q", out)
	}
}

func TestCaseFuncs(t *testing.T) {
	out := compose(t, "{{upper .a}} {{lower .b}}", "---\na: go\nb: GO\n---\n")
	if out != "GO go" {
		t.Errorf("out = %q", out)
	}
}

func TestDateFunc(t *testing.T) {
	out := compose(t, `{{date "Jan 2, 2006" .sent}}`, "---\nsent: 2024-01-15\n---\n")
	if out != "Jan 15, 2024" {
		t.Errorf("out = %q", out)
	}

	out = compose(t, `{{date "15:04" .at}}`, "---\nat: '2024-01-15T10:30:00Z'\n---\n")
	if out != "10:30" {
		t.Errorf("out = %q", out)
	}
}

func TestDateFuncBadInput(t *testing.T) {
	g, err := New(`{{date "2006" .title}}`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = g.ComposeDocument(mustDoc(t, "---\ntitle: not a date\n---\n"))
	if err == nil {
		t.Fatal("expected compose error")
	}
	if !strings.Contains(err.Error(), "glue:") {
		t.Errorf("error = %v, want glue-prefixed", err)
	}
}

func TestContextTypes(t *testing.T) {
	doc := mustDoc(t, "---\nn: 3\n---\nBody\n\n---\nCARD: c\n---\n")
	ctx := Context(doc.Fields())

	if _, ok := ctx["BODY"].(string); !ok {
		t.Errorf("BODY = %T, want string", ctx["BODY"])
	}
	cards, ok := ctx["CARDS"].([]any)
	if !ok || len(cards) != 1 {
		t.Fatalf("CARDS = %T %v", ctx["CARDS"], ctx["CARDS"])
	}
	if _, ok := cards[0].(map[string]any); !ok {
		t.Errorf("card = %T, want map", cards[0])
	}
	if n, ok := ctx["n"].(int64); !ok || n != 3 {
		t.Errorf("n = %v (%T)", ctx["n"], ctx["n"])
	}
}
