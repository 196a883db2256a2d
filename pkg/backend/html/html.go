// Package html is the built-in output backend. It treats composed glue
// source as GitHub-flavored Markdown and renders standalone HTML with
// goldmark; the text format returns the glue output untouched.
package html

import (
	"bytes"
	"context"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghtml "github.com/yuin/goldmark/renderer/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"

	"github.com/nibsbin/quillmark/pkg/backend"
	"github.com/nibsbin/quillmark/pkg/quill"
)

// Backend renders Markdown to HTML.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "html" }

func (*Backend) Formats() []backend.OutputFormat {
	return []backend.OutputFormat{backend.FormatHTML, backend.FormatText}
}

// Compile renders glueSource. Image references that name a render asset or
// a quill asset are inlined as data URIs, so the artifact is self-contained.
func (b *Backend) Compile(ctx context.Context, glueSource string, q *quill.Quill, opts backend.Options) ([]backend.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}

	switch opts.Format {
	case backend.FormatText:
		return []backend.Artifact{{
			Format: backend.FormatText,
			Name:   "document.txt",
			Bytes:  []byte(glueSource),
		}}, nil
	case backend.FormatHTML, "":
	default:
		return nil, fmt.Errorf("html: %w: %s", backend.ErrUnsupportedFormat, opts.Format)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
			inlineAssets(q, opts.Assets),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(ghtml.WithUnsafe()),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(glueSource), &buf); err != nil {
		return nil, fmt.Errorf("html: render markdown: %w", err)
	}
	return []backend.Artifact{{
		Format: backend.FormatHTML,
		Name:   "document.html",
		Bytes:  buf.Bytes(),
	}}, nil
}
