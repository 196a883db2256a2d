package html

import (
	"encoding/base64"
	"mime"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	gmtext "github.com/yuin/goldmark/text"
	gmutil "github.com/yuin/goldmark/util"

	"github.com/nibsbin/quillmark/pkg/quill"
)

// assetResolver finds image bytes for a destination, render assets first.
type assetResolver struct {
	q      *quill.Quill
	assets map[string][]byte
}

func (r assetResolver) lookup(name string) ([]byte, bool) {
	if data, ok := r.assets[name]; ok {
		return data, true
	}
	if r.q == nil {
		return nil, false
	}
	if data, ok := r.q.Asset(name); ok {
		return data, true
	}
	if strings.HasPrefix(name, "assets/") {
		return r.q.File(name)
	}
	return nil, false
}

type assetTransformer struct {
	r assetResolver
}

func (t assetTransformer) Transform(node *ast.Document, reader gmtext.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindImage {
			img := n.(*ast.Image)
			if data, ok := t.r.lookup(string(img.Destination)); ok {
				img.Destination = []byte(dataURI(string(img.Destination), data))
			}
		}
		return ast.WalkContinue, nil
	})
}

func dataURI(name string, data []byte) string {
	mt := mime.TypeByExtension(path.Ext(name))
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type assetExtension struct {
	r assetResolver
}

func (e assetExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		gmutil.Prioritized(assetTransformer{e.r}, 100),
	))
}

func inlineAssets(q *quill.Quill, assets map[string][]byte) goldmark.Extender {
	return assetExtension{assetResolver{q: q, assets: assets}}
}
