// Package quill loads template bundles: a directory with a Quill.toml
// manifest, a glue template, and supporting assets, read into memory as a
// unit. A loaded Quill is immutable and safe to share across goroutines.
package quill

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/nibsbin/quillmark/internal/checksum"
	"github.com/nibsbin/quillmark/pkg/parse"
)

// ManifestName is the manifest file every bundle must carry at its root.
const ManifestName = "Quill.toml"

// IgnoreName is the optional ignore file controlling which paths Load reads.
const IgnoreName = ".quillignore"

// DefaultGlueFile is used when the manifest does not name a glue template.
const DefaultGlueFile = "glue.txt"

// Quill is one loaded template bundle.
type Quill struct {
	// Name identifies the quill; documents select it with a QUILL tag.
	Name string
	// Backend names the output backend the glue template targets.
	Backend string
	// Description is the manifest's human-readable summary, possibly empty.
	Description string

	glueFile    string
	exampleFile string
	metadata    map[string]parse.Value
	fields      map[string]FieldSchema
	files       map[string][]byte
	fingerprint string
}

// manifest mirrors the typed portion of Quill.toml.
type manifest struct {
	Quill  manifestHeader         `toml:"Quill"`
	Fields map[string]FieldSchema `toml:"fields"`
}

type manifestHeader struct {
	Name        string `toml:"name"`
	Backend     string `toml:"backend"`
	Glue        string `toml:"glue"`
	Description string `toml:"description"`
	Example     string `toml:"example"`
}

// headerKeys are the [Quill] keys consumed by the loader; everything else in
// the section passes through into metadata.
var headerKeys = map[string]bool{
	"name": true, "backend": true, "glue": true,
	"description": true, "example": true, "version": true,
}

// Load reads the bundle rooted at dir into memory. Paths matched by
// .quillignore (or, absent that file, a default ignore list) are skipped.
func Load(dir string) (*Quill, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("quill: resolve dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("quill: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("quill: not a directory: %s", abs)
	}

	ig := defaultIgnore()
	if raw, err := os.ReadFile(filepath.Join(abs, IgnoreName)); err == nil {
		ig = parseIgnore(string(raw))
	}

	files := map[string][]byte{}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == abs {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ig.Match(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[rel] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("quill: read %s: %w", dir, err)
	}

	return FromFiles(files)
}

// FromFiles builds a quill from an in-memory file tree keyed by
// slash-separated paths relative to the bundle root. The map is used
// directly; callers must not mutate it afterwards.
func FromFiles(files map[string][]byte) (*Quill, error) {
	raw, ok := files[ManifestName]
	if !ok {
		return nil, fmt.Errorf("quill: %s not found in bundle", ManifestName)
	}

	var m manifest
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("quill: parse %s: %w", ManifestName, err)
	}
	if m.Quill.Name == "" {
		return nil, fmt.Errorf("quill: %s missing required [Quill] name", ManifestName)
	}
	if m.Quill.Backend == "" {
		return nil, fmt.Errorf("quill: %s missing required [Quill] backend", ManifestName)
	}

	glueFile := m.Quill.Glue
	if glueFile == "" {
		glueFile = DefaultGlueFile
	}
	if _, ok := files[glueFile]; !ok {
		return nil, fmt.Errorf("quill: glue template %q not found in bundle", glueFile)
	}
	if m.Quill.Example != "" {
		if _, ok := files[m.Quill.Example]; !ok {
			return nil, fmt.Errorf("quill: example %q not found in bundle", m.Quill.Example)
		}
	}

	meta, err := passthrough(raw)
	if err != nil {
		return nil, err
	}

	q := &Quill{
		Name:        m.Quill.Name,
		Backend:     m.Quill.Backend,
		Description: m.Quill.Description,
		glueFile:    glueFile,
		exampleFile: m.Quill.Example,
		metadata:    meta,
		fields:      m.Fields,
		files:       files,
		fingerprint: checksum.Tree(files),
	}
	if q.fields == nil {
		q.fields = map[string]FieldSchema{}
	}
	return q, nil
}

// passthrough collects manifest keys the loader does not consume: extra
// [Quill] entries keep their names, and keys of any other table are
// flattened as <table>_<key>, so a [html] section's options reach the
// backend without the loader knowing them.
func passthrough(raw []byte) (map[string]parse.Value, error) {
	var all map[string]any
	if err := toml.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("quill: parse %s: %w", ManifestName, err)
	}

	meta := map[string]parse.Value{}
	for key, val := range all {
		if key == "fields" {
			continue
		}
		if key == "Quill" {
			header, _ := val.(map[string]any)
			for k, v := range header {
				if !headerKeys[k] {
					meta[k] = parse.FromAny(v)
				}
			}
			continue
		}
		table, ok := val.(map[string]any)
		if !ok {
			meta[key] = parse.FromAny(val)
			continue
		}
		for k, v := range table {
			meta[key+"_"+k] = parse.FromAny(v)
		}
	}
	return meta, nil
}

// Glue returns the glue template source.
func (q *Quill) Glue() string {
	return string(q.files[q.glueFile])
}

// GlueFile returns the name of the glue template within the bundle.
func (q *Quill) GlueFile() string { return q.glueFile }

// Example returns the bundled example markdown, when the manifest names one.
func (q *Quill) Example() (string, bool) {
	if q.exampleFile == "" {
		return "", false
	}
	data, ok := q.files[q.exampleFile]
	return string(data), ok
}

// File returns the contents of the file at the slash-separated path.
func (q *Quill) File(path string) ([]byte, bool) {
	data, ok := q.files[path]
	return data, ok
}

// Asset returns the contents of assets/<name>.
func (q *Quill) Asset(name string) ([]byte, bool) {
	return q.File("assets/" + name)
}

// Files returns every path in the bundle, sorted.
func (q *Quill) Files() []string {
	paths := make([]string, 0, len(q.files))
	for p := range q.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Metadata returns the manifest keys that passed through the loader.
func (q *Quill) Metadata() map[string]parse.Value { return q.metadata }

// Fingerprint returns a digest of the full file tree, stable across loads
// of identical content.
func (q *Quill) Fingerprint() string { return q.fingerprint }

// AssetNames lists the files under assets/, sorted, with the prefix removed.
func (q *Quill) AssetNames() []string {
	var names []string
	for p := range q.files {
		if rest, ok := strings.CutPrefix(p, "assets/"); ok {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names
}
