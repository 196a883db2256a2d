package mcpserver

// DocumentFormatContract describes the canonical extended markdown format
// that LLM consumers should follow when writing documents for the parse
// and render tools.
const DocumentFormatContract = `# Quillmark Document Format Contract

Documents handed to parse_markdown and render_markdown MUST follow this
structure.

## Structure

` + "```" + `markdown
---
QUILL: letter                      # OPTIONAL - names the quill to render with
title: A human-readable title      # user fields, any YAML mapping entries
tags: [one, two]
---

Body text in standard Markdown.

---
CARD: item                         # REQUIRED in every later metadata block
name: First item
---

Body of the first card.
` + "```" + `

## Rules

1. **Metadata blocks are fenced by lines containing exactly ` + "`---`" + `.**
   A block opens only where a ` + "`---`" + ` line is not a horizontal rule
   (a ` + "`---`" + ` with blank lines on both sides is a rule, not a fence).
2. **The first block may be global frontmatter.** Only there may the
   ` + "`QUILL`" + ` key appear; its value must match ` + "`[a-z_][a-z0-9_]*`" + `.
3. **Every later block is a card** and must carry a string ` + "`CARD`" + `
   field naming its type (same ` + "`[a-z_][a-z0-9_]*`" + ` shape). The text
   after a card's closing ` + "`---`" + ` becomes that card's body.
4. **` + "`BODY`" + ` and ` + "`CARDS`" + ` are reserved.** Do not define them in
   global frontmatter; do not define ` + "`BODY`" + ` inside a card. The parser
   injects them: ` + "`BODY`" + ` is the prose, ` + "`CARDS`" + ` the card list.
5. **` + "`---`" + ` inside a code fence is literal text.** Fences open and
   close with exactly three backticks.
6. **Limits:** input 10 MiB, one metadata block 1 MiB, YAML nesting depth
   100, at most 1000 fields and cards combined.
7. **YAML is restricted.** Mappings, sequences and scalars only; custom
   tags are read as plain text; timestamps stay strings.

## Assets

- Stage shared render assets via the ` + "`upload_asset`" + ` tool; they are
  visible to every render and referenced from templates and markdown by
  bare filename (e.g. ` + "`![logo](logo.png)`" + `).
- Staging a name that already exists replaces the previous content.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf, css, woff,
  woff2, ttf, otf.

## Example

` + "```" + `markdown
---
QUILL: newsletter
title: Weekly digest
issue: 12
---

Welcome back. Three stories this week.

---
CARD: story
headline: Parser lands
---

The new parser shipped on Monday.

---
CARD: story
headline: Registry goes live
---

Quill bundles now hot-reload.
` + "```" + `
`
