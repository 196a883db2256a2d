// Package parse implements the extended Markdown dialect used by quillmark:
// Markdown interleaved with YAML metadata blocks fenced by --- lines, where
// repeated typed blocks (cards) aggregate into an ordered collection.
//
// Parse is a pure function with hard resource limits; it never produces a
// partial document, and is safe to call concurrently.
package parse

// Resource limits enforced while parsing. Input beyond these bounds is
// rejected rather than processed.
const (
	// MaxInputSize is the ceiling on raw input, in bytes.
	MaxInputSize = 10 << 20
	// MaxYAMLSize is the ceiling on a single metadata block, in bytes.
	MaxYAMLSize = 1 << 20
	// MaxYAMLDepth is the deepest permitted YAML nesting within a block.
	MaxYAMLDepth = 100
	// MaxItemCount is the ceiling on top-level fields plus cards.
	MaxItemCount = 1000
)

// Parse decomposes markdown into a Document: global frontmatter fields, the
// global body, and every card block in document order. The first error
// encountered aborts the parse; no partial document is ever returned.
func Parse(markdown string) (*Document, error) {
	if len(markdown) > MaxInputSize {
		return nil, errf(KindInputTooLarge, 0, "input exceeds %d bytes", MaxInputSize)
	}

	segs := splitSegments(markdown, scanBlocks(markdown))
	return assemble(segs)
}

// assemble folds the classified segments into the final document, enforcing
// reserved-key rules and the total item count as it goes.
func assemble(segs []segment) (*Document, error) {
	doc := &Document{
		fields: map[string]Value{},
		cards:  []Card{},
	}
	count := 0

	for i, seg := range segs {
		if !seg.hasBlock {
			doc.body = seg.body
			continue
		}

		fields, err := decodeBlock(seg.rawYAML, seg.contentLine)
		if err != nil {
			return nil, err
		}
		cls, err := classify(i, fields, seg.contentLine)
		if err != nil {
			return nil, err
		}

		switch cls.role {
		case roleGlobal:
			if err := checkReserved(fields, seg.contentLine, FieldBody, FieldCards); err != nil {
				return nil, err
			}
			delete(fields, FieldQuill)
			doc.quill = cls.quill
			for k, v := range fields {
				doc.fields[k] = v
				if count++; count > MaxItemCount {
					return nil, tooManyItems(seg.contentLine)
				}
			}
			doc.body = seg.body

		case roleCard:
			if err := checkReserved(fields, seg.contentLine, FieldBody); err != nil {
				return nil, err
			}
			fields[FieldCard] = String(cls.card)
			fields[FieldBody] = String(seg.body)
			doc.cards = append(doc.cards, Card{fields: fields})
			if count++; count > MaxItemCount {
				return nil, tooManyItems(seg.contentLine)
			}
		}
	}

	doc.fields[FieldBody] = String(doc.body)
	cardVals := make([]Value, len(doc.cards))
	for i, c := range doc.cards {
		cardVals[i] = Map(c.fields)
	}
	doc.fields[FieldCards] = Seq(cardVals)

	return doc, nil
}

// checkReserved rejects user YAML that defines a system-assigned key.
func checkReserved(fields map[string]Value, line int, reserved ...string) error {
	for _, name := range reserved {
		if _, ok := fields[name]; ok {
			return errf(KindReservedFieldCollision, line,
				"metadata may not define the reserved field %s", name)
		}
	}
	return nil
}

func tooManyItems(line int) *Error {
	return errf(KindTooManyItems, line,
		"document exceeds %d top-level fields and cards", MaxItemCount)
}
