package parse

import "encoding/json"

// Reserved field names. BODY and CARDS are assigned by the parser and may
// not come from user YAML; CARD discriminates card blocks; QUILL selects a
// template and is consumed during parsing rather than kept as a field.
const (
	FieldBody  = "BODY"
	FieldCards = "CARDS"
	FieldCard  = "CARD"
	FieldQuill = "QUILL"
)

// Document is the parser's output: the global frontmatter fields plus the
// reserved BODY and CARDS entries, which are always present. A Document is
// independent of the input it was parsed from and holds no shared state;
// treat it as immutable.
type Document struct {
	fields map[string]Value
	cards  []Card
	body   string
	quill  string
}

// Body returns the body text of the global segment. It is the empty string
// when the first segment is a card.
func (d *Document) Body() string { return d.body }

// Cards returns every card in document order. The slice is never nil.
func (d *Document) Cards() []Card { return d.cards }

// Quill returns the template name consumed from a QUILL directive, or the
// empty string when the document has none.
func (d *Document) Quill() string { return d.quill }

// Field looks up a top-level field, including the reserved BODY and CARDS
// entries.
func (d *Document) Field(name string) (Value, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// Fields returns the full top-level field map, BODY and CARDS included.
func (d *Document) Fields() map[string]Value { return d.fields }

// MarshalJSON serializes the document as a single JSON object: every global
// field plus BODY (string) and CARDS (array of card objects).
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.fields)
}

// Card is one typed content unit: its CARD discriminator, its BODY text,
// and its own YAML fields.
type Card struct {
	fields map[string]Value
}

// Type returns the card's CARD discriminator.
func (c Card) Type() string {
	s, _ := c.fields[FieldCard].Str()
	return s
}

// Body returns the card's body text, possibly empty.
func (c Card) Body() string {
	s, _ := c.fields[FieldBody].Str()
	return s
}

// Field looks up one of the card's fields, CARD and BODY included.
func (c Card) Field(name string) (Value, bool) {
	v, ok := c.fields[name]
	return v, ok
}

// Fields returns the card's full field map.
func (c Card) Fields() map[string]Value { return c.fields }

// MarshalJSON serializes the card as a JSON object.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.fields)
}
