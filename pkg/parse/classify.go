package parse

import "regexp"

// nameRe is the pattern every CARD type and QUILL name must match.
var nameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// role is the part a metadata block plays in the document.
type role int

const (
	roleGlobal role = iota
	roleCard
)

// classification is the classifier's verdict for one metadata block.
type classification struct {
	role  role
	card  string
	quill string
}

// classify decides what role the metadata block of segment index plays.
//
// The grammar is deliberately asymmetric: segment 0 may be global
// frontmatter (optionally carrying a QUILL directive) or a card, while every
// later segment must be a card and must not carry QUILL. That asymmetry
// lives entirely in this function.
func classify(index int, fields map[string]Value, line int) (classification, error) {
	cardVal, hasCard := fields[FieldCard]
	quillVal, hasQuill := fields[FieldQuill]

	if hasQuill && (index > 0 || hasCard) {
		if hasCard {
			return classification{}, errf(KindQuillDirectiveMisplaced, line,
				"QUILL cannot be combined with CARD in the same metadata block")
		}
		return classification{}, errf(KindQuillDirectiveMisplaced, line,
			"QUILL is only valid in the opening frontmatter block")
	}

	if !hasCard {
		if index > 0 {
			return classification{}, errf(KindMissingCardDirective, line,
				"metadata block %d has no CARD directive", index+1)
		}
		cls := classification{role: roleGlobal}
		if hasQuill {
			name, err := quillName(quillVal, line)
			if err != nil {
				return classification{}, err
			}
			cls.quill = name
		}
		return cls, nil
	}

	name, ok := cardVal.Str()
	if !ok {
		return classification{}, errf(KindInvalidCardName, line, "CARD value must be a string")
	}
	if !nameRe.MatchString(name) {
		return classification{}, errf(KindInvalidCardName, line,
			"invalid card type %q: must match [a-z_][a-z0-9_]*", name)
	}
	return classification{role: roleCard, card: name}, nil
}

func quillName(v Value, line int) (string, error) {
	name, ok := v.Str()
	if !ok {
		return "", errf(KindInvalidQuillName, line, "QUILL value must be a string")
	}
	if !nameRe.MatchString(name) {
		return "", errf(KindInvalidQuillName, line,
			"invalid quill name %q: must match [a-z_][a-z0-9_]*", name)
	}
	return name, nil
}
