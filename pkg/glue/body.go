package glue

import "strings"

// MaxGuillemetLength caps the content between chevrons, in bytes. Longer
// spans are left untouched.
const MaxGuillemetLength = 64 * 1024

// Guillemets converts <<text>> spans into «text» guillemets, the marker for
// verbatim content that passes to the backend without Markdown processing.
// Conversion is Markdown-aware: nothing changes inside fenced code blocks
// (backtick or tilde, three or more), indented code blocks (four or more
// leading spaces), or inline code spans. Chevron content must sit on a
// single line and is trimmed of surrounding whitespace; the nearest closing
// chevron pair wins.
func Guillemets(markdown string) string {
	chars := []rune(markdown)
	var b strings.Builder
	b.Grow(len(markdown))

	var (
		fenceChar   rune
		fenceLen    int
		codeTicks   int
		atLineStart = true
	)

	i := 0
	for i < len(chars) {
		ch := chars[i]

		if ch == '\n' {
			atLineStart = true
			b.WriteRune(ch)
			i++
			continue
		}

		// Indented code: copy the whole line untouched.
		if atLineStart && fenceLen == 0 && codeTicks == 0 {
			if countRun(chars[i:], ' ') >= 4 {
				for i < len(chars) && chars[i] != '\n' {
					b.WriteRune(chars[i])
					i++
				}
				continue
			}
		}
		atLineStart = false

		if fenceLen == 0 && codeTicks == 0 && (ch == '`' || ch == '~') {
			if run := countRun(chars[i:], ch); run >= 3 {
				fenceChar, fenceLen = ch, run
				writeRun(&b, ch, run)
				i += run
				continue
			}
		}

		if fenceLen > 0 {
			if ch == fenceChar {
				// A run at least as long as the opener closes the fence.
				if run := countRun(chars[i:], ch); run >= fenceLen {
					fenceLen = 0
					writeRun(&b, ch, run)
					i += run
					continue
				}
			}
			b.WriteRune(ch)
			i++
			continue
		}

		if ch == '`' {
			run := countRun(chars[i:], '`')
			if codeTicks > 0 {
				if run == codeTicks {
					codeTicks = 0
					writeRun(&b, '`', run)
					i += run
					continue
				}
				b.WriteRune(ch)
				i++
				continue
			}
			codeTicks = run
			writeRun(&b, '`', run)
			i += run
			continue
		}
		if codeTicks > 0 {
			b.WriteRune(ch)
			i++
			continue
		}

		if ch == '<' && i+1 < len(chars) && chars[i+1] == '<' {
			if off, ok := closingChevrons(chars[i+2:]); ok {
				content := string(chars[i+2 : i+2+off])
				if !strings.Contains(content, "\n") && len(content) <= MaxGuillemetLength {
					b.WriteRune('«')
					b.WriteString(strings.TrimSpace(content))
					b.WriteRune('»')
					i += off + 4
					continue
				}
			}
		}

		b.WriteRune(ch)
		i++
	}

	return b.String()
}

// closingChevrons returns the offset of the first >> pair in chars.
func closingChevrons(chars []rune) (int, bool) {
	for i := 0; i+1 < len(chars); i++ {
		if chars[i] == '>' && chars[i+1] == '>' {
			return i, true
		}
	}
	return 0, false
}

func countRun(chars []rune, target rune) int {
	n := 0
	for n < len(chars) && chars[n] == target {
		n++
	}
	return n
}

func writeRun(b *strings.Builder, ch rune, n int) {
	for ; n > 0; n-- {
		b.WriteRune(ch)
	}
}
