package parse

import "strings"

// block is one delimited metadata block located by the scanner. Offsets
// are byte positions into the source; contentLine is the 1-based document
// line of the first content line, used for YAML diagnostics.
type block struct {
	open         int
	contentStart int
	contentEnd   int
	end          int
	contentLine  int
}

// scanBlocks walks the source line by line and returns every metadata block.
//
// A line is a delimiter candidate when its content (ignoring a trailing \r)
// is exactly "---". Outside a block a candidate is a horizontal rule, and
// inert, only when blank lines surround it on both sides; a candidate on the
// first line always opens a block. Candidates inside a fenced code block are
// inert. Inside an open block the first candidate closes it regardless of
// blank-line context. An opener that never closes is dropped: its text
// stays part of the surrounding body.
func scanBlocks(src string) []block {
	var (
		blocks    []block
		cur       block
		open      bool
		inFence   bool
		prevBlank bool
		lineNo    int
	)

	pos := 0
	for pos < len(src) {
		lineNo++
		lineEnd, next := lineBounds(src, pos)
		line := strings.TrimSuffix(src[pos:lineEnd], "\r")

		switch {
		case open:
			if line == "---" {
				cur.contentEnd = pos
				cur.end = next
				blocks = append(blocks, cur)
				open = false
			}
		case inFence:
			if line == "```" {
				inFence = false
			}
		default:
			switch {
			case line == "---":
				hr := pos > 0 && prevBlank && nextLineBlank(src, next)
				if !hr {
					cur = block{open: pos, contentStart: next, contentLine: lineNo + 1}
					open = true
				}
			case strings.HasPrefix(line, "```") && !strings.HasPrefix(line, "````"):
				inFence = true
			}
		}

		prevBlank = line == ""
		pos = next
	}

	return blocks
}

// lineBounds returns the end of the line starting at pos (exclusive of the
// terminator) and the start of the following line.
func lineBounds(src string, pos int) (lineEnd, next int) {
	if i := strings.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i, pos + i + 1
	}
	return len(src), len(src)
}

// nextLineBlank reports whether the line starting at pos is blank. The end
// of input does not count as a blank line.
func nextLineBlank(src string, pos int) bool {
	if pos >= len(src) {
		return false
	}
	lineEnd, _ := lineBounds(src, pos)
	return strings.TrimSuffix(src[pos:lineEnd], "\r") == ""
}

// segment is one span of the document: an optional metadata block followed
// by the body text running up to the next block or end of input.
type segment struct {
	hasBlock    bool
	rawYAML     string
	body        string
	contentLine int
}

// splitSegments slices the source into segments using the scanned blocks.
// The newline immediately before an opening delimiter belongs to the
// delimiter, not to the preceding body. Bodies that follow a closing
// delimiter are trimmed of leading whitespace; a leading body-only segment
// is kept verbatim.
func splitSegments(src string, blocks []block) []segment {
	if len(blocks) == 0 {
		return []segment{{body: src}}
	}

	var segs []segment
	if blocks[0].open > 0 {
		segs = append(segs, segment{body: src[:cutBefore(src, blocks[0].open)]})
	}

	for i, b := range blocks {
		end := len(src)
		if i+1 < len(blocks) {
			end = cutBefore(src, blocks[i+1].open)
			if end < b.end {
				end = b.end
			}
		}
		segs = append(segs, segment{
			hasBlock:    true,
			rawYAML:     src[b.contentStart:b.contentEnd],
			body:        strings.TrimLeft(src[b.end:end], " \t\r\n"),
			contentLine: b.contentLine,
		})
	}

	return segs
}

// cutBefore returns the body end position for a delimiter line beginning at
// open: the position of the line terminator that precedes it, when present.
func cutBefore(src string, open int) int {
	if open >= 1 && src[open-1] == '\n' {
		if open >= 2 && src[open-2] == '\r' {
			return open - 2
		}
		return open - 1
	}
	return open
}
