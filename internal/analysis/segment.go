package analysis

import (
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/types"
)

// segment is a span of document text that will become one statement, or, when
// ambiguous, a prose region the model splits into statements.
type segment struct {
	start     int
	end       int
	label     string
	ambiguous bool
}

// line is a document line with its byte span (newline excluded).
type line struct {
	start int
	end   int
	text  string
}

func splitLines(text string) []line {
	var lines []line
	offset := 0
	for _, l := range strings.Split(text, "\n") {
		lines = append(lines, line{start: offset, end: offset + len(l), text: l})
		offset += len(l) + 1
	}
	return lines
}

var bulletMarkers = []string{"- ", "* ", "• ", "· ", "‣ "}

// bulletContent returns the byte offset of the content after a bullet marker,
// or -1 when the line is not a bullet.
func bulletContent(l line) int {
	trimmed := strings.TrimLeft(l.text, " \t")
	indent := len(l.text) - len(trimmed)
	for _, marker := range bulletMarkers {
		if strings.HasPrefix(trimmed, marker) {
			content := strings.TrimLeft(trimmed[len(marker):], " \t")
			return l.start + indent + len(marker) + (len(trimmed) - len(marker) - len(content))
		}
	}
	return -1
}

// segmentDocument walks normalized text and produces segments in document
// order. Bullets become one segment per line. Consecutive prose lines form a
// block; blocks longer than proseThreshold runes are marked ambiguous for
// model segmentation, shorter ones become single statements.
func segmentDocument(text string, hints []ingestion.SectionHint, proseThreshold int) []segment {
	hintAt := make(map[int]string, len(hints))
	for _, h := range hints {
		hintAt[h.Offset] = h.Label
	}

	var (
		segments   []segment
		blockStart = -1
		blockEnd   = -1
		label      = types.SectionOther
	)

	flushBlock := func() {
		if blockStart < 0 {
			return
		}
		block := segment{start: blockStart, end: blockEnd, label: label}
		if utf8.RuneCountInString(text[blockStart:blockEnd]) > proseThreshold {
			block.ambiguous = true
		}
		segments = append(segments, block)
		blockStart, blockEnd = -1, -1
	}

	for _, l := range splitLines(text) {
		if hintLabel, isHeading := hintAt[l.start]; isHeading {
			flushBlock()
			label = hintLabel
			continue
		}

		if strings.TrimSpace(l.text) == "" {
			flushBlock()
			continue
		}

		if contentStart := bulletContent(l); contentStart >= 0 {
			flushBlock()
			if end := trimmedEnd(text, contentStart, l.end); end > contentStart {
				segments = append(segments, segment{start: contentStart, end: end, label: label})
			}
			continue
		}

		start := l.start + indentWidth(l.text)
		end := trimmedEnd(text, start, l.end)
		if end <= start {
			continue
		}
		if blockStart < 0 {
			blockStart = start
		}
		blockEnd = end
	}
	flushBlock()

	return segments
}

// indentWidth counts leading space and tab bytes.
func indentWidth(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

// trimmedEnd walks end back over trailing whitespace so spans never include
// it. start bounds the walk.
func trimmedEnd(text string, start, end int) int {
	for end > start {
		r := text[end-1]
		if r == ' ' || r == '\t' {
			end--
			continue
		}
		break
	}
	return end
}
