package ingestion

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeText prepares extracted document text for the rest of the
// pipeline. Statement offsets downstream refer to the string returned here,
// so normalization happens exactly once, at ingestion.
func NormalizeText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\uFEFF", "")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	normalized := make([]string, 0, len(lines))
	for _, line := range lines {
		normalized = append(normalized, normalizeLine(line))
	}

	result := strings.Join(normalized, "\n")
	result = collapseBlankLines(result)
	return strings.TrimSpace(result)
}

// normalizeLine cleans a single line while keeping its structural role.
// Markdown headings lose their indentation, bullets keep theirs, and plain
// prose has interior whitespace runs collapsed to single spaces.
func normalizeLine(line string) string {
	line = stripControlChars(line)
	line = strings.TrimRight(line, " \t")
	if strings.TrimSpace(line) == "" {
		return ""
	}

	trimmed := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimmed, "#") {
		return trimmed
	}

	if isBulletLine(trimmed) {
		indent := len(line) - len(trimmed)
		if indent > 0 {
			return strings.Repeat(" ", indent) + trimmed
		}
		return trimmed
	}

	indent := len(line) - len(trimmed)
	content := spaceRun.ReplaceAllString(strings.TrimSpace(line), " ")
	if indent > 0 {
		return strings.Repeat(" ", indent) + content
	}
	return content
}

// isBulletLine reports whether a left-trimmed line starts a list item.
func isBulletLine(trimmed string) bool {
	for _, marker := range []string{"- ", "* ", "• ", "· ", "‣ "} {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// stripControlChars removes control characters other than tab. Newlines never
// reach this function since it operates on a single line.
func stripControlChars(line string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, line)
}

// collapseBlankLines reduces runs of 3+ newlines to a single blank line.
func collapseBlankLines(content string) string {
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}
	return content
}
