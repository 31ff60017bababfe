package synthesis

import (
	"regexp"
	"strings"
	"unicode"
)

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*%?`)

// entities extracts the tokens a rewrite must preserve verbatim: numbers,
// acronyms, and proper nouns. Sentence-initial capitalization alone does not
// make a word a proper noun, but acronyms and mixed-case names count wherever
// they appear.
func entities(text string) []string {
	var found []string
	seen := make(map[string]struct{})
	add := func(e string) {
		if _, dup := seen[e]; !dup {
			seen[e] = struct{}{}
			found = append(found, e)
		}
	}

	for _, num := range numberPattern.FindAllString(text, -1) {
		add(num)
	}

	for i, word := range strings.Fields(text) {
		core := strings.Trim(word, ".,;:()[]{}\"'!?")
		if core == "" {
			continue
		}
		if isProperNoun(core, i == 0) {
			add(core)
		}
	}

	return found
}

// isProperNoun classifies a single word. first marks the first word of the
// statement, whose leading capital is ordinary sentence case.
func isProperNoun(word string, first bool) bool {
	letters := 0
	upper := 0
	upperAfterFirst := false
	for i, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
			if i > 0 {
				upperAfterFirst = true
			}
		}
	}
	if letters == 0 || upper == 0 {
		return false
	}

	allUpper := upper == letters && letters >= 2 // acronyms like AWS, SQL
	if allUpper || upperAfterFirst {
		return true
	}

	// A single leading capital is a proper noun only past the first word.
	return !first
}

// containsToken reports whether text contains entity bounded by non-word
// characters, so "Go" inside "Google" does not count as present.
func containsToken(text, entity string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], entity)
		if idx < 0 {
			return false
		}
		idx += start

		before := idx - 1
		after := idx + len(entity)
		leftOK := before < 0 || !isWordByte(text[before])
		rightOK := after >= len(text) || !isWordByte(text[after])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// missingEntities returns the source entities absent from the rewrite.
func missingEntities(source, rewrite string) []string {
	var missing []string
	for _, e := range entities(source) {
		if !containsToken(rewrite, e) {
			missing = append(missing, e)
		}
	}
	return missing
}
