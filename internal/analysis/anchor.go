package analysis

import "strings"

// anchor locates needle inside region text and returns its byte span relative
// to the region start. Exact match is tried first; failing that, a
// case-insensitive word-window search absorbs whitespace differences the
// model may have introduced. The first occurrence wins so anchoring is
// deterministic.
func anchor(region, needle string) (start, end int, ok bool) {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return 0, 0, false
	}

	if idx := strings.Index(region, needle); idx >= 0 {
		return idx, idx + len(needle), true
	}

	return wordWindowMatch(region, needle)
}

// wordToken is a word with its byte span in the original text.
type wordToken struct {
	start int
	end   int
	word  string
}

func tokenizeWords(text string) []wordToken {
	var tokens []wordToken
	inWord := false
	wordStart := 0
	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n'
		if !isSpace && !inWord {
			inWord = true
			wordStart = i
		}
		if isSpace && inWord {
			inWord = false
			tokens = append(tokens, wordToken{start: wordStart, end: i, word: strings.ToLower(text[wordStart:i])})
		}
	}
	if inWord {
		tokens = append(tokens, wordToken{start: wordStart, end: len(text), word: strings.ToLower(text[wordStart:])})
	}
	return tokens
}

// wordWindowMatch slides the needle's word sequence over the region's and
// returns the span of the first aligned window.
func wordWindowMatch(region, needle string) (int, int, bool) {
	regionWords := tokenizeWords(region)
	needleWords := tokenizeWords(needle)
	if len(needleWords) == 0 || len(needleWords) > len(regionWords) {
		return 0, 0, false
	}

	for i := 0; i+len(needleWords) <= len(regionWords); i++ {
		matched := true
		for j, nw := range needleWords {
			if regionWords[i+j].word != nw.word {
				matched = false
				break
			}
		}
		if matched {
			return regionWords[i].start, regionWords[i+len(needleWords)-1].end, true
		}
	}
	return 0, 0, false
}
