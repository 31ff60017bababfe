package relevance

import "strings"

// stopwords are tokens that carry no matching signal between a requirement
// and a statement.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "our": {}, "the": {},
	"to": {}, "we": {}, "with": {}, "you": {}, "your": {}, "will": {},
	"years": {}, "year": {}, "experience": {}, "experienced": {},
	"strong": {}, "knowledge": {}, "ability": {}, "skills": {},
	"working": {}, "work": {}, "using": {}, "used": {}, "use": {},
}

// tokenSet produces the normalized token set for lexical comparison.
// Tokens are lowercased and stripped of punctuation, keeping '+' and '#' so
// language names like c++ and c# survive.
func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '#':
			return false
		default:
			return true
		}
	})

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// lexicalScore measures how much of the requirement's vocabulary the
// statement covers: matched requirement tokens over total requirement tokens.
// Deterministic, no model call.
func lexicalScore(reqTokens, stmtTokens map[string]struct{}) float64 {
	if len(reqTokens) == 0 {
		return 0
	}
	matched := 0
	for tok := range reqTokens {
		if _, ok := stmtTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(reqTokens))
}
