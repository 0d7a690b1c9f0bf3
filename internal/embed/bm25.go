package embed

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase word tokens. Under the HYBRID
// tier the engine tokenizes the query and each candidate's stored
// content with it at query time, as the BM25 side-channel the Ranker
// blends into `sim` (§4.2, §4.5 step 6); no token list is persisted.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
