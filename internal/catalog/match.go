package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keywords is a keyword set. Entries in Prefix match at the start of a
// word; entries in Words match only whole words. Both expect text that
// has already been normalized to lower case.
type Keywords struct {
	Prefix []string `json:"keywords"`
	Words  []string `json:"words"`
}

// Match reports whether any keyword occurs in text.
func (k Keywords) Match(text string) bool {
	_, ok := k.First(text)
	return ok
}

// First returns the first keyword (prefix keywords before whole words)
// that occurs in text.
func (k Keywords) First(text string) (string, bool) {
	for _, kw := range k.Prefix {
		if containsWord(text, kw, false) {
			return kw, true
		}
	}
	for _, kw := range k.Words {
		if containsWord(text, kw, true) {
			return kw, true
		}
	}
	return "", false
}

// Index returns the earliest position in text at which any keyword
// matches, or -1.
func (k Keywords) Index(text string) int {
	best := -1
	consider := func(kw string, whole bool) {
		if i := indexWord(text, kw, whole); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	for _, kw := range k.Prefix {
		consider(kw, false)
	}
	for _, kw := range k.Words {
		consider(kw, true)
	}
	return best
}

func containsWord(text, kw string, whole bool) bool {
	return indexWord(text, kw, whole) >= 0
}

func indexWord(text, kw string, whole bool) int {
	if kw == "" {
		return -1
	}
	for from := 0; from < len(text); {
		j := strings.Index(text[from:], kw)
		if j < 0 {
			return -1
		}
		start := from + j
		end := start + len(kw)
		if boundaryBefore(text, start) && (!whole || boundaryAfter(text, end)) {
			return start
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return -1
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
