package textindex

import (
	"strings"
	"unicode"
)

// Tokenize разбивает текст на слова в нижнем регистре: последовательности букв, цифр и '_'
// длиной от двух символов. Стоп-слова отбрасываются.
func Tokenize(text string, stopWords map[string]struct{}) []string {
	var (
		tokens []string
		word   strings.Builder
		runes  int
	)

	flush := func() {
		if runes >= 2 {
			w := word.String()
			if _, stop := stopWords[w]; !stop {
				tokens = append(tokens, w)
			}
		}
		word.Reset()
		runes = 0
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			word.WriteRune(r)
			runes++
			continue
		}
		flush()
	}
	flush()

	return tokens
}
