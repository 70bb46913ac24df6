package voice

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopwords are skipped when deriving a topic from question text.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "why": true, "how": true, "does": true, "did": true,
	"you": true, "your": true, "about": true, "have": true, "has": true,
	"was": true, "were": true, "are": true, "can": true, "could": true,
	"would": true, "should": true, "think": true, "tell": true, "from": true,
	"into": true, "chapter": true, "book": true, "author": true, "reading": true,
}

// foldTransformer strips diacritics so "café" and "cafe" key the same.
var foldTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// TopicFromText derives a short topic label from question text: the
// first two meaningful keywords, lowercased and diacritic-folded.
// Returns "" when nothing meaningful survives the stopword filter.
func TopicFromText(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}

	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var keywords []string
	for _, w := range words {
		if len(w) <= 2 || stopwords[w] {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == 2 {
			break
		}
	}
	return strings.Join(keywords, " ")
}
