package types

import "strings"

// LanguageDetector identifies the language of a text. Implementations
// are expected to be cheap and deterministic; callers that need real
// language identification can plug in their own.
type LanguageDetector interface {
	Detect(text string) string
}

// stopWordDetector scores text by stop-word overlap per language and
// picks the best match. It is intentionally small: a handful of
// high-frequency function words per language is enough to separate the
// supported languages on realistic query text.
type stopWordDetector struct {
	tables map[string]map[string]struct{}
}

// DefaultLanguageDetector returns the built-in stop-word detector
// covering en, es, fr, de, and pt. Unknown or empty text maps to "en".
func DefaultLanguageDetector() LanguageDetector {
	words := map[string][]string{
		"en": {"the", "is", "are", "what", "how", "and", "of", "to", "in", "does", "can", "a"},
		"es": {"el", "la", "los", "las", "es", "son", "que", "como", "de", "en", "una", "por"},
		"fr": {"le", "la", "les", "est", "sont", "que", "comment", "des", "du", "une", "dans", "pour"},
		"de": {"der", "die", "das", "ist", "sind", "was", "wie", "und", "ein", "eine", "von", "für"},
		"pt": {"o", "os", "as", "é", "são", "que", "como", "de", "em", "uma", "um", "para"},
	}
	tables := make(map[string]map[string]struct{}, len(words))
	for lang, list := range words {
		set := make(map[string]struct{}, len(list))
		for _, w := range list {
			set[w] = struct{}{}
		}
		tables[lang] = set
	}
	return &stopWordDetector{tables: tables}
}

func (d *stopWordDetector) Detect(text string) string {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return "en"
	}

	// Fixed evaluation order keeps ties deterministic.
	order := []string{"en", "es", "fr", "de", "pt"}
	best, bestScore := "en", 0
	for _, lang := range order {
		set := d.tables[lang]
		score := 0
		for _, tok := range tokens {
			tok = strings.Trim(tok, ".,!?;:\"'()")
			if _, ok := set[tok]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	return best
}
