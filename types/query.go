package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Query is an immutable research question entering the pipeline.
// All fields are fixed at creation time.
type Query struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	NormalizedHash   string    `json:"normalized_hash"`
	DetectedLanguage string    `json:"detected_language"`
	TargetLanguage   string    `json:"target_language,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewQuery builds a Query from raw text. The normalized hash is stable
// across whitespace and casing differences so that equivalent questions
// share one cache key and one in-flight pipeline execution.
func NewQuery(text, targetLanguage string, detector LanguageDetector) Query {
	if detector == nil {
		detector = DefaultLanguageDetector()
	}
	return Query{
		ID:               uuid.NewString(),
		Text:             text,
		NormalizedHash:   NormalizeHash(text),
		DetectedLanguage: detector.Detect(text),
		TargetLanguage:   targetLanguage,
		CreatedAt:        time.Now(),
	}
}

// NormalizeHash returns the stable hash of the normalized query text.
func NormalizeHash(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
