package deck

import (
	"context"
	"strings"
)

// Record is one card's field values, keyed by field name.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// QueryEnhancer turns a word and its example sentence into a better image
// search phrase. It is consumed as an opaque capability; failures are
// handled by the strategy closures that call it.
type QueryEnhancer interface {
	Enhance(ctx context.Context, word, sentence string) (string, error)
}

// Standard field names produced by enrichment.
const (
	FieldWord         = "word"
	FieldTranslation  = "translation"
	FieldExample      = "example"
	FieldWordAudio    = "word_audio"
	FieldExampleAudio = "example_audio"
	FieldImage        = "image"
)

// VocabCard is a vocabulary card awaiting media enrichment.
type VocabCard struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Example     string `json:"example"`
	WantImage   bool   `json:"want_image"`
}

// Record maps the card's text content into a Record.
func (c VocabCard) Record() Record {
	return Record{
		FieldWord:        strings.TrimSpace(c.Word),
		FieldTranslation: strings.TrimSpace(c.Translation),
		FieldExample:     strings.TrimSpace(c.Example),
	}
}

// AudioSegments returns the texts to synthesize, keyed by the field the
// resulting reference lands in. Empty segments are omitted.
func (c VocabCard) AudioSegments() map[string]string {
	segments := make(map[string]string, 2)
	if word := strings.TrimSpace(c.Word); word != "" {
		segments[FieldWordAudio] = word
	}
	if example := strings.TrimSpace(c.Example); example != "" {
		segments[FieldExampleAudio] = example
	}
	return segments
}

// PrimaryWord returns the word used as the image cache key.
func (c VocabCard) PrimaryWord() string {
	return strings.TrimSpace(c.Word)
}

// ImageSearchStrategy returns the deferred computation producing the image
// search phrase. An empty phrase means "no image wanted". Enhancement
// failures are swallowed here and also mean "no image"; a missing enhancer
// falls back to the plain word.
func (c VocabCard) ImageSearchStrategy(enhancer QueryEnhancer) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if !c.WantImage {
			return "", nil
		}
		word := strings.TrimSpace(c.Word)
		if word == "" {
			return "", nil
		}
		if enhancer == nil {
			return word, nil
		}
		phrase, err := enhancer.Enhance(ctx, word, c.Example)
		if err != nil {
			return "", nil
		}
		return strings.TrimSpace(phrase), nil
	}
}
