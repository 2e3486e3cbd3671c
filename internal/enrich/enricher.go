package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cardloom/internal/deck"
	"cardloom/internal/logging"
	"cardloom/internal/mediacache"
	"cardloom/internal/providers"
	"cardloom/internal/services"
	"cardloom/internal/textutil"
)

// Item is what the enricher needs from a card: the texts to synthesize,
// the word that keys the image cache, and a deferred image search phrase.
type Item interface {
	AudioSegments() map[string]string
	PrimaryWord() string
	ImageSearchStrategy(enhancer deck.QueryEnhancer) func(context.Context) (string, error)
}

// Result maps field names to media reference strings ready to merge into
// a card record.
type Result map[string]string

// SpeechSynthesizer produces spoken audio bytes for a text.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ImageSearcher finds and downloads one image for a search phrase.
type ImageSearcher interface {
	SearchAndFetch(ctx context.Context, query string) ([]byte, error)
}

// Enricher generates media for items through the cache and resilient
// provider callers.
type Enricher struct {
	cache       *mediacache.Cache
	synth       SpeechSynthesizer
	images      ImageSearcher
	enhancer    deck.QueryEnhancer
	ttsCaller   *providers.Caller
	imageCaller *providers.Caller
	logger      *slog.Logger
	workers     int

	mu    sync.Mutex
	skips map[string]int
}

// EnricherOption customizes an Enricher.
type EnricherOption func(*Enricher)

// WithImageSearcher enables image enrichment.
func WithImageSearcher(images ImageSearcher) EnricherOption {
	return func(e *Enricher) { e.images = images }
}

// WithQueryEnhancer installs the optional search phrase enhancer passed to
// each item's image search strategy.
func WithQueryEnhancer(enhancer deck.QueryEnhancer) EnricherOption {
	return func(e *Enricher) { e.enhancer = enhancer }
}

// WithTTSCaller overrides the retry caller used for speech synthesis.
func WithTTSCaller(caller *providers.Caller) EnricherOption {
	return func(e *Enricher) { e.ttsCaller = caller }
}

// WithImageCaller overrides the retry caller used for image search.
func WithImageCaller(caller *providers.Caller) EnricherOption {
	return func(e *Enricher) { e.imageCaller = caller }
}

// WithWorkers sets how many items EnrichAll processes concurrently.
// Values below 1 mean sequential.
func WithWorkers(workers int) EnricherOption {
	return func(e *Enricher) {
		if workers > 0 {
			e.workers = workers
		}
	}
}

// New constructs an Enricher. The cache and synthesizer are required;
// image enrichment is off until WithImageSearcher is supplied.
func New(cache *mediacache.Cache, synth SpeechSynthesizer, logger *slog.Logger, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		cache:   cache,
		synth:   synth,
		logger:  logging.NewComponentLogger(logger, "enrich"),
		workers: 1,
		skips:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ttsCaller == nil {
		e.ttsCaller = providers.NewCaller(logger)
	}
	if e.imageCaller == nil {
		e.imageCaller = providers.NewCaller(logger)
	}
	return e
}

// Enrich generates media for one item and returns the field references
// that could be produced. A failed asset is logged and skipped; the
// remaining fields are still returned.
func (e *Enricher) Enrich(ctx context.Context, item Item) Result {
	return e.enrich(ctx, e.logger.With(logging.String("item_id", uuid.NewString())), item)
}

func (e *Enricher) enrich(ctx context.Context, log *slog.Logger, item Item) Result {
	result := Result{}
	e.enrichAudio(ctx, log, item, result)
	e.enrichImage(ctx, log, item, result)
	return result
}

func (e *Enricher) enrichAudio(ctx context.Context, log *slog.Logger, item Item, result Result) {
	segments := item.AudioSegments()
	fields := make([]string, 0, len(segments))
	for field := range segments {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		text := strings.TrimSpace(segments[field])
		if text == "" {
			continue
		}
		key := textutil.Fingerprint(text)
		asset, err := e.cache.GetOrCreate(ctx, mediacache.Request{
			Kind: mediacache.KindAudio,
			Key:  key,
			Generate: func(ctx context.Context) ([]byte, error) {
				return e.ttsCaller.Do(ctx, "tts", "synthesize", func(ctx context.Context) ([]byte, error) {
					return e.synth.Synthesize(ctx, text)
				})
			},
		})
		if err != nil {
			e.recordSkip(field)
			log.Warn("audio generation failed, skipping field",
				logging.String(logging.FieldField, field),
				logging.String(logging.FieldCacheKey, key),
				logging.Error(err),
				logging.String(logging.FieldEventType, "audio_skipped"))
			continue
		}
		result[field] = fmt.Sprintf("[sound:%s]", asset.FileName)
	}
}

func (e *Enricher) enrichImage(ctx context.Context, log *slog.Logger, item Item, result Result) {
	if e.images == nil {
		return
	}
	key := textutil.NormalizeWord(item.PrimaryWord())
	if key == "" {
		return
	}

	phrase := e.resolveQuery(ctx, log, item)
	if phrase == "" {
		e.recordSkip(deck.FieldImage)
		log.Debug("no image search phrase, skipping image",
			logging.String(logging.FieldCacheKey, key),
			logging.String(logging.FieldEventType, "image_query_empty"))
		return
	}

	asset, err := e.cache.GetOrCreate(ctx, mediacache.Request{
		Kind: mediacache.KindImage,
		Key:  key,
		Generate: func(ctx context.Context) ([]byte, error) {
			return e.imageCaller.Do(ctx, "images", "search_fetch", func(ctx context.Context) ([]byte, error) {
				return e.images.SearchAndFetch(ctx, phrase)
			})
		},
	})
	if err != nil {
		e.recordSkip(deck.FieldImage)
		if errors.Is(err, services.ErrNotFound) {
			log.Info("no image available for query",
				logging.String("query", phrase),
				logging.String(logging.FieldCacheKey, key),
				logging.String(logging.FieldEventType, "image_not_found"))
		} else {
			log.Warn("image generation failed, skipping field",
				logging.String("query", phrase),
				logging.String(logging.FieldCacheKey, key),
				logging.Error(err),
				logging.String(logging.FieldEventType, "image_skipped"))
		}
		return
	}
	result[deck.FieldImage] = fmt.Sprintf("<img src=%q>", asset.FileName)
}

// resolveQuery runs the item's search strategy, containing panics and
// treating any misbehavior as "no image".
func (e *Enricher) resolveQuery(ctx context.Context, log *slog.Logger, item Item) (phrase string) {
	defer func() {
		if r := recover(); r != nil {
			phrase = ""
			log.Error("image search strategy panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "strategy_panic"))
		}
	}()
	strategy := item.ImageSearchStrategy(e.enhancer)
	if strategy == nil {
		return ""
	}
	phrase, err := strategy(ctx)
	if err != nil {
		log.Warn("image search strategy failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "strategy_failed"))
		return ""
	}
	return strings.TrimSpace(phrase)
}

func (e *Enricher) recordSkip(field string) {
	e.mu.Lock()
	e.skips[field]++
	e.mu.Unlock()
}

// Skips returns how many times each field was skipped so far.
func (e *Enricher) Skips() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.skips))
	for field, count := range e.skips {
		out[field] = count
	}
	return out
}
