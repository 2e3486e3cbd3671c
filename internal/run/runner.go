package run

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cardloom/internal/config"
	"cardloom/internal/deck"
	"cardloom/internal/enrich"
	"cardloom/internal/logging"
	"cardloom/internal/mediacache"
	"cardloom/internal/providers"
	"cardloom/internal/providers/images"
	"cardloom/internal/providers/query"
	"cardloom/internal/providers/tts"
	"cardloom/internal/registrar"
	"cardloom/internal/services"
)

const lockFileName = "cardloom.lock"

// Options control one enrichment run.
type Options struct {
	// InputPath is the JSON card file to enrich.
	InputPath string
	// OutputPath overrides where the enriched records are written.
	// Defaults to <output_dir>/<input base>-enriched.json.
	OutputPath string
	// ManifestPath overrides where the media manifest is written.
	// Defaults to <output_dir>/media-manifest.json.
	ManifestPath string
	// Workers overrides the configured batch concurrency when positive.
	Workers int
}

// Report summarizes what a run produced.
type Report struct {
	RunID           string
	Items           int
	FieldsAdded     int
	FilesRegistered int
	SkippedFields   map[string]int
	OutputPath      string
	ManifestPath    string
	Duration        time.Duration
}

// Run executes a full enrichment run. Only one run may be active per
// cache directory; a second caller fails fast instead of queueing.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logging.NewComponentLogger(logger, "run").With(logging.String(logging.FieldRunID, runID))

	if strings.TrimSpace(opts.InputPath) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "run", "setup", "input path is required", nil)
	}
	cards, err := LoadCards(opts.InputPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "setup", "prepare directories", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.CacheDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "lock", "acquire run lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "run", "lock",
			"another enrichment run is already active for this cache", nil)
	}
	defer func() { _ = lock.Unlock() }()

	log.Info("starting enrichment run",
		logging.String("input", opts.InputPath),
		logging.Int("items", len(cards)),
		logging.String(logging.FieldEventType, "run_started"))

	cacheOpts := []mediacache.CacheOption{mediacache.WithRunID(runID)}
	manifest, err := mediacache.OpenManifest(cfg.Paths.CacheDir)
	if err != nil {
		// The manifest is advisory; the flat directories stay authoritative.
		log.Warn("cache manifest unavailable, continuing without it", logging.Error(err))
	} else {
		defer func() { _ = manifest.Close() }()
		cacheOpts = append(cacheOpts, mediacache.WithManifest(manifest))
	}
	cache := mediacache.New(cfg.AudioDir(), cfg.ImageDir(), logger, cacheOpts...)

	enricher := buildEnricher(cfg, logger, cache, opts.Workers)

	records := make([]deck.Record, len(cards))
	items := make([]enrich.Item, len(cards))
	for i, card := range cards {
		records[i] = card.Record()
		items[i] = card
	}

	enriched, err := enricher.EnrichAll(ctx, records, items)
	if err != nil {
		return nil, err
	}

	sink := deck.NewManifestSink()
	reg := registrar.New(cfg.AudioDir(), cfg.ImageDir(), logger)
	registered := 0
	fieldsAdded := 0
	for i := range enriched {
		registered += reg.Register(sortedValues(enriched[i]), sink)
		fieldsAdded += len(enriched[i]) - len(records[i])
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(opts.InputPath), filepath.Ext(opts.InputPath))
		outputPath = filepath.Join(cfg.Paths.OutputDir, base+"-enriched.json")
	}
	if err := writeRecords(outputPath, enriched); err != nil {
		return nil, err
	}

	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = filepath.Join(cfg.Paths.OutputDir, "media-manifest.json")
	}
	if err := sink.WriteFile(manifestPath); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:           runID,
		Items:           len(cards),
		FieldsAdded:     fieldsAdded,
		FilesRegistered: registered,
		SkippedFields:   enricher.Skips(),
		OutputPath:      outputPath,
		ManifestPath:    manifestPath,
		Duration:        time.Since(start),
	}

	log.Info("enrichment run finished",
		logging.Int("items", report.Items),
		logging.Int("fields_added", report.FieldsAdded),
		logging.Int("files_registered", report.FilesRegistered),
		logging.Duration("duration", report.Duration),
		logging.String(logging.FieldEventType, "run_finished"))
	return report, nil
}

// LoadCards reads a JSON array of vocabulary cards.
func LoadCards(path string) ([]deck.VocabCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "load", "read card file", err)
	}
	var cards []deck.VocabCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "load",
			fmt.Sprintf("parse card file %s", path), err)
	}
	return cards, nil
}

func buildEnricher(cfg *config.Config, logger *slog.Logger, cache *mediacache.Cache, workersOverride int) *enrich.Enricher {
	policy := providers.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
	}
	callerOpts := []providers.Option{providers.WithPolicy(policy)}
	if cfg.Retry.PacePerSecond > 0 {
		callerOpts = append(callerOpts, providers.WithPace(cfg.Retry.PacePerSecond))
	}

	synth := tts.NewClient(tts.Config{
		BaseURL:        cfg.TTS.BaseURL,
		APIKey:         cfg.TTS.APIKey,
		Voice:          cfg.TTS.Voice,
		Language:       cfg.TTS.Language,
		Format:         cfg.TTS.Format,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	})

	enricherOpts := []enrich.EnricherOption{
		enrich.WithTTSCaller(providers.NewCaller(logger, callerOpts...)),
	}

	workers := cfg.Enrich.Workers
	if workersOverride > 0 {
		workers = workersOverride
	}
	if workers > 0 {
		enricherOpts = append(enricherOpts, enrich.WithWorkers(workers))
	}

	if cfg.Images.Enabled {
		searcher := images.NewClient(images.Config{
			BaseURL:        cfg.Images.BaseURL,
			APIKey:         cfg.Images.APIKey,
			TimeoutSeconds: cfg.Images.TimeoutSeconds,
		})
		enricherOpts = append(enricherOpts,
			enrich.WithImageSearcher(searcher),
			enrich.WithImageCaller(providers.NewCaller(logger, callerOpts...)))
	}

	if cfg.Query.Enabled {
		client := query.NewClient(query.Config{
			BaseURL:        cfg.Query.BaseURL,
			APIKey:         cfg.Query.APIKey,
			Model:          cfg.Query.Model,
			TimeoutSeconds: cfg.Query.TimeoutSeconds,
		})
		enricherOpts = append(enricherOpts, enrich.WithQueryEnhancer(retryingEnhancer{
			client: client,
			caller: providers.NewCaller(logger, callerOpts...),
		}))
	}

	return enrich.New(cache, synth, logger, enricherOpts...)
}

// retryingEnhancer routes search phrase enhancement through the shared
// retry machinery.
type retryingEnhancer struct {
	client *query.Client
	caller *providers.Caller
}

func (r retryingEnhancer) Enhance(ctx context.Context, word, sentence string) (string, error) {
	payload, err := r.caller.Do(ctx, "query", "enhance", func(ctx context.Context) ([]byte, error) {
		phrase, enhanceErr := r.client.Enhance(ctx, word, sentence)
		if enhanceErr != nil {
			return nil, enhanceErr
		}
		return []byte(phrase), nil
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// sortedValues returns the record's values in deterministic field order so
// registration logs are stable across runs.
func sortedValues(record deck.Record) []string {
	fields := make([]string, 0, len(record))
	for field := range record {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	values := make([]string, 0, len(fields))
	for _, field := range fields {
		values = append(values, record[field])
	}
	return values
}

func writeRecords(path string, records []deck.Record) error {
	if records == nil {
		records = []deck.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "run", "write", "encode enriched records", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "run", "write", "create output directory", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "run", "write", "write enriched records", err)
	}
	return nil
}
