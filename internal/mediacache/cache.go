package mediacache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cardloom/internal/logging"
	"cardloom/internal/services"
)

// Kind identifies the class of a cached media asset.
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// Ext returns the canonical file extension for the kind.
func (k Kind) Ext() string {
	switch k {
	case KindAudio:
		return ".mp3"
	case KindImage:
		return ".jpg"
	default:
		return ""
	}
}

func (k Kind) valid() bool {
	return k == KindAudio || k == KindImage
}

// Request describes one unit of media generation work. Generate is invoked
// only when the canonical path does not already exist.
type Request struct {
	Kind     Kind
	Key      string
	Generate func(context.Context) ([]byte, error)
}

// Asset represents a resolved, on-disk media file. It is only handed out
// after the file's existence has been confirmed.
type Asset struct {
	Path     string
	FileName string
	Kind     Kind
	Key      string
}

// Cache maps media requests onto canonical files under two flat base
// directories, calling the generation capability only on a miss.
type Cache struct {
	audioDir string
	imageDir string
	logger   *slog.Logger
	manifest *Manifest
	runID    string

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithManifest attaches the advisory sqlite manifest; created assets are
// recorded in it best-effort.
func WithManifest(manifest *Manifest) CacheOption {
	return func(c *Cache) {
		c.manifest = manifest
	}
}

// WithRunID tags manifest entries with the enrichment run that created them.
func WithRunID(runID string) CacheOption {
	return func(c *Cache) {
		c.runID = strings.TrimSpace(runID)
	}
}

// New creates a cache over the given base directories. Directories are
// created on first use.
func New(audioDir, imageDir string, logger *slog.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		audioDir: audioDir,
		imageDir: imageDir,
		logger:   logging.NewComponentLogger(logger, "mediacache"),
		keyLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCreate resolves the request to an on-disk asset. A file already at
// the canonical path is returned immediately with no provider call; on a
// miss the generation capability runs and its payload is written atomically.
// Concurrent requests for the same key within a run are serialized so the
// provider is invoked at most once per key.
func (c *Cache) GetOrCreate(ctx context.Context, req Request) (Asset, error) {
	if !req.Kind.valid() {
		return Asset{}, services.Wrap(services.ErrConfiguration, "mediacache", "get_or_create",
			fmt.Sprintf("unknown media kind %q", req.Kind), nil)
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return Asset{}, services.Wrap(services.ErrConfiguration, "mediacache", "get_or_create", "empty cache key", nil)
	}
	if strings.ContainsAny(key, `/\`) {
		return Asset{}, services.Wrap(services.ErrConfiguration, "mediacache", "get_or_create",
			fmt.Sprintf("cache key %q is not filesystem-safe", key), nil)
	}

	unlock := c.lockKey(string(req.Kind) + "/" + key)
	defer unlock()

	fileName := key + req.Kind.Ext()
	path := filepath.Join(c.baseDir(req.Kind), fileName)
	asset := Asset{Path: path, FileName: fileName, Kind: req.Kind, Key: key}

	if _, err := os.Stat(path); err == nil {
		c.logger.Debug("cache hit",
			logging.String(logging.FieldKind, string(req.Kind)),
			logging.String(logging.FieldCacheKey, key))
		return asset, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Asset{}, services.Wrap(services.ErrTransient, "mediacache", "get_or_create", "stat cached file", err)
	}

	if req.Generate == nil {
		return Asset{}, services.Wrap(services.ErrConfiguration, "mediacache", "get_or_create",
			"no generation capability supplied", nil)
	}

	payload, err := req.Generate(ctx)
	if err != nil {
		return Asset{}, err
	}
	if len(payload) == 0 {
		return Asset{}, services.Wrap(services.ErrTransient, "mediacache", "get_or_create", "generator returned empty payload", nil)
	}

	if err := c.write(path, payload); err != nil {
		return Asset{}, services.Wrap(services.ErrTransient, "mediacache", "get_or_create", "persist asset", err)
	}

	c.recordManifest(ctx, req.Kind, key, fileName, int64(len(payload)))

	c.logger.Debug("cache miss filled",
		logging.String(logging.FieldKind, string(req.Kind)),
		logging.String(logging.FieldCacheKey, key),
		logging.Int("size_bytes", len(payload)))
	return asset, nil
}

// Prune removes cached files recorded before the cutoff, along with their
// manifest rows. Requires a manifest; returns the number of files removed.
func (c *Cache) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	if c.manifest == nil {
		return 0, errors.New("prune requires a cache manifest")
	}
	entries, err := c.manifest.ListOlderThan(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(c.baseDir(Kind(entry.Kind)), entry.FileName)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("prune could not remove file",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_prune_failed"))
			continue
		}
		if err := c.manifest.Delete(ctx, Kind(entry.Kind), entry.Key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// BaseDir exposes the per-kind base directory (used by the registrar to
// resolve extracted references).
func (c *Cache) BaseDir(kind Kind) string {
	return c.baseDir(kind)
}

func (c *Cache) baseDir(kind Kind) string {
	if kind == KindImage {
		return c.imageDir
	}
	return c.audioDir
}

func (c *Cache) lockKey(key string) func() {
	c.mu.Lock()
	lock, ok := c.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.keyLocks[key] = lock
	}
	c.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// write persists the payload atomically via temp file + rename so a
// crashed run never leaves a truncated asset at a canonical path.
func (c *Cache) write(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (c *Cache) recordManifest(ctx context.Context, kind Kind, key, fileName string, size int64) {
	if c.manifest == nil {
		return
	}
	entry := Entry{
		Key:       key,
		Kind:      string(kind),
		FileName:  fileName,
		SizeBytes: size,
		RunID:     c.runID,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.manifest.Record(ctx, entry); err != nil {
		c.logger.Warn("manifest record failed",
			logging.String(logging.FieldCacheKey, key),
			logging.Error(err),
			logging.String(logging.FieldEventType, "manifest_record_failed"),
			logging.String(logging.FieldErrorHint, "cache stats may undercount; files are unaffected"))
	}
}
