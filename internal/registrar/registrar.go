// Package registrar scans enriched field values for media references and
// registers the underlying files with a sink exactly once, no matter how
// many cards share an asset.
package registrar

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"cardloom/internal/logging"
	"cardloom/internal/mediacache"
)

var (
	soundRefPattern = regexp.MustCompile(`\[sound:([^\[\]]+)\]`)
	imageRefPattern = regexp.MustCompile(`<img[^>]*\ssrc=(?:"([^"]+)"|'([^']+)')`)
)

// Sink receives files that must be bundled with the deck.
type Sink interface {
	AddMediaFile(path string, kind mediacache.Kind) error
}

// Registrar resolves referenced file names against the media cache
// directories and deduplicates registrations across an entire run.
type Registrar struct {
	audioDir string
	imageDir string
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New constructs a Registrar over the given cache directories.
func New(audioDir, imageDir string, logger *slog.Logger) *Registrar {
	return &Registrar{
		audioDir: audioDir,
		imageDir: imageDir,
		logger:   logging.NewComponentLogger(logger, "registrar"),
		seen:     make(map[string]struct{}),
	}
}

type mediaRef struct {
	fileName string
	kind     mediacache.Kind
}

// Register extracts media references from the field values and registers
// each newly seen, existing file with the sink. It returns how many files
// were registered by this call. Missing files are logged and skipped,
// never fatal.
func (r *Registrar) Register(fieldValues []string, sink Sink) int {
	registered := 0
	for _, value := range fieldValues {
		for _, ref := range extractRefs(value) {
			if r.register(ref, sink) {
				registered++
			}
		}
	}
	return registered
}

func (r *Registrar) register(ref mediaRef, sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.seen[ref.fileName]; done {
		return false
	}

	dir := r.audioDir
	if ref.kind == mediacache.KindImage {
		dir = r.imageDir
	}
	path := filepath.Join(dir, ref.fileName)

	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("referenced media file missing, skipping",
			logging.String("file", ref.fileName),
			logging.String(logging.FieldKind, string(ref.kind)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "media_missing"))
		return false
	}
	if sink == nil {
		return false
	}
	if err := sink.AddMediaFile(path, ref.kind); err != nil {
		r.logger.Warn("sink rejected media file, skipping",
			logging.String("file", ref.fileName),
			logging.String(logging.FieldKind, string(ref.kind)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "sink_rejected"))
		return false
	}

	r.seen[ref.fileName] = struct{}{}
	return true
}

// Reset clears the dedup set so a new run starts fresh.
func (r *Registrar) Reset() {
	r.mu.Lock()
	r.seen = make(map[string]struct{})
	r.mu.Unlock()
}

// extractRefs pulls sound and image references out of one field value.
// Malformed references with empty file names yield nothing.
func extractRefs(value string) []mediaRef {
	if value == "" {
		return nil
	}
	var refs []mediaRef
	for _, match := range soundRefPattern.FindAllStringSubmatch(value, -1) {
		if name := strings.TrimSpace(match[1]); name != "" {
			refs = append(refs, mediaRef{fileName: name, kind: mediacache.KindAudio})
		}
	}
	for _, match := range imageRefPattern.FindAllStringSubmatch(value, -1) {
		name := match[1]
		if name == "" {
			name = match[2]
		}
		if name = strings.TrimSpace(name); name != "" {
			refs = append(refs, mediaRef{fileName: name, kind: mediacache.KindImage})
		}
	}
	return refs
}
