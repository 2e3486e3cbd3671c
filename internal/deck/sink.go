package deck

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"cardloom/internal/mediacache"
)

// MediaSink receives files that must travel with the enriched deck.
type MediaSink interface {
	AddMediaFile(path string, kind mediacache.Kind) error
}

// ManifestFile is one bundled media file in the output manifest.
type ManifestFile struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Kind     string `json:"kind"`
}

// ManifestSink collects registered media files and writes them out as a
// JSON manifest a packager can consume.
type ManifestSink struct {
	mu    sync.Mutex
	files []ManifestFile
}

// NewManifestSink returns an empty sink.
func NewManifestSink() *ManifestSink {
	return &ManifestSink{}
}

// AddMediaFile records one media file. Safe for concurrent use.
func (s *ManifestSink) AddMediaFile(path string, kind mediacache.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, ManifestFile{
		FileName: filepath.Base(path),
		Path:     path,
		Kind:     string(kind),
	})
	return nil
}

// Files returns a copy of the collected files, sorted by file name.
func (s *ManifestSink) Files() []ManifestFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ManifestFile, len(s.files))
	copy(out, s.files)
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

// Len reports how many files the sink has collected.
func (s *ManifestSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type manifestDocument struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Files       []ManifestFile `json:"files"`
}

// WriteFile writes the manifest JSON to path, creating parent directories
// as needed.
func (s *ManifestSink) WriteFile(path string) error {
	doc := manifestDocument{
		GeneratedAt: time.Now().UTC(),
		Files:       s.Files(),
	}
	if doc.Files == nil {
		doc.Files = []ManifestFile{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode media manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write media manifest: %w", err)
	}
	return nil
}
