package run

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofrs/flock"

	"cardloom/internal/config"
	"cardloom/internal/deck"
	"cardloom/internal/services"
)

func writeCardFile(t *testing.T, cards []deck.VocabCard) string {
	t.Helper()
	data, err := json.Marshal(cards)
	if err != nil {
		t.Fatalf("marshal cards: %v", err)
	}
	path := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write cards: %v", err)
	}
	return path
}

func testConfig(t *testing.T, ttsURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.LogDir = ""
	cfg.TTS.BaseURL = ttsURL
	cfg.TTS.APIKey = "test-key"
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.PacePerSecond = 0
	cfg.Images.Enabled = false
	cfg.Query.Enabled = false
	return &cfg
}

func TestRunEndToEnd(t *testing.T) {
	var ttsCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ttsCalls.Add(1)
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	input := writeCardFile(t, []deck.VocabCard{
		{Word: "Hund", Translation: "dog", Example: "Der Hund bellt."},
		{Word: "Hund", Translation: "dog (again)"},
	})

	report, err := Run(context.Background(), cfg, nil, Options{InputPath: input})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Items != 2 {
		t.Errorf("Items = %d, want 2", report.Items)
	}
	// "Hund" synthesized once (cached for the second card), the example once.
	if got := ttsCalls.Load(); got != 2 {
		t.Errorf("tts calls = %d, want 2", got)
	}
	// Two audio files exist, but "Hund" is shared, so two registrations total.
	if report.FilesRegistered != 2 {
		t.Errorf("FilesRegistered = %d, want 2", report.FilesRegistered)
	}
	if report.FieldsAdded != 3 {
		t.Errorf("FieldsAdded = %d, want 3 (two audio fields + one shared)", report.FieldsAdded)
	}

	data, err := os.ReadFile(report.OutputPath)
	if err != nil {
		t.Fatalf("read enriched output: %v", err)
	}
	var enriched []deck.Record
	if err := json.Unmarshal(data, &enriched); err != nil {
		t.Fatalf("decode enriched output: %v", err)
	}
	if len(enriched) != 2 {
		t.Fatalf("len(enriched) = %d, want 2", len(enriched))
	}
	if !strings.HasPrefix(enriched[0][deck.FieldWordAudio], "[sound:") {
		t.Errorf("word audio = %q", enriched[0][deck.FieldWordAudio])
	}
	if enriched[0][deck.FieldWordAudio] != enriched[1][deck.FieldWordAudio] {
		t.Error("identical words should share one audio reference")
	}

	manifestData, err := os.ReadFile(report.ManifestPath)
	if err != nil {
		t.Fatalf("read media manifest: %v", err)
	}
	var doc struct {
		Files []deck.ManifestFile `json:"files"`
	}
	if err := json.Unmarshal(manifestData, &doc); err != nil {
		t.Fatalf("decode media manifest: %v", err)
	}
	if len(doc.Files) != 2 {
		t.Errorf("manifest files = %d, want 2", len(doc.Files))
	}
}

func TestRunRefusesConcurrentRuns(t *testing.T) {
	cfg := testConfig(t, "http://localhost:0")
	input := writeCardFile(t, []deck.VocabCard{{Word: "Hund"}})

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("prepare directories: %v", err)
	}
	other := flock.New(filepath.Join(cfg.Paths.CacheDir, lockFileName))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer func() { _ = other.Unlock() }()

	_, err = Run(context.Background(), cfg, nil, Options{InputPath: input})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration for a held lock", err)
	}
}

func TestRunRejectsMissingInput(t *testing.T) {
	cfg := testConfig(t, "http://localhost:0")
	_, err := Run(context.Background(), cfg, nil, Options{InputPath: filepath.Join(t.TempDir(), "absent.json")})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadCardsRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadCards(path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}
