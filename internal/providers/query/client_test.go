package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cardloom/internal/services"
)

func TestEnhanceReturnsPhrase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"  \"dog running in park\"  "}}]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", Model: "m"})
	phrase, err := client.Enhance(context.Background(), "Hund", "Der Hund läuft im Park.")
	if err != nil {
		t.Fatalf("Enhance failed: %v", err)
	}
	if phrase != "dog running in park" {
		t.Errorf("phrase = %q", phrase)
	}
}

func TestEnhanceEmptyCompletionIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"   "}}]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if _, err := client.Enhance(context.Background(), "Hund", ""); !errors.Is(err, services.ErrTransient) {
		t.Errorf("err = %v, want ErrTransient", err)
	}
}

func TestEnhanceAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"model overloaded"}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if _, err := client.Enhance(context.Background(), "Hund", ""); !errors.Is(err, services.ErrTransient) {
		t.Errorf("err = %v, want ErrTransient", err)
	}
}

func TestEnhanceMissingKeyIsConfiguration(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:9", Model: "m"})
	if _, err := client.Enhance(context.Background(), "Hund", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}
