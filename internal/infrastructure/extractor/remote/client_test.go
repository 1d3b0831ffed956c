package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/notelib/score-intake/internal/core/domain"
)

func TestExtractDecodesServiceResponse(t *testing.T) {
	var got extractRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/extract" {
			t.Errorf("path = %q, want /v1/extract", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "  The Liberty Bell ",
			"composer": "John Philip Sousa",
			"is_multi_part": true,
			"confidence": 85,
			"parts": [
				{"instrument_name": "Trumpet", "part_name": "Trumpet 1"},
				{"instrument_name": "Trombone", "part_name": "Trombone 2", "chair": "2nd"}
			]
		}`))
	}))
	defer server.Close()

	client := New(server.URL)
	meta, confidence, err := client.Extract(context.Background(), "liberty_bell.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if got.FileName != "liberty_bell.pdf" {
		t.Errorf("request file_name = %q", got.FileName)
	}
	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	if err != nil || string(decoded) != "%PDF-1.4" {
		t.Errorf("request content = %q, decode err = %v", got.Content, err)
	}

	if meta.Title != "The Liberty Bell" {
		t.Errorf("Title = %q, want trimmed title", meta.Title)
	}
	if !meta.IsMultiPart || len(meta.Parts) != 2 {
		t.Fatalf("parts = %+v, want 2 multi-part hints", meta.Parts)
	}
	if meta.Parts[1].Chair == nil || *meta.Parts[1].Chair != "2nd" {
		t.Errorf("chair = %v, want 2nd", meta.Parts[1].Chair)
	}
	if confidence != 85 {
		t.Errorf("confidence = %d, want 85", confidence)
	}
}

func TestExtractRejectsInvalidMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title": "", "confidence": 50}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, _, err := client.Extract(context.Background(), "unknown.pdf", []byte("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Extract() error = %v, want invalid input", err)
	}
}

func TestExtractClampsConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title": "March", "confidence": 300}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, confidence, err := client.Extract(context.Background(), "march.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if confidence != 100 {
		t.Errorf("confidence = %d, want clamp to 100", confidence)
	}
}

func TestExtractMapsOutageToTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL)
	_, _, err := client.Extract(context.Background(), "march.pdf", []byte("x"))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("Extract() error = %v, want temporary", err)
	}
}
