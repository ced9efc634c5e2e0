package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/contentory/ingest/internal/config"
)

func TestTranscribeSendsMultipartRequest(t *testing.T) {
	var gotAuth, gotModel, gotFilename string
	var gotBytes []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		gotBytes, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "  ola mundo  "}`))
	}))
	defer srv.Close()

	tr := NewTranscriber(nil, config.TranscriptionConfig{
		APIKey:  "test-key",
		APIBase: srv.URL,
		Model:   "whisper-large-v3",
	})

	text, err := tr.Transcribe(context.Background(), "voice.mp3", []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "ola mundo" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotModel != "whisper-large-v3" {
		t.Fatalf("unexpected model %q", gotModel)
	}
	if gotFilename != "voice.mp3" {
		t.Fatalf("unexpected filename %q", gotFilename)
	}
	if string(gotBytes) != "audio-bytes" {
		t.Fatalf("unexpected payload %q", gotBytes)
	}
}

func TestTranscribeRejectsMissingAPIKey(t *testing.T) {
	tr := NewTranscriber(nil, config.TranscriptionConfig{Model: "whisper-large-v3"})
	if _, err := tr.Transcribe(context.Background(), "voice.mp3", []byte("x")); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	tr := NewTranscriber(nil, config.TranscriptionConfig{APIKey: "k"})
	if _, err := tr.Transcribe(context.Background(), "voice.mp3", nil); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestTranscribeSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewTranscriber(nil, config.TranscriptionConfig{
		APIKey:  "k",
		APIBase: srv.URL,
		Model:   "whisper-large-v3",
	})
	if _, err := tr.Transcribe(context.Background(), "voice.mp3", []byte("x")); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
