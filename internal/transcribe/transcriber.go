package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/contentory/ingest/internal/config"
)

// Transcriber converts audio bytes to text through an OpenAI-compatible
// speech-to-text endpoint.
type Transcriber struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewTranscriber(log *slog.Logger, cfg config.TranscriptionConfig) *Transcriber {
	if log == nil {
		log = slog.Default()
	}
	return &Transcriber{
		apiKey:  cfg.APIKey,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log.With(slog.String("component", "transcriber")),
	}
}

// Model returns the configured model name, recorded alongside each
// transcription result.
func (t *Transcriber) Model() string {
	return t.model
}

// Transcribe sends the audio as a multipart upload and returns the
// recognized text.
func (t *Transcriber) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("transcription API key not configured")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := t.apiBase + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
