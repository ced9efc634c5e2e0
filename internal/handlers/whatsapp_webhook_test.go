package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/contentory/ingest/internal/chatwoot"
	"github.com/contentory/ingest/internal/identity"
	"github.com/contentory/ingest/internal/store"
	"github.com/contentory/ingest/internal/webhook"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, p *chatwoot.WebhookPayload) identity.Resolution {
	return identity.Resolution{ContactID: identity.ContactID(p)}
}

type stubBuckets struct{}

func (stubBuckets) EnsureUserBucket(_ context.Context, userID string) (string, error) {
	return "bucket-" + userID, nil
}

func (stubBuckets) EnsureContactBucket(_ context.Context, contactID string) (string, error) {
	return "bucket-" + contactID, nil
}

type stubUploader struct{}

func (stubUploader) UploadObject(_ context.Context, _, _ string, _ []byte, _ string) error {
	return nil
}

type stubMessages struct{}

func (stubMessages) Insert(_ context.Context, _ store.MessageRecord) (string, error) {
	return "m1", nil
}

type stubAudio struct{}

func (stubAudio) ProcessAttachment(_ context.Context, _ chatwoot.Attachment, _ *chatwoot.WebhookPayload, _, _, _ string) bool {
	return true
}

func newTestHandler() *WhatsAppWebhookHandler {
	processor := webhook.NewProcessor(slog.Default(),
		stubResolver{}, stubBuckets{}, stubUploader{}, stubMessages{}, stubAudio{})
	return NewWhatsAppWebhookHandler(slog.Default(), processor)
}

func postWebhook(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := newTestHandler()
	h.Register(e)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleProcessesWhatsAppMessage(t *testing.T) {
	body := `{
		"event": "message_created",
		"id": 9001,
		"content": "hello",
		"message_type": "incoming",
		"sender": {"id": 42, "name": "Sender"},
		"conversation": {"id": 100, "channel": "Channel::Whatsapp"},
		"account": {"id": 7}
	}`
	rec := postWebhook(t, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result webhook.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Bucket == "" {
		t.Fatalf("expected bucket in response, got %+v", result)
	}
}

func TestHandleAcknowledgesFilteredEvent(t *testing.T) {
	body := `{
		"event": "conversation_updated",
		"id": 9001,
		"message_type": "incoming",
		"sender": {"id": 42},
		"conversation": {"id": 100, "channel": "Channel::Telegram"},
		"account": {"id": 7}
	}`
	rec := postWebhook(t, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered events must be acknowledged with 200, got %d", rec.Code)
	}
}

func TestHandleRejectsIncompletePayload(t *testing.T) {
	rec := postWebhook(t, `{"event": "message_created"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for structural failure, got %d", rec.Code)
	}
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	rec := postWebhook(t, `{"event": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestHandleRejectsNonPost(t *testing.T) {
	e := echo.New()
	newTestHandler().Register(e)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}
