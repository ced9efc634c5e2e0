package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contentory/ingest/internal/chatwoot"
	"github.com/contentory/ingest/internal/store"
)

type fakeUploader struct {
	paths []string
	err   error
}

func (f *fakeUploader) UploadObject(_ context.Context, _, objectPath string, _ []byte, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, objectPath)
	return nil
}

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(_ context.Context, _ string, _ []byte) (string, error) {
	return f.text, f.err
}

func (f *fakeSTT) Model() string { return "whisper-large-v3" }

type fakeParent struct {
	id  string
	err error
}

func (f *fakeParent) FindIDByExternal(_ context.Context, _, _ string) (string, error) {
	return f.id, f.err
}

type fakeAudioRecorder struct {
	records []store.AudioFileRecord
}

func (f *fakeAudioRecorder) Insert(_ context.Context, r store.AudioFileRecord) (string, error) {
	f.records = append(f.records, r)
	return "audio-1", nil
}

type fakeKnowledgeRecorder struct {
	records []store.KnowledgeFileRecord
}

func (f *fakeKnowledgeRecorder) Insert(_ context.Context, r store.KnowledgeFileRecord) (string, error) {
	f.records = append(f.records, r)
	return "kf-1", nil
}

type pipelineFixture struct {
	pipeline  *Pipeline
	uploader  *fakeUploader
	stt       *fakeSTT
	parent    *fakeParent
	audio     *fakeAudioRecorder
	knowledge *fakeKnowledgeRecorder
}

func newPipelineFixture(platformBase string) *pipelineFixture {
	f := &pipelineFixture{
		uploader:  &fakeUploader{},
		stt:       &fakeSTT{text: "transcribed words"},
		parent:    &fakeParent{id: "msg-internal-1"},
		audio:     &fakeAudioRecorder{},
		knowledge: &fakeKnowledgeRecorder{},
	}
	f.pipeline = NewPipeline(nil, platformBase, f.uploader, f.stt, f.parent, f.audio, f.knowledge)
	return f
}

func audioPayload() *chatwoot.WebhookPayload {
	return &chatwoot.WebhookPayload{
		Event:        chatwoot.EventMessageCreated,
		ID:           9001,
		Conversation: &chatwoot.Conversation{ID: 100, Channel: chatwoot.ChannelWhatsApp},
		Sender:       &chatwoot.Sender{ID: 42},
		Account:      &chatwoot.Account{ID: 7},
	}
}

func audioServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
}

func TestProcessAttachmentSuccessForIdentifiedUser(t *testing.T) {
	srv := audioServer(t, "fake-audio-bytes")
	defer srv.Close()

	f := newPipelineFixture(srv.URL)
	att := chatwoot.Attachment{ID: 5, FileType: "audio", DataURL: srv.URL + "/audio/5.mp3"}

	ok := f.pipeline.ProcessAttachment(context.Background(), att, audioPayload(),
		"bucket-u1", "U1", "contact_42_account_7")
	if !ok {
		t.Fatal("expected attachment to succeed")
	}

	if len(f.audio.records) != 1 {
		t.Fatalf("expected one audio record, got %d", len(f.audio.records))
	}
	rec := f.audio.records[0]
	if rec.TranscriptionStatus != store.TranscriptionStatusCompleted {
		t.Fatalf("expected completed status, got %q", rec.TranscriptionStatus)
	}
	if rec.Transcription != "transcribed words" || rec.MessageRecordID != "msg-internal-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !strings.HasPrefix(rec.StoragePath, "whatsapp-audio/") {
		t.Fatalf("unexpected storage path %q", rec.StoragePath)
	}

	if len(f.knowledge.records) != 1 {
		t.Fatalf("expected one knowledge record, got %d", len(f.knowledge.records))
	}
	kf := f.knowledge.records[0]
	if !strings.HasPrefix(kf.Name, "WhatsApp Audio - ") || !strings.HasSuffix(kf.Name, "contact_42_account_7.mp3") {
		t.Fatalf("unexpected knowledge name %q", kf.Name)
	}
	if !kf.Extracted || kf.ExtractedText != "transcribed words" {
		t.Fatalf("unexpected knowledge record %+v", kf)
	}
	if kf.FileType != "audio" {
		t.Fatalf("knowledge records carry type audio, got %q", kf.FileType)
	}
}

func TestProcessAttachmentSkipsKnowledgeForAnonymous(t *testing.T) {
	srv := audioServer(t, "fake-audio-bytes")
	defer srv.Close()

	f := newPipelineFixture(srv.URL)
	att := chatwoot.Attachment{ID: 5, FileType: "audio", DataURL: srv.URL + "/audio/5.mp3"}

	ok := f.pipeline.ProcessAttachment(context.Background(), att, audioPayload(),
		"bucket-c", "", "contact_42_account_7")
	if !ok {
		t.Fatal("expected attachment to succeed")
	}
	if len(f.audio.records) != 1 {
		t.Fatalf("audio record must still be written, got %d", len(f.audio.records))
	}
	if len(f.knowledge.records) != 0 {
		t.Fatalf("anonymous contact must not get knowledge records")
	}
}

func TestProcessAttachmentRecordsTranscriptionError(t *testing.T) {
	srv := audioServer(t, "fake-audio-bytes")
	defer srv.Close()

	f := newPipelineFixture(srv.URL)
	f.stt.text = ""
	f.stt.err = errors.New("api key missing")
	att := chatwoot.Attachment{ID: 5, FileType: "audio", DataURL: srv.URL + "/audio/5.mp3"}

	ok := f.pipeline.ProcessAttachment(context.Background(), att, audioPayload(),
		"bucket-u1", "U1", "contact_42_account_7")
	if !ok {
		t.Fatal("transcription failure is a recorded status, not an abort")
	}
	rec := f.audio.records[0]
	if rec.TranscriptionStatus != store.TranscriptionStatusError {
		t.Fatalf("expected error status, got %q", rec.TranscriptionStatus)
	}
	if rec.TranscriptionError != "api key missing" {
		t.Fatalf("unexpected error string %q", rec.TranscriptionError)
	}
	if len(f.knowledge.records) != 0 {
		t.Fatalf("failed transcription must not be mirrored to knowledge")
	}
}

func TestProcessAttachmentDownloadFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newPipelineFixture(srv.URL)
	att := chatwoot.Attachment{ID: 5, FileType: "audio", DataURL: srv.URL + "/gone.mp3"}

	ok := f.pipeline.ProcessAttachment(context.Background(), att, audioPayload(),
		"bucket-u1", "U1", "contact_42_account_7")
	if ok {
		t.Fatal("download failure must abort the attachment")
	}
	if len(f.audio.records) != 0 || len(f.knowledge.records) != 0 {
		t.Fatalf("no records may be written when download fails")
	}
}

func TestProcessAttachmentMissingParentAborts(t *testing.T) {
	srv := audioServer(t, "fake-audio-bytes")
	defer srv.Close()

	f := newPipelineFixture(srv.URL)
	f.parent.id = ""
	f.parent.err = store.ErrMessageNotFound
	att := chatwoot.Attachment{ID: 5, FileType: "audio", DataURL: srv.URL + "/audio/5.mp3"}

	ok := f.pipeline.ProcessAttachment(context.Background(), att, audioPayload(),
		"bucket-u1", "U1", "contact_42_account_7")
	if ok {
		t.Fatal("missing parent record must abort the attachment")
	}
	if len(f.audio.records) != 0 {
		t.Fatalf("orphaned audio records must not be written")
	}
}

func TestResolveDataURLRewritesRelativeForms(t *testing.T) {
	f := newPipelineFixture("https://chat.example.com")

	tests := []struct {
		raw  string
		want string
	}{
		{"https://cdn.example.com/a.mp3", "https://cdn.example.com/a.mp3"},
		{"///rails/active_storage/blobs/a.mp3", "https://chat.example.com/rails/active_storage/blobs/a.mp3"},
		{"/rails/active_storage/blobs/a.mp3", "https://chat.example.com/rails/active_storage/blobs/a.mp3"},
		{"rails/a.mp3", "https://chat.example.com/rails/a.mp3"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := f.pipeline.resolveDataURL(tt.raw); got != tt.want {
			t.Errorf("resolveDataURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
