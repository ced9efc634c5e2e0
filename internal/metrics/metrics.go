// Package metrics exposes the pipeline's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_webhooks_received_total",
		Help: "Webhook deliveries received, before validation.",
	})

	WebhooksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_webhooks_rejected_total",
		Help: "Webhook deliveries rejected for structural defects.",
	})

	WebhooksFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_webhooks_filtered_total",
		Help: "Webhook deliveries acknowledged but skipped by the channel filter.",
	})

	MessagesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_messages_stored_total",
		Help: "Message records persisted end to end.",
	})

	BucketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_buckets_created_total",
		Help: "Storage buckets provisioned on demand.",
	})

	AudioProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_audio_attachments_processed_total",
		Help: "Audio attachments fully processed, including transcription.",
	})

	AudioFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_audio_attachments_failed_total",
		Help: "Audio attachments that failed before a record could be written.",
	})
)
