package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/contentory/ingest/internal/bucket"
	"github.com/contentory/ingest/internal/config"
	"github.com/contentory/ingest/internal/db"
	"github.com/contentory/ingest/internal/gcs"
	"github.com/contentory/ingest/internal/handlers"
	"github.com/contentory/ingest/internal/identity"
	"github.com/contentory/ingest/internal/logger"
	"github.com/contentory/ingest/internal/server"
	"github.com/contentory/ingest/internal/store"
	"github.com/contentory/ingest/internal/transcribe"
	"github.com/contentory/ingest/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			store.NewBucketStore,
			store.NewWhatsAppStore,
			store.NewProfileStore,
			store.NewMessageStore,
			store.NewAudioStore,
			store.NewKnowledgeStore,
			provideTokenProvider,
			provideStorageClient,
			provideBucketManager,
			provideResolver,
			provideTranscriber,
			provideAudioPipeline,
			provideProcessor,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewMetricsHandler),
			provideServerHandler(handlers.NewWhatsAppWebhookHandler),
			fx.Annotate(
				provideServer,
				fx.ParamTags(``, ``, `group:"server_handlers"`),
			),
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideTokenProvider(log *slog.Logger, cfg config.Config) gcs.TokenProvider {
	return gcs.NewTokenProvider(log, cfg.Storage)
}

func provideStorageClient(log *slog.Logger, cfg config.Config, tokens gcs.TokenProvider) *gcs.Client {
	return gcs.NewClient(log, cfg.Storage, tokens)
}

func provideBucketManager(log *slog.Logger, cfg config.Config, client *gcs.Client, buckets *store.BucketStore) *bucket.Manager {
	return bucket.NewManager(log, cfg.Storage.BucketPrefix, client, buckets)
}

func provideResolver(log *slog.Logger, cfg config.Config, mappings *store.WhatsAppStore, profiles *store.ProfileStore, messages *store.MessageStore) *identity.Resolver {
	return identity.NewResolver(log, cfg.Identity.DefaultCountryCode, mappings, profiles, messages)
}

func provideTranscriber(log *slog.Logger, cfg config.Config) *transcribe.Transcriber {
	return transcribe.NewTranscriber(log, cfg.Transcription)
}

func provideAudioPipeline(log *slog.Logger, cfg config.Config, client *gcs.Client, stt *transcribe.Transcriber, messages *store.MessageStore, audio *store.AudioStore, knowledge *store.KnowledgeStore) *transcribe.Pipeline {
	return transcribe.NewPipeline(log, cfg.Chatwoot.BaseURL, client, stt, messages, audio, knowledge)
}

func provideProcessor(log *slog.Logger, resolver *identity.Resolver, buckets *bucket.Manager, client *gcs.Client, messages *store.MessageStore, audio *transcribe.Pipeline) *webhook.Processor {
	return webhook.NewProcessor(log, resolver, buckets, client, messages, audio)
}

func provideServer(log *slog.Logger, cfg config.Config, h []server.Handler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, h...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
