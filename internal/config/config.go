package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "contentory"
	DefaultPGSSLMode          = "disable"
	DefaultTokenURL           = "https://oauth2.googleapis.com/token"
	DefaultStorageAPIBase     = "https://storage.googleapis.com/storage/v1"
	DefaultStorageUploadBase  = "https://storage.googleapis.com/upload/storage/v1"
	DefaultStorageLocation    = "US-CENTRAL1"
	DefaultStorageClass       = "STANDARD"
	DefaultBucketPrefix       = "contentory-user"
	DefaultTranscriptionBase  = "https://api.groq.com/openai/v1"
	DefaultTranscriptionModel = "whisper-large-v3"
	DefaultCountryCode        = "55"
)

type Config struct {
	Log           LogConfig           `toml:"log"`
	Server        ServerConfig        `toml:"server"`
	Postgres      PostgresConfig      `toml:"postgres"`
	Storage       StorageConfig       `toml:"storage"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Chatwoot      ChatwootConfig      `toml:"chatwoot"`
	Identity      IdentityConfig      `toml:"identity"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// StorageConfig carries the cloud object-storage project and the
// service-account credential used for the JWT-bearer token exchange.
type StorageConfig struct {
	ProjectID           string `toml:"project_id"`
	BucketPrefix        string `toml:"bucket_prefix"`
	Location            string `toml:"location"`
	StorageClass        string `toml:"storage_class"`
	ServiceAccountEmail string `toml:"service_account_email"`
	PrivateKey          string `toml:"private_key"`
	PrivateKeyID        string `toml:"private_key_id"`
	TokenURL            string `toml:"token_url"`
	APIBase             string `toml:"api_base"`
	UploadBase          string `toml:"upload_base"`
}

type TranscriptionConfig struct {
	APIKey  string `toml:"api_key"`
	APIBase string `toml:"api_base"`
	Model   string `toml:"model"`
}

// ChatwootConfig points at the chat platform that delivers webhooks and
// hosts attachment downloads.
type ChatwootConfig struct {
	BaseURL string `toml:"base_url"`
}

// IdentityConfig tunes phone-number normalization. DefaultCountryCode is the
// region assumed for bare national numbers; historically "55".
type IdentityConfig struct {
	DefaultCountryCode string `toml:"default_country_code"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Storage: StorageConfig{
			BucketPrefix: DefaultBucketPrefix,
			Location:     DefaultStorageLocation,
			StorageClass: DefaultStorageClass,
			TokenURL:     DefaultTokenURL,
			APIBase:      DefaultStorageAPIBase,
			UploadBase:   DefaultStorageUploadBase,
		},
		Transcription: TranscriptionConfig{
			APIBase: DefaultTranscriptionBase,
			Model:   DefaultTranscriptionModel,
		},
		Identity: IdentityConfig{
			DefaultCountryCode: DefaultCountryCode,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
