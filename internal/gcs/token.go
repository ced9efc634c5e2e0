package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/contentory/ingest/internal/config"
)

const (
	storageScope   = "https://www.googleapis.com/auth/cloud-platform"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL   = time.Hour

	// Refresh slightly before expiry so a cached token is never handed out
	// moments before it dies mid-request.
	expirySkew = time.Minute
)

// TokenProvider supplies short-lived bearer tokens for the object-storage
// API. Implementations signal "cannot proceed with storage operations" by
// returning an error; callers must propagate, not retry.
type TokenProvider interface {
	AccessToken(ctx context.Context) (*oauth2.Token, error)
}

// ServiceAccountTokenProvider exchanges a signed service-account assertion
// for an access token via the OAuth2 JWT-bearer grant.
type ServiceAccountTokenProvider struct {
	cfg        config.StorageConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	cached *oauth2.Token
}

// NewTokenProvider creates a service-account token provider.
func NewTokenProvider(log *slog.Logger, cfg config.StorageConfig) *ServiceAccountTokenProvider {
	if log == nil {
		log = slog.Default()
	}
	return &ServiceAccountTokenProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.With(slog.String("component", "storage_token")),
	}
}

// AccessToken returns a bearer token, reusing a cached one while it remains
// inside its validity window.
func (p *ServiceAccountTokenProvider) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	if p.cached != nil && p.cached.Expiry.After(time.Now().Add(expirySkew)) {
		token := p.cached
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	assertion, err := p.signAssertion()
	if err != nil {
		p.logger.Error("sign service account assertion failed", slog.Any("error", err))
		return nil, err
	}
	token, err := p.exchange(ctx, assertion)
	if err != nil {
		p.logger.Error("token exchange failed", slog.Any("error", err))
		return nil, err
	}

	p.mu.Lock()
	p.cached = token
	p.mu.Unlock()
	return token, nil
}

func (p *ServiceAccountTokenProvider) signAssertion() (string, error) {
	email := strings.TrimSpace(p.cfg.ServiceAccountEmail)
	if email == "" {
		return "", fmt.Errorf("service account email is required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(p.cfg.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse service account key: %w", err)
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss":   email,
		"scope": storageScope,
		"aud":   p.cfg.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if keyID := strings.TrimSpace(p.cfg.PrivateKeyID); keyID != "" {
		token.Header["kid"] = keyID
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

func (p *ServiceAccountTokenProvider) exchange(ctx context.Context, assertion string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Expiry:      time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}
