package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/contentory/ingest/internal/config"
)

type existenceResult int

const (
	existenceExists existenceResult = iota
	existenceNotFound
	existenceAssume
)

// classifyExistenceResponse maps a bucket metadata status code onto the
// existence policy: 200 means the bucket exists, 404 means it does not, and
// anything else (403 from a permission mismatch, 429, 5xx) is treated as
// "assume exists" so a concurrent redelivery never provokes a duplicate
// creation attempt.
func classifyExistenceResponse(status int) existenceResult {
	switch status {
	case http.StatusOK:
		return existenceExists
	case http.StatusNotFound:
		return existenceNotFound
	default:
		return existenceAssume
	}
}

// lifecycleRule is one storage-class transition in a bucket's lifecycle
// policy.
type lifecycleRule struct {
	Action struct {
		Type         string `json:"type"`
		StorageClass string `json:"storageClass,omitempty"`
	} `json:"action"`
	Condition struct {
		Age int `json:"age"`
	} `json:"condition"`
}

func tieredLifecycleRules() []lifecycleRule {
	tiers := []struct {
		class string
		age   int
	}{
		{"NEARLINE", 30},
		{"COLDLINE", 90},
		{"ARCHIVE", 365},
	}
	rules := make([]lifecycleRule, 0, len(tiers))
	for _, tier := range tiers {
		var rule lifecycleRule
		rule.Action.Type = "SetStorageClass"
		rule.Action.StorageClass = tier.class
		rule.Condition.Age = tier.age
		rules = append(rules, rule)
	}
	return rules
}

// Client talks to the object-storage JSON API, bearer-authenticated through
// a TokenProvider. No internal retries; a slow or failing downstream call
// surfaces directly to the caller.
type Client struct {
	cfg        config.StorageConfig
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an object storage client.
func NewClient(log *slog.Logger, cfg config.StorageConfig, tokens TokenProvider) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log.With(slog.String("component", "storage")),
	}
}

// BucketExists issues an authenticated metadata GET for the bucket. The
// returned bool follows classifyExistenceResponse; transport errors also
// report true. The error is non-nil only when no token could be obtained.
func (c *Client) BucketExists(ctx context.Context, name string) (bool, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return false, fmt.Errorf("bucket existence check: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+"/b/"+url.PathEscape(name), nil)
	if err != nil {
		return false, fmt.Errorf("build bucket request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("bucket existence check transport error, assuming exists",
			slog.String("bucket", name),
			slog.Any("error", err),
		)
		return true, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch classifyExistenceResponse(resp.StatusCode) {
	case existenceExists:
		return true, nil
	case existenceNotFound:
		return false, nil
	default:
		c.logger.Warn("ambiguous bucket existence response, assuming exists",
			slog.String("bucket", name),
			slog.Int("status", resp.StatusCode),
		)
		return true, nil
	}
}

// CreateBucket issues an authenticated metadata POST creating the bucket
// with the configured location, storage class, and the tiered lifecycle
// policy. Any response other than 200/201 is a failure.
func (c *Client) CreateBucket(ctx context.Context, name string) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}

	payload := map[string]any{
		"name":         name,
		"location":     c.cfg.Location,
		"storageClass": c.cfg.StorageClass,
		"lifecycle": map[string]any{
			"rule": tieredLifecycleRules(),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal bucket payload: %w", err)
	}

	endpoint := c.cfg.APIBase + "/b?project=" + url.QueryEscape(c.cfg.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build bucket create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create bucket request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create bucket status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	c.logger.Info("bucket created", slog.String("bucket", name))
	return nil
}

// UploadObject performs an authenticated media upload into the bucket. Any
// non-2xx response is a failure.
func (c *Client) UploadObject(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/b/%s/o?uploadType=media&name=%s",
		c.cfg.UploadBase,
		url.PathEscape(bucket),
		url.QueryEscape(objectPath),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
