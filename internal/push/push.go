// Package push sends composed notifications to the push provider's HTTP API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tapinapp/beacon/internal/notify"
	"github.com/tapinapp/beacon/internal/platform/config"
)

type clientEnv struct {
	BaseURL string        `env:"BEACON_PUSH_URL"`
	APIKey  string        `env:"BEACON_PUSH_API_KEY"`
	Timeout time.Duration `env:"BEACON_PUSH_TIMEOUT" envDefault:"10s"`
}

// Config holds push provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LoadConfigFromEnv reads push provider settings from the environment.
func LoadConfigFromEnv() (Config, error) {
	var envCfg clientEnv
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}
	return Config{
		BaseURL: envCfg.BaseURL,
		APIKey:  envCfg.APIKey,
		Timeout: envCfg.Timeout,
	}, nil
}

// Client sends notifications through the provider's send endpoint.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient constructs a push client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("push provider url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

type sendRequest struct {
	Token string            `json:"token"`
	Kind  string            `json:"kind"`
	Data  map[string]string `json:"data,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send posts one notification to the provider. A non-2xx answer is an error;
// the caller decides what to do with it, this client never retries.
func (c *Client) Send(ctx context.Context, deviceToken string, kind notify.Kind, properties map[string]string) (notify.ProviderResult, error) {
	if c == nil || c.httpc == nil {
		return notify.ProviderResult{}, fmt.Errorf("push client is not configured")
	}
	if strings.TrimSpace(deviceToken) == "" {
		return notify.ProviderResult{}, fmt.Errorf("device token is required")
	}

	body, err := json.Marshal(sendRequest{
		Token: deviceToken,
		Kind:  string(kind),
		Data:  properties,
	})
	if err != nil {
		return notify.ProviderResult{}, fmt.Errorf("encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages:send", bytes.NewReader(body))
	if err != nil {
		return notify.ProviderResult{}, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return notify.ProviderResult{}, fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return notify.ProviderResult{}, fmt.Errorf("read provider response: %w", err)
	}

	var decoded sendResponse
	if len(payload) > 0 {
		// Provider errors still carry a JSON body worth surfacing.
		_ = json.Unmarshal(payload, &decoded)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := decoded.Error
		if detail == "" {
			detail = strings.TrimSpace(string(payload))
		}
		return notify.ProviderResult{Detail: detail}, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, detail)
	}

	return notify.ProviderResult{MessageID: decoded.MessageID, Detail: decoded.Error}, nil
}

var _ notify.Dispatcher = (*Client)(nil)
