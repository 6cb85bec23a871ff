package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tapinapp/beacon/internal/notify"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "secret", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestSendPostsNotification(t *testing.T) {
	t.Parallel()

	var got struct {
		Token string            `json:"token"`
		Kind  string            `json:"kind"`
		Data  map[string]string `json:"data"`
	}
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages:send" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": "msg-42"})
	})

	result, err := client.Send(context.Background(), "device-1", notify.KindOfflineSingle, map[string]string{"kind": "offline-single"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.MessageID != "msg-42" {
		t.Errorf("MessageID = %q, want %q", result.MessageID, "msg-42")
	}
	if got.Token != "device-1" {
		t.Errorf("token = %q, want %q", got.Token, "device-1")
	}
	if got.Kind != string(notify.KindOfflineSingle) {
		t.Errorf("kind = %q, want %q", got.Kind, notify.KindOfflineSingle)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q, want bearer token", gotAuth)
	}
}

func TestSendProviderRejection(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
	})

	result, err := client.Send(context.Background(), "device-1", notify.KindOfflineSingle, nil)
	if err == nil {
		t.Fatal("Send() error = nil, want provider rejection")
	}
	if result.Detail != "invalid token" {
		t.Errorf("Detail = %q, want %q", result.Detail, "invalid token")
	}
}

func TestSendValidatesInput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	if _, err := client.Send(context.Background(), "  ", notify.KindOfflineSingle, nil); err == nil {
		t.Error("Send() error = nil, want device token validation error")
	}

	var nilClient *Client
	if _, err := nilClient.Send(context.Background(), "device-1", notify.KindOfflineSingle, nil); err == nil {
		t.Error("Send() on nil client error = nil, want error")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Error("NewClient() error = nil, want url validation error")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BEACON_PUSH_URL", "https://push.example.com")
	t.Setenv("BEACON_PUSH_API_KEY", "key")
	t.Setenv("BEACON_PUSH_TIMEOUT", "3s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.BaseURL != "https://push.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
	}
}
