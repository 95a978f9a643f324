package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Aklabu/e-commerce/internal/logger"
)

// Transport delivers a rendered message.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogTransport writes messages to the log instead of sending them. It is
// the development default when no relay is configured.
type LogTransport struct{}

func (LogTransport) Deliver(_ context.Context, msg Message) error {
	logger.Log.Info("email",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

// RelayConfig points at an HTTP mail relay accepting JSON messages.
type RelayConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// RelayTransport posts each message as JSON to a mail relay.
type RelayTransport struct {
	cfg    RelayConfig
	client *http.Client
}

func NewRelayTransport(cfg RelayConfig) *RelayTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &RelayTransport{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (t *RelayTransport) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("relay marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("relay request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.Username != "" {
		req.SetBasicAuth(t.cfg.Username, t.cfg.Password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("relay failed: status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}
