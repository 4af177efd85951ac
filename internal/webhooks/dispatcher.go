// Package webhooks delivers normalized records to the downstream endpoint
// and keeps a dead letter for every delivery that fails.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"qbwc-webhook-adapter/internal/metrics"
	"qbwc-webhook-adapter/internal/models"
)

const (
	HeaderEvent     = "X-Adapter-Event"
	HeaderTimestamp = "X-Adapter-Timestamp"
	HeaderSignature = "X-Adapter-Signature"

	DefaultTimeout = 10 * time.Second
)

// Config holds the delivery settings.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Dispatcher posts event batches to a single URL, once each.
type Dispatcher struct {
	cfg         Config
	client      *http.Client
	deadLetters *DeadLetters
	logger      *slog.Logger
	now         func() time.Time
}

func NewDispatcher(cfg Config, deadLetters *DeadLetters, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		deadLetters: deadLetters,
		logger:      logger,
		now:         time.Now,
	}
}

// Dispatch delivers records as one event. It never returns an error: a
// failed delivery becomes a dead letter, and a failed dead-letter write is
// logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, records []models.NormalizedRecord) {
	if len(records) == 0 {
		return
	}
	logger := d.logger.With("event_type", eventType, "records", len(records))
	if d.cfg.URL == "" {
		logger.Warn("Webhook URL not configured, skipping delivery")
		metrics.WebhookDeliveries.WithLabelValues(eventType, "skipped").Inc()
		return
	}

	body, err := json.Marshal(records)
	if err != nil {
		// Records hold only strings and bools; this cannot happen short of a bug.
		logger.Error("Failed to encode webhook payload", "error", err)
		return
	}

	event := models.WebhookEvent{EventType: eventType, Payload: records, Timestamp: d.now().UTC()}
	if err := d.send(ctx, event, body); err != nil {
		logger.Warn("Webhook delivery failed", "error", err)
		metrics.WebhookDeliveries.WithLabelValues(eventType, "failed").Inc()
		d.deadLetter(logger, eventType, body, err)
		return
	}
	logger.Info("Webhook delivered")
	metrics.WebhookDeliveries.WithLabelValues(eventType, "delivered").Inc()
}

func (d *Dispatcher) send(ctx context.Context, event models.WebhookEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "qbwc-webhook-adapter/1.0")
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(event.Timestamp.Unix(), 10))
	if d.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.cfg.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) deadLetter(logger *slog.Logger, eventType string, body []byte, cause error) {
	path, err := d.deadLetters.Write(models.DeadLetter{
		EventType: eventType,
		Payload:   json.RawMessage(body),
		Error:     cause.Error(),
		FailedAt:  d.now().UTC(),
	})
	if err != nil {
		logger.Error("Failed to write dead letter", "error", err)
		metrics.DeadLetters.WithLabelValues(eventType, "lost").Inc()
		return
	}
	logger.Info("Dead letter written", "path", path)
	metrics.DeadLetters.WithLabelValues(eventType, "written").Inc()
}

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in the
// signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
