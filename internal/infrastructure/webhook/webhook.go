// Package webhook delivers catalog domain events to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/domain/catalog"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryCount = 3
	defaultRetryDelay = time.Second
	// drainTimeout bounds how long Close waits for in-flight deliveries.
	drainTimeout = 5 * time.Second
)

func timeout(c *config.WebhookConfig) time.Duration {
	if c.Timeout == 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func retryCount(c *config.WebhookConfig) int {
	if c.RetryCount == 0 {
		return defaultRetryCount
	}
	return c.RetryCount
}

func retryDelay(c *config.WebhookConfig) time.Duration {
	if c.RetryDelay == 0 {
		return defaultRetryDelay
	}
	return c.RetryDelay
}

// Payload is the JSON body sent to webhook endpoints.
type Payload struct {
	// ID is the event id, stable across retries.
	ID string `json:"id"`
	// Event is the event name (e.g., "service.published").
	Event         string         `json:"event"`
	Timestamp     time.Time      `json:"timestamp"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   int64          `json:"aggregate_id"`
	Data          map[string]any `json:"data"`
}

// Recorder receives one observation per delivery.
type Recorder interface {
	RecordOperation(operation string, err error, duration time.Duration)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithHTTPClient sets the client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Publisher) { p.client = client }
}

// WithRecorder records every delivery outcome.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.recorder = r }
}

// Publisher implements catalog.EventPublisher. Deliveries run in the
// background; Close waits for them.
type Publisher struct {
	webhooks []config.WebhookConfig
	client   *http.Client
	recorder Recorder
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPublisher creates a webhook publisher for the enabled webhooks.
func NewPublisher(webhooks []config.WebhookConfig, opts ...Option) *Publisher {
	enabled := make([]config.WebhookConfig, 0, len(webhooks))
	for _, wh := range webhooks {
		if wh.IsEnabled() {
			enabled = append(enabled, wh)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		webhooks: enabled,
		client:   &http.Client{},
		logger:   slog.Default().With("component", "webhook_publisher"),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish schedules a delivery of every event to each matching webhook.
// Delivery failures are logged and never returned.
func (p *Publisher) Publish(_ context.Context, events ...catalog.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	for _, event := range events {
		var payload *Payload
		for i := range p.webhooks {
			wh := &p.webhooks[i]
			if !matches(wh.Events, event.EventName()) {
				continue
			}
			if payload == nil {
				payload = buildPayload(event)
			}

			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.deliver(p.ctx, wh, payload)
			}()
		}
	}
	return nil
}

// Close waits for in-flight deliveries and abandons those still running
// after the drain timeout.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		p.logger.Warn("abandoning webhook deliveries still in flight")
		p.cancel()
		<-done
	}
	p.cancel()
	return nil
}

// matches reports whether eventName is selected by filters. An empty list
// selects every event; "service.*" selects every service event.
func matches(filters []string, eventName string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f == eventName || f == "*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(f, "*"); ok && strings.HasSuffix(prefix, ".") && strings.HasPrefix(eventName, prefix) {
			return true
		}
	}
	return false
}

func buildPayload(event catalog.DomainEvent) *Payload {
	payload := &Payload{
		ID:            event.EventID(),
		Event:         event.EventName(),
		Timestamp:     event.OccurredAt(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Data:          make(map[string]any),
	}

	switch e := event.(type) {
	case catalog.RequestSubmittedEvent:
		payload.Data["name"] = e.Name
		payload.Data["publisher_id"] = e.PublisherID

	case catalog.RequestApprovedEvent:
		payload.Data["reviewer_id"] = e.ReviewerID
		payload.Data["service_id"] = e.ServiceID

	case catalog.RequestRejectedEvent:
		payload.Data["reviewer_id"] = e.ReviewerID
		payload.Data["reason"] = e.Reason

	case catalog.RequestModificationsRequestedEvent:
		payload.Data["reviewer_id"] = e.ReviewerID
		payload.Data["notes"] = e.Notes

	case catalog.RequestEditedEvent:
		payload.Data["previous_status"] = string(e.PreviousStatus)

	case catalog.RequestDeletedEvent:
		payload.Data["status"] = string(e.Status)

	case catalog.ServiceCreatedEvent:
		payload.Data["name"] = e.Name
		if e.SourceRequestID != nil {
			payload.Data["source_request_id"] = *e.SourceRequestID
		}

	case catalog.EndpointAssignedEvent:
		payload.Data["endpoint"] = e.Endpoint
		payload.Data["previous"] = e.Previous

	case catalog.ServiceConfiguredEvent:
		payload.Data["actor_id"] = e.ActorID
		payload.Data["keys"] = e.Keys

	case catalog.ServicePublishedEvent:
		payload.Data["actor_id"] = e.ActorID

	case catalog.ServiceUnpublishedEvent:
		payload.Data["actor_id"] = e.ActorID
		payload.Data["reason"] = e.Reason
	}

	return payload
}

// statusError is a non-2xx response. 4xx responses other than 408 and 429
// are not retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusRequestTimeout || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// deliver sends payload to wh, retrying with exponential backoff.
func (p *Publisher) deliver(ctx context.Context, wh *config.WebhookConfig, payload *Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to encode webhook payload", "event", payload.Event, "error", err)
		return
	}

	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   retryCount(wh) + 1,
		InitialDelay:  retryDelay(wh),
		MaxDelay:      retryDelay(wh) * 8,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    2.0,
		IsRetryable:   isRetryable,
	})

	start := time.Now()
	attempt := 0
	var lastErr error
	_, err = r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		attempt++
		lastErr = p.send(ctx, wh, payload, body)
		if lastErr != nil {
			p.logger.Warn("webhook request failed",
				"webhook", wh.Name,
				"attempt", attempt,
				"max_attempts", retryCount(wh)+1,
				"error", lastErr)
		}
		return struct{}{}, lastErr
	})
	if err != nil && lastErr != nil {
		err = lastErr
	}

	if p.recorder != nil {
		p.recorder.RecordOperation("webhook_delivery", err, time.Since(start))
	}
	if err != nil {
		p.logger.Error("webhook failed after all retries",
			"webhook", wh.Name,
			"event", payload.Event,
			"aggregate_id", payload.AggregateID,
			"error", err)
		return
	}
	p.logger.Debug("webhook sent successfully",
		"webhook", wh.Name,
		"event", payload.Event,
		"aggregate_id", payload.AggregateID)
}

// send performs a single webhook request.
func (p *Publisher) send(ctx context.Context, wh *config.WebhookConfig, payload *Payload, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, timeout(wh))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Catalog-Webhook/1.0")
	req.Header.Set("X-Catalog-Event", payload.Event)
	req.Header.Set("X-Catalog-Delivery", payload.ID)
	for key, value := range wh.Headers {
		req.Header.Set(key, value)
	}
	if wh.Secret != "" {
		req.Header.Set("X-Catalog-Signature", "sha256="+signPayload(body, wh.Secret))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}
	return nil
}

// signPayload creates an HMAC-SHA256 signature of the payload.
func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Catalog-Signature header value against the
// payload. Receivers use it to authenticate deliveries.
func VerifySignature(payload []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")
	expected := signPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

var _ catalog.EventPublisher = (*Publisher)(nil)
