package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/ids"
	"github.com/nchat/trustplane/internal/metrics"
)

// WebhookRequest is the outbound POST built for one delivery attempt.
type WebhookRequest struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// WebhookResponse is the transport-agnostic result of one attempt.
type WebhookResponse struct {
	StatusCode int
}

// WebhookClient is the injected capability the dispatcher uses to perform
// the actual network call — a real HTTP client in production, a stub
// function in tests. Matches spec §6's "WebhookClient(request) -> response".
type WebhookClient func(ctx context.Context, req WebhookRequest) (WebhookResponse, error)

// SecretLookup resolves an app's HMAC signing secret for webhook signing.
type SecretLookup func(appID string) (secret string, ok bool)

// DispatcherConfig tunes retry/backoff/timeout behavior.
type DispatcherConfig struct {
	MaxRetries          int           // additional attempts after the first; default 2 (3 total)
	InitialRetryDelay   time.Duration // default 1000ms production, set to ~1ms in tests
	Timeout             time.Duration // per-attempt timeout; default 30s
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = 1000 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Dispatcher fans an event out to every active matching subscription and
// retries each delivery independently with exponential backoff. Deliveries
// to distinct subscriptions run concurrently; retries within a single
// delivery are strictly sequential.
type Dispatcher struct {
	registry *Registry
	ledger   *Ledger
	client   WebhookClient
	secrets  SecretLookup
	clock    clock.Clock
	cfg      DispatcherConfig
	logger   *slog.Logger
	metrics  *metrics.Registry
}

// NewDispatcher creates a Dispatcher. client is the injected webhook
// transport; secrets resolves each app's signing secret. m may be nil, in
// which case delivery metrics are simply not recorded.
func NewDispatcher(registry *Registry, ledger *Ledger, client WebhookClient, secrets SecretLookup, c clock.Clock, cfg DispatcherConfig, m *metrics.Registry) *Dispatcher {
	if c == nil {
		c = clock.Real{}
	}
	return &Dispatcher{
		registry: registry,
		ledger:   ledger,
		client:   client,
		secrets:  secrets,
		clock:    c,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default().With("component", "events.dispatcher"),
		metrics:  m,
	}
}

// DispatchEvent fans the event out to every active subscriber and blocks
// until every delivery (including its retries) has reached a terminal
// state, returning the final ledger record for each.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType Type, payload map[string]interface{}) []*Delivery {
	subs := d.registry.ActiveSubscribersFor(eventType)
	if len(subs) == 0 {
		return nil
	}

	results := make([]*Delivery, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			results[i] = d.deliverWithRetries(ctx, sub, eventType, payload)
		}(i, sub)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) deliverWithRetries(ctx context.Context, sub *Subscription, eventType Type, payload map[string]interface{}) *Delivery {
	start := d.clock.Now()
	delivery := d.deliver(ctx, sub, eventType, payload, start)
	if d.metrics != nil {
		d.metrics.DeliveryAttempts.WithLabelValues(string(delivery.Status)).Inc()
		d.metrics.DeliveryLatency.WithLabelValues(string(delivery.Status)).Observe(d.clock.Now().Sub(start).Seconds())
	}
	return delivery
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, eventType Type, payload map[string]interface{}, now time.Time) *Delivery {
	delivery := &Delivery{
		DeliveryID:     ids.New("dlv_"),
		SubscriptionID: sub.ID,
		AppID:          sub.AppID,
		Event:          eventType,
		Payload:        payload,
		Status:         DeliveryPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	d.ledger.put(delivery)

	secret, ok := d.secrets(sub.AppID)
	if !ok {
		delivery.Status = DeliveryFailed
		delivery.LastError = "no signing secret registered for app"
		delivery.UpdatedAt = d.clock.Now()
		return delivery
	}

	body, idempotencyKey := d.buildBody(delivery.DeliveryID, eventType, sub.ID, payload)
	signature := ComputeEventSignature(body, secret)

	maxAttempts := d.cfg.MaxRetries + 1
	delay := d.cfg.InitialRetryDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		delivery.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		resp, err := d.client(attemptCtx, WebhookRequest{
			URL: sub.WebhookURL,
			Headers: map[string]string{
				"Content-Type":           "application/json; charset=utf-8",
				"X-Webhook-Signature":    signature,
				"X-Delivery-Id":          delivery.DeliveryID,
				"X-Event-Type":           string(eventType),
			},
			Body: body,
		})
		cancel()

		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			delivery.Status = DeliveryDelivered
			delivery.LastError = ""
			delivery.UpdatedAt = d.clock.Now()
			return delivery
		}

		if err != nil {
			delivery.LastError = err.Error()
		} else {
			delivery.LastError = fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		}
		delivery.UpdatedAt = d.clock.Now()

		if attempt < maxAttempts {
			d.logger.Warn("delivery attempt failed, retrying",
				"delivery_id", delivery.DeliveryID, "attempt", attempt, "error", delivery.LastError)
			time.Sleep(delay)
			delay *= 2
		}
	}

	delivery.Status = DeliveryFailed
	return delivery
}

func (d *Dispatcher) buildBody(deliveryID string, eventType Type, webhookID string, payload map[string]interface{}) (body []byte, idempotencyKey string) {
	idempotencyKey = deliveryID
	wire := WireEvent{
		ID:             deliveryID,
		Event:          eventType,
		WebhookID:      webhookID,
		Timestamp:      d.clock.Now().UTC().Format(time.RFC3339),
		Version:        "1.0",
		IdempotencyKey: idempotencyKey,
		Data:           payload,
	}
	// json.Marshal serializes struct fields in declaration order and map
	// keys in sorted order, so the same wire.Data always encodes
	// byte-identically between signing and sending.
	b, err := json.Marshal(wire)
	if err != nil {
		// Data is always JSON-marshalable domain payload; a failure here
		// indicates a caller bug, not a transient condition.
		panic(fmt.Sprintf("events: marshal wire event: %v", err))
	}
	return b, idempotencyKey
}
