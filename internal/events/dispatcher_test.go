package events

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nchat/trustplane/internal/clock"
)

func TestSignature_S4(t *testing.T) {
	body := []byte(`{"event":"message.created"}`)
	sig := ComputeEventSignature(body, "s")
	assert.True(t, VerifyEventSignature(body, sig, "s"))
	assert.False(t, VerifyEventSignature(body, "sha256=deadbeef", "s"))
	assert.False(t, VerifyEventSignature(body, hex.EncodeToString([]byte("nopfx")), "s"))

	// flipping a byte in body, secret, or signature invalidates it
	tampered := append([]byte(nil), body...)
	tampered[0] = 'x'
	assert.False(t, VerifyEventSignature(tampered, sig, "s"))
	assert.False(t, VerifyEventSignature(body, sig, "other"))
}

func TestRegistry_SubscribeRequiresScope(t *testing.T) {
	r := NewRegistry()
	_, err := r.Subscribe("app1", "inst1", []Type{EventMessageCreated}, "https://example.com/hook", []string{})
	require.Error(t, err)
	var evErr *Error
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, CodeInsufficientScope, evErr.Code())

	sub, err := r.Subscribe("app1", "inst1", []Type{EventMessageCreated}, "https://example.com/hook", []string{"read:messages"})
	require.NoError(t, err)
	assert.True(t, sub.Active)
}

func TestRegistry_IdempotentPerAppInstallation(t *testing.T) {
	r := NewRegistry()
	sub1, err := r.Subscribe("app1", "inst1", []Type{EventMessageCreated}, "https://a.example.com/hook", []string{"read:messages"})
	require.NoError(t, err)
	sub2, err := r.Subscribe("app1", "inst1", []Type{EventMessageUpdated}, "https://b.example.com/hook", []string{"read:messages"})
	require.NoError(t, err)
	assert.Equal(t, sub1.ID, sub2.ID)
	assert.Equal(t, "https://b.example.com/hook", sub2.WebhookURL)
}

func TestDispatchEvent_DeliversAndSigns(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Subscribe("app1", "inst1", []Type{EventMessageCreated}, "https://example.com/hook", []string{"read:messages"})
	require.NoError(t, err)

	ledger := NewLedger()
	var capturedSig string
	client := func(ctx context.Context, req WebhookRequest) (WebhookResponse, error) {
		capturedSig = req.Headers["X-Webhook-Signature"]
		return WebhookResponse{StatusCode: 200}, nil
	}
	secrets := func(appID string) (string, bool) { return "secret", true }

	d := NewDispatcher(reg, ledger, client, secrets, clock.NewFake(time.Now()), DispatcherConfig{InitialRetryDelay: time.Millisecond}, nil)
	results := d.DispatchEvent(context.Background(), EventMessageCreated, map[string]interface{}{"text": "hi"})

	require.Len(t, results, 1)
	assert.Equal(t, DeliveryDelivered, results[0].Status)
	assert.True(t, len(capturedSig) > len("sha256="))
}

func TestDispatchEvent_RetriesThenFails(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Subscribe("app1", "inst1", []Type{EventMessageCreated}, "https://example.com/hook", []string{"read:messages"})
	require.NoError(t, err)

	ledger := NewLedger()
	attempts := 0
	client := func(ctx context.Context, req WebhookRequest) (WebhookResponse, error) {
		attempts++
		return WebhookResponse{StatusCode: 500}, nil
	}
	secrets := func(appID string) (string, bool) { return "secret", true }

	d := NewDispatcher(reg, ledger, client, secrets, clock.NewFake(time.Now()), DispatcherConfig{InitialRetryDelay: time.Millisecond, MaxRetries: 2}, nil)
	results := d.DispatchEvent(context.Background(), EventMessageCreated, map[string]interface{}{})

	require.Len(t, results, 1)
	assert.Equal(t, DeliveryFailed, results[0].Status)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, results[0].Attempts)
	assert.NotEmpty(t, results[0].LastError)
}

func TestDispatchEvent_NoSubscribers(t *testing.T) {
	reg := NewRegistry()
	ledger := NewLedger()
	client := func(ctx context.Context, req WebhookRequest) (WebhookResponse, error) {
		return WebhookResponse{StatusCode: 200}, nil
	}
	d := NewDispatcher(reg, ledger, client, func(string) (string, bool) { return "", false }, clock.NewFake(time.Now()), DispatcherConfig{}, nil)
	results := d.DispatchEvent(context.Background(), EventMessageCreated, nil)
	assert.Empty(t, results)
}
