package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func intentEvent(eventType string, metadata string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": %q,
		"data": {"object": {"id": "pi_123", "object": "payment_intent", "metadata": %s}}
	}`, eventType, metadata)
}

func TestVerifierParse(t *testing.T) {
	v := NewVerifier(testSecret)
	meta := `{"eventId": "ev-1", "userId": "user-1", "ticketType": "GA"}`

	t.Run("succeeded", func(t *testing.T) {
		body, header := signed(t, intentEvent("payment_intent.succeeded", meta))
		sig, err := v.Parse(body, header)
		require.NoError(t, err)
		require.NotNil(t, sig)
		assert.Equal(t, Signal{Kind: SignalSucceeded, IntentID: "pi_123", EventID: "ev-1", UserID: "user-1", TicketType: "GA"}, *sig)
	})

	t.Run("failed", func(t *testing.T) {
		body, header := signed(t, intentEvent("payment_intent.payment_failed", meta))
		sig, err := v.Parse(body, header)
		require.NoError(t, err)
		require.NotNil(t, sig)
		assert.Equal(t, SignalFailed, sig.Kind)
	})

	t.Run("ignored type", func(t *testing.T) {
		body, header := signed(t, intentEvent("payment_intent.created", meta))
		sig, err := v.Parse(body, header)
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("missing metadata", func(t *testing.T) {
		body, header := signed(t, intentEvent("payment_intent.succeeded", `{"eventId": "ev-1"}`))
		_, err := v.Parse(body, header)
		assert.ErrorIs(t, err, ErrMissingMetadata)
	})

	t.Run("bad signature", func(t *testing.T) {
		body, _ := signed(t, intentEvent("payment_intent.succeeded", meta))
		_, err := v.Parse(body, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("other secret", func(t *testing.T) {
		body, header := signed(t, intentEvent("payment_intent.succeeded", meta))
		_, err := NewVerifier("whsec_other").Parse(body, header)
		assert.ErrorIs(t, err, ErrBadSignature)
	})
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5000), MinorUnits(50))
	assert.Equal(t, int64(1999), MinorUnits(19.99))
	assert.Equal(t, int64(0), MinorUnits(0))
}
