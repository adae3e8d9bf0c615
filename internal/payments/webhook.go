// Package payments verifies provider webhook signatures and maps paid
// plans to credit grants. Payment processing itself happens at the
// provider; this side only trusts authenticated notifications.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Event is the webhook payload for a completed purchase.
type Event struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	UserID  string `json:"uid"`
	Plan    string `json:"plan"`
}

// EventTypePaymentCaptured is the only event type that grants credits.
const EventTypePaymentCaptured = "payment.captured"

// PlanGrant describes the credits one plan purchase adds per engine.
type PlanGrant map[string]int

// Plans maps plan identifiers to their credit grants.
type Plans map[string]PlanGrant

// Verifier checks webhook authenticity with the provider's shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a webhook verifier.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the hex-encoded HMAC-SHA256 signature over the raw body.
// Comparison is constant time.
func (v *Verifier) Verify(body []byte, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseEvent decodes and minimally validates a webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if ev.UserID == "" {
		return nil, fmt.Errorf("webhook payload missing uid")
	}
	if ev.Plan == "" {
		return nil, fmt.Errorf("webhook payload missing plan")
	}
	return &ev, nil
}

// Sign computes the signature for a body. Used by tests and by the
// provider simulator in development.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
