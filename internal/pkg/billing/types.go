package billing

import (
	"encoding/json"
	"strings"
	"time"
)

// Billing platform event types, delivered via webhook.
const (
	EventInitialPurchase    = "INITIAL_PURCHASE"
	EventRenewal            = "RENEWAL"
	EventUncancellation     = "UNCANCELLATION"
	EventCancellation       = "CANCELLATION"
	EventExpiration         = "EXPIRATION"
	EventRefund             = "REFUND"
	EventBillingIssue       = "BILLING_ISSUE"
	EventProductChange      = "PRODUCT_CHANGE"
	EventSubscriptionPaused = "SUBSCRIPTION_PAUSED"
)

// WebhookEvent is the parsed billing-platform payload. AppUserID carries the
// internal user id established by the client's earlier identify call.
type WebhookEvent struct {
	ID                    string  `json:"id"`
	Type                  string  `json:"type"`
	AppUserID             string  `json:"app_user_id"`
	ProductID             string  `json:"product_id"`
	NewProductID          string  `json:"new_product_id"`
	TransactionID         string  `json:"transaction_id"`
	OriginalTransactionID string  `json:"original_transaction_id"`
	PurchasedAtMs         int64   `json:"purchased_at_ms"`
	ExpirationAtMs        int64   `json:"expiration_at_ms"`
	Price                 float64 `json:"price"`
	Currency              string  `json:"currency"`
}

type webhookEnvelope struct {
	APIVersion string       `json:"api_version"`
	Event      WebhookEvent `json:"event"`
}

// ParseWebhookEvent decodes the raw webhook body into its event.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	event := envelope.Event
	event.Type = strings.ToUpper(strings.TrimSpace(event.Type))
	return &event, nil
}

// ExpiresAt converts the millisecond expiration timestamp, nil when absent.
func (e *WebhookEvent) ExpiresAt() *time.Time {
	if e.ExpirationAtMs <= 0 {
		return nil
	}
	t := time.UnixMilli(e.ExpirationAtMs).UTC()
	return &t
}

// EffectiveProductID returns the product the event leaves the user on. Plan
// changes carry the new product separately.
func (e *WebhookEvent) EffectiveProductID() string {
	if e.Type == EventProductChange && strings.TrimSpace(e.NewProductID) != "" {
		return e.NewProductID
	}
	return e.ProductID
}
