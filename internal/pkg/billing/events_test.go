package billing

import (
	"testing"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
)

func TestTransitionFor(t *testing.T) {
	tests := []struct {
		name       string
		event      WebhookEvent
		wantTier   entitlements.Tier
		wantStatus string
		clearAdmin bool
	}{
		{
			name:       "initial purchase activates mapped tier",
			event:      WebhookEvent{Type: EventInitialPurchase, ProductID: "snapdeck_pro_monthly"},
			wantTier:   entitlements.TierPro,
			wantStatus: models.SubscriptionStatusActive,
			clearAdmin: true,
		},
		{
			name:       "renewal keeps active without touching admin",
			event:      WebhookEvent{Type: EventRenewal, ProductID: "snapdeck_pro_monthly"},
			wantTier:   entitlements.TierPro,
			wantStatus: models.SubscriptionStatusActive,
		},
		{
			name:       "uncancellation restores active",
			event:      WebhookEvent{Type: EventUncancellation, ProductID: "snapdeck_studio_monthly"},
			wantTier:   entitlements.TierStudio,
			wantStatus: models.SubscriptionStatusActive,
		},
		{
			name:       "cancellation retains tier until expiry",
			event:      WebhookEvent{Type: EventCancellation, ProductID: "snapdeck_studio_monthly"},
			wantTier:   entitlements.TierStudio,
			wantStatus: models.SubscriptionStatusCancelled,
			clearAdmin: true,
		},
		{
			name:       "expiration drops to free",
			event:      WebhookEvent{Type: EventExpiration, ProductID: "snapdeck_pro_monthly"},
			wantTier:   entitlements.TierFree,
			wantStatus: models.SubscriptionStatusExpired,
			clearAdmin: true,
		},
		{
			name:       "refund drops to free",
			event:      WebhookEvent{Type: EventRefund, ProductID: "snapdeck_pro_monthly"},
			wantTier:   entitlements.TierFree,
			wantStatus: models.SubscriptionStatusExpired,
		},
		{
			name:       "billing issue enters grace period",
			event:      WebhookEvent{Type: EventBillingIssue, ProductID: "snapdeck_pro_monthly"},
			wantTier:   entitlements.TierPro,
			wantStatus: models.SubscriptionStatusGracePeriod,
		},
		{
			name:       "product change uses the new product",
			event:      WebhookEvent{Type: EventProductChange, ProductID: "snapdeck_pro_monthly", NewProductID: "snapdeck_studio_monthly"},
			wantTier:   entitlements.TierStudio,
			wantStatus: models.SubscriptionStatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := transitionFor(&tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.tier != tt.wantTier {
				t.Fatalf("tier = %q, want %q", tr.tier, tt.wantTier)
			}
			if tr.status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", tr.status, tt.wantStatus)
			}
			if tr.clearAdmin != tt.clearAdmin {
				t.Fatalf("clearAdmin = %v, want %v", tr.clearAdmin, tt.clearAdmin)
			}
		})
	}
}

func TestTransitionFor_UnknownEvent(t *testing.T) {
	if _, err := transitionFor(&WebhookEvent{Type: "TEST_EVENT"}); err == nil {
		t.Fatalf("expected unknown event type to error")
	}
}

func TestParseWebhookEvent(t *testing.T) {
	raw := []byte(`{
		"api_version": "1.0",
		"event": {
			"id": "evt_123",
			"type": "renewal",
			"app_user_id": "42",
			"product_id": "snapdeck_pro_monthly",
			"transaction_id": "txn_1",
			"original_transaction_id": "txn_0",
			"expiration_at_ms": 1735689600000,
			"price": 9.99,
			"currency": "USD"
		}
	}`)

	event, err := ParseWebhookEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if event.Type != EventRenewal {
		t.Fatalf("expected type normalization to %q, got %q", EventRenewal, event.Type)
	}
	if event.AppUserID != "42" || event.ProductID != "snapdeck_pro_monthly" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.ExpiresAt() == nil {
		t.Fatalf("expected expiration to parse")
	}
}
