package billing

import (
	"fmt"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
)

// transition is the outcome of one billing event applied to a subscription:
// the purchase tier the row should carry and the new subscription status.
type transition struct {
	tier   entitlements.Tier
	status string
	// clearAdmin marks the events that represent an actual purchase-lifecycle
	// change; only those may remove an admin grant. Renewals and billing
	// churn leave admin fields untouched.
	clearAdmin bool
}

// transitionFor implements the fixed event → (tier, status) table.
func transitionFor(event *WebhookEvent) (transition, error) {
	mapped := entitlements.TierFromProductID(event.EffectiveProductID())

	switch event.Type {
	case EventInitialPurchase:
		return transition{tier: mapped, status: models.SubscriptionStatusActive, clearAdmin: true}, nil
	case EventRenewal, EventUncancellation:
		return transition{tier: mapped, status: models.SubscriptionStatusActive}, nil
	case EventProductChange:
		return transition{tier: mapped, status: models.SubscriptionStatusActive}, nil
	case EventCancellation:
		// Access persists until the provider-side expiry passes.
		return transition{tier: mapped, status: models.SubscriptionStatusCancelled, clearAdmin: true}, nil
	case EventSubscriptionPaused:
		return transition{tier: mapped, status: models.SubscriptionStatusCancelled}, nil
	case EventExpiration:
		return transition{tier: entitlements.TierFree, status: models.SubscriptionStatusExpired, clearAdmin: true}, nil
	case EventRefund:
		return transition{tier: entitlements.TierFree, status: models.SubscriptionStatusExpired}, nil
	case EventBillingIssue:
		return transition{tier: mapped, status: models.SubscriptionStatusGracePeriod}, nil
	default:
		return transition{}, fmt.Errorf("unknown billing event type %q", event.Type)
	}
}
