package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
)

func newAdminFixture(t *testing.T) (*fakeBillingRepository, *AdminService) {
	t.Helper()
	repo := newFakeBillingRepository()
	repo.addUser(1, "creator@example.com")
	svc := NewAdminService(repo, nil, []string{"ops@snapdeck.app"})
	return repo, svc
}

func TestAdminGrant(t *testing.T) {
	repo, svc := newAdminFixture(t)

	expiry := time.Now().Add(90 * 24 * time.Hour)
	sub, err := svc.Grant("ops@snapdeck.app", "creator@example.com", entitlements.TierStudio, &expiry, "beta tester")
	require.NoError(t, err)

	assert.Equal(t, models.TierStudio, sub.Tier)
	assert.Equal(t, models.SubscriptionSourceAdmin, sub.Source)
	assert.Equal(t, models.TierStudio, sub.AdminTier)
	assert.Equal(t, "ops@snapdeck.app", sub.AdminGrantedBy)
	assert.Equal(t, "beta tester", sub.AdminNotes)

	history, _ := repo.ListHistory(1, 10)
	require.Len(t, history, 1)
	assert.Equal(t, "ADMIN_GRANT", history[0].EventType)
	assert.Equal(t, models.HistorySourceAdmin, history[0].EventSource)
}

func TestAdminGrant_ClearsStalePurchaseBookkeeping(t *testing.T) {
	repo, svc := newAdminFixture(t)
	repo.subscriptions[1] = &models.UserSubscription{
		UserID:        1,
		Tier:          models.TierPro,
		Source:        models.SubscriptionSourcePurchase,
		Status:        models.SubscriptionStatusActive,
		ProductID:     "snapdeck_pro_monthly",
		TransactionID: "txn_old",
	}

	sub, err := svc.Grant("ops@snapdeck.app", "creator@example.com", entitlements.TierStudio, nil, "")
	require.NoError(t, err)
	assert.Empty(t, sub.ProductID)
	assert.Empty(t, sub.TransactionID)
	assert.Nil(t, sub.PurchaseExpiresAt)
}

func TestAdminGrant_RejectsNonOperator(t *testing.T) {
	repo, svc := newAdminFixture(t)

	_, err := svc.Grant("intruder@example.com", "creator@example.com", entitlements.TierPro, nil, "")
	assert.ErrorIs(t, err, ErrNotOperator)
	assert.Empty(t, repo.subscriptions)
	assert.Empty(t, repo.history)
}

func TestAdminGrant_RejectsFreeTier(t *testing.T) {
	_, svc := newAdminFixture(t)

	_, err := svc.Grant("ops@snapdeck.app", "creator@example.com", entitlements.TierFree, nil, "")
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestAdminGrant_UnknownTarget(t *testing.T) {
	_, svc := newAdminFixture(t)

	_, err := svc.Grant("ops@snapdeck.app", "ghost@example.com", entitlements.TierPro, nil, "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminRevoke(t *testing.T) {
	repo, svc := newAdminFixture(t)

	_, err := svc.Grant("ops@snapdeck.app", "creator@example.com", entitlements.TierStudio, nil, "")
	require.NoError(t, err)

	sub, err := svc.Revoke("ops@snapdeck.app", "creator@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.Empty(t, sub.AdminTier)
	assert.Empty(t, sub.AdminGrantedBy)

	history, _ := repo.ListHistory(1, 10)
	require.Len(t, history, 2)
	assert.Equal(t, "ADMIN_REVOKE", history[0].EventType)
}

func TestAdminQuery(t *testing.T) {
	_, svc := newAdminFixture(t)

	_, err := svc.Grant("ops@snapdeck.app", "creator@example.com", entitlements.TierPro, nil, "trial extension")
	require.NoError(t, err)

	sub, history, err := svc.Query("ops@snapdeck.app", "creator@example.com", 5)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, sub.Tier)
	require.Len(t, history, 1)
	assert.Equal(t, "ADMIN_GRANT", history[0].EventType)

	_, _, err = svc.Query("intruder@example.com", "creator@example.com", 5)
	assert.ErrorIs(t, err, ErrNotOperator)
}
