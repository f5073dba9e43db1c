package billing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
)

// fakeBillingRepository is an in-memory Repository for service tests.
type fakeBillingRepository struct {
	mu            sync.Mutex
	users         map[uint]*models.User
	usersByEmail  map[string]*models.User
	subscriptions map[uint]*models.UserSubscription
	history       []models.SubscriptionHistory
}

func newFakeBillingRepository() *fakeBillingRepository {
	return &fakeBillingRepository{
		users:         make(map[uint]*models.User),
		usersByEmail:  make(map[string]*models.User),
		subscriptions: make(map[uint]*models.UserSubscription),
	}
}

func (f *fakeBillingRepository) addUser(id uint, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: id, Email: email}
	f.users[id] = u
	f.usersByEmail[email] = u
}

func (f *fakeBillingRepository) GetUserByID(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepository) GetUserByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepository) GetUserSubscription(userID uint) (*models.UserSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subscriptions[userID]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepository) UpsertSubscription(sub *models.UserSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *sub
	f.subscriptions[sub.UserID] = &copied
	return nil
}

func (f *fakeBillingRepository) AppendHistory(entry *models.SubscriptionHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeBillingRepository) ListHistory(userID uint, limit int) ([]models.SubscriptionHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SubscriptionHistory
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		if f.history[i].UserID == userID {
			out = append(out, f.history[i])
		}
	}
	return out, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls []uint
}

func (f *fakeInvalidator) Invalidate(userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
}

func webhookBody(eventType, appUserID, productID string, expiresAt time.Time) []byte {
	return []byte(fmt.Sprintf(`{
		"api_version": "1.0",
		"event": {
			"id": "evt_test",
			"type": %q,
			"app_user_id": %q,
			"product_id": %q,
			"transaction_id": "txn_9",
			"original_transaction_id": "txn_1",
			"expiration_at_ms": %d,
			"price": 9.99,
			"currency": "USD"
		}
	}`, eventType, appUserID, productID, expiresAt.UnixMilli()))
}

func TestProcessWebhook_InitialPurchase(t *testing.T) {
	repo := newFakeBillingRepository()
	repo.addUser(42, "creator@example.com")
	tiers := &fakeInvalidator{}
	svc := NewService(repo, tiers)

	expiry := time.Now().Add(30 * 24 * time.Hour)
	result, err := svc.ProcessWebhook(webhookBody("INITIAL_PURCHASE", "42", "snapdeck_pro_monthly", expiry))
	require.NoError(t, err)
	assert.True(t, result.Acknowledged)
	assert.True(t, result.Applied)
	assert.Equal(t, models.TierPro, result.TierAfter)

	sub, err := repo.GetUserSubscription(42)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, sub.Tier)
	assert.Equal(t, models.SubscriptionSourcePurchase, sub.Source)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "snapdeck_pro_monthly", sub.ProductID)

	history, _ := repo.ListHistory(42, 10)
	require.Len(t, history, 1)
	assert.Equal(t, "INITIAL_PURCHASE", history[0].EventType)
	assert.Equal(t, models.HistorySourceWebhook, history[0].EventSource)
	assert.Equal(t, models.TierFree, history[0].TierBefore)
	assert.Equal(t, models.TierPro, history[0].TierAfter)
	assert.NotEmpty(t, history[0].RawPayload)

	assert.Equal(t, []uint{42}, tiers.calls)
}

// A renewal for a lower product must not disturb an admin-granted studio tier,
// but still appends a history row recording the purchase event.
func TestProcessWebhook_RenewalPreservesAdminGrant(t *testing.T) {
	repo := newFakeBillingRepository()
	repo.addUser(7, "vip@example.com")
	svc := NewService(repo, nil)

	granted := time.Now()
	repo.subscriptions[7] = &models.UserSubscription{
		UserID:         7,
		Tier:           models.TierStudio,
		Source:         models.SubscriptionSourceAdmin,
		Status:         models.SubscriptionStatusActive,
		AdminTier:      models.TierStudio,
		AdminGrantedBy: "ops@snapdeck.app",
		AdminGrantedAt: &granted,
	}

	expiry := time.Now().Add(30 * 24 * time.Hour)
	result, err := svc.ProcessWebhook(webhookBody("RENEWAL", "7", "snapdeck_pro_monthly", expiry))
	require.NoError(t, err)
	assert.True(t, result.Applied)

	sub, err := repo.GetUserSubscription(7)
	require.NoError(t, err)
	assert.Equal(t, models.TierStudio, sub.Tier, "admin studio grant must outrank the renewed pro product")
	assert.Equal(t, models.SubscriptionSourceAdmin, sub.Source)
	assert.Equal(t, models.TierStudio, sub.AdminTier, "admin fields must survive a renewal")
	assert.Equal(t, "ops@snapdeck.app", sub.AdminGrantedBy)
	assert.Equal(t, "snapdeck_pro_monthly", sub.ProductID, "provider fields are last-writer-wins")

	history, _ := repo.ListHistory(7, 10)
	require.Len(t, history, 1)
	assert.Equal(t, "RENEWAL", history[0].EventType)
}

func TestProcessWebhook_InitialPurchaseClearsAdminGrant(t *testing.T) {
	repo := newFakeBillingRepository()
	repo.addUser(7, "vip@example.com")
	svc := NewService(repo, nil)

	repo.subscriptions[7] = &models.UserSubscription{
		UserID:    7,
		Tier:      models.TierStudio,
		Source:    models.SubscriptionSourceAdmin,
		Status:    models.SubscriptionStatusActive,
		AdminTier: models.TierStudio,
	}

	expiry := time.Now().Add(30 * 24 * time.Hour)
	_, err := svc.ProcessWebhook(webhookBody("INITIAL_PURCHASE", "7", "snapdeck_pro_monthly", expiry))
	require.NoError(t, err)

	sub, _ := repo.GetUserSubscription(7)
	assert.Empty(t, sub.AdminTier, "a real purchase supersedes the admin grant")
	assert.Equal(t, models.TierPro, sub.Tier)
	assert.Equal(t, models.SubscriptionSourcePurchase, sub.Source)
}

func TestProcessWebhook_ExpirationDropsToFree(t *testing.T) {
	repo := newFakeBillingRepository()
	repo.addUser(42, "creator@example.com")
	svc := NewService(repo, nil)

	expiry := time.Now().Add(30 * 24 * time.Hour)
	_, err := svc.ProcessWebhook(webhookBody("INITIAL_PURCHASE", "42", "snapdeck_pro_monthly", expiry))
	require.NoError(t, err)

	_, err = svc.ProcessWebhook(webhookBody("EXPIRATION", "42", "snapdeck_pro_monthly", time.Now()))
	require.NoError(t, err)

	sub, _ := repo.GetUserSubscription(42)
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.Equal(t, models.SubscriptionStatusExpired, sub.Status)
	assert.Equal(t, models.SubscriptionSourceNone, sub.Source)

	history, _ := repo.ListHistory(42, 10)
	assert.Len(t, history, 2)
}

func TestProcessWebhook_UnresolvableIdentityAcksWithoutWrites(t *testing.T) {
	repo := newFakeBillingRepository()
	svc := NewService(repo, nil)

	expiry := time.Now().Add(time.Hour)
	for _, appUserID := range []string{"", "not-a-number", "9999"} {
		result, err := svc.ProcessWebhook(webhookBody("RENEWAL", appUserID, "snapdeck_pro_monthly", expiry))
		require.NoError(t, err)
		assert.True(t, result.Acknowledged, "sender must not retry")
		assert.False(t, result.Applied)
	}

	assert.Empty(t, repo.subscriptions)
	assert.Empty(t, repo.history)
}

func TestProcessWebhook_UnparseablePayloadAcksWithoutWrites(t *testing.T) {
	repo := newFakeBillingRepository()
	svc := NewService(repo, nil)

	result, err := svc.ProcessWebhook([]byte("not-json"))
	require.NoError(t, err)
	assert.True(t, result.Acknowledged)
	assert.False(t, result.Applied)
	assert.Empty(t, repo.history)
}

// Replayed deliveries tolerate duplicates: the row converges and the audit log
// simply records both deliveries.
func TestProcessWebhook_ReplayIsConvergent(t *testing.T) {
	repo := newFakeBillingRepository()
	repo.addUser(42, "creator@example.com")
	svc := NewService(repo, nil)

	body := webhookBody("INITIAL_PURCHASE", "42", "snapdeck_studio_monthly", time.Now().Add(time.Hour))
	_, err := svc.ProcessWebhook(body)
	require.NoError(t, err)
	first, _ := repo.GetUserSubscription(42)

	_, err = svc.ProcessWebhook(body)
	require.NoError(t, err)
	second, _ := repo.GetUserSubscription(42)

	assert.Equal(t, first.Tier, second.Tier)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, entitlements.TierStudio, entitlements.NormalizeTier(second.Tier))
}
