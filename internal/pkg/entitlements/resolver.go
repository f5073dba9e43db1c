package entitlements

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/snapdeckhq/snapdeck-api/app/models"
)

// SubscriptionGetter loads the single subscription row for a user.
type SubscriptionGetter interface {
	GetUserSubscription(userID uint) (*models.UserSubscription, error)
}

// TierCache is a short-TTL lookup cache for resolved tiers with an explicit
// invalidate operation. Writes to subscription state must invalidate.
type TierCache interface {
	Get(userID uint) (Tier, string, bool)
	Set(userID uint, tier Tier, source string)
	Invalidate(userID uint)
}

// Resolver computes the effective tier for a user from the stored subscription
// row, optionally short-circuiting through a TierCache.
type Resolver struct {
	subs  SubscriptionGetter
	cache TierCache
}

func NewResolver(subs SubscriptionGetter, cache TierCache) *Resolver {
	return &Resolver{subs: subs, cache: cache}
}

// ResolveForUser returns the effective (tier, source) for the user. A missing
// subscription row resolves to free/none; it is created lazily elsewhere on
// first write.
func (r *Resolver) ResolveForUser(userID uint) (Tier, string, error) {
	if r.cache != nil {
		if tier, source, ok := r.cache.Get(userID); ok {
			return tier, source, nil
		}
	}

	sub, err := r.subs.GetUserSubscription(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TierFree, models.SubscriptionSourceNone, nil
		}
		return TierFree, models.SubscriptionSourceNone, err
	}

	tier, source := Resolve(sub, time.Now())
	if r.cache != nil {
		r.cache.Set(userID, tier, source)
	}
	return tier, source, nil
}

// Invalidate drops the cached tier for a user after a subscription write.
func (r *Resolver) Invalidate(userID uint) {
	if r.cache != nil {
		r.cache.Invalidate(userID)
	}
}

// redisTierCache stores resolved tiers in Redis under a short TTL.
type redisTierCache struct {
	ttl   time.Duration
	set   func(key string, value interface{}, ttl time.Duration) error
	get   func(key string) (string, error)
	purge func(key string) error
}

// NewRedisTierCache builds a TierCache on top of the shared cache package
// functions. The TTL should stay short; the cache only exists to keep hot
// submission paths from re-reading the subscription row on every call.
func NewRedisTierCache(
	ttl time.Duration,
	set func(key string, value interface{}, ttl time.Duration) error,
	get func(key string) (string, error),
	purge func(key string) error,
) TierCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisTierCache{ttl: ttl, set: set, get: get, purge: purge}
}

func tierCacheKey(userID uint) string {
	return fmt.Sprintf("entitlements:tier:%d", userID)
}

func (c *redisTierCache) Get(userID uint) (Tier, string, bool) {
	val, err := c.get(tierCacheKey(userID))
	if err != nil || val == "" {
		return TierFree, "", false
	}
	parts := strings.SplitN(val, "|", 2)
	if len(parts) != 2 {
		return TierFree, "", false
	}
	return NormalizeTier(parts[0]), parts[1], true
}

func (c *redisTierCache) Set(userID uint, tier Tier, source string) {
	if err := c.set(tierCacheKey(userID), string(tier)+"|"+source, c.ttl); err != nil {
		log.Debugf("[Entitlements] tier cache set failed for user %d: %v", userID, err)
	}
}

func (c *redisTierCache) Invalidate(userID uint) {
	if err := c.purge(tierCacheKey(userID)); err != nil {
		log.Debugf("[Entitlements] tier cache invalidate failed for user %d: %v", userID, err)
	}
}
