package billing

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
)

// TierInvalidator drops cached entitlement lookups after a subscription write.
type TierInvalidator interface {
	Invalidate(userID uint)
}

// Service ingests billing-platform lifecycle events and maintains the single
// subscription row plus its append-only history per user.
type Service struct {
	repo  Repository
	tiers TierInvalidator
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, tiers TierInvalidator) *Service {
	return &Service{repo: repo, tiers: tiers}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, tiers TierInvalidator) *Service {
	return NewService(NewRepository(db), tiers)
}

// ProcessResult reports what a webhook delivery did. Acknowledged deliveries
// must be answered 2xx so the platform stops retrying, even when no state
// changed.
type ProcessResult struct {
	Acknowledged bool
	Applied      bool
	UserID       uint
	TierBefore   string
	TierAfter    string
	StatusBefore string
	StatusAfter  string
}

// ProcessWebhook applies one already-authenticated billing event. Events that
// cannot be attributed to a known user are acknowledged without any write and
// logged for manual follow-up. Only infrastructure failures return an error,
// which the receiver maps to a retryable response.
func (s *Service) ProcessWebhook(raw []byte) (*ProcessResult, error) {
	event, err := ParseWebhookEvent(raw)
	if err != nil {
		log.Warnf("[Billing] Unparseable webhook payload, acknowledging without changes: %v", err)
		return &ProcessResult{Acknowledged: true}, nil
	}

	userID, ok := s.resolveUser(event)
	if !ok {
		log.Warnf("[Billing] Webhook %s (%s) references unresolvable user %q, acknowledging without changes",
			event.ID, event.Type, event.AppUserID)
		return &ProcessResult{Acknowledged: true}, nil
	}

	tr, err := transitionFor(event)
	if err != nil {
		log.Warnf("[Billing] Webhook %s: %v, acknowledging without changes", event.ID, err)
		return &ProcessResult{Acknowledged: true}, nil
	}

	sub, err := s.repo.GetUserSubscription(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		sub = &models.UserSubscription{
			UserID: userID,
			Tier:   models.TierFree,
			Source: models.SubscriptionSourceNone,
			Status: models.SubscriptionStatusActive,
		}
	}

	tierBefore, statusBefore := sub.Tier, sub.Status

	// Last-writer-wins on the provider-sourced fields only.
	sub.ProductID = event.EffectiveProductID()
	if event.TransactionID != "" {
		sub.TransactionID = event.TransactionID
	}
	if event.OriginalTransactionID != "" {
		sub.OriginalTransactionID = event.OriginalTransactionID
	}
	sub.PurchaseExpiresAt = event.ExpiresAt()
	sub.Status = tr.status
	if tr.clearAdmin && sub.HasAdminGrant() {
		log.Infof("[Billing] Event %s (%s) supersedes admin grant for user %d", event.ID, event.Type, userID)
		sub.ClearAdminFields()
	}
	sub.RawPayloadJSON = string(raw)

	tier, source := entitlements.Resolve(sub, time.Now())
	sub.Tier = string(tier)
	sub.Source = source

	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}

	entry := &models.SubscriptionHistory{
		UserID:       userID,
		EventType:    event.Type,
		EventSource:  models.HistorySourceWebhook,
		TierBefore:   tierBefore,
		TierAfter:    sub.Tier,
		StatusBefore: statusBefore,
		StatusAfter:  sub.Status,
		Actor:        "billing-platform",
		RawPayload:   string(raw),
	}
	if err := s.repo.AppendHistory(entry); err != nil {
		return nil, err
	}

	if s.tiers != nil {
		s.tiers.Invalidate(userID)
	}

	return &ProcessResult{
		Acknowledged: true,
		Applied:      true,
		UserID:       userID,
		TierBefore:   tierBefore,
		TierAfter:    sub.Tier,
		StatusBefore: statusBefore,
		StatusAfter:  sub.Status,
	}, nil
}

func (s *Service) resolveUser(event *WebhookEvent) (uint, bool) {
	id := strings.TrimSpace(event.AppUserID)
	if id == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(id, 10, 32)
	if err != nil || parsed == 0 {
		return 0, false
	}
	if _, err := s.repo.GetUserByID(uint(parsed)); err != nil {
		return 0, false
	}
	return uint(parsed), true
}
