package billing

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
)

var (
	// ErrNotOperator is returned when the caller is not on the allow-list.
	ErrNotOperator = errors.New("caller is not an authorized operator")
	// ErrInvalidTier is returned when a grant names a non-paid or unknown tier.
	ErrInvalidTier = errors.New("grant requires a paid tier (pro or studio)")
	// ErrUserNotFound is returned when the target email resolves to no user.
	ErrUserNotFound = errors.New("no user with that email")
)

// AdminService grants and revokes complimentary tiers. Every mutation is
// audited to the subscription history.
type AdminService struct {
	repo      Repository
	tiers     TierInvalidator
	operators map[string]struct{}
}

// NewAdminService creates the admin override service with a fixed operator
// allow-list (emails, case-insensitive).
func NewAdminService(repo Repository, tiers TierInvalidator, operators []string) *AdminService {
	allow := make(map[string]struct{}, len(operators))
	for _, op := range operators {
		normalized := strings.ToLower(strings.TrimSpace(op))
		if normalized != "" {
			allow[normalized] = struct{}{}
		}
	}
	return &AdminService{repo: repo, tiers: tiers, operators: allow}
}

// IsOperator reports whether the caller may use admin endpoints.
func (a *AdminService) IsOperator(email string) bool {
	_, ok := a.operators[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Grant upserts an admin-sourced complimentary tier for the target user. An
// explicit grant intentionally supersedes stale purchase bookkeeping, so the
// provider purchase identifiers are cleared.
func (a *AdminService) Grant(actor, email string, tier entitlements.Tier, expiresAt *time.Time, notes string) (*models.UserSubscription, error) {
	if !a.IsOperator(actor) {
		return nil, ErrNotOperator
	}
	if !entitlements.IsPaid(entitlements.NormalizeTier(string(tier))) {
		return nil, ErrInvalidTier
	}

	user, err := a.repo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	sub, err := a.loadOrInitSubscription(user.ID)
	if err != nil {
		return nil, err
	}
	tierBefore, statusBefore := sub.Tier, sub.Status

	now := time.Now()
	sub.AdminTier = string(entitlements.NormalizeTier(string(tier)))
	sub.AdminExpiresAt = expiresAt
	sub.AdminGrantedBy = strings.ToLower(strings.TrimSpace(actor))
	sub.AdminGrantedAt = &now
	sub.AdminNotes = notes
	sub.ClearPurchaseFields()
	sub.Status = models.SubscriptionStatusActive

	resolved, source := entitlements.Resolve(sub, now)
	sub.Tier = string(resolved)
	sub.Source = source

	if err := a.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}
	if err := a.appendAdminHistory(sub, "ADMIN_GRANT", actor, tierBefore, statusBefore); err != nil {
		return nil, err
	}
	if a.tiers != nil {
		a.tiers.Invalidate(user.ID)
	}

	log.Infof("[Billing] Operator %s granted %s to user %d", actor, sub.AdminTier, user.ID)
	return sub, nil
}

// Revoke removes an admin grant, dropping the user back to whatever their
// purchase state still entitles them to.
func (a *AdminService) Revoke(actor, email string) (*models.UserSubscription, error) {
	if !a.IsOperator(actor) {
		return nil, ErrNotOperator
	}

	user, err := a.repo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	sub, err := a.loadOrInitSubscription(user.ID)
	if err != nil {
		return nil, err
	}
	tierBefore, statusBefore := sub.Tier, sub.Status

	sub.ClearAdminFields()
	resolved, source := entitlements.Resolve(sub, time.Now())
	sub.Tier = string(resolved)
	sub.Source = source

	if err := a.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}
	if err := a.appendAdminHistory(sub, "ADMIN_REVOKE", actor, tierBefore, statusBefore); err != nil {
		return nil, err
	}
	if a.tiers != nil {
		a.tiers.Invalidate(user.ID)
	}

	log.Infof("[Billing] Operator %s revoked admin grant for user %d", actor, user.ID)
	return sub, nil
}

// Query returns the target's subscription row plus the most recent history.
func (a *AdminService) Query(actor, email string, historyLimit int) (*models.UserSubscription, []models.SubscriptionHistory, error) {
	if !a.IsOperator(actor) {
		return nil, nil, ErrNotOperator
	}

	user, err := a.repo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	sub, err := a.loadOrInitSubscription(user.ID)
	if err != nil {
		return nil, nil, err
	}
	history, err := a.repo.ListHistory(user.ID, historyLimit)
	if err != nil {
		return nil, nil, err
	}
	return sub, history, nil
}

func (a *AdminService) loadOrInitSubscription(userID uint) (*models.UserSubscription, error) {
	sub, err := a.repo.GetUserSubscription(userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &models.UserSubscription{
		UserID: userID,
		Tier:   models.TierFree,
		Source: models.SubscriptionSourceNone,
		Status: models.SubscriptionStatusActive,
	}, nil
}

func (a *AdminService) appendAdminHistory(sub *models.UserSubscription, eventType, actor, tierBefore, statusBefore string) error {
	return a.repo.AppendHistory(&models.SubscriptionHistory{
		UserID:       sub.UserID,
		EventType:    eventType,
		EventSource:  models.HistorySourceAdmin,
		TierBefore:   tierBefore,
		TierAfter:    sub.Tier,
		StatusBefore: statusBefore,
		StatusAfter:  sub.Status,
		Actor:        strings.ToLower(strings.TrimSpace(actor)),
	})
}
