package credits

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
)

// ResetPeriod is how long a credit allotment lasts before the next reset.
const ResetPeriod = 30 * 24 * time.Hour

// ErrInsufficientCredits is returned when a deduction would make the balance
// negative. The balance is left unchanged.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger maintains per-user spendable credit balances.
type Ledger struct {
	repo Repository
}

// NewLedger creates a ledger from an injected repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// NewLedgerFromDB creates a ledger from a GORM DB handle.
func NewLedgerFromDB(db *gorm.DB) *Ledger {
	return NewLedger(NewRepository(db))
}

// EnsureFreshBalance lazily creates the balance row and resets it to the
// tier's allotment when the reset period has elapsed. Idempotent per period.
func (l *Ledger) EnsureFreshBalance(userID uint, tier entitlements.Tier) (*models.CreditBalance, error) {
	now := time.Now()
	balance, err := l.repo.GetOrCreateBalance(userID, entitlements.CreditAllotment(tier), now)
	if err != nil {
		return nil, err
	}

	if now.Sub(balance.LastResetAt) < ResetPeriod {
		return balance, nil
	}

	reset, err := l.repo.ResetIfStale(userID, entitlements.CreditAllotment(tier), balance.LastResetAt, now)
	if err != nil {
		return nil, err
	}
	if reset {
		log.Infof("[Credits] Reset balance for user %d to %d (%s)", userID, entitlements.CreditAllotment(tier), tier)
	}
	return l.repo.GetBalance(userID)
}

// Deduct atomically removes amount credits, failing with
// ErrInsufficientCredits and making no change when the balance is too low.
func (l *Ledger) Deduct(userID uint, amount int64) error {
	if amount <= 0 {
		return nil
	}
	ok, err := l.repo.DeductIfEnough(userID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientCredits
	}
	return nil
}

// Refund atomically returns amount credits to the user. A refund that cannot
// be written is a ledger inconsistency; it is logged loudly, never swallowed.
func (l *Ledger) Refund(userID uint, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := l.repo.AddCredits(userID, amount); err != nil {
		log.Errorf("[Credits] LEDGER INCONSISTENCY: refund of %d credits for user %d failed: %v", amount, userID, err)
		return err
	}
	return nil
}

// Balance returns the user's current credit balance, zero if no row exists yet.
func (l *Ledger) Balance(userID uint) (int64, error) {
	balance, err := l.repo.GetBalance(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.Credits, nil
}
