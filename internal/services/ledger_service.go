package services

import (
	"context"
	"fmt"

	"github.com/clicktoassignment/backend/internal/legacy"
	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WelcomeBonusReason tags the one-time credit on a fresh account.
const WelcomeBonusReason = "Welcome bonus"

// ledgerLockNamespace keys the per-user advisory lock on Postgres.
const ledgerLockNamespace = 4471

// LedgerService owns gems balances and the transaction trail.
type LedgerService struct {
	db           *gorm.DB
	welcomeBonus decimal.Decimal
}

func NewLedgerService(db *gorm.DB, welcomeBonus decimal.Decimal) *LedgerService {
	return &LedgerService{db: db, welcomeBonus: welcomeBonus}
}

// EnsureAccount returns the user's account, repairing legacy duplicates and
// malformed rows, and creating it (plus the welcome bonus) on first touch.
func (ls *LedgerService) EnsureAccount(ctx context.Context, userID uint, bonusReason string) (*models.GemsAccount, error) {
	var account *models.GemsAccount
	err := ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := ls.ensureAccountTx(tx, userID, bonusReason)
		if err != nil {
			return err
		}
		account = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (ls *LedgerService) lockUser(tx *gorm.DB, userID uint) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", ledgerLockNamespace, int32(userID)).Error
}

func (ls *LedgerService) ensureAccountTx(tx *gorm.DB, userID uint, bonusReason string) (*models.GemsAccount, error) {
	if err := ls.lockUser(tx, userID); err != nil {
		return nil, fmt.Errorf("failed to lock gems account: %w", err)
	}

	var rows []models.GemsAccount
	if err := forUpdate(tx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load gems account: %w", err)
	}

	if len(rows) == 0 {
		account := models.GemsAccount{UserID: userID, Balance: decimal.Zero}
		if err := tx.Create(&account).Error; err != nil {
			return nil, fmt.Errorf("failed to create gems account: %w", err)
		}
		logger.WithLedger(userID, "ensure_account").Info("Created gems account")

		if ls.welcomeBonus.IsPositive() && account.Balance.IsZero() {
			if _, err := ls.creditTx(tx, &account, ls.welcomeBonus, bonusReason, nil); err != nil {
				return nil, err
			}
		}
		return &account, nil
	}

	for _, dup := range rows[1:] {
		if err := tx.Where("id = ? AND user_id = ?", dup.ID, userID).Delete(&models.GemsAccount{}).Error; err != nil {
			return nil, fmt.Errorf("failed to remove duplicate gems account: %w", err)
		}
	}
	if len(rows) > 1 {
		logger.WithLedger(userID, "ensure_account").WithField("removed", len(rows)-1).Warn("Removed duplicate gems accounts")
	}

	return ls.repairTx(tx, rows[0])
}

// repairTx normalizes a retained account. Rows with no usable id or a
// balance that did not import cleanly are recreated. A recreated row is not
// a new account, so no bonus is issued for it.
func (ls *LedgerService) repairTx(tx *gorm.DB, account models.GemsAccount) (*models.GemsAccount, error) {
	recreate := account.ID == 0
	balance := account.Balance

	if account.LegacyBalance != nil {
		imported := legacy.ParseBalance(*account.LegacyBalance)
		balance = imported.Value
		if !imported.Clean {
			recreate = true
		}
		if !imported.Recovered {
			logger.WithLedger(account.UserID, "repair").WithField("raw", *account.LegacyBalance).Warn("Legacy balance could not be recovered, resetting to zero")
		}
	}

	if recreate {
		if err := tx.Where("id = ? AND user_id = ?", account.ID, account.UserID).Delete(&models.GemsAccount{}).Error; err != nil {
			return nil, fmt.Errorf("failed to remove malformed gems account: %w", err)
		}
		fresh := models.GemsAccount{UserID: account.UserID, Balance: balance}
		if err := tx.Create(&fresh).Error; err != nil {
			return nil, fmt.Errorf("failed to recreate gems account: %w", err)
		}
		logger.WithLedger(account.UserID, "repair").WithField("balance", balance.String()).Warn("Recreated malformed gems account")
		return &fresh, nil
	}

	if account.LegacyBalance != nil {
		if err := tx.Model(&models.GemsAccount{}).Where("id = ?", account.ID).
			Updates(map[string]interface{}{"balance": balance, "legacy_balance": nil}).Error; err != nil {
			return nil, fmt.Errorf("failed to normalize gems account: %w", err)
		}
		account.Balance = balance
		account.LegacyBalance = nil
	}
	return &account, nil
}

// Charge debits amount from the user. A non-positive amount is a no-op and
// returns a nil transaction.
func (ls *LedgerService) Charge(ctx context.Context, userID uint, amount decimal.Decimal, reason string, actorID *uint) (*models.GemTransaction, error) {
	var entry *models.GemTransaction
	err := ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := ls.chargeTx(tx, userID, amount, reason, actorID)
		entry = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (ls *LedgerService) chargeTx(tx *gorm.DB, userID uint, amount decimal.Decimal, reason string, actorID *uint) (*models.GemTransaction, error) {
	if !amount.IsPositive() {
		return nil, nil
	}

	account, err := ls.ensureAccountTx(tx, userID, WelcomeBonusReason)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: balance %s, required %s", ErrInsufficientBalance, account.Balance.StringFixed(2), amount.StringFixed(2))
	}

	// The balance guard in the WHERE clause keeps the debit atomic even if
	// the row lock is unavailable.
	res := tx.Model(&models.GemsAccount{}).
		Where("id = ? AND balance >= ?", account.ID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to debit gems: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientBalance
	}

	entry := models.GemTransaction{
		UserID:      userID,
		Amount:      amount.Neg(),
		Reason:      reason,
		CreatedByID: actorID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record gem transaction: %w", err)
	}

	logger.WithLedger(userID, "charge").WithFields(map[string]interface{}{
		"amount": amount.String(),
		"reason": reason,
	}).Info("Gems charged")
	return &entry, nil
}

// Credit adds amount to the user. A non-positive amount is a no-op.
func (ls *LedgerService) Credit(ctx context.Context, userID uint, amount decimal.Decimal, reason string, actorID *uint) (*models.GemTransaction, error) {
	var entry *models.GemTransaction
	err := ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !amount.IsPositive() {
			return nil
		}
		account, err := ls.ensureAccountTx(tx, userID, WelcomeBonusReason)
		if err != nil {
			return err
		}
		e, err := ls.creditTx(tx, account, amount, reason, actorID)
		entry = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (ls *LedgerService) creditTx(tx *gorm.DB, account *models.GemsAccount, amount decimal.Decimal, reason string, actorID *uint) (*models.GemTransaction, error) {
	if err := tx.Model(&models.GemsAccount{}).Where("id = ?", account.ID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
		return nil, fmt.Errorf("failed to credit gems: %w", err)
	}
	account.Balance = account.Balance.Add(amount)

	entry := models.GemTransaction{
		UserID:      account.UserID,
		Amount:      amount,
		Reason:      reason,
		CreatedByID: actorID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record gem transaction: %w", err)
	}

	logger.WithLedger(account.UserID, "credit").WithFields(map[string]interface{}{
		"amount": amount.String(),
		"reason": reason,
	}).Info("Gems credited")
	return &entry, nil
}

// GetBalance returns the user's current balance.
func (ls *LedgerService) GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	account, err := ls.EnsureAccount(ctx, userID, WelcomeBonusReason)
	if err != nil {
		return decimal.Zero, err
	}
	var fresh models.GemsAccount
	if err := ls.db.WithContext(ctx).First(&fresh, account.ID).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to read gems balance: %w", err)
	}
	return fresh.Balance, nil
}

// ListTransactions returns the user's ledger rows newest first.
func (ls *LedgerService) ListTransactions(ctx context.Context, userID uint, page, pageSize int) ([]models.GemTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	q := ls.db.WithContext(ctx).Model(&models.GemTransaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count gem transactions: %w", err)
	}

	var entries []models.GemTransaction
	if err := ls.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list gem transactions: %w", err)
	}
	return entries, total, nil
}

// SumTransactions totals the user's ledger rows. The account balance should
// equal this value.
func (ls *LedgerService) SumTransactions(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var entries []models.GemTransaction
	if err := ls.db.WithContext(ctx).Select("amount").Where("user_id = ?", userID).Find(&entries).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum gem transactions: %w", err)
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total, nil
}
