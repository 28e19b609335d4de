package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GemsAccount caches a user's balance. Legacy imports can leave more than
// one row per user, so user_id is indexed but not unique; the ledger
// repairs duplicates on access.
type GemsAccount struct {
	ID      uint            `json:"id" gorm:"primaryKey"`
	UserID  uint            `json:"userId" gorm:"not null;index"`
	Balance decimal.Decimal `json:"balance" gorm:"type:numeric(12,2);not null"`
	// LegacyBalance is the raw value carried over from the previous store,
	// nil once the row has been normalized.
	LegacyBalance *string   `json:"-" gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (GemsAccount) TableName() string {
	return "gems_accounts"
}

// GemTransaction is an append-only ledger row. Negative amounts are debits.
type GemTransaction struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"userId" gorm:"not null;index:idx_gem_tx_user_created,priority:1"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Reason      string          `json:"reason" gorm:"size:255;not null"`
	CreatedByID *uint           `json:"createdById,omitempty"`
	CreatedAt   time.Time       `json:"createdAt" gorm:"index:idx_gem_tx_user_created,priority:2"`
}

func (GemTransaction) TableName() string {
	return "gem_transactions"
}

// GemCostRule overrides the built-in price of a task key.
type GemCostRule struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Key       string          `json:"key" gorm:"column:rule_key;size:64;uniqueIndex;not null"`
	Cost      decimal.Decimal `json:"cost" gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (GemCostRule) TableName() string {
	return "gem_cost_rules"
}
