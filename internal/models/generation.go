package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GenerationLog records one call to the content generator.
type GenerationLog struct {
	ID          uint              `json:"id" gorm:"primaryKey"`
	CallID      string            `json:"callId" gorm:"size:36;uniqueIndex;not null"`
	JobID       uint              `json:"jobId" gorm:"not null;index"`
	SectionID   *uint             `json:"sectionId,omitempty" gorm:"index"`
	SectionType SectionType       `json:"sectionType" gorm:"size:32;not null"`
	Trigger     HistoryAction     `json:"trigger" gorm:"size:32;not null"`
	Succeeded   bool              `json:"succeeded" gorm:"not null"`
	DurationMs  int64             `json:"durationMs"`
	Error       string            `json:"error,omitempty" gorm:"type:text"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"createdAt" gorm:"index"`
}

func (GenerationLog) TableName() string {
	return "generation_logs"
}

// MonsterRun records a one-shot pipeline run paid for by a metered user.
type MonsterRun struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	JobID      uint              `json:"jobId" gorm:"not null;index"`
	UserID     uint              `json:"userId" gorm:"not null;index"`
	Cost       decimal.Decimal   `json:"cost" gorm:"type:numeric(12,2);not null"`
	Discount   decimal.Decimal   `json:"discount" gorm:"type:numeric(12,2);not null"`
	CouponCode string            `json:"couponCode,omitempty" gorm:"size:64"`
	Sections   datatypes.JSONMap `json:"sections"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (MonsterRun) TableName() string {
	return "monster_runs"
}
