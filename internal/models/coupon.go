package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

// Task keys a coupon can be restricted to.
const (
	TaskSummary     = "summary"
	TaskStructure   = "structure"
	TaskContent     = "content"
	TaskReferencing = "referencing"
	TaskFullContent = "full_content"
	TaskMonster     = "monster"
)

// TaskKeys is an allowlist of task keys, stored as text[] on Postgres and
// as the same array literal in a text column elsewhere.
type TaskKeys []string

func (k TaskKeys) Value() (driver.Value, error) {
	return pq.StringArray(k).Value()
}

func (k *TaskKeys) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*k = TaskKeys(arr)
	return nil
}

func (TaskKeys) GormDataType() string {
	return "text"
}

func (TaskKeys) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Contains reports whether key is allowed. An empty list allows every task.
func (k TaskKeys) Contains(key string) bool {
	if len(k) == 0 {
		return true
	}
	for _, v := range k {
		if v == key {
			return true
		}
	}
	return false
}

type Coupon struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	Code            string          `json:"code" gorm:"size:64;uniqueIndex;not null"`
	DiscountType    DiscountType    `json:"discountType" gorm:"size:16;not null"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	MaxUsesPerUser  int             `json:"maxUsesPerUser" gorm:"not null"`
	ValidFrom       time.Time       `json:"validFrom" gorm:"not null"`
	ValidTo         time.Time       `json:"validTo" gorm:"not null"`
	IsActive        bool            `json:"isActive" gorm:"not null"`
	AppliesToAll    bool            `json:"appliesToAll" gorm:"not null"`
	ApplicableTasks TaskKeys        `json:"applicableTasks"`
	CreatedByID     *uint           `json:"createdById,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	AssignedUsers []User `json:"assignedUsers,omitempty" gorm:"many2many:coupon_assigned_users;"`
}

func (Coupon) TableName() string {
	return "coupons"
}

// CouponRedemption records one discounted charge. It doubles as the
// per-user usage counter.
type CouponRedemption struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	CouponID       uint            `json:"couponId" gorm:"not null;index:idx_redemption_coupon_user,priority:1"`
	UserID         uint            `json:"userId" gorm:"not null;index:idx_redemption_coupon_user,priority:2"`
	TaskType       string          `json:"taskType" gorm:"size:32;not null"`
	GemsDiscounted decimal.Decimal `json:"gemsDiscounted" gorm:"type:numeric(12,2);not null"`
	CreatedAt      time.Time       `json:"createdAt"`

	Coupon *Coupon `json:"coupon,omitempty" gorm:"foreignKey:CouponID;references:ID"`
}

func (CouponRedemption) TableName() string {
	return "coupon_redemptions"
}
