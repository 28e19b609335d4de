package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ApplyStatus string

const (
	CouponStatusOK            ApplyStatus = "ok"
	CouponStatusNotApplicable ApplyStatus = "not_applicable"
)

// Reasons reported with a not_applicable quote.
const (
	reasonUnknownCode  = "unknown_code"
	reasonInactive     = "inactive"
	reasonNotStarted   = "not_started"
	reasonExpired      = "expired"
	reasonNotAssigned  = "not_assigned"
	reasonTaskExcluded = "task_not_allowed"
	reasonUsageLimit   = "usage_limit_reached"
)

var hundred = decimal.NewFromInt(100)

// CouponQuote is the result of pricing a task with an optional coupon.
type CouponQuote struct {
	Coupon      *models.Coupon  `json:"coupon"`
	Cost        decimal.Decimal `json:"cost"`
	Discount    decimal.Decimal `json:"discount"`
	NetCost     decimal.Decimal `json:"netCost"`
	Status      ApplyStatus     `json:"status"`
	ExceedsCost bool            `json:"exceedsCostWarning"`
	Reason      string          `json:"reason,omitempty"`
}

func noCouponQuote(cost decimal.Decimal, status ApplyStatus, reason string) *CouponQuote {
	return &CouponQuote{
		Cost:     cost,
		Discount: decimal.Zero,
		NetCost:  cost,
		Status:   status,
		Reason:   reason,
	}
}

// CouponDiscount returns the discount c gives on cost, capped at cost, and
// the nominal value before the cap. Percentages round half-even to cents.
func CouponDiscount(c *models.Coupon, cost decimal.Decimal) (discount, nominal decimal.Decimal) {
	switch c.DiscountType {
	case models.DiscountPercent:
		nominal = cost.Mul(c.Amount).Div(hundred).RoundBank(2)
	default:
		nominal = c.Amount
	}
	discount = decimal.Min(nominal, cost)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount, nominal
}

func netCost(cost, discount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, cost.Sub(discount))
}

// CouponService prices tasks with coupons and records redemptions.
type CouponService struct {
	db     *gorm.DB
	ledger *LedgerService
	now    func() time.Time
}

func NewCouponService(db *gorm.DB, ledger *LedgerService) *CouponService {
	return &CouponService{db: db, ledger: ledger, now: time.Now}
}

// notApplicableReason returns "" when c can be used by userID for taskKey.
func (cs *CouponService) notApplicableReason(tx *gorm.DB, c *models.Coupon, userID uint, taskKey string, now time.Time) (string, error) {
	if !c.IsActive {
		return reasonInactive, nil
	}
	if now.Before(c.ValidFrom) {
		return reasonNotStarted, nil
	}
	if now.After(c.ValidTo) {
		return reasonExpired, nil
	}
	if !c.AppliesToAll {
		var assigned int64
		if err := tx.Table("coupon_assigned_users").
			Where("coupon_id = ? AND user_id = ?", c.ID, userID).
			Count(&assigned).Error; err != nil {
			return "", fmt.Errorf("failed to check coupon assignment: %w", err)
		}
		if assigned == 0 {
			return reasonNotAssigned, nil
		}
	}
	if !c.ApplicableTasks.Contains(taskKey) {
		return reasonTaskExcluded, nil
	}

	used, err := cs.redemptionCount(tx, c.ID, userID)
	if err != nil {
		return "", err
	}
	if used >= int64(c.MaxUsesPerUser) {
		return reasonUsageLimit, nil
	}
	return "", nil
}

func (cs *CouponService) redemptionCount(tx *gorm.DB, couponID, userID uint) (int64, error) {
	var used int64
	if err := tx.Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&used).Error; err != nil {
		return 0, fmt.Errorf("failed to count coupon redemptions: %w", err)
	}
	return used, nil
}

// ResolveBest returns the applicable coupon with the largest discount for
// the task. Ties go to the lowest coupon id. With no applicable coupon the
// quote carries a nil Coupon and the full cost.
func (cs *CouponService) ResolveBest(ctx context.Context, userID uint, taskKey string, cost decimal.Decimal) (*CouponQuote, error) {
	tx := cs.db.WithContext(ctx)
	var coupons []models.Coupon
	if err := tx.Where("is_active = ?", true).Order("id asc").Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	now := cs.now()
	best := noCouponQuote(cost, CouponStatusOK, "")
	for i := range coupons {
		c := &coupons[i]
		reason, err := cs.notApplicableReason(tx, c, userID, taskKey, now)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			continue
		}
		discount, nominal := CouponDiscount(c, cost)
		if discount.GreaterThan(best.Discount) {
			best = &CouponQuote{
				Coupon:      c,
				Cost:        cost,
				Discount:    discount,
				NetCost:     netCost(cost, discount),
				Status:      CouponStatusOK,
				ExceedsCost: nominal.GreaterThan(cost),
			}
		}
	}
	return best, nil
}

// ApplyCode validates one explicit code. An empty code is a no-discount ok
// quote. It does not record a redemption.
func (cs *CouponService) ApplyCode(ctx context.Context, userID uint, taskKey string, cost decimal.Decimal, code string) (*CouponQuote, error) {
	return cs.applyCodeTx(cs.db.WithContext(ctx), userID, taskKey, cost, code)
}

func (cs *CouponService) applyCodeTx(tx *gorm.DB, userID uint, taskKey string, cost decimal.Decimal, code string) (*CouponQuote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return noCouponQuote(cost, CouponStatusOK, ""), nil
	}

	var c models.Coupon
	err := tx.Where("LOWER(code) = LOWER(?)", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return noCouponQuote(cost, CouponStatusNotApplicable, reasonUnknownCode), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}

	reason, err := cs.notApplicableReason(tx, &c, userID, taskKey, cs.now())
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return noCouponQuote(cost, CouponStatusNotApplicable, reason), nil
	}

	discount, nominal := CouponDiscount(&c, cost)
	return &CouponQuote{
		Coupon:      &c,
		Cost:        cost,
		Discount:    discount,
		NetCost:     netCost(cost, discount),
		Status:      CouponStatusOK,
		ExceedsCost: nominal.GreaterThan(cost),
	}, nil
}

// SpendRequest describes a coupon-adjusted debit.
type SpendRequest struct {
	UserID     uint
	TaskKey    string
	Cost       decimal.Decimal
	CouponCode string
	Reason     string
	ActorID    *uint
}

// SpendReceipt reports what Spend charged.
type SpendReceipt struct {
	Quote       *CouponQuote             `json:"quote"`
	Transaction *models.GemTransaction   `json:"transaction,omitempty"`
	Redemption  *models.CouponRedemption `json:"redemption,omitempty"`
}

// Spend applies the coupon, charges the net cost and records the redemption
// in one transaction.
func (cs *CouponService) Spend(ctx context.Context, req SpendRequest) (*SpendReceipt, error) {
	var receipt *SpendReceipt
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := cs.spendTx(tx, req)
		receipt = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (cs *CouponService) spendTx(tx *gorm.DB, req SpendRequest) (*SpendReceipt, error) {
	// Serializes the usage-cap read with the redemption write.
	if err := cs.ledger.lockUser(tx, req.UserID); err != nil {
		return nil, fmt.Errorf("failed to lock gems account: %w", err)
	}

	quote, err := cs.applyCodeTx(tx, req.UserID, req.TaskKey, req.Cost, req.CouponCode)
	if err != nil {
		return nil, err
	}
	if quote.Status != CouponStatusOK {
		return nil, fmt.Errorf("%w: %s", ErrCouponNotApplicable, quote.Reason)
	}

	reason := req.Reason
	if quote.Coupon != nil {
		reason = fmt.Sprintf("%s (coupon %s)", reason, quote.Coupon.Code)
	}

	entry, err := cs.ledger.chargeTx(tx, req.UserID, quote.NetCost, reason, req.ActorID)
	if err != nil {
		return nil, err
	}

	receipt := &SpendReceipt{Quote: quote, Transaction: entry}
	if quote.Coupon != nil && quote.Discount.IsPositive() {
		redemption := models.CouponRedemption{
			CouponID:       quote.Coupon.ID,
			UserID:         req.UserID,
			TaskType:       req.TaskKey,
			GemsDiscounted: quote.Discount,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return nil, fmt.Errorf("failed to record coupon redemption: %w", err)
		}
		receipt.Redemption = &redemption
	}
	return receipt, nil
}

// CouponInput is the editable shape of a coupon.
type CouponInput struct {
	Code            string              `json:"code" validate:"required,max=64"`
	DiscountType    models.DiscountType `json:"discountType" validate:"required,oneof=fixed percent"`
	Amount          decimal.Decimal     `json:"amount"`
	MaxUsesPerUser  int                 `json:"maxUsesPerUser" validate:"gte=1"`
	ValidFrom       time.Time           `json:"validFrom" validate:"required"`
	ValidTo         time.Time           `json:"validTo" validate:"required"`
	IsActive        bool                `json:"isActive"`
	AppliesToAll    bool                `json:"appliesToAll"`
	ApplicableTasks []string            `json:"applicableTasks" validate:"dive,oneof=summary structure content referencing full_content monster"`
	AssignedUserIDs []uint              `json:"assignedUserIds"`
}

func (in *CouponInput) check() error {
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.DiscountType == models.DiscountPercent && in.Amount.GreaterThan(hundred) {
		return fmt.Errorf("%w: percent discount cannot exceed 100", ErrValidation)
	}
	if in.DiscountType != models.DiscountPercent && in.DiscountType != models.DiscountFixed {
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, in.DiscountType)
	}
	if in.ValidTo.Before(in.ValidFrom) {
		return fmt.Errorf("%w: validTo is before validFrom", ErrValidation)
	}
	if in.MaxUsesPerUser < 1 {
		return fmt.Errorf("%w: maxUsesPerUser must be at least 1", ErrValidation)
	}
	return nil
}

func (in *CouponInput) apply(c *models.Coupon) {
	c.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	c.DiscountType = in.DiscountType
	c.Amount = in.Amount.Round(2)
	c.MaxUsesPerUser = in.MaxUsesPerUser
	c.ValidFrom = in.ValidFrom
	c.ValidTo = in.ValidTo
	c.IsActive = in.IsActive
	c.AppliesToAll = in.AppliesToAll
	c.ApplicableTasks = models.TaskKeys(in.ApplicableTasks)
}

func (cs *CouponService) codeTaken(tx *gorm.DB, code string, exceptID uint) (bool, error) {
	var n int64
	if err := tx.Model(&models.Coupon{}).
		Where("LOWER(code) = LOWER(?) AND id <> ?", strings.TrimSpace(code), exceptID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check coupon code: %w", err)
	}
	return n > 0, nil
}

func (cs *CouponService) replaceAssignments(tx *gorm.DB, c *models.Coupon, userIDs []uint) error {
	var users []models.User
	if len(userIDs) > 0 {
		if err := tx.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return fmt.Errorf("failed to load assigned users: %w", err)
		}
		if len(users) != len(uniqueIDs(userIDs)) {
			return fmt.Errorf("%w: unknown user in assignment", ErrValidation)
		}
	}
	if err := tx.Model(c).Association("AssignedUsers").Replace(users); err != nil {
		return fmt.Errorf("failed to update coupon assignment: %w", err)
	}
	c.AssignedUsers = users
	return nil
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// CreateCoupon stores a new coupon. Codes are stored upper-case.
func (cs *CouponService) CreateCoupon(ctx context.Context, in CouponInput, actorID *uint) (*models.Coupon, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	var coupon models.Coupon
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := cs.codeTaken(tx, in.Code, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: coupon code already exists", ErrValidation)
		}

		in.apply(&coupon)
		coupon.CreatedByID = actorID
		if err := tx.Create(&coupon).Error; err != nil {
			return fmt.Errorf("failed to create coupon: %w", err)
		}
		return cs.replaceAssignments(tx, &coupon, in.AssignedUserIDs)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Coupon created", map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
	})
	return &coupon, nil
}

// loadEditable returns the coupon for update, or ErrCouponLocked once it has
// been redeemed.
func (cs *CouponService) loadEditable(tx *gorm.DB, id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := forUpdate(tx).First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}

	var redeemed int64
	if err := tx.Model(&models.CouponRedemption{}).Where("coupon_id = ?", id).Count(&redeemed).Error; err != nil {
		return nil, fmt.Errorf("failed to count coupon redemptions: %w", err)
	}
	if redeemed > 0 {
		return nil, ErrCouponLocked
	}
	return &coupon, nil
}

// UpdateCoupon replaces the coupon's fields and assignments.
func (cs *CouponService) UpdateCoupon(ctx context.Context, id uint, in CouponInput) (*models.Coupon, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := cs.loadEditable(tx, id)
		if err != nil {
			return err
		}
		taken, err := cs.codeTaken(tx, in.Code, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: coupon code already exists", ErrValidation)
		}

		in.apply(c)
		if err := tx.Save(c).Error; err != nil {
			return fmt.Errorf("failed to update coupon: %w", err)
		}
		if err := cs.replaceAssignments(tx, c, in.AssignedUserIDs); err != nil {
			return err
		}
		coupon = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coupon, nil
}

// AssignUsers replaces the coupon's audience.
func (cs *CouponService) AssignUsers(ctx context.Context, id uint, userIDs []uint) (*models.Coupon, error) {
	var coupon *models.Coupon
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := cs.loadEditable(tx, id)
		if err != nil {
			return err
		}
		if err := cs.replaceAssignments(tx, c, userIDs); err != nil {
			return err
		}
		coupon = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coupon, nil
}

// DeleteCoupon removes an unredeemed coupon.
func (cs *CouponService) DeleteCoupon(ctx context.Context, id uint) error {
	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := cs.loadEditable(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(c).Association("AssignedUsers").Clear(); err != nil {
			return fmt.Errorf("failed to clear coupon assignment: %w", err)
		}
		if err := tx.Delete(c).Error; err != nil {
			return fmt.Errorf("failed to delete coupon: %w", err)
		}
		return nil
	})
}

// GetCoupon returns a coupon with its assigned users.
func (cs *CouponService) GetCoupon(ctx context.Context, id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := cs.db.WithContext(ctx).Preload("AssignedUsers").First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return &coupon, nil
}

func (cs *CouponService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := cs.db.WithContext(ctx).Preload("AssignedUsers").Order("id desc").Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

func (cs *CouponService) ListRedemptions(ctx context.Context, couponID uint) ([]models.CouponRedemption, error) {
	var rows []models.CouponRedemption
	if err := cs.db.WithContext(ctx).Where("coupon_id = ?", couponID).
		Order("created_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupon redemptions: %w", err)
	}
	return rows, nil
}
