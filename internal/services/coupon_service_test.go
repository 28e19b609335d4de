package services

import (
	"context"
	"testing"
	"time"

	"github.com/clicktoassignment/backend/internal/models"
	"github.com/shopspring/decimal"
)

func couponInput(code string, kind models.DiscountType, amount string) CouponInput {
	now := time.Now()
	return CouponInput{
		Code:           code,
		DiscountType:   kind,
		Amount:         decimal.RequireFromString(amount),
		MaxUsesPerUser: 1,
		ValidFrom:      now.Add(-time.Hour),
		ValidTo:        now.Add(24 * time.Hour),
		IsActive:       true,
		AppliesToAll:   true,
	}
}

func TestCouponDiscount(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.DiscountType
		amount   string
		cost     string
		discount string
		nominal  string
	}{
		{"fixed below cost", models.DiscountFixed, "1", "4", "1", "1"},
		{"fixed above cost is capped", models.DiscountFixed, "100", "2", "2", "100"},
		{"percent", models.DiscountPercent, "50", "5", "2.5", "2.5"},
		{"percent rounds half even", models.DiscountPercent, "15", "2.5", "0.38", "0.38"},
		{"full percent", models.DiscountPercent, "100", "3", "3", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.Coupon{DiscountType: tt.kind, Amount: decimal.RequireFromString(tt.amount)}
			discount, nominal := CouponDiscount(c, decimal.RequireFromString(tt.cost))
			expectDecimal(t, "discount", discount, tt.discount)
			expectDecimal(t, "nominal", nominal, tt.nominal)
		})
	}
}

func TestApplyCodeWarnsWhenDiscountExceedsCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.coupons.CreateCoupon(ctx, couponInput("big100", models.DiscountFixed, "100"), &f.admin.ID); err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}

	quote, err := f.coupons.ApplyCode(ctx, f.global.ID, models.TaskSummary, decimal.NewFromInt(2), "BIG100")
	if err != nil {
		t.Fatalf("ApplyCode failed: %v", err)
	}
	if quote.Status != CouponStatusOK {
		t.Fatalf("Expected status ok, got %s (%s)", quote.Status, quote.Reason)
	}
	expectDecimal(t, "discount", quote.Discount, "2")
	expectDecimal(t, "net cost", quote.NetCost, "0")
	if !quote.ExceedsCost {
		t.Error("Expected exceeds cost warning")
	}
}

func TestApplyCodeNotApplicable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := createUser(t, f.db, "other", models.RoleGlobal)

	inactive := couponInput("SLEEPY", models.DiscountFixed, "1")
	inactive.IsActive = false
	expired := couponInput("OLD", models.DiscountFixed, "1")
	expired.ValidFrom = time.Now().Add(-48 * time.Hour)
	expired.ValidTo = time.Now().Add(-24 * time.Hour)
	future := couponInput("SOON", models.DiscountFixed, "1")
	future.ValidFrom = time.Now().Add(24 * time.Hour)
	future.ValidTo = time.Now().Add(48 * time.Hour)
	private := couponInput("VIP", models.DiscountFixed, "1")
	private.AppliesToAll = false
	private.AssignedUserIDs = []uint{other.ID}
	contentOnly := couponInput("CONTENT", models.DiscountFixed, "1")
	contentOnly.ApplicableTasks = []string{models.TaskContent}

	for _, in := range []CouponInput{inactive, expired, future, private, contentOnly} {
		if _, err := f.coupons.CreateCoupon(ctx, in, &f.admin.ID); err != nil {
			t.Fatalf("CreateCoupon %s failed: %v", in.Code, err)
		}
	}

	tests := []struct {
		code   string
		reason string
	}{
		{"missing", reasonUnknownCode},
		{"sleepy", reasonInactive},
		{"old", reasonExpired},
		{"soon", reasonNotStarted},
		{"vip", reasonNotAssigned},
		{"content", reasonTaskExcluded},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			quote, err := f.coupons.ApplyCode(ctx, f.global.ID, models.TaskSummary, decimal.NewFromInt(2), tt.code)
			if err != nil {
				t.Fatalf("ApplyCode failed: %v", err)
			}
			if quote.Status != CouponStatusNotApplicable {
				t.Fatalf("Expected not_applicable, got %s", quote.Status)
			}
			if quote.Reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, quote.Reason)
			}
			expectDecimal(t, "net cost", quote.NetCost, "2")
		})
	}

	quote, err := f.coupons.ApplyCode(ctx, other.ID, models.TaskSummary, decimal.NewFromInt(2), "vip")
	if err != nil {
		t.Fatalf("ApplyCode failed: %v", err)
	}
	if quote.Status != CouponStatusOK {
		t.Errorf("Expected assigned user to get ok, got %s (%s)", quote.Status, quote.Reason)
	}
}

func TestSpendRecordsRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	coupon, err := f.coupons.CreateCoupon(ctx, couponInput("HALF", models.DiscountPercent, "50"), &f.admin.ID)
	if err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}

	receipt, err := f.coupons.Spend(ctx, SpendRequest{
		UserID:     f.global.ID,
		TaskKey:    models.TaskContent,
		Cost:       decimal.NewFromInt(4),
		CouponCode: "half",
		Reason:     "Content generation",
	})
	if err != nil {
		t.Fatalf("Spend failed: %v", err)
	}
	expectDecimal(t, "net cost", receipt.Quote.NetCost, "2")
	if receipt.Redemption == nil {
		t.Fatal("Expected a redemption")
	}
	expectDecimal(t, "gems discounted", receipt.Redemption.GemsDiscounted, "2")
	if receipt.Transaction.Reason != "Content generation (coupon HALF)" {
		t.Errorf("Unexpected transaction reason %q", receipt.Transaction.Reason)
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")

	// One use per user.
	_, err = f.coupons.Spend(ctx, SpendRequest{
		UserID:     f.global.ID,
		TaskKey:    models.TaskContent,
		Cost:       decimal.NewFromInt(4),
		CouponCode: "HALF",
		Reason:     "Content generation",
	})
	expectErr(t, err, ErrCouponNotApplicable)

	redemptions, err := f.coupons.ListRedemptions(ctx, coupon.ID)
	if err != nil {
		t.Fatalf("ListRedemptions failed: %v", err)
	}
	if len(redemptions) != 1 {
		t.Errorf("Expected 1 redemption, got %d", len(redemptions))
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "48")
}

func TestSpendWithoutDiscountRecordsNoRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.coupons.Spend(ctx, SpendRequest{
		UserID:  f.global.ID,
		TaskKey: models.TaskSummary,
		Cost:    decimal.NewFromInt(2),
		Reason:  "Summary generation",
	})
	if err != nil {
		t.Fatalf("Spend failed: %v", err)
	}
	if receipt.Redemption != nil {
		t.Errorf("Expected no redemption without a coupon, got %+v", receipt.Redemption)
	}

	var n int64
	f.db.Model(&models.CouponRedemption{}).Count(&n)
	if n != 0 {
		t.Errorf("Expected no redemptions, got %d", n)
	}
}

func TestSpendFailedChargeRecordsNoRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.coupons.CreateCoupon(ctx, couponInput("TENOFF", models.DiscountPercent, "10"), &f.admin.ID); err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}
	if _, err := f.ledger.Charge(ctx, f.global.ID, decimal.NewFromInt(49), "drain", nil); err != nil {
		t.Fatalf("Charge failed: %v", err)
	}

	_, err := f.coupons.Spend(ctx, SpendRequest{
		UserID:     f.global.ID,
		TaskKey:    models.TaskContent,
		Cost:       decimal.NewFromInt(4),
		CouponCode: "TENOFF",
		Reason:     "Content generation",
	})
	expectErr(t, err, ErrInsufficientBalance)

	var n int64
	f.db.Model(&models.CouponRedemption{}).Count(&n)
	if n != 0 {
		t.Errorf("Expected no redemption after failed charge, got %d", n)
	}
	expectDecimal(t, "balance", f.balance(t, f.global.ID), "1")
}

func TestResolveBestPicksLargestDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []CouponInput{
		couponInput("ONE", models.DiscountFixed, "1"),
		couponInput("QUARTER", models.DiscountPercent, "25"),
		couponInput("THREE", models.DiscountFixed, "3"),
	} {
		if _, err := f.coupons.CreateCoupon(ctx, in, &f.admin.ID); err != nil {
			t.Fatalf("CreateCoupon %s failed: %v", in.Code, err)
		}
	}

	quote, err := f.coupons.ResolveBest(ctx, f.global.ID, models.TaskFullContent, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("ResolveBest failed: %v", err)
	}
	if quote.Coupon == nil || quote.Coupon.Code != "THREE" {
		t.Fatalf("Expected THREE to win, got %+v", quote.Coupon)
	}
	expectDecimal(t, "net cost", quote.NetCost, "2")

	none, err := f.coupons.ResolveBest(ctx, f.global.ID, models.TaskFullContent, decimal.Zero)
	if err != nil {
		t.Fatalf("ResolveBest failed: %v", err)
	}
	if none.Coupon != nil {
		t.Errorf("Expected no coupon for a free task, got %s", none.Coupon.Code)
	}
}

func TestCouponEditing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	coupon, err := f.coupons.CreateCoupon(ctx, couponInput("spring", models.DiscountFixed, "2"), &f.admin.ID)
	if err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}
	if coupon.Code != "SPRING" {
		t.Errorf("Expected code to be upper-cased, got %s", coupon.Code)
	}

	_, err = f.coupons.CreateCoupon(ctx, couponInput("Spring", models.DiscountFixed, "1"), &f.admin.ID)
	expectErr(t, err, ErrValidation)

	_, err = f.coupons.CreateCoupon(ctx, couponInput("TOOMUCH", models.DiscountPercent, "120"), &f.admin.ID)
	expectErr(t, err, ErrValidation)

	update := couponInput("SPRING", models.DiscountFixed, "3")
	if _, err := f.coupons.UpdateCoupon(ctx, coupon.ID, update); err != nil {
		t.Fatalf("UpdateCoupon failed: %v", err)
	}

	if _, err := f.coupons.Spend(ctx, SpendRequest{
		UserID:     f.global.ID,
		TaskKey:    models.TaskContent,
		Cost:       decimal.NewFromInt(4),
		CouponCode: "spring",
		Reason:     "Content generation",
	}); err != nil {
		t.Fatalf("Spend failed: %v", err)
	}

	_, err = f.coupons.UpdateCoupon(ctx, coupon.ID, update)
	expectErr(t, err, ErrCouponLocked)
	_, err = f.coupons.AssignUsers(ctx, coupon.ID, []uint{f.global.ID})
	expectErr(t, err, ErrCouponLocked)
	expectErr(t, f.coupons.DeleteCoupon(ctx, coupon.ID), ErrCouponLocked)
}

func TestPricingOverrides(t *testing.T) {
	gdb := newTestDB(t)
	pricing := NewPricingService(gdb, decimal.NewFromInt(10))
	ctx := context.Background()

	cost, err := pricing.Cost(ctx, models.TaskContent)
	if err != nil {
		t.Fatalf("Cost failed: %v", err)
	}
	expectDecimal(t, "content cost", cost, "4")

	if _, err := pricing.SetCost(ctx, models.TaskContent, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("SetCost failed: %v", err)
	}
	if _, err := pricing.SetCost(ctx, models.TaskContent, decimal.NewFromInt(7)); err != nil {
		t.Fatalf("SetCost upsert failed: %v", err)
	}
	cost, _ = pricing.Cost(ctx, models.TaskContent)
	expectDecimal(t, "content cost", cost, "7")

	_, err = pricing.SetCost(ctx, "essay", decimal.NewFromInt(1))
	expectErr(t, err, ErrValidation)
	_, err = pricing.SetCost(ctx, models.TaskSummary, decimal.NewFromInt(-1))
	expectErr(t, err, ErrValidation)

	entries, err := pricing.ListCosts(ctx)
	if err != nil {
		t.Fatalf("ListCosts failed: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("Expected 8 cost entries, got %d", len(entries))
	}
	for _, e := range entries {
		if (e.Key == models.TaskContent) != e.Overridden {
			t.Errorf("Unexpected override flag for %s: %v", e.Key, e.Overridden)
		}
	}
}
