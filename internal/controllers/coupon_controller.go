package controllers

import (
	"net/http"

	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type CouponController struct {
	coupons  *services.CouponService
	pricing  *services.PricingService
	validate *validator.Validate
}

func NewCouponController(coupons *services.CouponService, pricing *services.PricingService, validate *validator.Validate) *CouponController {
	return &CouponController{coupons: coupons, pricing: pricing, validate: validate}
}

type AssignCouponRequest struct {
	UserIDs []uint `json:"userIds"`
}

type CouponPreviewRequest struct {
	TaskKey string `json:"taskKey" validate:"required,oneof=summary structure content referencing full_content monster"`
	Code    string `json:"code" validate:"max=64"`
}

// ListCoupons handles GET /api/admin/coupons
func (cc *CouponController) ListCoupons(c *gin.Context) {
	coupons, err := cc.coupons.ListCoupons(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, coupons)
}

// GetCoupon handles GET /api/admin/coupons/:id
func (cc *CouponController) GetCoupon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	coupon, err := cc.coupons.GetCoupon(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, coupon)
}

// CreateCoupon handles POST /api/admin/coupons
func (cc *CouponController) CreateCoupon(c *gin.Context) {
	var req services.CouponInput
	if !bindJSON(c, cc.validate, &req) {
		return
	}
	actor := middleware.CurrentUserID(c)
	coupon, err := cc.coupons.CreateCoupon(c.Request.Context(), req, &actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, coupon)
}

// UpdateCoupon handles PUT /api/admin/coupons/:id
func (cc *CouponController) UpdateCoupon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CouponInput
	if !bindJSON(c, cc.validate, &req) {
		return
	}
	coupon, err := cc.coupons.UpdateCoupon(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, coupon)
}

// AssignCoupon handles PUT /api/admin/coupons/:id/users
func (cc *CouponController) AssignCoupon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AssignCouponRequest
	if !bindJSON(c, cc.validate, &req) {
		return
	}
	coupon, err := cc.coupons.AssignUsers(c.Request.Context(), id, req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, coupon)
}

// DeleteCoupon handles DELETE /api/admin/coupons/:id
func (cc *CouponController) DeleteCoupon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := cc.coupons.DeleteCoupon(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Coupon deleted"})
}

// Redemptions handles GET /api/admin/coupons/:id/redemptions
func (cc *CouponController) Redemptions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := cc.coupons.ListRedemptions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}

// Preview handles POST /api/coupons/preview. It prices the task with the
// code without charging.
func (cc *CouponController) Preview(c *gin.Context) {
	var req CouponPreviewRequest
	if !bindJSON(c, cc.validate, &req) {
		return
	}
	cost, err := cc.pricing.Cost(c.Request.Context(), req.TaskKey)
	if err != nil {
		respondError(c, err)
		return
	}
	quote, err := cc.coupons.ApplyCode(c.Request.Context(), middleware.CurrentUserID(c), req.TaskKey, cost, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// Best handles GET /api/coupons/best?task=<key>
func (cc *CouponController) Best(c *gin.Context) {
	task := c.Query("task")
	if err := cc.validate.Var(task, "required,oneof=summary structure content referencing full_content monster"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "validation_failed",
			"message": "Unknown task",
		})
		return
	}
	cost, err := cc.pricing.Cost(c.Request.Context(), task)
	if err != nil {
		respondError(c, err)
		return
	}
	quote, err := cc.coupons.ResolveBest(c.Request.Context(), middleware.CurrentUserID(c), task, cost)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}
