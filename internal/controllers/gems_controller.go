package controllers

import (
	"net/http"

	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type GemsController struct {
	ledger   *services.LedgerService
	pricing  *services.PricingService
	validate *validator.Validate
}

func NewGemsController(ledger *services.LedgerService, pricing *services.PricingService, validate *validator.Validate) *GemsController {
	return &GemsController{ledger: ledger, pricing: pricing, validate: validate}
}

type CreditRequest struct {
	UserID uint            `json:"userId" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=255"`
}

type SetCostRequest struct {
	Cost decimal.Decimal `json:"cost"`
}

// Balance handles GET /api/gems/balance
func (gc *GemsController) Balance(c *gin.Context) {
	balance, err := gc.ledger.GetBalance(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"balance": balance})
}

// Transactions handles GET /api/gems/transactions
func (gc *GemsController) Transactions(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	txs, total, err := gc.ledger.ListTransactions(c.Request.Context(), middleware.CurrentUserID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    txs,
		"total":   total,
		"page":    page,
	})
}

// UserBalance handles GET /api/admin/gems/:userId
func (gc *GemsController) UserBalance(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	balance, err := gc.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"userId": userID, "balance": balance})
}

// Credit handles POST /api/admin/gems/credit
func (gc *GemsController) Credit(c *gin.Context) {
	var req CreditRequest
	if !bindJSON(c, gc.validate, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		respondError(c, services.ErrValidation)
		return
	}

	actor := middleware.CurrentUserID(c)
	entry, err := gc.ledger.Credit(c.Request.Context(), req.UserID, req.Amount, req.Reason, &actor)
	if err != nil {
		respondError(c, err)
		return
	}
	balance, err := gc.ledger.GetBalance(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"transaction": entry, "balance": balance})
}

// Costs handles GET /api/gems/costs
func (gc *GemsController) Costs(c *gin.Context) {
	costs, err := gc.pricing.ListCosts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, costs)
}

// SetCost handles PUT /api/admin/gems/costs/:key
func (gc *GemsController) SetCost(c *gin.Context) {
	var req SetCostRequest
	if !bindJSON(c, gc.validate, &req) {
		return
	}
	rule, err := gc.pricing.SetCost(c.Request.Context(), c.Param("key"), req.Cost)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rule)
}
