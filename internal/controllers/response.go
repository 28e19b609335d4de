package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{services.ErrOutOfOrder, http.StatusConflict, "out_of_order"},
	{services.ErrRegenerationLimitExceeded, http.StatusConflict, "regeneration_limit_exceeded"},
	{services.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	{services.ErrCouponNotApplicable, http.StatusUnprocessableEntity, "coupon_not_applicable"},
	{services.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},
	{services.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
	{services.ErrDuplicateJob, http.StatusConflict, "duplicate_job"},
	{services.ErrCouponLocked, http.StatusConflict, "coupon_locked"},
	{services.ErrHolidayConflict, http.StatusConflict, "holiday_conflict"},
}

// respondError writes the JSON error body for err.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{
				"success": false,
				"error":   m.code,
				"message": err.Error(),
			})
			return
		}
	}

	logger.WithError(err, "api").WithFields(map[string]interface{}{
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(middleware.ContextRequestID),
	}).Error("Unhandled request error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "internal_error",
		"message": "Internal server error",
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

// bindJSON decodes and validates the request body into req. It writes the
// error response and returns false on failure.
func bindJSON(c *gin.Context, validate *validator.Validate, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_body",
			"message": err.Error(),
		})
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "validation_failed",
			"message": "Validation failed",
			"details": formatValidationErrors(err),
		})
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_id",
			"message": "Invalid " + name,
		})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{ID: middleware.CurrentUserID(c), Role: middleware.CurrentRole(c)}
}
