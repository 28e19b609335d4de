package services

import "errors"

var (
	// Pipeline
	ErrOutOfOrder                = errors.New("previous section must be approved before processing this one")
	ErrRegenerationLimitExceeded = errors.New("regeneration limit reached")
	ErrInvalidAction             = errors.New("unknown action")
	ErrConcurrentUpdate          = errors.New("section was modified concurrently")

	// Ledger and coupons
	ErrInsufficientBalance = errors.New("not enough gems")
	ErrCouponNotApplicable = errors.New("coupon is not applicable")
	ErrCouponLocked        = errors.New("coupon has redemptions and can no longer be changed")

	// Jobs
	ErrDuplicateJob    = errors.New("a job with this customer id already exists")
	ErrHolidayConflict = errors.New("date is used as a deadline by an active job")

	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
)
