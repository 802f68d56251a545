package database

import (
	"errors"

	"github.com/lib/pq"
)

// Domain sentinels. Store functions return these so handlers can map them to
// HTTP statuses without string matching.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product no longer available")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrAddressNotFound   = errors.New("address not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCurrencyMismatch  = errors.New("cart items use different currencies")
	ErrInvalidSignature  = errors.New("payment signature verification failed")
)

// Postgres error codes that a fresh transaction attempt can recover from.
var retryablePQCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// IsRetryable reports whether err is a transient transaction failure.
// Constraint violations and anything non-Postgres are permanent.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return retryablePQCodes[pqErr.Code]
	}
	return false
}
