package booking

import (
	"errors"
	"fmt"
)

// ErrInvalidAmount means the caller-proposed price was missing, zero,
// negative or not a number. Raised before any processor call.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrMissingIdentifier means verify was called with neither a reference
// token nor an order id.
var ErrMissingIdentifier = errors.New("missing ref or order id")

// LinkCreationError wraps a processor failure while creating the hosted
// checkout link. Never retried automatically.
type LinkCreationError struct {
	Err error
}

func (e *LinkCreationError) Error() string { return fmt.Sprintf("create link failed: %v", e.Err) }
func (e *LinkCreationError) Unwrap() error { return e.Err }

// OrderNotFoundError means every cascade stage was exhausted without
// resolving the reference to an order.
type OrderNotFoundError struct {
	Ref string
}

func (e *OrderNotFoundError) Error() string { return fmt.Sprintf("order not found for ref %s", e.Ref) }

// LocationMismatchError is the safety check against cross-tenant leakage in
// multi-location accounts: the resolved order lives at a different location
// than the configured one, so verification stops before any payment lookup.
type LocationMismatchError struct {
	OrderID       string
	OrderLocation string
	Expected      string
}

func (e *LocationMismatchError) Error() string {
	return fmt.Sprintf("order %s is at location %s, expected %s", e.OrderID, e.OrderLocation, e.Expected)
}

// VerifyError wraps an unexpected processor failure during any cascade
// stage. The storefront treats it the same as "not paid yet" and retries.
type VerifyError struct {
	Stage string
	Err   error
}

func (e *VerifyError) Error() string { return fmt.Sprintf("verify %s: %v", e.Stage, e.Err) }
func (e *VerifyError) Unwrap() error { return e.Err }
