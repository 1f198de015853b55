package validation

import (
	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// ValidateCreateTransaction validates a transaction creation request.
//
// Required fields:
//   - accountId: Must be a valid UUID
//   - date: Must be in YYYY-MM-DD format
//   - type: Must be one of: buy, sell, dividend, interest, deposit, withdrawal
//
// Buys and sells also require holdingId, a positive quantity and price, and
// non-negative fees. Cash events require a positive amount.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateTransaction(req request.CreateTransactionRequest) error {
	errors := validateStruct(req)
	if _, ok := errors["type"]; ok {
		return result(errors)
	}

	if model.TransactionType(req.Type).IsTrade() {
		if req.HoldingID == "" {
			errors["holdingId"] = "is required for " + req.Type
		}
		if !req.Quantity.IsPositive() {
			errors["quantity"] = "must be positive"
		}
		if !req.Price.IsPositive() {
			errors["price"] = "must be positive"
		}
		if req.Fees.IsNegative() {
			errors["fees"] = "must not be negative"
		}
	} else if !req.Amount.IsPositive() {
		errors["amount"] = "must be positive"
	}

	return result(errors)
}
