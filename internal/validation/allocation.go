package validation

import (
	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
)

// ValidateSaveGroup validates a group upsert: a name, a target within
// 0-100 and non-negative thresholds.
func ValidateSaveGroup(req request.SaveGroupRequest) error {
	return result(validateStruct(req))
}

// ValidateSaveTarget validates a holding target upsert.
func ValidateSaveTarget(req request.SaveTargetRequest) error {
	return result(validateStruct(req))
}

// ValidateSavePrices validates a price batch. Every entry needs a holding,
// a date and a positive price.
func ValidateSavePrices(req request.SavePricesRequest) error {
	return result(validateStruct(req))
}

// ValidateCreateAccount validates a new account.
func ValidateCreateAccount(req request.CreateAccountRequest) error {
	return result(validateStruct(req))
}

// ValidateCreateHolding validates a new holding.
func ValidateCreateHolding(req request.CreateHoldingRequest) error {
	return result(validateStruct(req))
}
