package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation
// registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// PATCH bodies must carry at least one recognized field; an empty
	// update is a client error, not a no-op.
	v.RegisterStructValidation(updateOrderStructValidation, UpdateOrderRequest{})

	return v
}

func updateOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateOrderRequest)

	if req.Status == nil && req.Price == nil && req.URL == nil {
		sl.ReportError(req.Status, "status", "Status", "one_field_required", "supply at least one of status, price, url")
	}
}
