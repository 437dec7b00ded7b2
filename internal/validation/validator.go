package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// repeated product ids in one cart are rejected, not aggregated
	v.RegisterStructValidation(uniqueItemsValidation(func(r CheckoutRequest) []Item { return r.Items }), CheckoutRequest{})
	v.RegisterStructValidation(uniqueItemsValidation(func(r CalculateCartRequest) []Item { return r.Items }), CalculateCartRequest{})

	return v
}

// uniqueItemsValidation reports a field error on the first duplicated
// product id in the request's items.
func uniqueItemsValidation[T any](items func(T) []Item) validatorv10.StructLevelFunc {
	return func(sl validatorv10.StructLevel) {
		req := sl.Current().Interface().(T)

		seen := map[int64]struct{}{}
		for i, it := range items(req) {
			if _, dup := seen[it.ProductID]; dup {
				sl.ReportError(it.ProductID,
					fmt.Sprintf("items[%d].product_id", i), "ProductID",
					"unique_product_ids",
					fmt.Sprintf("product id %d appears more than once", it.ProductID))
				return
			}
			seen[it.ProductID] = struct{}{}
		}
	}
}
